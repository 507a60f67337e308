package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/maxgio92/sigmatch"
)

// writeSymbolMap writes the applied renames as an address -> name map.
// The format follows the file extension: .yaml/.yml or JSON otherwise.
// Entries keep the order in which the renames were applied.
func writeSymbolMap(path string, assignments []sigmatch.Assignment) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = encodeSymbolMapYAML(assignments)
	default:
		data, err = encodeSymbolMapJSON(assignments)
	}
	if err != nil {
		return fmt.Errorf("failed to encode symbol map: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write symbol map: %w", err)
	}
	return nil
}

func addressKey(addr uint64) string {
	return fmt.Sprintf("0x%X", addr)
}

func encodeSymbolMapJSON(assignments []sigmatch.Assignment) ([]byte, error) {
	doc := []byte("{}")
	for _, a := range assignments {
		var err error
		// Hex keys contain no sjson path metacharacters.
		doc, err = sjson.SetBytes(doc, addressKey(a.Address), a.NewName)
		if err != nil {
			return nil, err
		}
	}
	return pretty.Pretty(doc), nil
}

func encodeSymbolMapYAML(assignments []sigmatch.Assignment) ([]byte, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range assignments {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: addressKey(a.Address)},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.NewName},
		)
	}
	return yaml.Marshal(m)
}
