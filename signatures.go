package sigmatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Signature is a named byte pattern.
type Signature struct {
	Name    string
	Pattern Pattern
}

// Format is the encoding of a signature file.
type Format string

// Supported signature file formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension. It returns an
// empty Format for unknown extensions.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// LoadSignatures reads a name-to-pattern mapping from path. Signatures are
// returned in file order. Any failure is an *InputError.
func LoadSignatures(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}

	sigs, err := ParseSignatures(data, FormatFromPath(path))
	if err != nil {
		var inErr *InputError
		if errors.As(err, &inErr) {
			inErr.Path = path
		}
		return nil, err
	}
	return sigs, nil
}

// ParseSignatures decodes a mapping in the given format. An empty format
// tries JSON first and falls back to YAML.
func ParseSignatures(data []byte, format Format) ([]Signature, error) {
	var (
		pairs []namedPattern
		err   error
	)
	switch format {
	case FormatJSON:
		pairs, err = decodeJSON(data)
	case FormatYAML:
		pairs, err = decodeYAML(data)
	case "":
		if gjson.ValidBytes(data) {
			pairs, err = decodeJSON(data)
		} else {
			pairs, err = decodeYAML(data)
		}
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &InputError{Err: err}
	}

	sigs := make([]Signature, 0, len(pairs))
	index := make(map[string]int, len(pairs))
	for _, np := range pairs {
		p, err := ParsePattern(np.pattern)
		if err != nil {
			return nil, &InputError{Err: fmt.Errorf("signature %q: %w", np.name, err)}
		}
		// A repeated name keeps its first position and takes the last pattern.
		if i, ok := index[np.name]; ok {
			sigs[i].Pattern = p
			continue
		}
		index[np.name] = len(sigs)
		sigs = append(sigs, Signature{Name: np.name, Pattern: p})
	}
	return sigs, nil
}

type namedPattern struct {
	name    string
	pattern string
}

func decodeJSON(data []byte) ([]namedPattern, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("malformed JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("expected a JSON object, got %s", root.Type)
	}

	var (
		pairs []namedPattern
		err   error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			err = fmt.Errorf("signature %q: expected a string, got %s", key.String(), value.Type)
			return false
		}
		pairs = append(pairs, namedPattern{name: key.String(), pattern: value.String()})
		return true
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func decodeYAML(data []byte) ([]namedPattern, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed YAML: %w", err)
	}
	if doc.Kind == 0 {
		// Empty document.
		return nil, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("expected a YAML mapping")
	}

	m := doc.Content[0]
	pairs := make([]namedPattern, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: expected name: pattern", k.Line)
		}
		pairs = append(pairs, namedPattern{name: k.Value, pattern: v.Value})
	}
	return pairs, nil
}
