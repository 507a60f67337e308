package program_test

import (
	"bytes"
	"context"
	"debug/elf"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/sigmatch"
	"github.com/maxgio92/sigmatch/internal/program"
)

const demoAppSource = "demo-app.go"

// buildDemoApp compiles testdata/demo-app.go for goarch and returns the
// binary path.
func buildDemoApp(t *testing.T, goarch string, extra ...string) string {
	t.Helper()

	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	binPath := filepath.Join(t.TempDir(), "demo-app")
	args := append([]string{"build", "-o", binPath}, extra...)
	args = append(args, demoAppSource)

	cmd := exec.Command("go", args...)
	cmd.Dir = "testdata"
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS=linux", "GOARCH="+goarch)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to compile demo-app: %v\n%s", err, out)
	}
	return binPath
}

// functionBytes returns the body of the named STT_FUNC symbol.
func functionBytes(t *testing.T, path, name string) (uint64, []byte) {
	t.Helper()

	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	syms, err := f.Symbols()
	require.NoError(t, err)
	for _, s := range syms {
		if s.Name != name {
			continue
		}
		text := f.Section(".text")
		data, err := text.Data()
		require.NoError(t, err)
		off := s.Value - text.Addr
		return s.Value, data[off : off+s.Size]
	}
	t.Fatalf("symbol %s not found", name)
	return 0, nil
}

func TestOpen(t *testing.T) {
	for _, goarch := range []string{"amd64", "arm64"} {
		t.Run(goarch, func(t *testing.T) {
			binPath := buildDemoApp(t, goarch)

			p, err := program.Open(binPath)
			require.NoError(t, err)

			assert.NotEmpty(t, p.Segments())
			assert.NotEmpty(t, p.Functions())

			addr, _ := functionBytes(t, binPath, "main.add")
			start, ok := p.FunctionContaining(addr)
			require.True(t, ok)
			assert.Equal(t, addr, start)
			assert.Equal(t, "main.add", p.CurrentName(addr))

			start, ok = p.FunctionContaining(addr + 1)
			require.True(t, ok)
			assert.Equal(t, addr, start)
		})
	}
}

func TestOpen_Stripped(t *testing.T) {
	binPath := buildDemoApp(t, "amd64", "-ldflags=-s -w")

	withDiscovery, err := program.Open(binPath)
	require.NoError(t, err)
	without, err := program.Open(binPath, program.WithDiscovery(false))
	require.NoError(t, err)

	t.Logf("functions: discovered=%d symbols-only=%d", len(withDiscovery.Functions()), len(without.Functions()))
	assert.Greater(t, len(withDiscovery.Functions()), len(without.Functions()))
}

func TestScanELF(t *testing.T) {
	binPath := buildDemoApp(t, "amd64")
	addr, body := functionBytes(t, binPath, "main.add")
	require.NotEmpty(t, body)

	hex := make([]string, len(body))
	for i, b := range body {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	sigs, err := sigmatch.ParseSignatures([]byte(`{"demo_add": "`+strings.Join(hex, " ")+`"}`), sigmatch.FormatJSON)
	require.NoError(t, err)

	p, err := program.Open(binPath)
	require.NoError(t, err)

	res, err := sigmatch.NewScanner(p).Scan(context.Background(), sigs)
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.GreaterOrEqual(t, res.Renamed, 1)
	assert.True(t, strings.HasPrefix(p.CurrentName(addr), "demo_add"), "got %s", p.CurrentName(addr))
}

func TestFromELF_InvalidReader(t *testing.T) {
	r := bytes.NewReader([]byte{0x00, 0x01, 0x02, 0x03})
	_, err := program.FromELF(r)
	if err == nil {
		t.Fatal("expected error for invalid ELF data, got nil")
	}
}
