package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o2lab/taint/internal/config"
)

func TestParseIndex(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"base", config.Base, true},
		{"BASE", config.Base, true},
		{"result", config.Result, true},
		{"0", 0, true},
		{"3", 3, true},
		{"-1", 0, false},
		{"nonsense", 0, false},
	}
	for _, c := range cases {
		got, ok := config.ParseIndex(c.in)
		assert.Equal(t, c.ok, ok, "index %q", c.in)
		if c.ok {
			assert.Equal(t, c.want, got, "index %q", c.in)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadMergesDirectoryWithDedup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", `
sources:
  - kind: call
    method: "<Demo: String source()>"
    index: result
sinks:
  - method: "<Demo: void sink(String)>"
    index: "0"
`)
	writeFile(t, dir, "b.yaml", `
sources:
  - kind: call
    method: "<Demo: String source()>"
    index: result
sinks:
  - method: "<Demo: void sink(String)>"
    index: "0"
transfers:
  - method: "<Demo: String wrap(String)>"
    from: "0"
    to: result
`)

	rules, err := config.Load(dir)
	require.NoError(t, err)

	want := &config.Rules{
		Sources:   []config.SourceRule{{Kind: config.CallSource, Method: "<Demo: String source()>", Index: config.Result, Type: ""}},
		Sinks:     []config.SinkRule{{Method: "<Demo: void sink(String)>", Index: 0}},
		Transfers: []config.TransferRule{{Method: "<Demo: String wrap(String)>", From: 0, To: config.Result, Type: ""}},
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("merged rules mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSkipsUnparsableIndexWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yml", `
sinks:
  - method: "<Demo: void sink(String)>"
    index: "not-a-number"
`)
	rules, err := config.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, rules.Sinks)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "rules.yml", "unknown_top_level_key: true\n")
	_, err := config.Load(dir)
	assert.Error(t, err, "UnmarshalStrict should reject unknown top-level keys")
}
