package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// captureConfig runs the root command with args and returns the resolved
// convert config without loading anything. Tests using it swap the package
// level runner, so they must not run in parallel.
func captureConfig(t *testing.T, args ...string) (*ConvertConfig, error) {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	var captured *ConvertConfig
	convertRunner = func(ctx context.Context, cfg *ConvertConfig, _ streams) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { convertRunner = runConvert })

	root.SetArgs(args)
	err := root.Execute()
	return captured, err
}

func TestConvertConfigFromFlags(t *testing.T) {
	captured, err := captureConfig(t,
		"--verbose",
		"convert",
		"--input", "spec.yaml",
		"--out", "./build",
		"--format", "YAML",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--methods", "GET,post",
		"--paths", "^/v1/",
		"--named-refs",
		"--allow-partial",
		"--strict",
		"--dry-run",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	want := &ConvertConfig{
		Input:        "spec.yaml",
		Out:          "./build",
		Format:       "yaml",
		IncludeTags:  []string{"foo", "bar"},
		ExcludeTags:  []string{"baz"},
		Methods:      []string{"get", "post"},
		Paths:        []string{"^/v1/"},
		NamedRefs:    true,
		AllowPartial: true,
		Strict:       true,
		DryRun:       true,
		Force:        true,
		Verbose:      true,
	}
	if diff := cmp.Diff(want, captured); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
out: from-config
format: yaml
includeTags:
  - cfgFoo
exclude-tags: cfgBar
methods: [get]
named_refs: true
allowPartial: "yes"
dryRun: true
force: false
verbose: true
`) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	captured, err := captureConfig(t,
		"--config", configPath,
		"convert",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := &ConvertConfig{
		Input:        "flag-spec.yaml",
		Out:          "from-config",
		Format:       "yaml",
		IncludeTags:  []string{"flagTag"},
		ExcludeTags:  []string{"cfgBar"},
		Methods:      []string{"get"},
		NamedRefs:    true,
		AllowPartial: true,
		ConfigPath:   configPath,
		DryRun:       false,
		Force:        true,
		Verbose:      true,
	}
	if diff := cmp.Diff(want, captured); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertConfigUnknownKey(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("lang: go\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", configPath, "convert", "--input", "spec.yaml"})

	err := root.Execute()
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestConvertConfigValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"convert"}, "--input is required"},
		{"bad format", []string{"convert", "--input", "a.yaml", "--format", "toml"}, "unsupported --format"},
		{"bad method", []string{"convert", "--input", "a.yaml", "--methods", "connect"}, "unsupported --methods"},
		{"bad pattern", []string{"convert", "--input", "a.yaml", "--paths", "("}, "invalid --paths"},
		{"tag overlap", []string{"convert", "--input", "a.yaml", "--include-tags", "x", "--exclude-tags", "x"}, "overlap"},
		{"dry run to stdout", []string{"convert", "--input", "a.yaml", "--dry-run"}, "--dry-run needs --out"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(tt.args)
			err := root.Execute()
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
