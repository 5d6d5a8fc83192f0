package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapiast/internal/ast"
)

func minimalConversion(withDiag bool) Conversion {
	tree := &ast.AST{
		Routes: []ast.Route{{
			Name:       "hello",
			Endpoint:   "/hello",
			Method:     ast.Get,
			Parameters: map[string]ast.Parameter{},
			Responses: ast.Responses{Specific: []ast.StatusResponse{{
				Status:   200,
				Response: ast.Response{Body: &ast.Body{Typed: ast.Ref("Hello")}},
			}}},
		}},
		Types: map[string]ast.Type{"Hello": ast.NewObject("text", ast.String)},
	}
	conv := Conversion{AST: tree}
	if withDiag {
		conv.Diagnostics = ast.Diagnostics{{
			Kind:     ast.ErrInvalidStatus,
			Location: ast.Location{Pointer: "/paths/~1hello/get/responses/2XX"},
			Message:  `status "2XX" is not a status code, skipping`,
		}}
	}
	return conv
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), minimalConversion(true), Options{OutDir: dir, Format: YAML, DryRun: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(res.Planned) != 2 || res.Planned[0].RelPath != "ast.yaml" || res.Planned[1].RelPath != "diagnostics.yaml" {
		t.Fatalf("unexpected plan: %+v", res.Planned)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written on dry-run")
	}
}

func TestEmit_WriteAndContents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), minimalConversion(false), Options{OutDir: dir})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(res.Planned) != 1 {
		t.Fatalf("diagnostics file should be skipped on a clean conversion: %+v", res.Planned)
	}
	data, err := os.ReadFile(filepath.Join(dir, "ast.json"))
	if err != nil {
		t.Fatalf("read ast.json: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("ast.json invalid: %v", err)
	}
	if !strings.Contains(string(data), `"ref": "Hello"`) {
		t.Fatalf("ast.json missing ref node:\n%s", data)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestEmit_NoForce_NonEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}
	if _, err := Emit(context.Background(), minimalConversion(false), Options{OutDir: dir}); err == nil {
		t.Fatalf("expected error on non-empty dir without force")
	}
	if _, err := Emit(context.Background(), minimalConversion(false), Options{OutDir: dir, Force: true}); err != nil {
		t.Fatalf("force should overwrite: %v", err)
	}
}

func TestEmit_Validation(t *testing.T) {
	t.Parallel()
	if _, err := Emit(context.Background(), Conversion{}, Options{OutDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for nil AST")
	}
	if _, err := Emit(context.Background(), minimalConversion(false), Options{}); err == nil {
		t.Fatalf("expected error for missing OutDir")
	}
	if _, err := Emit(context.Background(), minimalConversion(false), Options{OutDir: t.TempDir(), Format: "toml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestEncode_YAML(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := Encode(&buf, minimalConversion(true).Diagnostics, YAML); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("yaml invalid: %v\n%s", err, buf.String())
	}
	if len(out) != 1 || out[0]["kind"] != "invalid response status" {
		t.Fatalf("unexpected diagnostics yaml:\n%s", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Format{"": JSON, "JSON": JSON, "yml": YAML, " yaml ": YAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestEmit_CleanRunRemovesStaleDiagnostics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := Emit(context.Background(), minimalConversion(true), Options{OutDir: dir}); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "diagnostics.json")); err != nil {
		t.Fatalf("diagnostics.json should be written: %v", err)
	}

	if _, err := Emit(context.Background(), minimalConversion(false), Options{OutDir: dir, Force: true}); err != nil {
		t.Fatalf("second emit: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "diagnostics.json")); !os.IsNotExist(err) {
		t.Fatalf("stale diagnostics.json left after a clean run (stat err=%v)", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ast.json")); err != nil {
		t.Fatalf("ast.json missing: %v", err)
	}
}

func TestEmit_DryRunKeepsExistingDiagnostics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := Emit(context.Background(), minimalConversion(true), Options{OutDir: dir}); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if _, err := Emit(context.Background(), minimalConversion(false), Options{OutDir: dir, Force: true, DryRun: true}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "diagnostics.json")); err != nil {
		t.Fatalf("dry run must not touch the output directory: %v", err)
	}
}
