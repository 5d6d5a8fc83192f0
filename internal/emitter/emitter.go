// Package emitter writes a conversion result to disk as JSON or YAML.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapiast/internal/ast"
)

// Format selects the output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml in any case. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("emitter: unsupported format %q (want json or yaml)", s)
}

// Conversion is what gets emitted: the AST plus the diagnostics recorded
// while building it.
type Conversion struct {
	AST         *ast.AST
	Diagnostics ast.Diagnostics
}

// Options controls how a conversion is written.
type Options struct {
	OutDir string // required; target directory
	Format Format // json (default) or yaml
	Force  bool   // overwrite a non-empty directory
	DryRun bool   // don't write, only plan
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result lists the planned files in deterministic order.
type Result struct {
	Format  Format
	Planned []PlannedFile
}

// Emit renders conv into OutDir: ast.<fmt> always, diagnostics.<fmt> only
// when there are diagnostics. A diagnostics file from an earlier run is
// removed when there are none.
func Emit(ctx context.Context, conv Conversion, opts Options) (*Result, error) {
	if conv.AST == nil {
		return nil, fmt.Errorf("emitter: nil AST")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("emitter: OutDir is required")
	}
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{}
	var buf bytes.Buffer
	if err := Encode(&buf, conv.AST, format); err != nil {
		return nil, fmt.Errorf("encode ast: %w", err)
	}
	files["ast."+string(format)] = bytes.Clone(buf.Bytes())
	if len(conv.Diagnostics) > 0 {
		buf.Reset()
		if err := Encode(&buf, conv.Diagnostics, format); err != nil {
			return nil, fmt.Errorf("encode diagnostics: %w", err)
		}
		files["diagnostics."+string(format)] = bytes.Clone(buf.Bytes())
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(ctx, opts.OutDir, rels, files, opts.Force); err != nil {
			return nil, err
		}
		// A clean run must not leave the diagnostics of an earlier one behind.
		if len(conv.Diagnostics) == 0 {
			if err := removeStale(opts.OutDir, "diagnostics."+string(format)); err != nil {
				return nil, err
			}
		}
	}
	return &Result{Format: format, Planned: planned}, nil
}

// Encode writes v to w. JSON is indented with two spaces, YAML likewise; both
// end with a newline.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("emitter: unsupported format %q", format)
}

func writeFiles(ctx context.Context, outDir string, rels []string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("emitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(abs, rel)
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[rel], 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}

func removeStale(outDir, rel string) error {
	p := filepath.Join(outDir, rel)
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", rel, err)
	}
	return nil
}
