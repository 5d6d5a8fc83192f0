package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapiast/internal/ast"
	"github.com/mark3labs/oapiast/internal/emitter"
	"github.com/mark3labs/oapiast/internal/spec"
)

// ConvertConfig captures all inputs that influence the convert command after
// merging defaults, config file values, and CLI overrides.
type ConvertConfig struct {
	Input        string
	Out          string
	Format       string
	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	Paths        []string
	NamedRefs    bool
	AllowPartial bool
	Strict       bool
	ConfigPath   string
	DryRun       bool
	Force        bool
	Verbose      bool
}

func defaultConvertConfig() ConvertConfig {
	return ConvertConfig{Format: "json"}
}

// streams are the writers a run reports to.
type streams struct {
	out    io.Writer
	errOut io.Writer
}

var convertRunner = runConvert

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an OpenAPI/Swagger document into an AST",
		Long: "Convert an OpenAPI/Swagger document into a canonical AST of routes and named types. " +
			"The AST goes to stdout, or to ast.<format> under --out. Diagnostics are printed to stderr.",
		Example: strings.TrimSpace(`  oapiast convert --input openapi.yaml
  oapiast convert --input https://example.com/openapi.json --format yaml --out ./ast --force
  oapiast --config oapiast.yaml convert --allow-partial`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConvertConfig(cmd)
			if err != nil {
				return err
			}
			log, flush := newLogger(cfg.Verbose)
			defer flush()
			ctx := logr.NewContext(cmd.Context(), log)
			return convertRunner(ctx, cfg, streams{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()})
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the OpenAPI/Swagger document")
	flags.StringP("out", "o", "", "Output directory; the AST is printed to stdout when omitted")
	flags.StringP("format", "f", "", "Output format (json|yaml); defaults to json")
	flags.StringSlice("include-tags", nil, "Only convert operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Skip operations with these tags")
	flags.StringSlice("methods", nil, "Only convert operations using these HTTP methods")
	flags.StringSlice("paths", nil, "Only convert paths matching these regular expressions")
	flags.Bool("named-refs", false, "Emit component references as named refs instead of inlining the shared type")
	flags.Bool("allow-partial", false, "Exit successfully even when diagnostics were recorded")
	flags.Bool("strict", false, "Fail when the document does not pass OpenAPI validation")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite a non-empty output directory")

	return cmd
}

func resolveConvertConfig(cmd *cobra.Command) (*ConvertConfig, error) {
	cfg := defaultConvertConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyConvertConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyConvertFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyConvertFlagOverrides(flags *pflag.FlagSet, cfg *ConvertConfig) error {
	strs := map[string]*string{
		"input":  &cfg.Input,
		"out":    &cfg.Out,
		"format": &cfg.Format,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"methods":      &cfg.Methods,
		"paths":        &cfg.Paths,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeList(value)
	}

	bools := map[string]*bool{
		"named-refs":    &cfg.NamedRefs,
		"allow-partial": &cfg.AllowPartial,
		"strict":        &cfg.Strict,
		"dry-run":       &cfg.DryRun,
		"force":         &cfg.Force,
		"verbose":       &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	return nil
}

func (c *ConvertConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.IncludeTags = sanitizeList(c.IncludeTags)
	c.ExcludeTags = sanitizeList(c.ExcludeTags)
	c.Paths = sanitizeList(c.Paths)
	methods := sanitizeList(c.Methods)
	for i, m := range methods {
		methods[i] = strings.ToLower(m)
	}
	c.Methods = methods
}

func (c *ConvertConfig) validate() error {
	if c.Input == "" {
		return newUsageError("convert: --input is required (set via flag or config file)")
	}

	if _, err := emitter.ParseFormat(c.Format); err != nil {
		return newUsageError(fmt.Sprintf("convert: unsupported --format %q (allowed: json, yaml)", c.Format))
	}

	for _, m := range c.Methods {
		if _, ok := ast.ParseMethod(m); !ok {
			return newUsageError(fmt.Sprintf("convert: unsupported --methods value %q", m))
		}
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("convert: invalid --paths pattern %q: %v", p, err))
		}
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("convert: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	if c.DryRun && c.Out == "" {
		return newUsageError("convert: --dry-run needs --out")
	}

	return nil
}

// astOptions translates the filters into conversion options.
func (c *ConvertConfig) astOptions() []ast.Option {
	opts := []ast.Option{
		ast.WithIncludeTags(c.IncludeTags),
		ast.WithExcludeTags(c.ExcludeTags),
		ast.WithPathPatterns(c.Paths),
	}
	if len(c.Methods) > 0 {
		methods := make([]ast.Method, 0, len(c.Methods))
		for _, name := range c.Methods {
			if m, ok := ast.ParseMethod(name); ok {
				methods = append(methods, m)
			}
		}
		opts = append(opts, ast.WithMethods(methods))
	}
	if c.NamedRefs {
		opts = append(opts, ast.WithNamedRefs())
	}
	return opts
}

func runConvert(ctx context.Context, cfg *ConvertConfig, s streams) error {
	log := logr.FromContextOrDiscard(ctx)

	// 1) Load the document (file or http/https URL); Swagger 2.0 is converted.
	doc, err := spec.Load(ctx, cfg.Input, spec.WithStrict(cfg.Strict), spec.WithLogger(log))
	if err != nil {
		// Map structured spec errors into friendly messages
		var se *spec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return newUsageError(msg)
		}
		return err
	}

	// 2) Convert. Diagnostics never stop the run here; they decide the exit.
	opts := append([]ast.Option{ast.WithKeyOrder(doc.Order), ast.WithLogger(log)}, cfg.astOptions()...)
	tree, err := ast.AsAST(doc.Spec, opts...)
	var diags ast.Diagnostics
	if err != nil && !errors.As(err, &diags) {
		return fmt.Errorf("convert: %w", err)
	}
	for _, d := range diags {
		fmt.Fprintf(s.errOut, "warning: %s\n", d.Error())
	}
	log.Info("converted", "input", doc.Location, "routes", len(tree.Routes), "types", len(tree.Types), "diagnostics", len(diags))

	// 3) Write the result.
	format, _ := emitter.ParseFormat(cfg.Format)
	if cfg.Out == "" {
		if err := emitter.Encode(s.out, tree, format); err != nil {
			return fmt.Errorf("encode ast: %w", err)
		}
	} else {
		absOut := cfg.Out
		if ap, err := filepath.Abs(cfg.Out); err == nil {
			absOut = ap
		}
		res, err := emitter.Emit(ctx, emitter.Conversion{AST: tree, Diagnostics: diags}, emitter.Options{
			OutDir: cfg.Out,
			Format: format,
			Force:  cfg.Force,
			DryRun: cfg.DryRun,
		})
		if err != nil {
			return wrapOutputError(err, absOut)
		}
		if cfg.DryRun {
			printPlan(s.out, absOut, res.Planned)
		}
	}

	if len(diags) > 0 && !cfg.AllowPartial {
		return fmt.Errorf("%w: %d diagnostic(s) recorded; use --allow-partial to accept the partial AST", ErrPartial, len(diags))
	}
	return nil
}

func printPlan(w io.Writer, outDir string, planned []emitter.PlannedFile) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(planned))
	for _, p := range planned {
		fmt.Fprintf(w, "- %s\n", p.RelPath)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyConvertConfigFromFile(cfg *ConvertConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	strs := map[string]*string{
		"input":  &cfg.Input,
		"out":    &cfg.Out,
		"format": &cfg.Format,
	}
	lists := map[string]*[]string{
		"includetags": &cfg.IncludeTags,
		"excludetags": &cfg.ExcludeTags,
		"methods":     &cfg.Methods,
		"paths":       &cfg.Paths,
	}
	bools := map[string]*bool{
		"namedrefs":    &cfg.NamedRefs,
		"allowpartial": &cfg.AllowPartial,
		"strict":       &cfg.Strict,
		"dryrun":       &cfg.DryRun,
		"force":        &cfg.Force,
		"verbose":      &cfg.Verbose,
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		if dst, ok := strs[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = str
			continue
		}
		if dst, ok := lists[normalized]; ok {
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = sanitizeList(list)
			continue
		}
		if dst, ok := bools[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = val
			continue
		}
		return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
