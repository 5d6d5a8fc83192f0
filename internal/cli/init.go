package cli

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/go-logr/logr"
    "github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "init",
        Short: "Scaffold a sample oapiast configuration file",
        Long:  "Scaffold a commented oapiast configuration file that documents the convert options.",
        RunE: func(cmd *cobra.Command, args []string) error {
            out, err := cmd.Flags().GetString("out")
            if err != nil {
                return err
            }
            force, err := cmd.Flags().GetBool("force")
            if err != nil {
                return err
            }
            verbose, err := cmd.Flags().GetBool("verbose")
            if err != nil {
                return err
            }
            cfg := &InitConfig{
                OutputPath: out,
                Force:      force,
                Verbose:    verbose,
            }
            log, flush := newLogger(verbose)
            defer flush()
            return initRunner(logr.NewContext(cmd.Context(), log), cfg)
        },
    }

    cmd.Flags().String("out", "oapiast.yaml", "Where to write the sample config file")
    cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

    return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
    log := logr.FromContextOrDiscard(ctx)

    out := strings.TrimSpace(cfg.OutputPath)
    if out == "" {
        out = "oapiast.yaml"
    }
    absPath, err := filepath.Abs(out)
    if err != nil {
        return fmt.Errorf("init: resolve output path: %w", err)
    }

    if st, err := os.Stat(absPath); err == nil && !cfg.Force {
        if st.Mode().IsRegular() {
            return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
        }
    }

    if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
    }

    log.V(1).Info("writing sample config", "path", absPath, "force", cfg.Force)
    content := strings.TrimSpace(sampleConfigYAML) + "\n"

    // Atomic write via temp + rename
    tmp := absPath + ".tmp"
    if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
    }
    if err := os.Rename(tmp, absPath); err != nil {
        _ = os.Remove(tmp)
        return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
    }
    fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
    return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# oapiast configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path or URL to the OpenAPI/Swagger document (http/https or local file).
# input: ./openapi.yaml

# Output directory for ast.<format> and diagnostics.<format>.
# When omitted the AST is printed to stdout.
# out: ./ast

# Output format (json|yaml). Defaults to json.
# format: json

# Only convert operations with these tags (comma-separated or list).
# includeTags: [public,read]

# Skip operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only convert operations using these HTTP methods.
# methods: [get,post]

# Only convert paths matching these regular expressions.
# paths: ["^/v1/"]

# Emit component references as named refs instead of the shared type.
# namedRefs: false

# Exit successfully even when diagnostics were recorded.
# allowPartial: false

# Fail when the document does not pass OpenAPI validation.
# strict: false

# Preview planned outputs without writing files (needs out).
# dryRun: false

# Overwrite a non-empty output directory.
# force: false

# Enable verbose logging.
# verbose: false
`
