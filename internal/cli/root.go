package cli

import (
    "fmt"

    "github.com/go-logr/logr"
    "github.com/go-logr/zapr"
    "github.com/spf13/cobra"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// Execute runs the oapiast CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:           "oapiast",
        Short:         "Convert OpenAPI documents into a canonical routes-and-types AST",
        Long:          "oapiast reads an OpenAPI 3 (or Swagger 2.0) document and prints a compact AST of its routes and named types, reporting every construct it cannot represent.",
        SilenceErrors: true,
        SilenceUsage:  true,
        RunE: func(cmd *cobra.Command, args []string) error {
            return cmd.Help()
        },
    }

    // Convert Cobra flag errors (like unknown flags) into friendly usage errors
    // that also show the command's help text.
    cmd.SetFlagErrorFunc(flagError)

    cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
    cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

    for _, sub := range []*cobra.Command{newConvertCmd(), newInitCmd()} {
        sub.SetFlagErrorFunc(flagError)
        cmd.AddCommand(sub)
    }

    return cmd
}

func flagError(c *cobra.Command, err error) error {
    return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}

// newLogger builds the zap-backed logr.Logger used by the commands. Verbose
// mode also enables V(1) diagnostics and V(2) per-route tracing.
func newLogger(verbose bool) (logr.Logger, func()) {
    zc := zap.NewDevelopmentConfig()
    zc.DisableStacktrace = true
    zc.DisableCaller = true
    zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
    if verbose {
        zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-2))
    }
    zl, err := zc.Build()
    if err != nil {
        return logr.Discard(), func() {}
    }
    return zapr.NewLogger(zl), func() { _ = zl.Sync() }
}
