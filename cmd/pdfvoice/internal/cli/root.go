// Package cli implements the pdfvoice command line.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/agent"
	"github.com/feichai0017/pdf-voice/internal/agent/speech"
	"github.com/feichai0017/pdf-voice/internal/language"
	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// Converter runs one conversion. *pipeline.Pipeline implements it.
type Converter interface {
	ConvertBytes(ctx context.Context, data []byte, req pipeline.Request, reporters ...pipeline.ProgressReporter) *models.ConversionOutcome
	Backend() speech.BackendKind
}

// Deps are the collaborators the commands need. Tests replace them.
type Deps struct {
	Pipeline  func(ctx context.Context, log logger.Logger) (Converter, error)
	Languages func() (*language.Table, error)
	Logger    func(level string) (logger.Logger, error)
}

// DefaultDeps builds everything from the process configuration.
func DefaultDeps() Deps {
	return Deps{
		Pipeline: func(ctx context.Context, log logger.Logger) (Converter, error) {
			return agent.NewFactoryFromEnv(log).BuildPipeline(ctx)
		},
		Languages: func() (*language.Table, error) {
			lc := cfg.GetLanguagesConfig()
			return language.Load(lc.File, lc.Default)
		},
		Logger: func(level string) (logger.Logger, error) {
			return logger.NewLogger(
				logger.WithLevel(level),
				logger.WithEncoding("console"),
				logger.WithOutputPaths([]string{"stderr"}),
			)
		},
	}
}

type rootOptions struct {
	logLevel string
}

func NewRootCommand(deps Deps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pdfvoice",
		Short:         "Convert PDF pages to spoken MP3 audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newConvertCommand(deps, opts),
		newPagesCommand(),
		newLanguagesCommand(deps),
	)
	return cmd
}

// Execute runs the command line with the given arguments.
func Execute(ctx context.Context, deps Deps, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCommand(deps)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
