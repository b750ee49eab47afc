package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

type convertOptions struct {
	start    int
	end      int
	language string
	output   string
	textPath string
}

func newConvertCommand(deps Deps, root *rootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:     "convert <file.pdf>",
		Short:   "Convert a page range of a PDF to an MP3 file",
		Args:    cobra.ExactArgs(1),
		Example: `pdfvoice convert book.pdf --start 3 --end 5 --language Spanish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.Request{TargetLanguage: opts.language}
			if cmd.Flags().Changed("start") {
				req.StartPage = &opts.start
			}
			if cmd.Flags().Changed("end") {
				req.EndPage = &opts.end
			}
			return runConvert(cmd, deps, root, opts, args[0], req)
		},
	}

	cmd.Flags().IntVar(&opts.start, "start", 1, "first page, 1-based")
	cmd.Flags().IntVar(&opts.end, "end", 0, "last page, inclusive (default: last page)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "target language (default: the source language)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "MP3 output path (default: suggested file name)")
	cmd.Flags().StringVar(&opts.textPath, "text", "", "also write the spoken text to this path")
	return cmd
}

func runConvert(cmd *cobra.Command, deps Deps, root *rootOptions, opts *convertOptions, path string, req pipeline.Request) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	log, err := deps.Logger(root.logLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx := cmd.Context()
	converter, err := deps.Pipeline(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	bar := newBarReporter(cmd.ErrOrStderr())
	outcome := converter.ConvertBytes(ctx, data, req, bar)
	bar.Finish()

	if opts.textPath != "" && outcome.SpokenText() != "" {
		if err := os.WriteFile(opts.textPath, []byte(outcome.SpokenText()), 0o644); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
	}

	if !outcome.Succeeded() {
		return conversionFailure(outcome)
	}

	output := opts.output
	if output == "" {
		output = outcome.SuggestedFileName
	}
	if err := os.WriteFile(output, outcome.Audio.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	log.Info("Conversion written",
		logger.String("output", output),
		logger.Int("bytes", outcome.Audio.Size()),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, pages %d-%d of %d, %s, %s backend)\n",
		output,
		humanize.Bytes(uint64(outcome.Audio.Size())),
		outcome.Pages.Start, outcome.Pages.End, outcome.PageCount,
		outcome.Language.Name,
		outcome.Backend,
	)
	return nil
}

func conversionFailure(outcome *models.ConversionOutcome) error {
	if outcome.Error == nil {
		return errors.New("conversion produced no audio")
	}
	return fmt.Errorf("conversion failed: %w", outcome.Error)
}
