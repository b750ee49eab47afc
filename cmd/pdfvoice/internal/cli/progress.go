package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/feichai0017/pdf-voice/internal/pipeline"
)

// conversionSteps is extract, translate, synthesize.
const conversionSteps = 3

// barReporter draws pipeline checkpoints as a three step progress bar.
type barReporter struct {
	bar *progressbar.ProgressBar
}

func newBarReporter(w io.Writer) *barReporter {
	bar := progressbar.NewOptions(conversionSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
	return &barReporter{bar: bar}
}

func (r *barReporter) Report(_ context.Context, p pipeline.Progress) error {
	r.bar.Describe(string(p.Stage))
	return r.bar.Set(stepFor(p.Percent))
}

// Finish completes the bar if the pipeline stopped early.
func (r *barReporter) Finish() {
	_ = r.bar.Finish()
}

func stepFor(percent int) int {
	step := (percent*conversionSteps + 50) / 100
	switch {
	case step < 0:
		return 0
	case step > conversionSteps:
		return conversionSteps
	}
	return step
}
