// Package pipeline runs one document through extraction, optional
// translation and speech synthesis.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/feichai0017/pdf-voice/internal/agent/document"
	"github.com/feichai0017/pdf-voice/internal/agent/document/pdf"
	"github.com/feichai0017/pdf-voice/internal/agent/speech"
	"github.com/feichai0017/pdf-voice/internal/agent/translate"
	"github.com/feichai0017/pdf-voice/internal/language"
	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// Request selects pages and the output language. A nil page means the
// document boundary; an empty language means the table default.
type Request struct {
	StartPage      *int   `json:"startPage,omitempty"`
	EndPage        *int   `json:"endPage,omitempty"`
	TargetLanguage string `json:"targetLanguage"`
}

type TextExtractor interface {
	Extract(ctx context.Context, doc document.Document, requestedStart, requestedEnd *int) (string, document.PageRange)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) (*models.AudioArtifact, error)
	Backend() speech.BackendKind
}

// Observer is told how long each stage took and how the run ended.
type Observer interface {
	ObserveStage(stage models.Stage, elapsed time.Duration)
	ObserveOutcome(outcome *models.ConversionOutcome)
}

type Option func(*Pipeline)

func WithReporter(r ProgressReporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// Pipeline holds no per-request state and may serve concurrent conversions.
type Pipeline struct {
	extractor   TextExtractor
	translator  translate.Translator
	synthesizer Synthesizer
	languages   *language.Table
	reporter    ProgressReporter
	observer    Observer
	logger      logger.ContextLogger
}

func New(extractor TextExtractor, translator translate.Translator, synthesizer Synthesizer, languages *language.Table, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   extractor,
		translator:  translator,
		synthesizer: synthesizer,
		languages:   languages,
		logger:      logger.NewContextLogger(log),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Languages returns the table the pipeline resolves names against.
func (p *Pipeline) Languages() *language.Table {
	return p.languages
}

// Backend returns the synthesis backend in use.
func (p *Pipeline) Backend() speech.BackendKind {
	return p.synthesizer.Backend()
}

// ConvertBytes opens PDF bytes and converts them. Unreadable input fails
// with InvalidDocument before any stage runs.
func (p *Pipeline) ConvertBytes(ctx context.Context, data []byte, req Request, reporters ...ProgressReporter) *models.ConversionOutcome {
	doc, err := pdf.Open(data)
	if err != nil {
		p.logger.FromContext(ctx).Warn("Failed to open document", logger.Error(err))
		outcome := &models.ConversionOutcome{
			Error: models.NewConversionError(models.ErrInvalidDocument, models.StageExtracting, err),
		}
		p.observe(outcome)
		return outcome
	}
	return p.Convert(ctx, doc, req, reporters...)
}

// Convert runs the stages in order and stops at the first failure. The
// outcome always carries whatever text was produced before the failure.
// Extra reporters receive checkpoints for this run only.
func (p *Pipeline) Convert(ctx context.Context, doc document.Document, req Request, reporters ...ProgressReporter) *models.ConversionOutcome {
	log := p.logger.FromContext(ctx)
	reporter := p.runReporter(reporters)
	outcome := &models.ConversionOutcome{Backend: string(p.synthesizer.Backend())}

	// Extracting
	started := time.Now()
	text, rng := p.extractor.Extract(ctx, doc, req.StartPage, req.EndPage)
	outcome.Text = text
	outcome.Pages = rng.Span()
	outcome.PageCount = doc.PageCount()
	outcome.SuggestedFileName = models.SuggestedFileName(outcome.Pages)
	p.stageDone(ctx, reporter, models.StageExtracting, PercentExtracted, started)

	log.Info("Text extracted",
		logger.Int("pageCount", outcome.PageCount),
		logger.String("range", rng.String()),
		logger.Int("length", len(text)),
	)

	// Translating or SkipTranslate
	started = time.Now()
	target := p.languages.Default()
	stage := models.StageSkipTranslate
	if name := strings.TrimSpace(req.TargetLanguage); name != "" && !p.languages.IsDefault(name) {
		stage = models.StageTranslating
		lang, ok := p.languages.Resolve(name)
		if !ok {
			outcome.Language = models.LanguageRef{Name: name}
			return p.fail(ctx, outcome, models.ErrUnknownLanguage, stage, &unknownLanguageError{name: name})
		}
		target = lang

		translated, err := p.translator.Translate(ctx, text, lang.Code)
		if err != nil {
			outcome.Language = lang.Ref()
			return p.fail(ctx, outcome, models.ErrTranslationFailed, stage, err)
		}
		outcome.TranslatedText = &translated
	}
	outcome.Language = target.Ref()
	p.stageDone(ctx, reporter, stage, PercentTranslated, started)

	// Synthesizing
	started = time.Now()
	audio, err := p.synthesizer.Synthesize(ctx, outcome.SpokenText(), target.Code)
	if err != nil {
		return p.fail(ctx, outcome, models.ErrSynthesisFailed, models.StageSynthesizing, err)
	}
	outcome.Audio = audio
	p.stageDone(ctx, reporter, models.StageSynthesizing, PercentSynthesized, started)

	log.Info("Conversion complete",
		logger.String("language", target.Name),
		logger.String("backend", outcome.Backend),
		logger.Int("audioBytes", audio.Size()),
		logger.String("file", outcome.SuggestedFileName),
	)
	p.observe(outcome)
	return outcome
}

func (p *Pipeline) runReporter(extra []ProgressReporter) ProgressReporter {
	if len(extra) == 0 {
		return p.reporter
	}
	return append(MultiReporter{p.reporter}, extra...)
}

func (p *Pipeline) stageDone(ctx context.Context, reporter ProgressReporter, stage models.Stage, percent int, started time.Time) {
	if p.observer != nil {
		p.observer.ObserveStage(stage, time.Since(started))
	}
	if reporter == nil {
		return
	}
	if err := reporter.Report(ctx, Progress{Stage: stage, Percent: percent}); err != nil {
		p.logger.FromContext(ctx).Warn("Progress report failed",
			logger.String("stage", string(stage)),
			logger.Error(err),
		)
	}
}

func (p *Pipeline) fail(ctx context.Context, outcome *models.ConversionOutcome, kind models.ErrorKind, stage models.Stage, err error) *models.ConversionOutcome {
	outcome.Error = models.NewConversionError(kind, stage, err)
	p.logger.FromContext(ctx).Error("Conversion failed",
		logger.String("errorKind", string(kind)),
		logger.String("stage", string(stage)),
		logger.Error(err),
	)
	p.observe(outcome)
	return outcome
}

func (p *Pipeline) observe(outcome *models.ConversionOutcome) {
	if p.observer != nil {
		p.observer.ObserveOutcome(outcome)
	}
}

type unknownLanguageError struct {
	name string
}

func (e *unknownLanguageError) Error() string {
	return "unsupported target language: " + e.name
}
