// Package agent assembles the extraction, translation and speech agents
// from configuration.
package agent

import (
	"context"
	"fmt"

	cfg "github.com/feichai0017/pdf-voice/config"
	"github.com/feichai0017/pdf-voice/internal/agent/document"
	"github.com/feichai0017/pdf-voice/internal/agent/speech"
	"github.com/feichai0017/pdf-voice/internal/agent/translate"
	"github.com/feichai0017/pdf-voice/internal/language"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// Agents is the set of collaborators a pipeline needs.
type Agents struct {
	Extractor   *document.Extractor
	Translator  translate.Translator
	Synthesizer *speech.Synthesizer
	Languages   *language.Table
}

type Factory struct {
	translateConfig *cfg.TranslateConfig
	speechConfig    *cfg.SpeechConfig
	languagesConfig *cfg.LanguagesConfig
	logger          logger.Logger
}

func NewFactory(translateConfig *cfg.TranslateConfig, speechConfig *cfg.SpeechConfig, languagesConfig *cfg.LanguagesConfig, log logger.Logger) *Factory {
	return &Factory{
		translateConfig: translateConfig,
		speechConfig:    speechConfig,
		languagesConfig: languagesConfig,
		logger:          log,
	}
}

// NewFactoryFromEnv uses the process configuration.
func NewFactoryFromEnv(log logger.Logger) *Factory {
	return NewFactory(cfg.GetTranslateConfig(), cfg.GetSpeechConfig(), cfg.GetLanguagesConfig(), log)
}

// Build creates the agents. The speech backend is probed once here.
func (f *Factory) Build(ctx context.Context) (*Agents, error) {
	languages, err := language.Load(f.languagesConfig.File, f.languagesConfig.Default)
	if err != nil {
		return nil, fmt.Errorf("failed to load language table: %w", err)
	}

	translator := translate.NewGoogleTranslator(translate.GoogleConfig{
		Endpoint:          f.translateConfig.Endpoint,
		Timeout:           f.translateConfig.Timeout,
		RequestsPerMinute: f.translateConfig.RequestsPerMinute,
		ChunkLength:       f.translateConfig.ChunkLength,
	}, f.logger.Named("translate"))

	synthesizer, err := f.buildSynthesizer(ctx)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Agents ready",
		logger.String("backend", string(synthesizer.Backend())),
		logger.String("defaultLanguage", languages.Default().Name),
		logger.Int("languages", len(languages.Languages())),
	)

	return &Agents{
		Extractor:   document.NewExtractor(f.logger.Named("extract")),
		Translator:  translator,
		Synthesizer: synthesizer,
		Languages:   languages,
	}, nil
}

func (f *Factory) buildSynthesizer(ctx context.Context) (*speech.Synthesizer, error) {
	sc := f.speechConfig
	log := f.logger.Named("speech")

	var provider speech.FileProvider
	switch sc.FallbackProvider {
	case cfg.FallbackCLI:
		cli := speech.NewCLIProvider(sc.CLICommand, sc.FallbackTimeout)
		if err := cli.Validate(); err != nil {
			log.Warn("Fallback command unavailable", logger.Error(err))
		}
		provider = cli
	case cfg.FallbackGoogle, "":
		provider = speech.NewGoogleTTSProvider(speech.GoogleTTSConfig{
			Endpoint:          sc.GoogleEndpoint,
			Timeout:           sc.FallbackTimeout,
			RequestsPerMinute: sc.RequestsPerMinute,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported fallback provider: %s", sc.FallbackProvider)
	}
	fallback := speech.NewFallbackBackend(provider, sc.TempDir, log)

	var neural speech.Backend
	if sc.Accelerator != string(speech.AcceleratorOff) {
		nb := speech.NewNeuralBackend(speech.NeuralConfig{
			Endpoint: sc.NeuralEndpoint,
			Model:    sc.NeuralModel,
			Voice:    sc.NeuralVoice,
			Timeout:  sc.NeuralTimeout,
		}, log)
		neural = nb
	}

	probe := speech.NewAcceleratorProbe(speech.ProbeConfig{Mode: speech.AcceleratorMode(sc.Accelerator)}, log)
	synthesizer, err := speech.NewSynthesizer(ctx, probe, neural, fallback, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	if nb, ok := neural.(*speech.NeuralBackend); ok && synthesizer.Backend() == speech.BackendNeural {
		if err := nb.Ping(ctx); err != nil {
			log.Warn("Neural inference server not reachable", logger.String("endpoint", sc.NeuralEndpoint), logger.Error(err))
		}
	}
	return synthesizer, nil
}

// BuildPipeline builds the agents and wires them into a pipeline.
func (f *Factory) BuildPipeline(ctx context.Context, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	agents, err := f.Build(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.New(agents.Extractor, agents.Translator, agents.Synthesizer, agents.Languages, f.logger.Named("pipeline"), opts...), nil
}
