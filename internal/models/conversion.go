package models

import (
	"fmt"
)

// ErrorKind classifies why a conversion stopped.
type ErrorKind string

const (
	// ErrInvalidPageRange is never raised: out of range requests are clamped.
	ErrInvalidPageRange  ErrorKind = "InvalidPageRange"
	ErrUnknownLanguage   ErrorKind = "UnknownLanguage"
	ErrTranslationFailed ErrorKind = "TranslationFailed"
	ErrSynthesisFailed   ErrorKind = "SynthesisFailed"
	ErrInvalidDocument   ErrorKind = "InvalidDocument"
)

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	return k == ErrTranslationFailed || k == ErrSynthesisFailed
}

// Stage names a pipeline state.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageExtracting    Stage = "extracting"
	StageTranslating   Stage = "translating"
	StageSkipTranslate Stage = "skip_translate"
	StageSynthesizing  Stage = "synthesizing"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// ConversionError is the structured failure carried by a ConversionOutcome.
type ConversionError struct {
	Kind    ErrorKind `json:"errorKind"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func NewConversionError(kind ErrorKind, stage Stage, err error) *ConversionError {
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return &ConversionError{Kind: kind, Stage: stage, Message: msg, Err: err}
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s during %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

const (
	AudioFormatMP3 = "mp3"
	AudioMIMEMP3   = "audio/mpeg"
)

// AudioArtifact is synthesized audio. It is never persisted by the pipeline.
type AudioArtifact struct {
	Data     []byte `json:"data"`
	Format   string `json:"format"`
	MIMEType string `json:"mimeType"`
}

// NewMP3Artifact wraps MP3 bytes.
func NewMP3Artifact(data []byte) *AudioArtifact {
	return &AudioArtifact{Data: data, Format: AudioFormatMP3, MIMEType: AudioMIMEMP3}
}

// Size returns the payload length in bytes.
func (a *AudioArtifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// PageSpan is the resolved, 1-based inclusive page interval of a conversion.
type PageSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// LanguageRef is a resolved entry of the language table.
type LanguageRef struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ConversionOutcome is the result contract of one pipeline run. Text and
// TranslatedText keep whatever was produced before a failure.
type ConversionOutcome struct {
	Text              string           `json:"text"`
	TranslatedText    *string          `json:"translatedText,omitempty"`
	Audio             *AudioArtifact   `json:"audio,omitempty"`
	Error             *ConversionError `json:"error,omitempty"`
	Pages             PageSpan         `json:"pages"`
	PageCount         int              `json:"pageCount"`
	Language          LanguageRef      `json:"language"`
	Backend           string           `json:"backend,omitempty"`
	SuggestedFileName string           `json:"suggestedFileName"`
}

// Succeeded reports whether the pipeline reached Done.
func (o *ConversionOutcome) Succeeded() bool {
	return o != nil && o.Error == nil && o.Audio != nil
}

// SpokenText returns the text that was (or would be) synthesized.
func (o *ConversionOutcome) SpokenText() string {
	if o.TranslatedText != nil {
		return *o.TranslatedText
	}
	return o.Text
}

// SuggestedFileName builds the download name for a page span.
func SuggestedFileName(span PageSpan) string {
	return fmt.Sprintf("pdf_audio_pages_%d-%d.mp3", span.Start, span.End)
}
