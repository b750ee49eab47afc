package converters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/feichai0017/pdf-voice/internal/models"
)

// ResultConverter 定义结果转换器接口
type ResultConverter interface {
	Convert(taskID, fileName string, outcome *models.ConversionOutcome, elapsed time.Duration) (*ConversionResult, error)
}

// ConversionResult is the JSON shape of a finished conversion. Audio is
// base64 encoded by encoding/json.
type ConversionResult struct {
	TaskID         string             `json:"taskId,omitempty"`
	Status         string             `json:"status"`
	Text           string             `json:"text"`
	TranslatedText *string            `json:"translatedText,omitempty"`
	Audio          []byte             `json:"audio,omitempty"`
	Error          *ErrorDetail       `json:"error,omitempty"`
	Metadata       ConversionMetadata `json:"metadata"`
	ProcessedAt    time.Time          `json:"processedAt"`
}

// ErrorDetail 定义失败信息
type ErrorDetail struct {
	Kind    models.ErrorKind `json:"kind"`
	Stage   models.Stage     `json:"stage"`
	Message string           `json:"message"`
}

// ConversionMetadata 定义结果元数据
type ConversionMetadata struct {
	FileName     string           `json:"fileName,omitempty"`
	Pages        *models.PageSpan `json:"pages,omitempty"`
	PageCount    int              `json:"pageCount"`
	Language     string           `json:"language,omitempty"`
	LanguageCode string           `json:"languageCode,omitempty"`
	Backend      string           `json:"backend,omitempty"`
	AudioFile    string           `json:"audioFile,omitempty"`
	AudioFormat  string           `json:"audioFormat,omitempty"`
	AudioSize    int              `json:"audioSize"`
	AudioSizeStr string           `json:"audioSizeHuman,omitempty"`
	ProcessingMs int64            `json:"processingMs"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JSONConverter 实现结果转换器
type JSONConverter struct{}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

func (c *JSONConverter) Convert(taskID, fileName string, outcome *models.ConversionOutcome, elapsed time.Duration) (*ConversionResult, error) {
	if outcome == nil {
		return nil, fmt.Errorf("no outcome to convert")
	}

	result := &ConversionResult{
		TaskID:         taskID,
		Status:         StatusCompleted,
		Text:           outcome.Text,
		TranslatedText: outcome.TranslatedText,
		ProcessedAt:    time.Now(),
		Metadata: ConversionMetadata{
			FileName:     fileName,
			PageCount:    outcome.PageCount,
			Language:     outcome.Language.Name,
			LanguageCode: outcome.Language.Code,
			Backend:      outcome.Backend,
			ProcessingMs: elapsed.Milliseconds(),
		},
	}

	// 未打开的文档没有页码信息
	if outcome.PageCount > 0 || outcome.SuggestedFileName != "" {
		pages := outcome.Pages
		result.Metadata.Pages = &pages
		result.Metadata.AudioFile = outcome.SuggestedFileName
	}

	if outcome.Audio != nil {
		result.Audio = outcome.Audio.Data
		result.Metadata.AudioFormat = outcome.Audio.Format
		result.Metadata.AudioSize = outcome.Audio.Size()
		result.Metadata.AudioSizeStr = humanize.Bytes(uint64(outcome.Audio.Size()))
	}

	if outcome.Error != nil {
		result.Status = StatusFailed
		result.Error = &ErrorDetail{
			Kind:    outcome.Error.Kind,
			Stage:   outcome.Error.Stage,
			Message: outcome.Error.Message,
		}
	}

	return result, nil
}

// Encode 序列化结果
func Encode(result *ConversionResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return data, nil
}

// Decode 反序列化结果
func Decode(data []byte) (*ConversionResult, error) {
	var result ConversionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Succeeded reports whether the result carries audio and no error.
func (r *ConversionResult) Succeeded() bool {
	return r.Error == nil && r.Status == StatusCompleted
}
