package converters

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-voice/internal/models"
)

func TestJSONConverter_Success(t *testing.T) {
	translated := "Hola"
	outcome := &models.ConversionOutcome{
		Text:              "Hello",
		TranslatedText:    &translated,
		Audio:             models.NewMP3Artifact([]byte{0xFF, 0xFB, 0x90, 0x64}),
		Pages:             models.PageSpan{Start: 2, End: 3},
		PageCount:         5,
		Language:          models.LanguageRef{Name: "Spanish", Code: "es"},
		Backend:           "fallback",
		SuggestedFileName: "pdf_audio_pages_2-3.mp3",
	}

	result, err := NewJSONConverter().Convert("t1", "book.pdf", outcome, 1500*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.Equal(t, "t1", result.TaskID)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "Hola", *result.TranslatedText)
	assert.Equal(t, int64(1500), result.Metadata.ProcessingMs)
	assert.Equal(t, &models.PageSpan{Start: 2, End: 3}, result.Metadata.Pages)
	assert.Equal(t, "pdf_audio_pages_2-3.mp3", result.Metadata.AudioFile)
	assert.Equal(t, 4, result.Metadata.AudioSize)
	assert.Equal(t, "4 B", result.Metadata.AudioSizeStr)
	assert.Equal(t, "es", result.Metadata.LanguageCode)

	data, err := Encode(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"audio":"//uQZA=="`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x90, 0x64}, decoded.Audio)
	assert.True(t, decoded.Succeeded())
}

func TestJSONConverter_Failure(t *testing.T) {
	outcome := &models.ConversionOutcome{
		Text:              "Hello",
		Pages:             models.PageSpan{Start: 1, End: 1},
		PageCount:         1,
		SuggestedFileName: "pdf_audio_pages_1-1.mp3",
		Error:             models.NewConversionError(models.ErrTranslationFailed, models.StageTranslating, errors.New("timeout")),
	}

	result, err := NewJSONConverter().Convert("t2", "", outcome, 0)
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "Hello", result.Text)
	assert.Nil(t, result.Audio)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.ErrTranslationFailed, result.Error.Kind)
	assert.Equal(t, models.StageTranslating, result.Error.Stage)
	assert.Equal(t, "timeout", result.Error.Message)
}

func TestJSONConverter_InvalidDocument(t *testing.T) {
	outcome := &models.ConversionOutcome{
		Error: models.NewConversionError(models.ErrInvalidDocument, models.StageExtracting, errors.New("bad header")),
	}

	result, err := NewJSONConverter().Convert("", "x.pdf", outcome, 0)
	require.NoError(t, err)
	assert.Nil(t, result.Metadata.Pages)
	assert.Empty(t, result.Metadata.AudioFile)
	assert.Equal(t, models.ErrInvalidDocument, result.Error.Kind)
}

func TestJSONConverter_NilOutcome(t *testing.T) {
	_, err := NewJSONConverter().Convert("t", "", nil, 0)
	assert.Error(t, err)

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}
