package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/internal/service/conversion"
	"github.com/feichai0017/pdf-voice/internal/utils/validator"
	"github.com/feichai0017/pdf-voice/pkg/converters"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
	"github.com/feichai0017/pdf-voice/pkg/storage"
)

type fakeService struct {
	inputs     []*conversion.Input
	outcome    *models.ConversionOutcome
	convertErr error
	submitErr  error
	status     *models.ProcessingTask
	result     *converters.ConversionResult
	resultErr  error
	cancelled  []string
}

func (f *fakeService) Convert(ctx context.Context, in *conversion.Input, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error) {
	f.inputs = append(f.inputs, in)
	return f.outcome, f.convertErr
}

func (f *fakeService) Submit(ctx context.Context, in *conversion.Input) (*models.ProcessingTask, error) {
	f.inputs = append(f.inputs, in)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.ProcessingTask{
		ID:        "task-1",
		Status:    models.StatusPending,
		Metadata:  map[string]string{"fileName": in.FileName},
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeService) SubmitBatch(ctx context.Context, ins []*conversion.Input) ([]*models.ProcessingTask, error) {
	tasks := make([]*models.ProcessingTask, 0, len(ins))
	for i, in := range ins {
		f.inputs = append(f.inputs, in)
		tasks = append(tasks, &models.ProcessingTask{ID: fmt.Sprintf("task-%d", i), Status: models.StatusPending})
	}
	if f.submitErr != nil && len(tasks) > 0 {
		tasks[len(tasks)-1] = nil
	}
	return tasks, f.submitErr
}

func (f *fakeService) GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	if f.status == nil {
		return nil, fmt.Errorf("failed to get task status: %w", queue.ErrTaskNotFound)
	}
	return f.status, nil
}

func (f *fakeService) GetResult(ctx context.Context, taskID string) (*converters.ConversionResult, error) {
	return f.result, f.resultErr
}

func (f *fakeService) CancelTask(ctx context.Context, taskID string) error {
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

func (f *fakeService) HandleTask(ctx context.Context, task *queue.Task, reporters ...pipeline.ProgressReporter) (*models.ConversionOutcome, error) {
	return nil, errors.New("not used")
}

func (f *fakeService) Inspect(ctx context.Context, in *conversion.Input) (*models.DocumentMetadata, error) {
	f.inputs = append(f.inputs, in)
	if string(in.Data) == "junk" {
		return nil, fmt.Errorf("%w: bad header", conversion.ErrUnreadable)
	}
	return &models.DocumentMetadata{Pages: 7, Title: "Atlas", Author: "Tester"}, nil
}

func (f *fakeService) Languages() []string     { return []string{"English", "Spanish"} }
func (f *fakeService) DefaultLanguage() string { return "English" }
func (f *fakeService) Backend() string         { return "fallback" }

func successOutcome() *models.ConversionOutcome {
	translated := "Hola"
	return &models.ConversionOutcome{
		Text:              "Hello",
		TranslatedText:    &translated,
		Audio:             models.NewMP3Artifact([]byte{0xFF, 0xFB, 0x90, 0x64}),
		Pages:             models.PageSpan{Start: 3, End: 5},
		PageCount:         10,
		Language:          models.LanguageRef{Name: "Spanish", Code: "es"},
		Backend:           "fallback",
		SuggestedFileName: "pdf_audio_pages_3-5.mp3",
	}
}

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(svc, nil, logger.NewNop(), 1<<20)

	r := gin.New()
	r.GET("/health", h.Health.Health)
	r.GET("/api/v1/languages", h.Health.Languages)
	r.POST("/api/v1/documents/pages", h.Conversion.CountPages)
	r.POST("/api/v1/conversions", h.Conversion.Convert)
	r.POST("/api/v1/conversions/async", h.Conversion.Submit)
	r.POST("/api/v1/conversions/batch", h.Conversion.SubmitBatch)
	r.GET("/api/v1/conversions/:taskId/status", h.Conversion.GetStatus)
	r.GET("/api/v1/conversions/:taskId/result", h.Conversion.GetResult)
	r.DELETE("/api/v1/conversions/:taskId", h.Conversion.CancelTask)
	return r
}

func multipartRequest(t *testing.T, target string, files map[string][]byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		field := "file"
		if strings.HasPrefix(name, "batch/") {
			field = "files"
			name = strings.TrimPrefix(name, "batch/")
		}
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConvert_JSON(t *testing.T) {
	svc := &fakeService{outcome: successOutcome()}
	r := newRouter(svc)

	w := serve(r, multipartRequest(t, "/api/v1/conversions",
		map[string][]byte{"book.pdf": []byte("%PDF-1.4")},
		map[string]string{"startPage": "3", "endPage": "5", "targetLanguage": " Spanish "},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ConversionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello", resp.ExtractedText)
	assert.Equal(t, "Hola", *resp.TranslatedText)
	assert.Equal(t, []byte{0xFF, 0xFB, 0x90, 0x64}, resp.Audio)
	assert.Equal(t, "mp3", resp.AudioFormat)
	assert.Equal(t, "pdf_audio_pages_3-5.mp3", resp.SuggestedFileName)
	assert.Equal(t, models.PageSpan{Start: 3, End: 5}, resp.PageRange)

	require.Len(t, svc.inputs, 1)
	in := svc.inputs[0]
	assert.Equal(t, "book.pdf", in.FileName)
	assert.Equal(t, 3, *in.Request.StartPage)
	assert.Equal(t, 5, *in.Request.EndPage)
	assert.Equal(t, "Spanish", in.Request.TargetLanguage)
}

func TestConvert_Download(t *testing.T) {
	r := newRouter(&fakeService{outcome: successOutcome()})

	w := serve(r, multipartRequest(t, "/api/v1/conversions?download=true",
		map[string][]byte{"book.pdf": []byte("%PDF-1.4")}, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=pdf_audio_pages_3-5.mp3", w.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte{0xFF, 0xFB, 0x90, 0x64}, w.Body.Bytes())
}

func TestConvert_ObjectKey(t *testing.T) {
	svc := &fakeService{outcome: successOutcome()}
	r := newRouter(svc)

	form := url.Values{"objectKey": {"docs/book.pdf"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "docs/book.pdf", svc.inputs[0].ObjectKey)
	assert.Empty(t, svc.inputs[0].Data)
}

func TestConvert_FailureOutcomes(t *testing.T) {
	tests := []struct {
		kind   models.ErrorKind
		stage  models.Stage
		status int
	}{
		{models.ErrUnknownLanguage, models.StageTranslating, http.StatusBadRequest},
		{models.ErrInvalidDocument, models.StageExtracting, http.StatusBadRequest},
		{models.ErrTranslationFailed, models.StageTranslating, http.StatusBadGateway},
		{models.ErrSynthesisFailed, models.StageSynthesizing, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			r := newRouter(&fakeService{outcome: &models.ConversionOutcome{
				Text:  "partial",
				Error: models.NewConversionError(tt.kind, tt.stage, errors.New("boom")),
			}})

			w := serve(r, multipartRequest(t, "/api/v1/conversions",
				map[string][]byte{"book.pdf": []byte("%PDF-1.4")}, nil))
			assert.Equal(t, tt.status, w.Code)

			var resp ConversionFailure
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.ErrorKind)
			assert.Equal(t, "partial", resp.ExtractedText)
			assert.Equal(t, "boom", resp.Message)
		})
	}
}

func TestConvert_BadRequests(t *testing.T) {
	r := newRouter(&fakeService{outcome: successOutcome()})

	w := serve(r, multipartRequest(t, "/api/v1/conversions",
		map[string][]byte{"book.pdf": []byte("%PDF-1.4")},
		map[string]string{"startPage": "three"},
	))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid startPage")

	w = serve(r, multipartRequest(t, "/api/v1/conversions", nil, map[string]string{"targetLanguage": "Spanish"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), conversion.ErrNoDocument.Error())
}

func TestConvert_ServiceErrors(t *testing.T) {
	validation := &conversion.ValidationError{Result: &validator.ValidationResult{
		Errors: []validator.ValidationError{{Code: validator.CodeInvalidMimeType, Message: "not a pdf"}},
	}}

	tests := []struct {
		err    error
		status int
	}{
		{validation, http.StatusBadRequest},
		{fmt.Errorf("stat: %w", storage.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{storage.ErrDisabled, http.StatusBadRequest},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		r := newRouter(&fakeService{convertErr: tt.err})
		w := serve(r, multipartRequest(t, "/api/v1/conversions",
			map[string][]byte{"book.pdf": []byte("%PDF-1.4")}, nil))
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}

	r := newRouter(&fakeService{convertErr: validation})
	w := serve(r, multipartRequest(t, "/api/v1/conversions",
		map[string][]byte{"book.txt": []byte("hello")}, nil))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Details, 1)
	assert.Equal(t, validator.CodeInvalidMimeType, resp.Details[0].Code)
}

func TestSubmit(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := serve(r, multipartRequest(t, "/api/v1/conversions/async",
		map[string][]byte{"book.pdf": []byte("%PDF-1.4")},
		map[string]string{"targetLanguage": "French", "priority": "1"},
	))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "book.pdf", resp.Filename)
	assert.Equal(t, 1, svc.inputs[0].Priority)

	r = newRouter(&fakeService{submitErr: conversion.ErrQueueUnavailable})
	w = serve(r, multipartRequest(t, "/api/v1/conversions/async",
		map[string][]byte{"book.pdf": []byte("%PDF-1.4")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitBatch(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := serve(r, multipartRequest(t, "/api/v1/conversions/batch",
		map[string][]byte{"batch/a.pdf": []byte("%PDF-1.4 a"), "batch/b.pdf": []byte("%PDF-1.4 b")},
		map[string]string{"targetLanguage": "German"},
	))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Processing 2 documents")
	require.Len(t, svc.inputs, 2)
	for _, in := range svc.inputs {
		assert.Equal(t, "German", in.Request.TargetLanguage)
	}

	w = serve(r, multipartRequest(t, "/api/v1/conversions/batch", nil, map[string]string{"x": "y"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No files provided")
}

func TestSubmitBatch_PartialFailure(t *testing.T) {
	svc := &fakeService{submitErr: fmt.Errorf("failed to submit b.pdf: %w", conversion.ErrQueueUnavailable)}
	r := newRouter(svc)

	w := serve(r, multipartRequest(t, "/api/v1/conversions/batch",
		map[string][]byte{"a.pdf": []byte("%PDF-1.4 a"), "b.pdf": []byte("%PDF-1.4 b")}, nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp BatchErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to submit conversions", resp.Message)
	assert.Contains(t, resp.Error, "b.pdf")
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "task-0", resp.Tasks[0].TaskID)
}

func TestGetStatus(t *testing.T) {
	r := newRouter(&fakeService{})
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/missing/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = newRouter(&fakeService{status: &models.ProcessingTask{
		ID:       "t1",
		Status:   models.StatusRunning,
		Stage:    string(models.StageTranslating),
		Progress: 0.33,
		Metadata: map[string]string{"fileName": "a.pdf"},
	}})
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/t1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp["status"])
	assert.Equal(t, "translating", resp["stage"])
	assert.Equal(t, 0.33, resp["progress"])
}

func TestGetResult(t *testing.T) {
	result := &converters.ConversionResult{
		TaskID: "t1",
		Status: converters.StatusCompleted,
		Audio:  []byte{0xFF, 0xFB},
		Metadata: converters.ConversionMetadata{
			AudioFile: "pdf_audio_pages_1-2.mp3",
		},
	}
	r := newRouter(&fakeService{result: result})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/t1/result", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"taskId":"t1"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/t1/result?download=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "attachment; filename=pdf_audio_pages_1-2.mp3", w.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte{0xFF, 0xFB}, w.Body.Bytes())

	failed := &converters.ConversionResult{Status: converters.StatusFailed, Error: &converters.ErrorDetail{Kind: models.ErrSynthesisFailed}}
	r = newRouter(&fakeService{result: failed})
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/t1/result?download=1", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	r = newRouter(&fakeService{resultErr: queue.ErrResultPending})
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/t1/result", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelTask(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	w := serve(r, httptest.NewRequest(http.MethodDelete, "/api/v1/conversions/t9", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"t9"}, svc.cancelled)
}

func TestCountPages(t *testing.T) {
	r := newRouter(&fakeService{})

	w := serve(r, multipartRequest(t, "/api/v1/documents/pages",
		map[string][]byte{"book.pdf": []byte("%PDF-1.4")}, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(7), resp["pageCount"])
	assert.Equal(t, "Atlas", resp["title"])

	w = serve(r, multipartRequest(t, "/api/v1/documents/pages",
		map[string][]byte{"book.pdf": []byte("junk")}, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealthAndLanguages(t *testing.T) {
	r := newRouter(&fakeService{})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"fallback"}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))
	assert.JSONEq(t, `{"languages":["English","Spanish"],"default":"English"}`, w.Body.String())

	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(&fakeService{}, fakePinger{err: errors.New("redis down")})
	engine := gin.New()
	engine.GET("/health", h.Health)
	w = serve(engine, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"degraded","backend":"fallback","queue":"redis down"}`, w.Body.String())
}
