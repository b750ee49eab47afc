package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-voice/internal/models"
	"github.com/feichai0017/pdf-voice/internal/pipeline"
	"github.com/feichai0017/pdf-voice/internal/service/conversion"
	"github.com/feichai0017/pdf-voice/internal/utils/validator"
	"github.com/feichai0017/pdf-voice/pkg/logger"
	"github.com/feichai0017/pdf-voice/pkg/queue"
	"github.com/feichai0017/pdf-voice/pkg/storage"
)

type ConversionHandler struct {
	service       conversion.ConversionProcessor
	logger        logger.ContextLogger
	maxUploadSize int64
}

// ConversionResponse 定义同步转换响应结构
type ConversionResponse struct {
	ExtractedText     string          `json:"extractedText"`
	TranslatedText    *string         `json:"translatedText,omitempty"`
	Audio             []byte          `json:"audio"`
	AudioFormat       string          `json:"audioFormat"`
	SuggestedFileName string          `json:"suggestedFileName"`
	Backend           string          `json:"backend"`
	Language          string          `json:"language"`
	PageRange         models.PageSpan `json:"pageRange"`
	PageCount         int             `json:"pageCount"`
}

// ConversionFailure carries the partial text of a failed conversion.
type ConversionFailure struct {
	ErrorKind      models.ErrorKind `json:"errorKind"`
	Message        string           `json:"message"`
	Stage          models.Stage     `json:"stage"`
	ExtractedText  string           `json:"extractedText"`
	TranslatedText *string          `json:"translatedText,omitempty"`
}

// TaskResponse 定义任务响应结构
type TaskResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string                      `json:"error"`
	Message string                      `json:"message"`
	Details []validator.ValidationError `json:"details,omitempty"`
}

// BatchErrorResponse reports a failed batch with the tasks that were
// already submitted.
type BatchErrorResponse struct {
	ErrorResponse
	Tasks []TaskResponse `json:"tasks"`
}

func NewConversionHandler(service conversion.ConversionProcessor, log logger.Logger, maxUploadSize int64) *ConversionHandler {
	return &ConversionHandler{
		service:       service,
		logger:        logger.NewContextLogger(log),
		maxUploadSize: maxUploadSize,
	}
}

// Convert 同步转换单个文档
func (h *ConversionHandler) Convert(c *gin.Context) {
	in, err := h.parseInput(c)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid conversion request", err)
		return
	}

	outcome, err := h.service.Convert(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, errorStatus(err), "Failed to convert document", err)
		return
	}

	if !outcome.Succeeded() {
		h.writeFailure(c, outcome)
		return
	}

	if wantsDownload(c) {
		writeAudio(c, outcome.SuggestedFileName, outcome.Audio.Data)
		return
	}

	c.JSON(http.StatusOK, ConversionResponse{
		ExtractedText:     outcome.Text,
		TranslatedText:    outcome.TranslatedText,
		Audio:             outcome.Audio.Data,
		AudioFormat:       outcome.Audio.Format,
		SuggestedFileName: outcome.SuggestedFileName,
		Backend:           outcome.Backend,
		Language:          outcome.Language.Name,
		PageRange:         outcome.Pages,
		PageCount:         outcome.PageCount,
	})
}

// Submit 异步转换
func (h *ConversionHandler) Submit(c *gin.Context) {
	in, err := h.parseInput(c)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid conversion request", err)
		return
	}

	task, err := h.service.Submit(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, errorStatus(err), "Failed to submit conversion", err)
		return
	}

	c.JSON(http.StatusAccepted, taskResponse(task))
}

// SubmitBatch 批量提交文档
func (h *ConversionHandler) SubmitBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	req, err := parseRequest(c)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid conversion request", err)
		return
	}

	inputs := make([]*conversion.Input, 0, len(files))
	for _, header := range files {
		data, err := h.readUpload(header)
		if err != nil {
			h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
			return
		}
		inputs = append(inputs, &conversion.Input{FileName: header.Filename, Data: data, Request: req})
	}

	tasks, err := h.service.SubmitBatch(c.Request.Context(), inputs)
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		if task != nil {
			responses = append(responses, taskResponse(task))
		}
	}
	if err != nil {
		// tasks enqueued before the failure still run
		status := errorStatus(err)
		c.JSON(status, BatchErrorResponse{
			ErrorResponse: h.errorResponse(c, status, "Failed to submit conversions", err),
			Tasks:         responses,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Processing %d documents", len(files)),
		"tasks":   responses,
	})
}

// GetStatus 获取处理状态
func (h *ConversionHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	task, err := h.service.GetProcessingStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, errorStatus(err), "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":    task.ID,
		"status":    string(task.Status),
		"stage":     task.Stage,
		"progress":  task.Progress,
		"errorKind": task.ErrorKind,
		"error":     task.Error,
		"metadata":  task.Metadata,
		"createdAt": task.CreatedAt.Format(time.RFC3339),
		"updatedAt": task.UpdatedAt.Format(time.RFC3339),
	})
}

// GetResult 获取处理结果
func (h *ConversionHandler) GetResult(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	result, err := h.service.GetResult(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, errorStatus(err), "Failed to get result", err)
		return
	}

	if wantsDownload(c) {
		if !result.Succeeded() || len(result.Audio) == 0 {
			h.handleError(c, http.StatusConflict, "Conversion produced no audio", nil)
			return
		}
		filename := result.Metadata.AudioFile
		if filename == "" {
			filename = fmt.Sprintf("result_%s.mp3", taskID)
		}
		writeAudio(c, filename, result.Audio)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelTask 取消处理任务
func (h *ConversionHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, errorStatus(err), "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

// CountPages 返回文档页数和元数据
func (h *ConversionHandler) CountPages(c *gin.Context) {
	in, err := h.parseInput(c)
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid document request", err)
		return
	}

	meta, err := h.service.Inspect(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, errorStatus(err), "Failed to read document", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pageCount": meta.Pages,
		"title":     meta.Title,
		"author":    meta.Author,
		"fileSize":  meta.FileSize,
		"hash":      meta.Hash,
	})
}

// parseInput reads the uploaded file or the objectKey field plus the
// conversion parameters.
func (h *ConversionHandler) parseInput(c *gin.Context) (*conversion.Input, error) {
	req, err := parseRequest(c)
	if err != nil {
		return nil, err
	}
	in := &conversion.Input{Request: req}

	if p := c.PostForm("priority"); p != "" {
		priority, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid priority %q", p)
		}
		in.Priority = priority
	}

	header, err := c.FormFile("file")
	switch {
	case err == nil:
		data, err := h.readUpload(header)
		if err != nil {
			return nil, err
		}
		in.FileName = header.Filename
		in.Data = data
	case errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart):
		in.ObjectKey = strings.TrimSpace(c.PostForm("objectKey"))
		if in.ObjectKey == "" {
			return nil, conversion.ErrNoDocument
		}
	default:
		return nil, fmt.Errorf("invalid file upload: %w", err)
	}
	return in, nil
}

func (h *ConversionHandler) readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", header.Filename, err)
	}
	defer f.Close()

	// 多读一个字节，超限由校验器报告
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", header.Filename, err)
	}
	return data, nil
}

func parseRequest(c *gin.Context) (pipeline.Request, error) {
	req := pipeline.Request{TargetLanguage: strings.TrimSpace(c.PostForm("targetLanguage"))}

	var err error
	if req.StartPage, err = optionalInt(c.PostForm("startPage")); err != nil {
		return req, fmt.Errorf("invalid startPage: %w", err)
	}
	if req.EndPage, err = optionalInt(c.PostForm("endPage")); err != nil {
		return req, fmt.Errorf("invalid endPage: %w", err)
	}
	return req, nil
}

func optionalInt(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func wantsDownload(c *gin.Context) bool {
	download, _ := strconv.ParseBool(c.Query("download"))
	return download
}

func writeAudio(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, models.AudioMIMEMP3, data)
}

func taskResponse(task *models.ProcessingTask) TaskResponse {
	if task == nil {
		return TaskResponse{Status: string(models.StatusFailed)}
	}
	return TaskResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Filename:  task.Metadata["fileName"],
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ConversionHandler) writeFailure(c *gin.Context, outcome *models.ConversionOutcome) {
	status := http.StatusBadGateway
	switch outcome.Error.Kind {
	case models.ErrUnknownLanguage, models.ErrInvalidDocument, models.ErrInvalidPageRange:
		status = http.StatusBadRequest
	}

	h.logger.FromContext(c.Request.Context()).Warn("Conversion failed",
		logger.String("path", c.Request.URL.Path),
		logger.String("errorKind", string(outcome.Error.Kind)),
		logger.String("message", outcome.Error.Message),
	)

	c.JSON(status, ConversionFailure{
		ErrorKind:      outcome.Error.Kind,
		Message:        outcome.Error.Message,
		Stage:          outcome.Error.Stage,
		ExtractedText:  outcome.Text,
		TranslatedText: outcome.TranslatedText,
	})
}

// errorStatus 将服务错误映射为 HTTP 状态码
func errorStatus(err error) int {
	var verr *conversion.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, conversion.ErrNoDocument),
		errors.Is(err, conversion.ErrUnreadable),
		errors.Is(err, storage.ErrDisabled):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case storage.IsNotFound(err), errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrResultPending):
		return http.StatusConflict
	case errors.Is(err, conversion.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func (h *ConversionHandler) handleError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, h.errorResponse(c, status, message, err))
}

// errorResponse logs the failure and builds the response body.
func (h *ConversionHandler) errorResponse(c *gin.Context, status int, message string, err error) ErrorResponse {
	log := h.logger.FromContext(c.Request.Context())
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}
	var verr *conversion.ValidationError
	if errors.As(err, &verr) {
		response.Details = verr.Result.Errors
	}
	return response
}
