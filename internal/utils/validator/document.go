// internal/utils/validator/document.go
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/feichai0017/pdf-voice/internal/agent/document/pdf"
	"github.com/feichai0017/pdf-voice/pkg/logger"
)

// 验证错误码
const (
	CodeEmptyFile       = "EMPTY_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
	CodeTooManyPages    = "TOO_MANY_PAGES"
)

const mimePDF = "application/pdf"

// DocumentValidator 文档验证器
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize  int64 // 最大文件大小（字节）
	MaxPageCount int   // PDF最大页数
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
	PageCount int    `json:"pageCount,omitempty"`
}

// Error joins the validation messages.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize:  50 * 1024 * 1024, // 50MB
			MaxPageCount: 1000,
		}
	}

	return &DocumentValidator{
		logger: logger,
		config: config,
	}
}

// ReadFile 读取并验证上传的文件
func (v *DocumentValidator) ReadFile(file *multipart.FileHeader) ([]byte, *ValidationResult, error) {
	if file.Size > v.config.MaxFileSize {
		result := v.newResult(file.Filename, file.Size)
		result.addError(v.sizeError())
		return nil, result, nil
	}

	f, err := file.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, v.config.MaxFileSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, v.Validate(file.Filename, data), nil
}

// Validate 验证文档内容. An empty filename skips the extension check.
func (v *DocumentValidator) Validate(filename string, data []byte) *ValidationResult {
	result := v.newResult(filename, int64(len(data)))

	// 基本验证
	switch {
	case len(data) == 0:
		result.addError(ValidationError{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		})
		return result
	case int64(len(data)) > v.config.MaxFileSize:
		result.addError(v.sizeError())
		return result
	}

	if filename != "" && result.FileInfo.Extension != ".pdf" {
		result.addError(ValidationError{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("File type %q is not allowed", result.FileInfo.Extension),
			Field:   "extension",
		})
	}

	// MIME类型验证
	result.FileInfo.MimeType = detectMimeType(data)
	result.FileInfo.Hash = calculateHash(data)
	if result.FileInfo.MimeType != mimePDF {
		result.addError(ValidationError{
			Code:    CodeInvalidMimeType,
			Message: fmt.Sprintf("Invalid MIME type %s, expected %s", result.FileInfo.MimeType, mimePDF),
			Field:   "mimeType",
		})
		return result
	}

	v.validatePDF(data, result)
	return result
}

// ValidateFiles 批量验证文件
func (v *DocumentValidator) ValidateFiles(files []*multipart.FileHeader) ([][]byte, []*ValidationResult, error) {
	contents := make([][]byte, len(files))
	results := make([]*ValidationResult, len(files))
	var wg sync.WaitGroup
	errCh := make(chan error, len(files))

	for i, file := range files {
		wg.Add(1)
		go func(index int, file *multipart.FileHeader) {
			defer wg.Done()

			data, result, err := v.ReadFile(file)
			if err != nil {
				errCh <- err
				return
			}
			contents[index] = data
			results[index] = result
		}(i, file)
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, nil, err
	}

	return contents, results, nil
}

func (v *DocumentValidator) newResult(filename string, size int64) *ValidationResult {
	return &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      size,
			Extension: strings.ToLower(filepath.Ext(filename)),
		},
	}
}

func (v *DocumentValidator) sizeError() ValidationError {
	return ValidationError{
		Code:    CodeFileTooLarge,
		Message: fmt.Sprintf("File size exceeds maximum limit of %s", humanize.IBytes(uint64(v.config.MaxFileSize))),
		Field:   "size",
	}
}

func (r *ValidationResult) addError(e ValidationError) {
	r.IsValid = false
	r.Errors = append(r.Errors, e)
}

// PDF特定验证. Unparseable files are left to the pipeline, which reports
// them as InvalidDocument.
func (v *DocumentValidator) validatePDF(data []byte, result *ValidationResult) {
	doc, err := pdf.Open(data)
	if err != nil {
		v.logger.Debug("PDF structure not readable",
			logger.String("filename", result.FileInfo.Filename),
			logger.Error(err),
		)
		return
	}

	result.FileInfo.PageCount = doc.PageCount()
	if v.config.MaxPageCount > 0 && doc.PageCount() > v.config.MaxPageCount {
		result.addError(ValidationError{
			Code:    CodeTooManyPages,
			Message: fmt.Sprintf("Document has %d pages, maximum is %d", doc.PageCount(), v.config.MaxPageCount),
			Field:   "pageCount",
		})
	}
}

// 检测MIME类型
func detectMimeType(data []byte) string {
	// DetectContentType 只看前512字节
	return http.DetectContentType(data)
}

// 计算文件哈希
func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
