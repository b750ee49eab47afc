package models

import (
	"time"
)

// FileType 文件类型
type FileType string

const (
	PDF FileType = "pdf"
)

// DocumentMetadata 文档元数据
type DocumentMetadata struct {
	Title     string    `json:"title,omitempty"`
	Author    string    `json:"author,omitempty"`
	FileType  FileType  `json:"fileType"`
	FileSize  int64     `json:"fileSize"`
	MimeType  string    `json:"mimeType"`
	Pages     int       `json:"pages"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProcessingTask is the client-facing view of an async conversion job.
type ProcessingTask struct {
	ID        string            `json:"id"`
	Status    ProcessingStatus  `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Stage     string            `json:"stage,omitempty"`
	ErrorKind ErrorKind         `json:"errorKind,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)
