package domain

import "time"

const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

var DefaultAllowedContentTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/heic",
	"image/heif",
}

type GrantRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
}

// ObjectGrant is what an object store issues for one constrained direct upload.
type ObjectGrant struct {
	Key          string
	ContentType  string
	MaxSizeBytes int64
	Expiry       time.Duration
}

// UploadGrant lets a client upload one object directly to the store.
type UploadGrant struct {
	Method       string            `json:"method"`
	UploadURL    string            `json:"uploadUrl"`
	Fields       map[string]string `json:"fields,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Key          string            `json:"key"`
	ImageURL     string            `json:"imageUrl"`
	ConfirmURL   string            `json:"confirmUrl,omitempty"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	MaxSizeBytes int64             `json:"maxSizeBytes"`
}
