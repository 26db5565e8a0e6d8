package certificates

import (
	"time"

	"certiresume-backend/internal/extraction"
	"certiresume-backend/internal/shared/util"
)

// Status is the lifecycle state of one certificate entry.
type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusQueued     Status = "queued"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further automatic transition occurs from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Removable reports whether an entry in this status may be deleted outright.
// In-flight statuses convert a removal request into a cancellation instead.
func (s Status) Removable() bool {
	switch s {
	case StatusAccepted, StatusQueued, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// RemovableStatuses lists every status from which Delete may proceed directly.
func RemovableStatuses() []Status {
	return []Status{StatusAccepted, StatusQueued, StatusCompleted, StatusFailed, StatusCancelled}
}

// Entry is one uploaded certificate's lifecycle record within a session.
type Entry struct {
	ID          string             `json:"id"`
	SessionID   string             `json:"sessionId"`
	Position    int                `json:"position"`
	FileName    string             `json:"fileName"`
	MimeType    string             `json:"mimeType"`
	SizeBytes   int64              `json:"sizeBytes"`
	Status      Status             `json:"status"`
	Progress    int                `json:"progress"`
	StorageKey  string             `json:"-"`
	Extracted   *extraction.Fields `json:"extracted,omitempty"`
	ErrorReason string             `json:"errorReason,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ObjectKey derives the entry's object-store key. The session id is hashed
// so store layouts never expose raw session identifiers.
func (e Entry) ObjectKey() string {
	return util.HashUserKey(e.SessionID) + "/" + e.ID
}
