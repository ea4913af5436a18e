package types

import "time"

// Photo is the metadata of an uploaded image. The bytes live in object
// storage under ObjectKey; Filename is the public, non-guessable name used
// by the file endpoint.
type Photo struct {
	// ID is the unique identifier of the photo (UUID v4).
	ID string `json:"id" db:"id"`

	// UserID is the owner of the photo.
	UserID string `json:"userId" db:"user_id"`

	// Filename is generated from a random token and never taken from the client.
	Filename string `json:"filename" db:"filename"`

	// ObjectKey is the location of the bytes in object storage.
	ObjectKey string `json:"-" db:"object_key"`

	// ContentType is the sniffed MIME type of the stored bytes.
	ContentType string `json:"contentType" db:"content_type"`

	// Size is the length of the stored object in bytes.
	Size int64 `json:"size" db:"size"`

	// IsProfile marks the photo as the owner's active profile photo.
	// At most one photo per user has it set.
	IsProfile bool `json:"isProfilePhoto" db:"is_profile"`

	// UploadedAt is the time the photo was stored.
	UploadedAt time.Time `json:"uploadedAt" db:"uploaded_at"`
}

// PhotoEventType names a change published on the photo events channel.
type PhotoEventType string

const (
	PhotoUploaded       PhotoEventType = "photo.uploaded"
	PhotoDeleted        PhotoEventType = "photo.deleted"
	PhotoProfileChanged PhotoEventType = "photo.profile_changed"
)

// PhotoEvent is the JSON payload published when a photo changes.
type PhotoEvent struct {
	Type       PhotoEventType `json:"type"`
	PhotoID    string         `json:"photoId"`
	UserID     string         `json:"userId"`
	Filename   string         `json:"filename,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
