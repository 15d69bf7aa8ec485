// Package domain defines the core types shared across the coaching engine:
// ingestable sources, embedded passages, chat turns, and their statuses.
package domain

import "time"

// SourceKind identifies the format of an ingestable source object.
type SourceKind string

const (
	KindPDF       SourceKind = "pdf"
	KindDocx      SourceKind = "docx"
	KindLegacyDoc SourceKind = "doc"
	KindText      SourceKind = "txt"
	KindVideoLink SourceKind = "link"
)

// Valid reports whether k is one of the supported source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindPDF, KindDocx, KindLegacyDoc, KindText, KindVideoLink:
		return true
	}
	return false
}

// IngestStatus is the lifecycle state of a source object's ingestion job.
// Terminal states (processed, failed) are sticky; there is no retry path.
type IngestStatus string

const (
	StatusPending    IngestStatus = "pending"
	StatusProcessing IngestStatus = "processing"
	StatusProcessed  IngestStatus = "processed"
	StatusFailed     IngestStatus = "failed"
)

// SourceObject is one ingestable unit: an uploaded file or a video link.
// Immutable once created.
type SourceObject struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Kind        SourceKind `json:"kind"`
	Location    string     `json:"location"`     // public path or video URL
	StoragePath string     `json:"storage_path"` // object-store key, empty for links
	Name        string     `json:"name"`
}

// Passage is one embedded chunk derived from a source object, the unit
// of retrieval. ChunkIndex is contiguous starting at 0 per source.
type Passage struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id"`
	ChunkIndex int        `json:"chunk_index"`
	Text       string     `json:"text"`
	Embedding  []float32  `json:"embedding,omitempty"`
	UserID     string     `json:"user_id"`
	Kind       SourceKind `json:"kind"`
	Location   string     `json:"location"`
	Name       string     `json:"name"`
	Score      float32    `json:"score,omitempty"` // similarity, set on retrieval
}

// Role distinguishes user turns from bot turns in a conversation.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ChatTurn is one message in a conversation. PassageIDs is empty for user
// turns and holds the retrieved passage ids for bot turns. Never mutated
// after creation.
type ChatTurn struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chat_id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullname"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	PassageIDs []string  `json:"passage_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatUser identifies the author of an inbound chat message.
type ChatUser struct {
	ID       int64
	Username string
	FullName string
}

// FlaggedAnswer pairs a user question with the bot answer a reviewer
// marked for offline quality review. Append-only.
type FlaggedAnswer struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	PassageIDs []string  `json:"passage_ids"`
	CreatedAt  time.Time `json:"created_at"`
}
