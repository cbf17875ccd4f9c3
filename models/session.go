package models

import "time"

// HitRef is the sanitized slice of a SearchHit kept in session history.
// Chunk bodies are deliberately dropped to keep history entries small.
type HitRef struct {
	Title     string `json:"title"`
	Page      int    `json:"page,omitempty"`
	SourceURI string `json:"source_uri"`
}

// HistoryEntry is one answered (or refused) question in a session.
// The per-session history is append-only.
type HistoryEntry struct {
	Mode      string    `json:"mode"`
	Question  string    `json:"question"`
	Filter    string    `json:"filter,omitempty"`
	Hits      []HitRef  `json:"hits"`
	Timestamp time.Time `json:"ts"`
}

// UploadRecord is the session-scoped summary of one uploaded document.
// It lives only as long as the session.
type UploadRecord struct {
	DocID      string    `json:"doc_id"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	Summary    string    `json:"summary"`
	Hashtags   []string  `json:"hashtags"`
	Similar    []HitRef  `json:"similar"`
	BlobURL    string    `json:"blob_url,omitempty"`
	Timestamp  time.Time `json:"ts"`
}

// SessionState is everything a chat session carries between requests:
// history, uploads and an optional forced document filter. It is stored
// in Redis under the session id and destroyed with the session.
type SessionState struct {
	ID           string         `json:"id"`
	History      []HistoryEntry `json:"history"`
	Uploads      []UploadRecord `json:"uploads"`
	ForcedFilter string         `json:"forced_filter,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ChatRequest is the body of POST /chat/ask.
type ChatRequest struct {
	Question string   `json:"question" binding:"required"`
	Mode     string   `json:"mode"`
	TopK     int      `json:"top_k"`
	Filter   []string `json:"filter"`
}

// ChatResponse is the answer payload for POST /chat/ask.
type ChatResponse struct {
	Answer    string      `json:"answer"`
	Mode      string      `json:"mode"`
	Hits      []SearchHit `json:"hits,omitempty"`
	Sources   []WebSource `json:"sources,omitempty"`
	Refused   bool        `json:"refused"`
	Reason    string      `json:"reason,omitempty"`
	LatencyMS int64       `json:"latency_ms"`
	Timestamp time.Time   `json:"timestamp"`
}
