package models

import (
	"errors"
	"time"
)

// ErrPageNotFound is returned by page repositories when no entry exists for a key
var ErrPageNotFound = errors.New("page not found")

// ExtractedContent is the paragraph text extracted from a rendered page
type ExtractedContent struct {
	Paragraphs []string `json:"paragraphs"`
}

// IsEmpty reports whether no paragraph text was extracted.
func (c ExtractedContent) IsEmpty() bool {
	return len(c.Paragraphs) == 0
}

// CacheEntry is the stored form of a successfully fetched page.
type CacheEntry struct {
	Key       string           `json:"key"`
	Value     ExtractedContent `json:"value"`
	WrittenAt time.Time        `json:"written_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior message of a chat session.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GroundedAnswer is the mandatory shape of every generated answer.
type GroundedAnswer struct {
	Response          string   `json:"response"`
	FollowUpQuestions []string `json:"followUpQuestions"`
}

// Prompt is one generation request: a system instruction, prior turns and the
// final user message.
type Prompt struct {
	System  string
	History []ConversationTurn
	User    string
}
