package models

import "time"

// KnowledgeEntry is one stored (input, output) pair in the knowledge store.
// Entries are never mutated after creation.
type KnowledgeEntry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Timestamp    time.Time      `json:"timestamp"`
	InputSummary string         `json:"inputSummary"`
	Data         AnalysisRecord `json:"data"`
	Tags         []string       `json:"tags"`
}

// KnowledgeSnapshot is the persisted form of a user's knowledge store.
type KnowledgeSnapshot struct {
	Version  int              `json:"version"`
	Entries  []KnowledgeEntry `json:"entries"`
	LastSync time.Time        `json:"lastSync"`
}
