package models

import "time"

// InteractionType classifies an engagement event.
type InteractionType string

const (
	InteractionAnalysis     InteractionType = "analysis"
	InteractionQuote        InteractionType = "quote"
	InteractionVoiceRecap   InteractionType = "voice_recap"
	InteractionFocusSession InteractionType = "focus_session"
	InteractionScheduleTask InteractionType = "schedule_task"
)

// Feedback is the user's reaction to generated content.
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

// InteractionEntry is one line of a user's interaction log.
type InteractionEntry struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Type           InteractionType `json:"type"`
	ContentSummary string          `json:"contentSummary"`
	Tags           []string        `json:"tags"`
	Feedback       Feedback        `json:"feedback,omitempty"`
	PointsAwarded  int             `json:"pointsAwarded"`
}

// LearnedPatterns are aggregated preferences extracted from interactions.
type LearnedPatterns struct {
	FavoriteTopics  []string `json:"favoriteTopics"`
	RecurringIssues []string `json:"recurringIssues"`
}

// InteractionLog is the persisted engagement memory of a user.
type InteractionLog struct {
	Version      int                `json:"version"`
	LastUpdated  time.Time          `json:"lastUpdated"`
	Interactions []InteractionEntry `json:"interactions"`
	Patterns     LearnedPatterns    `json:"learnedPatterns"`
}
