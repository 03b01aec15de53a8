package models

import "time"

// WeeklySchedule maps a day name to its subjects.
type WeeklySchedule map[string][]string

// DaysOfWeek lists the Egyptian school week starting Saturday.
var DaysOfWeek = []string{
	"السبت",
	"الأحد",
	"الاثنين",
	"الثلاثاء",
	"الأربعاء",
	"الخميس",
	"الجمعة",
}

// LessonContext describes the lesson a reflection is about.
type LessonContext struct {
	Subject string  `json:"subject" binding:"required"`
	Lesson  string  `json:"lesson" binding:"required"`
	Solved  bool    `json:"solved"`
	Hours   float64 `json:"hours" binding:"gte=0"`
}

// InterestProfile holds the learned content-framing weights.
type InterestProfile struct {
	Religious     float64 `json:"religious"`
	Scientific    float64 `json:"scientific"`
	Philosophical float64 `json:"philosophical"`
	Practical     float64 `json:"practical"`
	Emotional     float64 `json:"emotional"`
	PreferredTone string  `json:"preferredTone"`
}

// DefaultInterestProfile is the starting profile for a new user.
func DefaultInterestProfile() InterestProfile {
	return InterestProfile{
		Religious:     1.0,
		Scientific:    1.0,
		Philosophical: 0.5,
		Practical:     1.0,
		Emotional:     1.0,
		PreferredTone: "gentle",
	}
}

// EngagementStats are the user's gamification counters.
type EngagementStats struct {
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	Streak        int    `json:"streak"`
	LastLoginDate string `json:"lastLoginDate"`
	TotalEntries  int    `json:"totalEntries"`
}

// DefaultEngagementStats is the starting state for a new user.
func DefaultEngagementStats(now time.Time) EngagementStats {
	return EngagementStats{
		Level:         1,
		LastLoginDate: now.Format(time.DateOnly),
	}
}

// UserProfile is what the service persists per user.
type UserProfile struct {
	UserID     string          `json:"userId"`
	GradeLevel string          `json:"gradeLevel"`
	Interests  InterestProfile `json:"interests"`
	Stats      EngagementStats `json:"stats"`
	Schedule   WeeklySchedule  `json:"schedule,omitempty"`
}
