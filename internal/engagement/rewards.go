// Package engagement tracks user interactions, awards experience points,
// and learns which content framings a user responds to.
package engagement

import (
	"math"
	"time"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// Points awarded per interaction type.
var Points = map[models.InteractionType]int{
	models.InteractionAnalysis:     10,
	models.InteractionVoiceRecap:   20,
	models.InteractionFocusSession: 15,
	models.InteractionScheduleTask: 15,
	models.InteractionQuote:        5,
}

const (
	// FeedbackPoints replaces the type's points when feedback is given.
	FeedbackPoints = 5
	// WeeklyStreakBonus is added on every seventh consecutive day.
	WeeklyStreakBonus = 100

	maxWeight        = 10.0
	tagWeightStep    = 0.2
	quoteLikeStep    = 0.5
	quoteDislike     = -0.3
	quoteWeightFloor = 0.1
)

// Level maps accumulated XP to a level: level n needs n²·100 XP.
func Level(xp int) int {
	return max(1, int(math.Floor(math.Sqrt(float64(xp)/100))))
}

// PointsFor returns the base XP for an interaction.
func PointsFor(t models.InteractionType, fb models.Feedback) int {
	if fb != models.FeedbackNone {
		return FeedbackPoints
	}
	return Points[t]
}

// advanceStreak applies the daily streak rule for a primary daily action
// and returns the new stats plus any bonus XP earned.
func advanceStreak(stats models.EngagementStats, now time.Time) (models.EngagementStats, int) {
	today := now.Format(time.DateOnly)
	if stats.LastLoginDate == today {
		return stats, 0
	}

	bonus := 0
	yesterday := now.AddDate(0, 0, -1).Format(time.DateOnly)
	if stats.LastLoginDate == yesterday {
		stats.Streak++
		if stats.Streak%7 == 0 {
			bonus = WeeklyStreakBonus
		}
	} else {
		stats.Streak = 1
	}
	stats.LastLoginDate = today
	return stats, bonus
}

// AdjustWeights nudges the interest profile for each recognized tag.
func AdjustWeights(p models.InterestProfile, tags []string, fb models.Feedback) models.InterestProfile {
	var step float64
	switch fb {
	case models.FeedbackLike:
		step = tagWeightStep
	case models.FeedbackDislike:
		step = -tagWeightStep
	default:
		return p
	}

	for _, tag := range tags {
		switch tag {
		case "religious", "quran":
			p.Religious = clamp(p.Religious+step, 0, maxWeight)
		case "scientific", "psych":
			p.Scientific = clamp(p.Scientific+step, 0, maxWeight)
		case "philosophical", "wisdom":
			p.Philosophical = clamp(p.Philosophical+step, 0, maxWeight)
		case "practical":
			p.Practical = clamp(p.Practical+step, 0, maxWeight)
		}
	}
	return p
}

// UpdateInterestProfile applies feedback on a motivational quote category.
func UpdateInterestProfile(p models.InterestProfile, category string, fb models.Feedback) models.InterestProfile {
	var step float64
	switch fb {
	case models.FeedbackLike:
		step = quoteLikeStep
	case models.FeedbackDislike:
		step = quoteDislike
	default:
		return p
	}

	switch category {
	case "religious":
		p.Religious = max(quoteWeightFloor, p.Religious+step)
	case "scientific":
		p.Scientific = max(quoteWeightFloor, p.Scientific+step)
	case "philosophical", "wisdom":
		p.Philosophical = max(quoteWeightFloor, p.Philosophical+step)
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
