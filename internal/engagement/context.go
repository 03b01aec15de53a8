package engagement

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// advancedLevel is the level above which a user is treated as committed.
const advancedLevel = 5

// ContextString renders the profile as prompt context for content generation.
func ContextString(p models.InterestProfile, stats models.EngagementStats) string {
	type interest struct {
		name string
		val  float64
	}
	interests := []interest{
		{"religious", p.Religious},
		{"scientific", p.Scientific},
		{"philosophical", p.Philosophical},
		{"practical", p.Practical},
	}
	slices.SortStableFunc(interests, func(a, b interest) int {
		return cmp.Compare(b.val, a.val)
	})

	band := "beginner"
	if stats.Level > advancedLevel {
		band = "advanced/committed"
	}
	tone := p.PreferredTone
	if tone == "" {
		tone = "gentle"
	}

	var b strings.Builder
	b.WriteString("User Profile Context:\n")
	fmt.Fprintf(&b, "- Top Interest: %s (Focus heavily on this).\n", interests[0].name)
	fmt.Fprintf(&b, "- Preferred Tone: %s.\n", tone)
	fmt.Fprintf(&b, "- Current Level: %d (Treat as %s).\n", stats.Level, band)
	fmt.Fprintf(&b, "- Streak: %d days.\n\n", stats.Streak)
	b.WriteString("Weights for Content Generation:\n")
	fmt.Fprintf(&b, "- Religious: %.1f\n", p.Religious)
	fmt.Fprintf(&b, "- Scientific: %.1f\n", p.Scientific)
	fmt.Fprintf(&b, "- Practical: %.1f\n", p.Practical)
	return b.String()
}

// Tags derives interaction tags from an analysis record.
func Tags(rec models.AnalysisRecord) []string {
	tags := []string{string(rec.Source), rec.Summary.EffortType, "stress-" + rec.Summary.StressLevel}
	if rec.MotivationalMessage.Category != "" {
		tags = append(tags, rec.MotivationalMessage.Category)
	}
	if rec.QuranicLink.Verse != "" {
		tags = append(tags, "quran")
	}
	if len(rec.ResearchConnections) > 0 {
		tags = append(tags, "psych")
	}
	return tags
}
