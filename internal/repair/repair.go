// Package repair normalizes partial provider output into complete analysis records.
package repair

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

// Repair converts arbitrary, possibly malformed data into a complete AnalysisRecord.
// It never fails: anything missing or ill-typed is filled from the default table.
func Repair(raw any) models.AnalysisRecord {
	m := toMap(raw)

	summary := object(m, "summary")
	web := object(m, "webAnalysis")
	quote := object(m, "motivationalMessage")
	support := object(m, "psychologicalSupport")
	quran := object(m, "quranicLink")

	rec := models.AnalysisRecord{
		Source: repairSource(m["source"]),
		Summary: models.Summary{
			Accomplishment: text(summary, "accomplishment", defaultAccomplishment),
			EffortType:     enum(summary, "effortType", effortTypes, defaultEffortType),
			StressLevel:    enum(summary, "stressLevel", stressLevels, defaultStressLevel),
			AnalysisText:   text(summary, "analysisText", defaultAnalysisText),
		},
		WebAnalysis: models.WebAnalysis{
			RootCause:       text(web, "rootCause", defaultRootCause),
			SuggestedRemedy: text(web, "suggestedRemedy", defaultSuggestedRemedy),
			Sources:         repairSources(list(web, "sources")),
		},
		MotivationalMessage: models.MotivationalMessage{
			Text:     text(quote, "text", defaultQuoteText),
			Source:   text(quote, "source", defaultQuoteSource),
			Category: enum(quote, "category", quoteCategories, defaultQuoteCategory),
		},
		ResearchConnections: repairConnections(list(m, "researchConnections")),
		RecommendedMethods:  repairMethods(list(m, "recommendedMethods")),
		TomorrowPlan:        repairPlan(list(m, "tomorrowPlan")),
		PsychologicalSupport: models.PsychologicalSupport{
			Message:   text(support, "message", defaultSupportMessage),
			Technique: text(support, "technique", defaultSupportTechnique),
		},
		QuranicLink: models.QuranicLink{
			Verse:                 text(quran, "verse", defaultVerse),
			Surah:                 text(quran, "surah", defaultSurah),
			BehavioralExplanation: text(quran, "behavioralExplanation", defaultExplanation),
		},
		BalanceScore: balanceScore(m["balanceScore"]),
	}

	if li, ok := m["lessonIntelligence"].(map[string]any); ok {
		rec.LessonIntelligence = &models.LessonIntelligence{
			Difficulty:       enum(li, "difficulty", difficultyLevels, defaultDifficulty),
			ReflectionText:   text(li, "reflectionText", defaultLessonReflection),
			ResearchInsights: text(li, "researchInsights", defaultLessonInsights),
		}
	}

	return rec
}

// toMap coerces raw input into a generic JSON object.
func toMap(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case []byte:
		return decodeObject(v)
	case string:
		return decodeObject([]byte(v))
	case json.RawMessage:
		return decodeObject(v)
	case *models.AnalysisRecord:
		if v == nil {
			return map[string]any{}
		}
		return toMap(*v)
	}

	// Structs and other typed values: round-trip through JSON.
	data, err := json.Marshal(raw)
	if err != nil {
		return map[string]any{}
	}
	return decodeObject(data)
}

func decodeObject(data []byte) map[string]any {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func object(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func list(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// text returns a non-blank string field or def.
func text(m map[string]any, key, def string) string {
	if s := asString(m[key]); s != "" {
		return s
	}
	return def
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

// enum returns the lowercased field if it is one of allowed, else def.
func enum(m map[string]any, key string, allowed []string, def string) string {
	s := strings.ToLower(asString(m[key]))
	if slices.Contains(allowed, s) {
		return s
	}
	return def
}

func repairSource(v any) models.Source {
	s := models.Source(strings.ToLower(asString(v)))
	if s.Valid() {
		return s
	}
	return models.SourceAI
}

func balanceScore(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return DefaultBalanceScore
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		if err != nil {
			return DefaultBalanceScore
		}
		f = parsed
	default:
		return DefaultBalanceScore
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultBalanceScore
	}
	return math.Max(0, math.Min(100, f))
}

func repairSources(items []any) []models.WebSource {
	out := []models.WebSource{}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		src := models.WebSource{
			Title:   asString(m["title"]),
			URL:     asString(m["url"]),
			Snippet: asString(m["snippet"]),
		}
		if src.URL == "" && src.Title == "" {
			continue
		}
		if src.Title == "" {
			src.Title = src.URL
		}
		out = append(out, src)
	}
	return out
}

func repairConnections(items []any) []models.ResearchConnection {
	out := []models.ResearchConnection{}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || asString(m["point"]) == "" {
			continue
		}
		out = append(out, models.ResearchConnection{
			Point:            asString(m["point"]),
			Source:           asString(m["source"]),
			EvidenceStrength: enum(m, "evidenceStrength", evidenceLevels, defaultEvidenceStrength),
			Type:             enum(m, "type", connectionTypes, defaultConnectionType),
			Relevance:        asString(m["relevance"]),
		})
	}
	return out
}

func repairMethods(items []any) []models.StudyMethod {
	out := []models.StudyMethod{}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || asString(m["methodName"]) == "" {
			continue
		}
		tools := []string{}
		for _, t := range list(m, "tools") {
			if s := asString(t); s != "" {
				tools = append(tools, s)
			}
		}
		out = append(out, models.StudyMethod{
			Subject:    asString(m["subject"]),
			MethodName: asString(m["methodName"]),
			Details:    asString(m["details"]),
			Tools:      tools,
		})
	}
	return out
}

func repairPlan(items []any) []models.PlanItem {
	out := []models.PlanItem{}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || asString(m["task"]) == "" {
			continue
		}
		out = append(out, models.PlanItem{
			Time:   text(m, "time", defaultPlanTime),
			Task:   asString(m["task"]),
			Method: text(m, "method", defaultPlanMethod),
			Type:   enum(m, "type", planTypes, defaultPlanType),
		})
	}
	if len(out) == 0 {
		return placeholderPlan()
	}
	return out
}

// WrapText places plain-text provider output into an otherwise defaulted record.
func WrapText(body string, source models.Source) models.AnalysisRecord {
	rec := Repair(nil)
	rec.Source = source
	if t := Truncate(strings.TrimSpace(body), MaxWrappedTextRunes); t != "" {
		rec.Summary.AnalysisText = t
	}
	return rec
}

// Truncate shortens s to at most maxRunes runes, adding an ellipsis if cut.
func Truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	if maxRunes < 1 {
		return ""
	}
	return string(r[:maxRunes-1]) + "…"
}

// Describe returns a short human-readable description of a record, for logs.
func Describe(rec models.AnalysisRecord) string {
	return fmt.Sprintf("source=%s stress=%s effort=%s score=%.0f plan=%d",
		rec.Source, rec.Summary.StressLevel, rec.Summary.EffortType, rec.BalanceScore, len(rec.TomorrowPlan))
}
