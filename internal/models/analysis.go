// Package models defines data structures for the rafeeq study journal.
package models

// Source tags where an AnalysisRecord came from.
type Source string

const (
	// SourceAI is structured output from a generative provider.
	SourceAI Source = "ai"
	// SourceAIText is plain-text provider output wrapped into a record.
	SourceAIText Source = "ai-text"
	// SourceSearch is a record synthesized from web-search results.
	SourceSearch Source = "search"
	// SourceMemory is a record recalled from the knowledge store.
	SourceMemory Source = "memory"
	// SourceStatic is the hardcoded last-resort record.
	SourceStatic Source = "static"
)

// Valid reports whether s is a known provenance tag.
func (s Source) Valid() bool {
	switch s {
	case SourceAI, SourceAIText, SourceSearch, SourceMemory, SourceStatic:
		return true
	}
	return false
}

// Live reports whether the record was produced by a live provider call.
func (s Source) Live() bool {
	return s == SourceAI || s == SourceAIText || s == SourceSearch
}

// AnalysisRecord is the canonical unit exchanged across every boundary.
type AnalysisRecord struct {
	Source               Source               `json:"source" validate:"required,oneof=ai ai-text search memory static"`
	Summary              Summary              `json:"summary" validate:"required"`
	WebAnalysis          WebAnalysis          `json:"webAnalysis" validate:"required"`
	MotivationalMessage  MotivationalMessage  `json:"motivationalMessage" validate:"required"`
	ResearchConnections  []ResearchConnection `json:"researchConnections" validate:"required,dive"`
	RecommendedMethods   []StudyMethod        `json:"recommendedMethods" validate:"required,dive"`
	TomorrowPlan         []PlanItem           `json:"tomorrowPlan" validate:"required,min=1,dive"`
	PsychologicalSupport PsychologicalSupport `json:"psychologicalSupport" validate:"required"`
	QuranicLink          QuranicLink          `json:"quranicLink" validate:"required"`
	LessonIntelligence   *LessonIntelligence  `json:"lessonIntelligence,omitempty" validate:"omitempty"`
	BalanceScore         float64              `json:"balanceScore" validate:"gte=0,lte=100"`
}

// Summary describes the day's accomplishment and stress.
type Summary struct {
	Accomplishment string `json:"accomplishment" validate:"required"`
	EffortType     string `json:"effortType" validate:"required,oneof=mental emotional physical"`
	StressLevel    string `json:"stressLevel" validate:"required,oneof=low medium high"`
	AnalysisText   string `json:"analysisText" validate:"required"`
}

// WebAnalysis holds the researched root cause and remedy.
type WebAnalysis struct {
	RootCause       string      `json:"rootCause" validate:"required"`
	SuggestedRemedy string      `json:"suggestedRemedy" validate:"required"`
	Sources         []WebSource `json:"sources" validate:"required,dive"`
}

// WebSource is a single cited link.
type WebSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// MotivationalMessage is a quote tailored to the user's state.
type MotivationalMessage struct {
	Text     string `json:"text" validate:"required"`
	Source   string `json:"source" validate:"required"`
	Category string `json:"category" validate:"required,oneof=religious scientific philosophical wisdom"`
}

// ResearchConnection links the reflection to a research finding.
type ResearchConnection struct {
	Point            string `json:"point" validate:"required"`
	Source           string `json:"source"`
	EvidenceStrength string `json:"evidenceStrength" validate:"oneof=strong medium limited"`
	Type             string `json:"type" validate:"oneof=causal correlational"`
	Relevance        string `json:"relevance"`
}

// StudyMethod is a recommended technique for a subject.
type StudyMethod struct {
	Subject    string   `json:"subject"`
	MethodName string   `json:"methodName" validate:"required"`
	Details    string   `json:"details"`
	Tools      []string `json:"tools" validate:"required"`
}

// PlanItem is one time block of tomorrow's plan.
type PlanItem struct {
	Time   string `json:"time" validate:"required"`
	Task   string `json:"task" validate:"required"`
	Method string `json:"method" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=study break sleep prayer"`
}

// PsychologicalSupport is a short supportive message and a technique.
type PsychologicalSupport struct {
	Message   string `json:"message" validate:"required"`
	Technique string `json:"technique" validate:"required"`
}

// QuranicLink ties a verse to the user's situation.
type QuranicLink struct {
	Verse                 string `json:"verse" validate:"required"`
	Surah                 string `json:"surah" validate:"required"`
	BehavioralExplanation string `json:"behavioralExplanation" validate:"required"`
}

// LessonIntelligence is optional per-lesson feedback.
type LessonIntelligence struct {
	Difficulty       string `json:"difficulty" validate:"required,oneof=easy medium hard"`
	ReflectionText   string `json:"reflectionText" validate:"required"`
	ResearchInsights string `json:"researchInsights" validate:"required"`
}

// Clone returns a deep copy so callers can modify the result freely.
func (r AnalysisRecord) Clone() AnalysisRecord {
	out := r
	out.WebAnalysis.Sources = append([]WebSource(nil), r.WebAnalysis.Sources...)
	out.ResearchConnections = append([]ResearchConnection(nil), r.ResearchConnections...)
	out.TomorrowPlan = append([]PlanItem(nil), r.TomorrowPlan...)
	out.RecommendedMethods = make([]StudyMethod, len(r.RecommendedMethods))
	for i, m := range r.RecommendedMethods {
		m.Tools = append([]string(nil), m.Tools...)
		out.RecommendedMethods[i] = m
	}
	if r.LessonIntelligence != nil {
		li := *r.LessonIntelligence
		out.LessonIntelligence = &li
	}
	// Keep empty-but-present slices non-nil.
	if out.WebAnalysis.Sources == nil {
		out.WebAnalysis.Sources = []WebSource{}
	}
	if out.ResearchConnections == nil {
		out.ResearchConnections = []ResearchConnection{}
	}
	if out.TomorrowPlan == nil {
		out.TomorrowPlan = []PlanItem{}
	}
	return out
}
