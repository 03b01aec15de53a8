// Package search implements the web-search provider adapters.
package search

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/repair"
)

// DefaultResults is how many results each backend requests.
const DefaultResults = 5

// maxQueryTerms caps the keyword query length.
const maxQueryTerms = 12

// querySuffix steers results toward study and wellbeing advice.
const querySuffix = "نصائح للطلاب المذاكرة"

// Result is one web-search hit.
type Result struct {
	Title   string
	Link    string
	Snippet string
}

// KeywordQuery reduces a reflection to a search query of meaningful terms.
func KeywordQuery(reflection string) string {
	terms := knowledge.Tokenize(reflection)
	if len(terms) > maxQueryTerms {
		terms = terms[:maxQueryTerms]
	}
	if len(terms) == 0 {
		return querySuffix
	}
	return strings.Join(terms, " ") + " " + querySuffix
}

// Digest synthesizes an AnalysisRecord from search results.
// The caller guarantees len(results) > 0.
func Digest(results []Result) models.AnalysisRecord {
	rec := repair.Repair(nil)
	rec.Source = models.SourceSearch

	var b strings.Builder
	b.WriteString("لم تتوفر خدمة التحليل الذكي، وهذه خلاصة ما وجدناه في الويب:\n")
	sources := make([]models.WebSource, 0, len(results))
	for _, r := range results {
		title := strings.TrimSpace(r.Title)
		snippet := cleanSnippet(r.Snippet)
		fmt.Fprintf(&b, "• %s: %s\n", title, snippet)
		sources = append(sources, models.WebSource{Title: title, URL: r.Link, Snippet: snippet})
	}

	rec.Summary.AnalysisText = repair.Truncate(strings.TrimSpace(b.String()), repair.MaxWrappedTextRunes)
	rec.WebAnalysis.Sources = sources
	if s := cleanSnippet(results[0].Snippet); s != "" {
		rec.WebAnalysis.RootCause = s
	}
	if len(results) > 1 {
		if s := cleanSnippet(results[1].Snippet); s != "" {
			rec.WebAnalysis.SuggestedRemedy = s
		}
	}
	return rec
}

func cleanSnippet(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
