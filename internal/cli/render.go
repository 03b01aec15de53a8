package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/rafeeq/internal/engagement"
	"github.com/raphaelgruber/rafeeq/internal/models"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Title   lipgloss.Color
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Border  lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Title:   lipgloss.Color("#D7AF5F"), // sand
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Border:  lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) boxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
}

// sourceLabel describes where a record came from.
func sourceLabel(s models.Source) string {
	switch s {
	case models.SourceAI:
		return "AI analysis"
	case models.SourceAIText:
		return "AI analysis (plain text)"
	case models.SourceSearch:
		return "web search digest"
	case models.SourceMemory:
		return "from memory"
	case models.SourceStatic:
		return "offline"
	default:
		return string(s)
	}
}

// renderRecord formats an analysis for the terminal.
func renderRecord(t Theme, rec models.AnalysisRecord) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s", t.titleStyle().Render("Rafeeq"), t.statusStyle().Render("["+sourceLabel(rec.Source)+"]"))
	b.WriteString(header + "\n\n")

	summary := fmt.Sprintf("%s\n\nStress: %s   Effort: %s   Balance: %.0f/100",
		rec.Summary.AnalysisText, rec.Summary.StressLevel, rec.Summary.EffortType, rec.BalanceScore)
	b.WriteString(t.boxStyle().Render(summary) + "\n\n")

	if rec.WebAnalysis.RootCause != "" || rec.WebAnalysis.SuggestedRemedy != "" {
		b.WriteString(t.titleStyle().Render("Root cause") + "\n  " + rec.WebAnalysis.RootCause + "\n")
		b.WriteString(t.titleStyle().Render("Remedy") + "\n  " + rec.WebAnalysis.SuggestedRemedy + "\n")
		for _, s := range rec.WebAnalysis.Sources {
			b.WriteString(t.hintStyle().Render("  • "+s.Title+" "+s.URL) + "\n")
		}
		b.WriteString("\n")
	}

	if len(rec.TomorrowPlan) > 0 {
		b.WriteString(t.titleStyle().Render("Tomorrow") + "\n")
		for _, p := range rec.TomorrowPlan {
			fmt.Fprintf(&b, "  %s  %s (%s)\n", t.statusStyle().Render(p.Time), p.Task, p.Type)
		}
		b.WriteString("\n")
	}

	if len(rec.RecommendedMethods) > 0 {
		b.WriteString(t.titleStyle().Render("Methods") + "\n")
		for _, m := range rec.RecommendedMethods {
			fmt.Fprintf(&b, "  • %s: %s\n", m.MethodName, m.Details)
		}
		b.WriteString("\n")
	}

	if ps := rec.PsychologicalSupport; ps.Message != "" {
		b.WriteString(t.titleStyle().Render("Support") + "\n")
		fmt.Fprintf(&b, "  %s\n  %s\n\n", ps.Message, t.hintStyle().Render(ps.Technique))
	}

	if rec.QuranicLink.Verse != "" {
		b.WriteString(t.titleStyle().Render("Verse") + "\n")
		fmt.Fprintf(&b, "  %s\n  %s\n\n", rec.QuranicLink.Verse, t.hintStyle().Render(rec.QuranicLink.Surah))
	}

	msg := rec.MotivationalMessage
	if msg.Text != "" {
		fmt.Fprintf(&b, "%s\n  %s\n", t.completedStyle().Render("“"+msg.Text+"”"), t.hintStyle().Render(msg.Source))
	}
	return b.String()
}

// renderEngagement formats XP and streak changes.
func renderEngagement(t Theme, res engagement.Result) string {
	line := fmt.Sprintf("+%d XP  •  Level %d  •  %d XP total  •  Streak %d",
		res.Points, res.Stats.Level, res.Stats.XP, res.Stats.Streak)
	if res.LeveledUp {
		line += "  " + t.completedStyle().Render("Level up!")
	}
	return t.hintStyle().Render(line)
}

// renderEntry formats one stored knowledge entry as a list line.
func renderEntry(t Theme, e models.KnowledgeEntry) string {
	return fmt.Sprintf("%s  %s  %s",
		t.hintStyle().Render(e.Timestamp.Local().Format("2006-01-02 15:04")),
		e.InputSummary,
		t.statusStyle().Render(strings.Join(e.Tags, ",")))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
