package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/orchestrator"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	analyzeGrade    string
	analyzeNextDay  string
	analyzeSchedule string
	analyzeSubject  string
	analyzeLesson   string
	analyzeSolved   bool
	analyzeHours    float64
	analyzeNoUI     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <reflection>",
	Short: "Analyze today's study reflection",
	Long: `Analyze a study reflection and plan tomorrow.

The reflection walks the provider chain (memory, AI providers, web search,
offline fallback). The result is stored and earns XP.

Examples:
  rafeeq analyze "ذاكرت الفيزياء ثلاث ساعات وتعبت"
  rafeeq analyze "حليت تمارين التفاضل" --subject رياضيات --lesson التفاضل --solved --hours 2
  rafeeq analyze "راجعت الكيمياء" --schedule week.json --next-day الأحد
  echo "مذاكرة التاريخ" | rafeeq analyze -`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeGrade, "grade", "", "grade level (defaults to profile)")
	analyzeCmd.Flags().StringVar(&analyzeNextDay, "next-day", "", "day to plan for")
	analyzeCmd.Flags().StringVar(&analyzeSchedule, "schedule", "", "weekly schedule JSON file (day -> subjects)")
	analyzeCmd.Flags().StringVar(&analyzeSubject, "subject", "", "lesson subject")
	analyzeCmd.Flags().StringVar(&analyzeLesson, "lesson", "", "lesson title")
	analyzeCmd.Flags().BoolVar(&analyzeSolved, "solved", false, "lesson exercises were solved")
	analyzeCmd.Flags().Float64Var(&analyzeHours, "hours", 0, "hours spent on the lesson")
	analyzeCmd.Flags().BoolVar(&analyzeNoUI, "no-progress", false, "do not show the live stage display")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	reflection, err := readReflection(args[0])
	if err != nil {
		return err
	}
	req := orchestrator.Request{
		UserID:     userID,
		Reflection: reflection,
		NextDay:    analyzeNextDay,
		GradeLevel: analyzeGrade,
	}
	if analyzeSchedule != "" {
		req.Schedule, err = loadSchedule(analyzeSchedule)
		if err != nil {
			return err
		}
	}
	if analyzeSubject != "" || analyzeLesson != "" {
		if analyzeSubject == "" || analyzeLesson == "" {
			return fmt.Errorf("--subject and --lesson must be given together")
		}
		if analyzeHours < 0 {
			return fmt.Errorf("--hours must not be negative")
		}
		req.Lesson = &models.LessonContext{
			Subject: analyzeSubject,
			Lesson:  analyzeLesson,
			Solved:  analyzeSolved,
			Hours:   analyzeHours,
		}
	}

	var res service.AnalyzeResult
	if asJSON || analyzeNoUI || !term.IsTerminal(int(os.Stdout.Fd())) {
		res, err = journal.Analyze(ctx, req)
	} else {
		var st service.ProviderStatus
		if st, err = journal.Providers(ctx); err != nil {
			return fmt.Errorf("provider chain: %w", err)
		}
		res, err = runWithProgress(ctx, st.Stages, func(ctx context.Context, obs orchestrator.Observer) (service.AnalyzeResult, error) {
			return journal.Analyze(ctx, req, obs)
		})
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, res)
	}
	fmt.Fprintln(out, renderRecord(defaultTheme, res.Record))
	fmt.Fprintln(out, renderEngagement(defaultTheme, res.Engagement))
	return nil
}

// readReflection returns arg, or stdin when arg is "-".
func readReflection(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func loadSchedule(path string) (models.WeeklySchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var s models.WeeklySchedule
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return s, nil
}
