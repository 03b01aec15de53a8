package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/spf13/cobra"
)

var (
	profileGrade    string
	profileSchedule string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your profile, stats and schedule",
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update grade level or weekly schedule",
	Long: `Update grade level or weekly schedule.

Examples:
  rafeeq profile set --grade "الثالث الثانوي"
  rafeeq profile set --schedule week.json`,
	RunE: runProfileSet,
}

func init() {
	profileSetCmd.Flags().StringVar(&profileGrade, "grade", "", "grade level")
	profileSetCmd.Flags().StringVar(&profileSchedule, "schedule", "", "weekly schedule JSON file")
	profileCmd.AddCommand(profileSetCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	p, err := journal.Profile(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, p)
	}
	fmt.Fprint(out, renderProfile(defaultTheme, p))
	return nil
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	if profileGrade == "" && profileSchedule == "" {
		return fmt.Errorf("nothing to update: pass --grade or --schedule")
	}
	var schedule models.WeeklySchedule
	if profileSchedule != "" {
		var err error
		if schedule, err = loadSchedule(profileSchedule); err != nil {
			return err
		}
	}
	p, err := journal.UpdateSettings(cmd.Context(), userID, profileGrade, schedule)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, p)
	}
	fmt.Fprint(out, renderProfile(defaultTheme, p))
	return nil
}

func renderProfile(t Theme, p models.UserProfile) string {
	var b strings.Builder
	grade := p.GradeLevel
	if grade == "" {
		grade = "(not set)"
	}
	fmt.Fprintf(&b, "%s  %s\n", t.titleStyle().Render(p.UserID), t.statusStyle().Render(grade))
	fmt.Fprintf(&b, "  Level %d · %d XP · streak %d · %d entries\n",
		p.Stats.Level, p.Stats.XP, p.Stats.Streak, p.Stats.TotalEntries)

	in := p.Interests
	fmt.Fprintf(&b, "  religious %.1f · scientific %.1f · philosophical %.1f · practical %.1f · emotional %.1f\n",
		in.Religious, in.Scientific, in.Philosophical, in.Practical, in.Emotional)

	if len(p.Schedule) > 0 {
		b.WriteString(t.titleStyle().Render("Schedule") + "\n")
		for _, day := range models.DaysOfWeek {
			if subjects := p.Schedule[day]; len(subjects) > 0 {
				fmt.Fprintf(&b, "  %s: %s\n", day, strings.Join(subjects, "، "))
			}
		}
	}
	return b.String()
}
