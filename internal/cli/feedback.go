package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/service"
	"github.com/spf13/cobra"
)

var (
	feedbackTags     []string
	feedbackLike     bool
	feedbackDislike  bool
	feedbackCategory string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <type> [summary]",
	Short: "Record an interaction and earn XP",
	Long: `Record a non-analysis interaction or a reaction to generated content.

Types: quote, voice_recap, focus_session, schedule_task

Examples:
  rafeeq feedback focus_session "25 دقيقة رياضيات"
  rafeeq feedback quote "حكمة اليوم" --like --category religious
  rafeeq feedback schedule_task "حل تمارين" --tags math,practice`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringSliceVarP(&feedbackTags, "tags", "t", nil, "tags for the interaction")
	feedbackCmd.Flags().BoolVar(&feedbackLike, "like", false, "mark the content as liked")
	feedbackCmd.Flags().BoolVar(&feedbackDislike, "dislike", false, "mark the content as disliked")
	feedbackCmd.Flags().StringVar(&feedbackCategory, "category", "", "quote category (religious, scientific, philosophical, wisdom)")
	feedbackCmd.MarkFlagsMutuallyExclusive("like", "dislike")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	req := service.FeedbackRequest{
		UserID:   userID,
		Type:     models.InteractionType(args[0]),
		Summary:  strings.Join(args[1:], " "),
		Tags:     feedbackTags,
		Category: feedbackCategory,
	}
	switch {
	case feedbackLike:
		req.Feedback = models.FeedbackLike
	case feedbackDislike:
		req.Feedback = models.FeedbackDislike
	}

	res, err := journal.Feedback(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, res)
	}
	fmt.Fprintln(out, renderEngagement(defaultTheme, res))
	return nil
}
