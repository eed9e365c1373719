package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/sentiment"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sentiment tallies and the unresolved triage queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.SentimentCounts(ctx)
		if err != nil {
			return err
		}
		totals, err := st.TrendTotals(ctx)
		if err != nil {
			return err
		}
		unresolved, err := st.ListUnresolved(ctx)
		if err != nil {
			return err
		}

		formatStatus(cmd.OutOrStdout(), counts, totals, unresolved)
		return nil
	},
}

func formatStatus(w io.Writer, counts *model.SentimentCounts, totals *model.TrendTotals, unresolved []model.FeedbackRecord) {
	combined := counts.Combined()
	ratio := sentiment.Ratio(combined.Good, combined.Total())

	fmt.Fprintf(w, "SENTIMENT  good %d  neutral %d  bad %d  (ratio %.2f)\n",
		combined.Good, combined.Neutral, combined.Bad, ratio)
	fmt.Fprintf(w, "  surveys  good %d  neutral %d  bad %d\n",
		counts.Survey.Good, counts.Survey.Neutral, counts.Survey.Bad)
	fmt.Fprintf(w, "  social   good %d  neutral %d  bad %d\n",
		counts.Social.Good, counts.Social.Neutral, counts.Social.Bad)
	fmt.Fprintf(w, "TRENDS     positive %d  negative %d\n", totals.Positive, totals.Negative)

	if len(unresolved) == 0 {
		fmt.Fprintln(w, "TRIAGE     empty")
		return
	}

	fmt.Fprintf(w, "TRIAGE     %d unresolved\n", len(unresolved))
	for _, rec := range unresolved {
		label := "unclassified"
		if rec.Sentiment != nil {
			label = string(*rec.Sentiment)
		}
		text := rec.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		text = strings.ReplaceAll(text, "\n", " ")
		fmt.Fprintf(w, "  [%s/%s] %s  %s\n", rec.Source, label, rec.CreatedAt.Format("2006-01-02 15:04"), text)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
