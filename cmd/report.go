package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/widen/internal/report"
	"github.com/abhisek/widen/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Print the feedback report for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		rep, err := report.BySession(cmd.Context(), s, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no report for session %s", args[0])
		}
		if err != nil {
			return err
		}

		printReport(rep)
		return nil
	},
}

func printReport(rep *report.Report) {
	fmt.Printf("Topic: %s\n", rep.Topic)
	fmt.Printf("Reached level: %d\n", rep.Level)
	fmt.Printf("Generated: %s\n\n", rep.CreatedAt.Format("2006-01-02 15:04"))

	fmt.Println(rep.Summary)

	if len(rep.Strengths) > 0 {
		fmt.Println("\nStrengths")
		fmt.Println(strings.Repeat("-", 40))
		for _, it := range rep.Strengths {
			fmt.Printf("* %s\n  %s\n  e.g. %s\n", it.Title, it.Description, it.Example)
		}
	}

	if len(rep.Weaknesses) > 0 {
		fmt.Println("\nAreas to work on")
		fmt.Println(strings.Repeat("-", 40))
		for _, it := range rep.Weaknesses {
			fmt.Printf("* %s\n  %s\n  try: %s\n", it.Title, it.Description, it.Suggestion)
		}
	}

	if len(rep.Suggestions) > 0 {
		fmt.Println("\nWhere to go next")
		fmt.Println(strings.Repeat("-", 40))
		for _, it := range rep.Suggestions {
			fmt.Printf("* %s\n  %s\n", it.Title, it.Description)
			if it.Resources != "" {
				fmt.Printf("  read: %s\n", it.Resources)
			}
			for _, q := range it.Questions {
				fmt.Printf("  ? %s\n", q)
			}
		}
	}

	if rep.RevisedAnswer != "" {
		fmt.Println("\nAn answer to aim for")
		fmt.Println(strings.Repeat("-", 40))
		fmt.Println(rep.RevisedAnswer)
	}
}
