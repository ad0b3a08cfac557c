package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/widen/internal/store"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage the topic of the day",
}

var topicSetCmd = &cobra.Command{
	Use:   "set <title>",
	Short: "Set the topic new sessions will discuss",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args, " "))
		if title == "" {
			return fmt.Errorf("topic title cannot be empty")
		}
		background, _ := cmd.Flags().GetString("context")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.SetDailyTopic(cmd.Context(), title, background, time.Now()); err != nil {
			return err
		}
		fmt.Println("Topic set:", title)
		return nil
	},
}

var topicShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := s.LatestDailyTopic(cmd.Context())
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("No topic configured.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(t.Topic)
		if t.Context != "" {
			fmt.Println()
			fmt.Println(t.Context)
		}
		return nil
	},
}

func init() {
	topicSetCmd.Flags().String("context", "", "Background material questions are grounded in")
	topicCmd.AddCommand(topicSetCmd)
	topicCmd.AddCommand(topicShowCmd)
}
