package cmd

import (
	"os"
	"os/user"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/widen/internal/topics"
	"github.com/abhisek/widen/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive tutoring session in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")

		// The TUI owns the terminal, so keep log output away from it.
		logger := newLogger("error")

		// An explicit topic short-circuits the store-backed source.
		var source topics.Source
		if topic != "" {
			source = topics.NewStaticSource(topic, "")
		}

		d, err := buildDeps(cmd, source, prometheus.NewRegistry(), logger)
		if err != nil {
			return err
		}
		defer d.store.Close()

		return tui.Run(d.engine, topic, localUserID())
	},
}

func init() {
	chatCmd.Flags().String("topic", "", "Topic to discuss (defaults to the topic of the day)")
}

func localUserID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "local"
}
