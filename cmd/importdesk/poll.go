package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kadrsp/importdesk"
	"github.com/kadrsp/importdesk/internal/render"
	"github.com/spf13/cobra"
)

// pollCmd waits for imported teachers without uploading anything.
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Wait for imported teachers",
	Long: `Poll the backend until imported teachers appear or the attempt budget
runs out, then print them sorted by name.

Example:
  importdesk poll -c config.yaml`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = pollCmd.MarkFlagRequired("config")
}

func runPoll(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	desk, _, err := loadDesk(cmd, newLogger(), printBanners(out))
	if err != nil {
		return err
	}
	defer desk.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := desk.PollTeachers(ctx)
	switch res.Outcome {
	case importdesk.PollSucceeded:
	case importdesk.PollCanceled:
		return ctx.Err()
	default:
		return fmt.Errorf("teachers did not appear after %d attempts", len(res.Attempts))
	}

	for _, t := range desk.Teachers() {
		row := render.Row(t)
		fmt.Fprintf(out, "%s\t%s\n", row[0], row[1])
	}
	return nil
}
