package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one auto-resume pass and print its summary",
	Long: `Lift every collection pause whose window has ended.

Use it from an external scheduler instead of the in-process job. A run that
overlaps another one exits with an error. Failed subscriptions are reported
in the summary and retried by the next run.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer a.close()

	reconciler, err := a.reconciler()
	if err != nil {
		return err
	}

	var run autoResumeRun
	sched, err := a.autoResumeScheduler(log, reconciler, &run)
	if err != nil {
		return err
	}
	if err := sched.RunOnce(ctx, autoResumeJob); err != nil {
		return err
	}
	if !run.ran {
		return errors.New("auto-resume is running elsewhere, try again later")
	}
	summary := run.summary

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d subscriptions failed to resume", summary.Failed, summary.Checked)
	}
	return nil
}
