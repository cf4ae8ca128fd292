package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/client"
	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/workflow"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, workflow.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	lat, lon float64
	yes      bool
	verbose  bool
}

type session struct {
	orchestrator *workflow.Orchestrator
	aux          *workflow.AuxiliaryDispatcher
	out          io.Writer
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "attendctl",
		Short:         "Check in, check out and take breaks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().Float64Var(&flags.lat, "lat", 0, "current latitude")
	root.PersistentFlags().Float64Var(&flags.lon, "lon", 0, "current longitude")
	root.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "answer yes to every confirmation")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log workflow steps")

	root.AddCommand(
		newStatusCommand(&flags),
		newCheckInCommand(&flags),
		newCheckOutCommand(&flags),
		newBreakCommand(&flags),
	)
	return root
}

func newSession(cmd *cobra.Command, flags *globalFlags) (*session, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	api := client.New(cfg.APIURL, cfg.APIToken,
		client.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		client.WithRetries(cfg.ReadRetries, 200*time.Millisecond),
	)

	var locator workflow.Locator = workflow.FixedLocator{Err: workflow.ErrPositionUnavailable}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		locator = workflow.FixedLocator{Point: geo.Point{Latitude: flags.lat, Longitude: flags.lon}}
	}
	positions := workflow.NewPositionSource(locator, workflow.PositionOptions{
		FastTimeout:     cfg.GeoFastTimeout,
		AccurateTimeout: cfg.GeoAccurateTimeout,
		MaxAge:          cfg.GeoMaxAge,
	})

	confirm := workflow.NewTerminalConfirmer(cmd.InOrStdin(), cmd.OutOrStdout(), flags.yes)
	aux := workflow.NewAuxiliaryDispatcher(api, cfg.AuxTimeout)

	o := workflow.NewOrchestrator(api, positions, confirm, workflow.WithAuxiliary(aux))
	if _, err := o.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return &session{orchestrator: o, aux: aux, out: cmd.OutOrStdout()}, nil
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's attendance state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			printSnapshot(s.out, s.orchestrator.Store().Snapshot(), time.Now())
			return nil
		},
	}
}

func newCheckInCommand(flags *globalFlags) *cobra.Command {
	var notes, task string

	cmd := &cobra.Command{
		Use:   "check-in",
		Short: "Check in at the current position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.aux.Wait()

			res, err := s.orchestrator.CheckIn(cmd.Context(), workflow.Input{
				Notes:  optional(notes),
				TaskID: optional(task),
			})
			if err != nil {
				return err
			}
			switch res.Outcome {
			case workflow.OutcomeDeclined:
				fmt.Fprintln(s.out, "Check-in cancelled.")
			case workflow.OutcomeCompleted:
				fmt.Fprintf(s.out, "Checked in (%s, %s).\n", res.Snapshot.WorkMode, res.Snapshot.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "note stored with the record")
	cmd.Flags().StringVar(&task, "task", "", "task of the day to link")
	return cmd
}

func newCheckOutCommand(flags *globalFlags) *cobra.Command {
	var notes, task string

	cmd := &cobra.Command{
		Use:   "check-out",
		Short: "Close today's attendance session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.aux.Wait()

			res, err := s.orchestrator.CheckOut(cmd.Context(), workflow.Input{
				Notes:  optional(notes),
				TaskID: optional(task),
			})
			if err != nil {
				return err
			}
			switch res.Outcome {
			case workflow.OutcomeDeclined:
				fmt.Fprintln(s.out, "Check-out cancelled.")
			case workflow.OutcomeResynced:
				fmt.Fprintln(s.out, "Your session was already closed.")
				printSnapshot(s.out, res.Snapshot, time.Now())
			case workflow.OutcomeCompleted:
				fmt.Fprintln(s.out, "Checked out.")
				if res.ClosedBreak != nil {
					fmt.Fprintf(s.out, "Open break closed (%s).\n", res.ClosedBreak.Status)
				}
				if res.PartialDay {
					fmt.Fprintln(s.out, "Worked time is below the minimum session; the day is marked partial.")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "note stored with the record")
	cmd.Flags().StringVar(&task, "task", "", "task of the day to link")
	return cmd
}

func newBreakCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "break",
		Short: "Start or end a break",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start a break",
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newSession(cmd, flags)
				if err != nil {
					return err
				}
				b, err := s.orchestrator.Breaks().Start(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Break started at %s.\n", b.StartTime.Local().Format("15:04"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "end",
			Short: "End the current break",
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newSession(cmd, flags)
				if err != nil {
					return err
				}
				b, err := s.orchestrator.Breaks().End(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Break ended (%s).\n", b.Status)
				return nil
			},
		},
	)
	return cmd
}

func printSnapshot(w io.Writer, snap workflow.Snapshot, now time.Time) {
	fmt.Fprintf(w, "Date:     %s\n", snap.Date)
	fmt.Fprintf(w, "State:    %s\n", snap.State)
	if snap.RecordID == "" {
		return
	}
	fmt.Fprintf(w, "Mode:     %s\n", snap.WorkMode)
	fmt.Fprintf(w, "Status:   %s\n", snap.Status)
	if snap.CheckInTime != nil {
		fmt.Fprintf(w, "Since:    %s\n", snap.CheckInTime.Local().Format("15:04"))
	}
	if d := snap.CheckedInFor(now); d > 0 {
		fmt.Fprintf(w, "Elapsed:  %s\n", d.Truncate(time.Minute))
	}
	fmt.Fprintf(w, "Break:    %s\n", snap.BreakState)
	if snap.LimitArmed {
		fmt.Fprintln(w, "No further check-ins today.")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
