package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mgdispatch/app"
	"github.com/kilianp07/mgdispatch/core/dispatch"
	"github.com/kilianp07/mgdispatch/qa/scenarios"
)

var checkExpected bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <scenario.yaml>",
	Short: "Replay a scenario file through the dispatcher and print the state vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().BoolVar(&checkExpected, "check", false, "compare results with the scenario expectations")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := scenarios.Load(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sc.ConflictPolicy != "" {
		cfg.Dispatch.ConflictPolicy = dispatch.ConflictPolicy(sc.ConflictPolicy)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	steps, err := scenarios.Run(ctx, sc, svc.Manager)
	printSteps(cmd.OutOrStdout(), steps)
	if err != nil {
		return err
	}
	if !checkExpected {
		return nil
	}
	tol := cfg.Dispatch.Tolerance
	if sc.Tolerance > 0 {
		tol = sc.Tolerance
	}
	if errs := scenarios.Check(sc, steps, tol); len(errs) > 0 {
		return fmt.Errorf("scenario %s: %w", sc.Name, errors.Join(errs...))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scenario %s: all expectations met\n", sc.Name)
	return nil
}

func printSteps(out io.Writer, steps []dispatch.StepResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, s := range steps {
		fmt.Fprintf(w, "step %d\trun %s\t%s\n", i, s.RunID, s.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		for _, st := range s.Result.States {
			fmt.Fprintf(w, "\t%s\t%.3f\n", st.Label, st.Power)
		}
		for _, warn := range s.Result.Warnings {
			fmt.Fprintf(w, "\twarning\t%s\n", warn)
		}
		if len(s.Result.Unserved) > 0 {
			fmt.Fprintf(w, "\tunserved\t%v\n", s.Result.Unserved)
		}
	}
	_ = w.Flush()
}
