package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mgdispatch/core/dispatch/logging"
	"github.com/kilianp07/mgdispatch/pkg/export"
)

var (
	logsRunID  string
	logsActor  string
	logsSince  time.Duration
	logsLimit  int
	logsFormat string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Query the dispatch log store",
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsRunID, "run", "", "only the run with this id")
	logsCmd.Flags().StringVar(&logsActor, "actor", "", "only runs involving this actor")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "only runs newer than this duration")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 0, "maximum number of records")
	logsCmd.Flags().StringVar(&logsFormat, "format", "jsonl", "output format: jsonl or csv")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Logging.Backend == "none" {
		return fmt.Errorf("no log store configured")
	}
	store, err := logging.NewLogStore(cfg.Logging.Module())
	if err != nil {
		return err
	}
	defer store.Close()

	q := logging.LogQuery{RunID: logsRunID, ActorLabel: logsActor, Limit: logsLimit}
	if logsSince > 0 {
		q.Start = time.Now().Add(-logsSince)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), export.Format(logsFormat), recs)
}
