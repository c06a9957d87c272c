package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	runsUser  string
	runsLimit int
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded discovery runs for a user",
		Run:   runListRuns,
	}
	runsCmd.Flags().StringVarP(&runsUser, "user", "u", "cli", "User ID")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list")

	runsCmd.AddCommand(&cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one run with its inputs and outputs",
		Args:  cobra.ExactArgs(1),
		Run:   runGetRun,
	})

	RootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context(), runsUser, runsLimit)
	if err != nil {
		exitErr("list runs", err)
	}

	type summary struct {
		RunID     string `json:"run_id"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]summary, 0, len(runs))
	for _, r := range runs {
		out = append(out, summary{RunID: r.RunID, CreatedAt: r.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	printJSON(out)
}

func runGetRun(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := s.GetRun(cmd.Context(), args[0])
	if err != nil {
		exitErr("get run", err)
	}
	printJSON(map[string]any{
		"run_id":     rec.RunID,
		"user_id":    rec.UserID,
		"inputs":     json.RawMessage(rec.Inputs),
		"outputs":    json.RawMessage(rec.Outputs),
		"created_at": rec.CreatedAt,
	})
}
