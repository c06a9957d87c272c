package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/app"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/discovery"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

var (
	profileFlag string
	streamFlag  bool
	bypassFlag  bool
	userFlag    string
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run discovery for a profile JSON file (use - for stdin)",
		Run:   runGenerate,
	}
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "-", "Profile JSON file, or - for stdin")
	cmd.Flags().BoolVarP(&streamFlag, "stream", "s", false, "Print the final stage as it is generated")
	cmd.Flags().BoolVar(&bypassFlag, "bypass", false, "Skip the discovery cache")
	cmd.Flags().StringVarP(&userFlag, "user", "u", "cli", "User ID recorded with the run")

	RootCmd.AddCommand(cmd)
}

func readProfile(path string) (models.Profile, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Profile{}, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Profile{}, fmt.Errorf("%w: %v", models.ErrInvalidProfile, err)
	}
	return models.ParseProfile(raw)
}

func runGenerate(cmd *cobra.Command, args []string) {
	profile, err := readProfile(profileFlag)
	if err != nil {
		exitErr("read profile", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	svc, err := app.New(cmd.Context(), cfg, newLogger())
	if err != nil {
		exitErr("start", err)
	}
	defer svc.Close()

	opts := discovery.Options{RunID: uuid.NewString(), UserID: userFlag, CacheBypass: bypassFlag}

	var res *discovery.Result
	if streamFlag {
		res, err = svc.Pipeline.Stream(cmd.Context(), profile, opts, func(c discovery.Chunk) error {
			if c.Kind == discovery.ChunkDelta {
				fmt.Fprint(os.Stderr, c.Text)
			}
			return nil
		})
		fmt.Fprintln(os.Stderr)
	} else {
		res, err = svc.Pipeline.Run(cmd.Context(), profile, opts)
	}
	if err != nil {
		exitErr(string(discovery.KindOf(err)), fmt.Errorf("%s", discovery.UserMessage(err)))
	}

	printJSON(map[string]any{
		"run_id":              res.RunID,
		"outputs":             res.Outputs,
		"performance_metrics": res.Metrics,
	})
}
