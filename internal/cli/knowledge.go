package cli

import (
	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/knowledge"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/tools"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "knowledge <interest-area> [sub-area]",
		Short: "Show the static knowledge blocks for an interest area",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runKnowledge,
	})
}

func runKnowledge(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	loader, err := knowledge.NewLoader(cfg.KnowledgeDir, knowledge.WithLogger(newLogger()))
	if err != nil {
		exitErr("open knowledge", err)
	}
	defer loader.Close()

	sub := ""
	if len(args) == 2 {
		sub = args[1]
	}
	printJSON(map[string]any{
		"key":       knowledge.NormalizeKey(args[0]),
		"cache_key": tools.CacheKey(args[0], sub),
		"blocks":    loader.LoadArea(args[0], sub),
	})
}
