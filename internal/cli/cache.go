package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the tool and discovery cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show entries and hits per cache namespace",
		Run:   runCacheStats,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired cache entries",
		Run:   runCachePurge,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "rm <key>",
		Short: "Delete one cache entry",
		Args:  cobra.ExactArgs(1),
		Run:   runCacheRm,
	})

	RootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}

func runCachePurge(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.PurgeExpired(cmd.Context())
	if err != nil {
		exitErr("purge", err)
	}
	printJSON(map[string]any{"purged": n})
}

func runCacheRm(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.DeleteEntry(cmd.Context(), args[0]); err != nil {
		exitErr("delete", err)
	}
	printJSON(map[string]any{"deleted": args[0]})
}
