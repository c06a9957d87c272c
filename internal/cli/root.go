// Package cli implements the discovery command-line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/config"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/store"
)

var (
	dbPath       string
	knowledgeDir string
	verbose      bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "discovery",
	Short:         "Startup idea discovery from a founder profile",
	Long:          "Runs the discovery pipeline locally and manages its SQLite cache and run history.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $DISCOVERY_DB_PATH or data/discovery.db)")
	RootCmd.PersistentFlags().StringVar(&knowledgeDir, "knowledge", "", "Static knowledge directory (default: $DISCOVERY_KNOWLEDGE_DIR or knowledge)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at debug level")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if knowledgeDir != "" {
		cfg.KnowledgeDir = knowledgeDir
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := logging.New("development")
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func openStore() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.DBPath)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
