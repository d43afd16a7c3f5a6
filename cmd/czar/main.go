// Command czar is the qserv czar process: it loads configuration, wires
// together the CSS client, the result database connection, and the
// dispatcher, and exposes §6's core operations over a minimal CLI for
// local/manual use.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/provingground-moe/qserv-sub000/internal/config"
)

var (
	cfgPath    string
	jsonLog    bool
	verboseLog bool
)

var rootCmd = &cobra.Command{
	Use:   "czar",
	Short: "Qserv distributed query coordinator",
	Long: `czar accepts a user SQL query, plans it into worker-side chunk
queries and a czar-side merge query, dispatches the chunk queries to
workers, and merges their responses into a result table.

Examples:
  czar run --config czar.toml --db LSST "SELECT objectId FROM Object LIMIT 10"
  czar config example > czar.toml`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a czar.toml configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "emit structured JSON logs instead of text")
	rootCmd.PersistentFlags().BoolVar(&verboseLog, "verbose", false, "enable debug-level logging")
	rootCmd.AddCommand(runCmd, configCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logLevel() logrus.Level {
	if verboseLog {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}
