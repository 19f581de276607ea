package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mm-swarm/internal/config"
	"mm-swarm/internal/logger"
)

var (
	configFile string
	debugMode  bool
)

var RootCmd = &cobra.Command{
	Use:   "mm-swarm",
	Short: "Run several MagicMirror instances side by side",
	Long: `mm-swarm generates the compose file of a MagicMirror fleet and,
inside every container, prepares the instance and supervises its processes`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Init(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Load config %q failed: %v\n", configFile, err)
			os.Exit(1)
		}
		logger.InitLogger(&config.Config.Log, debugMode)
	},
}

// Debug reports whether --debug was given.
func Debug() bool {
	return debugMode
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (default ./mm-swarm.yaml or /etc/mm-swarm/mm-swarm.yaml)")
	RootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}
