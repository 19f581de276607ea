package registry

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"mm-swarm/cmd/root"
	"mm-swarm/internal/config"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/reconcile"
	"mm-swarm/services"
)

var (
	mmPath   string
	mmpmPath string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Register local modules missing from the MMPM package databases",
	Run: func(cmd *cobra.Command, args []string) {
		layout := reconcile.NewLayout(config.Config.Paths)
		modulesDir := layout.MMModules
		externalFile := layout.ExternalPackagesFile
		thirdPartyFile := layout.ThirdPartyPackagesFile
		if mmPath != "" {
			modulesDir = filepath.Join(mmPath, "modules")
		}
		if mmpmPath != "" {
			externalFile = filepath.Join(mmpmPath, filepath.Base(layout.ExternalPackagesFile))
			thirdPartyFile = filepath.Join(mmpmPath, filepath.Base(layout.ThirdPartyPackagesFile))
		}

		result, err := reconcile.RefreshRegistry(modulesDir, externalFile, thirdPartyFile)
		if err != nil {
			logger.Fatalf("Refresh registry failed: %v", err)
		}
		services.RecordRegisteredPackages(len(result.Registered))
		for _, rec := range result.Registered {
			logger.Infof("Registered %s (%s)", rec.Title, rec.Repository)
		}
		logger.Infof("%d known package(s), %d registered", result.Known, len(result.Registered))
	},
}

func init() {
	registryCmd.Flags().StringVar(&mmPath, "mm-path", "", "MagicMirror folder, its modules subfolder is scanned")
	registryCmd.Flags().StringVar(&mmpmPath, "mmpm-path", "", "MMPM configuration folder holding the package databases")
	root.RootCmd.AddCommand(registryCmd)
}
