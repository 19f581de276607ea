package compose

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mm-swarm/cmd/root"
	"mm-swarm/internal/config"
	"mm-swarm/internal/discovery"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/topology"
)

var (
	bindIP     string
	template   string
	output     string
	checkPorts bool
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Generate the docker compose file of every instance",
	Long: `Scans the instances folder, assigns ports by ordinal and writes
one service per instance into the compose file`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runCompose(ctx); err != nil {
			logger.Fatalf("Generate compose file failed: %v", err)
		}
	},
}

func runCompose(ctx context.Context) error {
	cfg := config.Config.Compose
	if bindIP != "" {
		cfg.BindIP = bindIP
	}
	if template != "" {
		cfg.Template = template
	}
	if output != "" {
		cfg.Output = output
	}

	if cfg.BindIP == "" {
		candidate, err := discovery.BoundAddress()
		if err != nil {
			return err
		}
		logger.Infof("Using %s address %s", candidate.Interface, candidate.Address)
		cfg.BindIP = candidate.Address
	}

	g := &topology.Generator{
		InstancesDir:  cfg.InstancesDir,
		CacheDir:      cfg.CacheDir,
		ModulesDir:    cfg.ModulesDir,
		SharedDir:     cfg.SharedDir,
		Output:        cfg.Output,
		Template:      cfg.Template,
		BindIP:        cfg.BindIP,
		Order:         discovery.Order(cfg.Order),
		Image:         cfg.Image,
		Timezone:      cfg.Timezone,
		Debug:         root.Debug(),
		ContainerRoot: config.Config.Paths.Root,
		CheckPorts:    checkPorts,
	}
	result, err := g.Generate(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Wrote %d instance(s) to %s", len(result.Instances), result.Output)
	return nil
}

func init() {
	composeCmd.Flags().StringVar(&bindIP, "bind-ip", "", "LAN address to publish on, detected when empty")
	composeCmd.Flags().StringVar(&template, "template", "", "Instance template overriding the embedded one")
	composeCmd.Flags().StringVarP(&output, "output", "o", "", "Compose file to write")
	composeCmd.Flags().BoolVar(&checkPorts, "check-ports", false, "Warn about ports already in use")
	root.RootCmd.AddCommand(composeCmd)

	composeCmd.Example = `  mm-swarm compose
  mm-swarm compose --bind-ip 192.168.1.20 --check-ports`
}
