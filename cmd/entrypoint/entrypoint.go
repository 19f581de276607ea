package entrypoint

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"mm-swarm/cmd/root"
	"mm-swarm/controllers"
	"mm-swarm/internal/config"
	"mm-swarm/internal/env"
	"mm-swarm/internal/logbridge"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/proc"
	"mm-swarm/internal/reconcile"
	"mm-swarm/services"
)

var envFiles []string

var entrypointCmd = &cobra.Command{
	Use:   "entrypoint",
	Short: "Prepare this instance and supervise its processes",
	Long: `Runs inside every container: rewrites ports and hosts, merges the
MagicMirror configuration, syncs the shared modules, then starts MagicMirror,
MMPM and nginx and bridges their logs to stdout`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runEntrypoint())
	},
}

func runEntrypoint() int {
	if err := env.LoadFile(envFiles...); err != nil {
		logger.Errorf("Load env file failed: %v", err)
		return 1
	}
	e, err := env.Load(os.Getenv)
	if err != nil {
		logger.Errorf("Invalid environment: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config
	report, err := reconcile.NewReconciler(e, cfg).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Infof("Interrupted while reconciling")
			return 0
		}
		logger.Errorf("Reconcile instance %s failed: %v", e.Instance, err)
		return 1
	}
	services.RecordRewrittenFiles(len(report.Rewritten))
	if report.Registry != nil {
		services.RecordRegisteredPackages(len(report.Registry.Registered))
	}

	bridge := logbridge.New(os.Stdout, logbridge.ColorEnabled(cfg.Log.Color, os.Stdout))
	bridge.SetObserver(services.RecordBridgedLine)

	supervisor := proc.NewLocalSupervisor(cfg.Supervisor)
	supervisor.SetOnChanged(services.RecordProcessState)

	if cfg.Server.Address != "" {
		go serveStatus(ctx, supervisor, e.Instance, cfg.Server)
	}

	launcher := &services.Launcher{
		Supervisor:       supervisor,
		Bridge:           bridge,
		Apps:             services.DefaultApps(reconcile.NewLayout(cfg.Paths), e, cfg),
		MaxStartAttempts: cfg.Supervisor.MaxStartAttempts,
		StartRetryDelay:  cfg.Supervisor.StartRetryDelay,
	}
	if err := launcher.Run(ctx); err != nil {
		logger.Errorf("Supervision of %s ended: %v", e.Instance, err)
		return services.ExitCode(err)
	}
	logger.Infof("Instance %s stopped", e.Instance)
	return 0
}

// serveStatus runs the status API until ctx is done.
func serveStatus(ctx context.Context, sup proc.Supervisor, instance string, cfg config.ServerConfig) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: controllers.NewRouter(services.NewStatusServer(sup, instance, root.RootCmd.Version)),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Status server shutdown: %v", err)
		}
	}()

	logger.Infof("Status API listening on %s", cfg.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Status API stopped: %v", err)
	}
}

func init() {
	entrypointCmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file(s) loaded before reading the environment")
	root.RootCmd.AddCommand(entrypointCmd)

	entrypointCmd.Example = `  mm-swarm entrypoint
  mm-swarm entrypoint --env-file /root/.env`
}
