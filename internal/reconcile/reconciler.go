package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mm-swarm/internal/config"
	"mm-swarm/internal/document"
	"mm-swarm/internal/env"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/utils"
)

/**
 * Reconciler prepares one instance container before its processes start
 * @property {*env.Environment} Env - Validated instance environment
 * @property {Layout} Layout - Container paths
 * @property {config.ModulesConfig} Modules - Marker polling and refresh settings
 * @property {config.OwnerConfig} Owner - Ownership of copied trees
 * @property {CommandRunner} Runner - Runs git and npm, ExecRunner when nil
 */
type Reconciler struct {
	Env     *env.Environment
	Layout  Layout
	Modules config.ModulesConfig
	Owner   config.OwnerConfig
	Runner  CommandRunner
}

// Report summarizes one reconciliation.
type Report struct {
	FirstInstance bool
	Rewritten     []string
	SyncedModules bool
	Registry      *RegistryResult
}

func NewReconciler(e *env.Environment, cfg *config.AppConfig) *Reconciler {
	return &Reconciler{
		Env:     e,
		Layout:  NewLayout(cfg.Paths),
		Modules: cfg.Modules,
		Owner:   cfg.Owner,
		Runner:  ExecRunner{},
	}
}

/**
 * Run every reconciliation stage in order
 * @param {context.Context} ctx - Cancels the settle delay, module refreshes and the marker wait
 * @returns {*Report} What was changed
 * @returns {error} First fatal stage failure
 * @description
 * - First instance: clears the markers, then syncs the shared modules folder
 * - Other instances: settle, then wait for the first instance's marker unless a re-sync was requested
 * - File rewrites and module refreshes never fail the run
 */
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	if r.Runner == nil {
		r.Runner = ExecRunner{}
	}
	e := r.Env
	logger.Infof("Setting environment for instance %s", e.Instance)
	for _, kv := range e.Summary() {
		logger.Infof("► %-11s : %s", kv[0], kv[1])
	}

	report := &Report{FirstInstance: e.FirstInstance()}
	if report.FirstInstance {
		removeMarker(r.Layout.UpdateFile)
		removeMarker(r.Layout.DoneFile)
	} else if err := sleepContext(ctx, r.Modules.SettleDelay); err != nil {
		return nil, err
	}

	report.Rewritten = r.RewriteSystemFiles()

	if err := r.ReconcileConfig(); err != nil {
		return nil, fmt.Errorf("reconcile MagicMirror config: %w", err)
	}

	synced, err := r.ReconcileModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile modules: %w", err)
	}
	report.SyncedModules = synced

	if err := r.ReconcileMMPMEnv(); err != nil {
		return nil, fmt.Errorf("reconcile MMPM environment: %w", err)
	}

	logger.Info("Fixing MMPM cache")
	reg, err := RefreshRegistry(r.Layout.MMModules, r.Layout.ExternalPackagesFile, r.Layout.ThirdPartyPackagesFile)
	if err != nil {
		return nil, fmt.Errorf("reconcile package cache: %w", err)
	}
	report.Registry = reg
	return report, nil
}

// RewriteSystemFiles replaces default ports and hosts in the scattered config files.
func (r *Reconciler) RewriteSystemFiles() []string {
	logger.Info("Fixing system files")
	l := r.Layout
	changed := RewriteFiles(l.rewriteRoots(), portTokens(r.Env.MMPort, r.Env.MMPMPort), hostTokens(r.Env.LocalIP), l.rewriteSkipper())
	if len(changed) == 0 {
		return nil
	}
	logger.Info("Fixed host and ports:")
	for _, f := range changed {
		logger.Infof("► %s", f)
	}
	if err := PatchConsoleStamp(l.ConsoleStampFile); err != nil {
		logger.Warnf("Cannot patch console-stamp: %v", err)
	}
	return changed
}

/**
 * Rebuild MagicMirror's config.js
 * @returns {error} Copy, evaluation or write failure
 * @description
 * - Restores the shipped config and css folders without deleting user files
 * - Creates config.js from the sample and an empty custom.css when missing
 */
func (r *Reconciler) ReconcileConfig() error {
	l := r.Layout
	logger.Info("Generating default config")
	if err := r.copyDefaults(l.DefaultConfig, l.MMConfig); err != nil {
		return err
	}
	if !utils.FileExists(l.ConfigFile) && utils.IsFile(l.SampleConfigFile) {
		if err := utils.CopyFile(l.SampleConfigFile, l.ConfigFile); err != nil {
			return err
		}
	}

	logger.Info("Generating default styles")
	if err := r.copyDefaults(l.DefaultCSS, l.MMCSS); err != nil {
		return err
	}
	if !utils.FileExists(l.CustomCSSFile) {
		if err := os.WriteFile(l.CustomCSSFile, nil, 0o644); err != nil {
			return err
		}
	}

	logger.Info("Fixing MagicMirror config")
	actual, err := LoadCurrentConfig(l.ConfigFile, l.SampleConfigFile)
	if err != nil {
		return err
	}
	desired := DesiredConfig(EnforcedConfig(r.Env), BaseConfig(), actual)
	text, err := RenderConfigJS(desired, r.Env.Summary())
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.ConfigFile, []byte(text), 0o644); err != nil {
		return err
	}
	logger.Infof("Stored config for %s", l.ConfigFile)
	return nil
}

/**
 * Sync the shared modules folder or wait for the instance that does
 * @param {context.Context} ctx - Cancels refreshes and the wait
 * @returns {bool} True when this instance performed the sync
 * @description
 * - .done is written by the first instance only, a re-sync requested through .update leaves it alone
 * @returns {error} Copy failure, cancellation or ErrModulesWaitTimeout
 */
func (r *Reconciler) ReconcileModules(ctx context.Context) (bool, error) {
	l := r.Layout
	resync := utils.FileExists(l.UpdateFile)
	if !r.Env.FirstInstance() && !resync {
		logger.Info("Waiting modules")
		if err := WaitForMarker(ctx, l.DoneFile, r.Modules.PollInterval, r.Modules.WaitTimeout); err != nil {
			return false, err
		}
		logger.Info("Modules ready")
		return false, nil
	}

	removeMarker(l.UpdateFile)
	sync := &ModuleSync{
		ModulesDir:  l.MMModules,
		DefaultsDir: l.DefaultModules,
		UID:         r.Owner.UID,
		GID:         r.Owner.GID,
		Concurrency: r.Modules.Concurrency,
		Runner:      r.Runner,
	}
	if err := sync.Sync(ctx); err != nil {
		return true, err
	}
	// only the first instance releases the waiting ones
	if r.Env.FirstInstance() {
		if err := os.WriteFile(l.DoneFile, nil, 0o644); err != nil {
			return true, err
		}
	}
	return true, nil
}

// MMPMEnv builds mmpm-env.json in its documented key order.
func (r *Reconciler) MMPMEnv() *document.Node {
	e := r.Env
	return document.Mapping().
		Set("INSTANCE", document.Scalar(e.Instance)).
		Set("MMPM_MAGICMIRROR_ROOT", document.Scalar(r.Layout.MM)).
		Set("MMPM_MAGICMIRROR_URI", document.Scalar(fmt.Sprintf("http://%s:%d", e.LocalIP, e.MMPort))).
		Set("MMPM_MAGICMIRROR_PM2_PROCESS_NAME", document.Scalar("MagicMirror")).
		Set("MMPM_MAGICMIRROR_DOCKER_COMPOSE_FILE", document.Scalar("")).
		Set("MMPM_IS_DOCKER_IMAGE", document.Scalar(false))
}

// ReconcileMMPMEnv restores MMPM defaults and writes its environment file.
func (r *Reconciler) ReconcileMMPMEnv() error {
	l := r.Layout
	logger.Info("Copying MMPM defaults")
	if err := r.copyDefaults(l.DefaultMMPM, l.MMPMConfig); err != nil {
		return err
	}
	if !utils.FileExists(l.MMPMLogFile) {
		if err := os.MkdirAll(filepath.Dir(l.MMPMLogFile), 0o755); err != nil {
			return err
		}
		if err := os.Symlink(os.DevNull, l.MMPMLogFile); err != nil {
			return err
		}
	}

	envNode := r.MMPMEnv()
	var lines []string
	for _, k := range envNode.Keys() {
		v, _ := envNode.Get(k)
		lines = append(lines, fmt.Sprintf("  - %s: %v", k, v.Value()))
	}
	logger.Infof("Fixing MMPM environment:\n%s", strings.Join(lines, "\n"))

	data, err := envNode.PrettyJSON("  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.MMPMEnvFile, []byte(strings.TrimRight(string(data), "\n")), 0o644); err != nil {
		return err
	}
	logger.Infof("Stored config for %s", l.MMPMEnvFile)
	return nil
}

// copyDefaults copies a shipped folder when present and hands it to the configured owner.
func (r *Reconciler) copyDefaults(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	if !utils.IsDir(src) {
		logger.Debugf("No defaults in %s", src)
		return nil
	}
	if err := utils.CopyFolder(src, dst); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := utils.ChownTree(dst, r.Owner.UID, r.Owner.GID); err != nil {
		logger.Warnf("chown %s: %v", dst, err)
	}
	return nil
}

func removeMarker(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Cannot remove %s: %v", path, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
