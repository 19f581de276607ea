package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"golang.org/x/sync/errgroup"

	"mm-swarm/internal/logger"
	"mm-swarm/internal/utils"
)

var ErrModulesWaitTimeout = errors.New("timed out waiting for modules")

// staleModules are replaced by fresh copies of the image defaults on every sync.
var staleModules = []string{"mmpm", "default", "MMM-RefreshClientOnly"}

/**
 * ModuleSync materializes the shared modules folder
 * @property {string} ModulesDir - MagicMirror modules folder shared by every instance
 * @property {string} DefaultsDir - Pristine modules shipped in the image
 * @property {int} UID - Owner applied to the folder, -1 keeps it
 * @property {int} GID - Group applied to the folder, -1 keeps it
 * @property {int} Concurrency - Modules refreshed in parallel
 * @property {CommandRunner} Runner - Runs git and npm
 */
type ModuleSync struct {
	ModulesDir  string
	DefaultsDir string
	UID         int
	GID         int
	Concurrency int
	Runner      CommandRunner
}

/**
 * Replace bundled modules and refresh third-party ones
 * @param {context.Context} ctx - Cancels pending git and npm runs
 * @returns {error} Copy failure of the bundled modules; refresh failures are only logged
 */
func (s *ModuleSync) Sync(ctx context.Context) error {
	if err := os.MkdirAll(s.ModulesDir, 0o755); err != nil {
		return err
	}
	if err := utils.ChownTree(s.ModulesDir, s.UID, s.GID); err != nil {
		logger.Warnf("chown %s: %v", s.ModulesDir, err)
	}
	for _, name := range staleModules {
		if err := os.RemoveAll(filepath.Join(s.ModulesDir, name)); err != nil {
			logger.Warnf("Cannot remove %s: %v", name, err)
		}
	}

	logger.Info("Copying default modules")
	defaults, err := listDirs(s.DefaultsDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, name := range defaults {
		logger.Infof("► %s", name)
		dst := filepath.Join(s.ModulesDir, name)
		if err := utils.CopyFolder(filepath.Join(s.DefaultsDir, name), dst); err != nil {
			return fmt.Errorf("copy default module %s: %w", name, err)
		}
	}

	logger.Info("Initializing modules")
	if err := s.RefreshAll(ctx); err != nil {
		logger.Warnf("Some modules could not be refreshed:\n%v", err)
	}
	if err := utils.ChownTree(s.ModulesDir, s.UID, s.GID); err != nil {
		logger.Warnf("chown %s: %v", s.ModulesDir, err)
	}
	logger.Info("Modules ready")
	return nil
}

/**
 * Refresh every third-party module concurrently
 * @param {context.Context} ctx - Cancels pending runs
 * @returns {error} Aggregated per-module failures, nil when all succeeded
 * @description
 * - Every module is attempted, one failure does not cancel the others
 */
func (s *ModuleSync) RefreshAll(ctx context.Context) error {
	names, err := listDirs(s.ModulesDir)
	if err != nil {
		return err
	}
	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, name := range names {
		if bundledModules[name] {
			continue
		}
		g.Go(func() error {
			if err := s.refresh(gctx, name); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result.ErrorOrNil()
}

func (s *ModuleSync) refresh(ctx context.Context, name string) error {
	dir := filepath.Join(s.ModulesDir, name)
	var result *multierror.Error
	before := ReadModuleRecord(dir).Version

	if IsRepository(dir) {
		logger.Infof("► %s: updating repository", name)
		git := Git{Runner: s.Runner}
		if err := git.Clean(ctx, dir); err != nil {
			result = multierror.Append(result, err)
		}
		if err := git.Pull(ctx, dir); err != nil {
			result = multierror.Append(result, err)
		}
		if after := ReadModuleRecord(dir).Version; after != before {
			logger.Infof("► %s: %s", name, describeVersionChange(before, after))
		}
	}
	if utils.IsFile(filepath.Join(dir, "package.json")) {
		logger.Infof("► %s: installing dependencies", name)
		if _, _, err := s.Runner.Run(ctx, dir, "npm", "install", "--no-audit", "--no-fund", "--prefix", dir); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func describeVersionChange(before, after string) string {
	vb, errB := version.NewVersion(before)
	va, errA := version.NewVersion(after)
	switch {
	case errB != nil || errA != nil:
		return fmt.Sprintf("version set to %s", after)
	case va.GreaterThan(vb):
		return fmt.Sprintf("upgraded from %s to %s", vb, va)
	case va.LessThan(vb):
		return fmt.Sprintf("downgraded from %s to %s", vb, va)
	default:
		return fmt.Sprintf("version set to %s", after)
	}
}

/**
 * Block until the modules marker exists
 * @param {context.Context} ctx - Cancels the wait
 * @param {string} marker - Marker file written by the syncing instance
 * @param {time.Duration} interval - Poll period
 * @param {time.Duration} timeout - Upper bound, 0 waits until ctx is done
 * @returns {error} ctx error or ErrModulesWaitTimeout
 */
func WaitForMarker(ctx context.Context, marker string, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if utils.FileExists(marker) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && timeout > 0 {
				return fmt.Errorf("%w: %s after %v", ErrModulesWaitTimeout, marker, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
