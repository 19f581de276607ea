package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"strings"

	"github.com/gitsight/go-vcsurl"
	"github.com/go-git/go-git/v6"
)

var (
	ErrNoOrigin = errors.New("repository has no origin remote")

	scpLikeURL = regexp.MustCompile(`^([\w.-]+@)?([^:/]+):([^/]+)/(.+)$`)
)

// CommandRunner runs external tools such as git and npm.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		err = fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return stdout.String(), stderr.String(), err
}

// IsRepository reports whether dir is the root of a git working copy.
func IsRepository(dir string) bool {
	_, err := git.PlainOpen(dir)
	return err == nil
}

// OriginURL returns the first URL of the origin remote of the working copy at dir.
func OriginURL(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", err
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoOrigin, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || strings.TrimSpace(urls[0]) == "" {
		return "", ErrNoOrigin
	}
	return strings.TrimSpace(urls[0]), nil
}

/**
 * Normalize a repository reference to a browsable https URL
 * @param {string} raw - package.json repository or git remote URL
 * @returns {string} https://host/owner/name, empty for empty input
 * @description
 * - Known hosts go through vcsurl
 * - Other scp-like or git+ URLs are rewritten to https and lose their .git suffix
 */
func BrowseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if v, err := vcsurl.Parse(raw); err == nil && v.ID != "" {
		return "https://" + v.ID
	}
	u := strings.TrimPrefix(raw, "git+")
	switch {
	case strings.Contains(u, "://"):
		if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
			u = "https://" + parsed.Hostname() + parsed.Path
		}
	case scpLikeURL.MatchString(u):
		u = scpLikeURL.ReplaceAllString(u, "https://$2/$3/$4")
	}
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, ".git")
}

// Git wraps the git commands used on module working copies.
type Git struct {
	Runner CommandRunner
}

// Clean discards local modifications.
func (g Git) Clean(ctx context.Context, dir string) error {
	_, _, err := g.Runner.Run(ctx, dir, "git", "checkout", ".")
	return err
}

// Pull fetches and merges the upstream branch.
func (g Git) Pull(ctx context.Context, dir string) error {
	_, _, err := g.Runner.Run(ctx, dir, "git", "pull", "--force")
	return err
}
