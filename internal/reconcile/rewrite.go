package reconcile

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-zglob"

	"mm-swarm/internal/logger"
)

var rewriteExtensions = []string{"conf", "ini", "json", "js", "txt"}

var consoleStampPattern = regexp.MustCompile(`(generateConfig\(\s*)([^\)]+)`)

const consoleStampConfig = `${1}{ ...options, format: ':label|:msg', pattern: ':label|:msg' }`

// RewriteRoot is a folder whose text files get the port tokens, and the host tokens when Hosts is set.
type RewriteRoot struct {
	Dir   string
	Hosts bool
}

// Token is one literal to replace, matched case-insensitively.
type Token struct {
	Old string
	New string
}

type replacement struct {
	re    *regexp.Regexp
	value string
}

func compileTokens(tokens []Token) []replacement {
	out := make([]replacement, 0, len(tokens))
	for _, t := range tokens {
		if t.Old == t.New {
			continue
		}
		out = append(out, replacement{
			re:    regexp.MustCompile("(?i)" + regexp.QuoteMeta(t.Old)),
			value: t.New,
		})
	}
	return out
}

/**
 * Rewrite ports and hosts across config files
 * @param {[]RewriteRoot} roots - Folders to scan
 * @param {[]Token} ports - Port tokens applied under every root
 * @param {[]Token} hosts - Host tokens applied under roots with Hosts set
 * @param {func(string) bool} skip - Reports files that must never be rewritten
 * @returns {[]string} Files actually modified, sorted
 * @description
 * - Files are written back only when at least one token matched
 * - Unreadable or unwritable files are logged and skipped
 */
func RewriteFiles(roots []RewriteRoot, ports, hosts []Token, skip func(string) bool) []string {
	var changed []string
	for _, root := range roots {
		tokens := append([]Token(nil), ports...)
		if root.Hosts {
			tokens = append(tokens, hosts...)
		}
		reps := compileTokens(tokens)
		if len(reps) == 0 {
			continue
		}
		for _, file := range globConfigFiles(root.Dir) {
			if skip != nil && skip(file) {
				continue
			}
			updated, err := rewriteFile(file, reps)
			if err != nil {
				logger.Warnf("Skipping %s: %v", file, err)
				continue
			}
			if updated {
				changed = append(changed, file)
			}
		}
	}
	sort.Strings(changed)
	return changed
}

func globConfigFiles(dir string) []string {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	seen := map[string]bool{}
	var files []string
	for _, ext := range rewriteExtensions {
		matches, err := zglob.Glob(filepath.Join(dir, "**", "*."+ext))
		if err != nil {
			logger.Debugf("glob %s/**/*.%s: %v", dir, ext, err)
			continue
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func rewriteFile(file string, reps []replacement) (bool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return false, err
	}
	text := string(data)
	updated := false
	for _, r := range reps {
		if r.re.MatchString(text) {
			text = r.re.ReplaceAllLiteralString(text, r.value)
			updated = true
		}
	}
	if !updated {
		return false, nil
	}
	info, err := os.Stat(file)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(file, []byte(text), info.Mode().Perm())
}

// rewriteSkipper builds the deny list of the rewrite stage.
func (l Layout) rewriteSkipper() func(string) bool {
	assets := filepath.Join(l.MMPMStatic, "assets") + string(filepath.Separator)
	return func(path string) bool {
		switch {
		case path == l.DefaultsJSFile, path == l.MMPMEnvFile:
			return true
		case strings.HasPrefix(path, assets):
			return true
		case strings.HasSuffix(path, ".sample"):
			return true
		}
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			if part == "node_modules" {
				return true
			}
		}
		return false
	}
}

// rewriteRoots lists the scanned folders in processing order.
func (l Layout) rewriteRoots() []RewriteRoot {
	return []RewriteRoot{
		{Dir: l.NginxConfig},
		{Dir: l.MMPMStatic, Hosts: true},
		{Dir: l.MMPMConfig},
		{Dir: l.MMJS},
	}
}

func portTokens(mmPort, mmpmPort int) []Token {
	return []Token{
		{Old: "8080", New: strconv.Itoa(mmPort)},
		{Old: "7890", New: strconv.Itoa(mmpmPort)},
	}
}

func hostTokens(localIP string) []Token {
	return []Token{
		{Old: "127.0.0.1", New: localIP},
		{Old: "localhost", New: localIP},
	}
}

// PatchConsoleStamp makes MagicMirror's console-stamp emit "label|message" lines for the log bridge.
func PatchConsoleStamp(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	patched := consoleStampPattern.ReplaceAllString(string(data), consoleStampConfig)
	if patched == string(data) {
		return nil
	}
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	return os.WriteFile(file, []byte(patched), info.Mode().Perm())
}
