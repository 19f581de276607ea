package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"mm-swarm/internal/logger"
	"mm-swarm/internal/models"
)

// bundledModules are shipped with the image and never registered or refreshed.
var bundledModules = map[string]bool{"default": true, "mmpm": true}

/**
 * Describe the module installed at dir
 * @param {string} dir - Module folder
 * @returns {models.ModuleRecord} Record built from package.json and the git origin
 * @description
 * - The origin remote wins over package.json repository
 * - Missing fields fall back to the folder name, version 0.0.0 and a generic description
 */
func ReadModuleRecord(dir string) models.ModuleRecord {
	name := filepath.Base(dir)
	rec := models.ModuleRecord{
		Title:       name,
		Version:     "0.0.0",
		Description: "Local module installation of " + name,
	}

	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		if !gjson.ValidBytes(data) {
			logger.Warnf("Invalid package.json in %s", dir)
		} else {
			pkg := gjson.ParseBytes(data)
			if v := strings.TrimSpace(pkg.Get("name").String()); v != "" {
				rec.Title = v
			}
			author := pkg.Get("author")
			if author.IsObject() {
				author = author.Get("name")
			}
			rec.Author = strings.TrimSpace(author.String())
			if v := strings.TrimSpace(pkg.Get("version").String()); v != "" {
				rec.Version = v
			}
			if v := strings.TrimSpace(pkg.Get("description").String()); v != "" {
				rec.Description = v
			}
			repo := pkg.Get("repository")
			if repo.IsObject() {
				repo = repo.Get("url")
			}
			rec.Repository = strings.TrimSpace(repo.String())
		}
	}

	if origin, err := OriginURL(dir); err == nil {
		rec.Repository = origin
	}
	rec.Repository = BrowseURL(rec.Repository)
	return rec
}

// LoadRegistry reads a package registry file; missing or malformed files yield an empty registry.
func LoadRegistry(file string) models.PackageRegistry {
	data, err := os.ReadFile(file)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("Cannot read %s: %v", file, err)
		}
		return models.PackageRegistry{}
	}
	var reg models.PackageRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		logger.Warnf("Ignoring malformed registry %s: %v", file, err)
		return models.PackageRegistry{}
	}
	if reg == nil {
		reg = models.PackageRegistry{}
	}
	return reg
}

// SaveRegistry writes the registry with 4-space indentation.
func SaveRegistry(file string, reg models.PackageRegistry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(reg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	return os.WriteFile(file, bytes.TrimRight(buf.Bytes(), "\n"), 0o644)
}

// RegistryResult reports what RefreshRegistry did.
type RegistryResult struct {
	Known      int
	Registered []models.ModuleRecord
	Saved      bool
}

/**
 * Register local modules missing from the MMPM package databases
 * @param {string} modulesDir - MagicMirror modules folder
 * @param {string} externalFile - mmpm-external-packages.json, updated in place
 * @param {string} thirdPartyFile - MagicMirror-3rd-party-packages-db.json, read only
 * @returns {*RegistryResult} Known count, appended records and whether the file was written
 * @returns {error} Module listing or write failure
 * @description
 * - A module is appended when its repository is empty or unknown to both databases
 * - The external file is written only when something was appended
 */
func RefreshRegistry(modulesDir, externalFile, thirdPartyFile string) (*RegistryResult, error) {
	external := LoadRegistry(externalFile)
	thirdParty := LoadRegistry(thirdPartyFile)

	var externalPackages []models.ModuleRecord
	groups := make([]string, 0, len(external))
	for g := range external {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		externalPackages = append(externalPackages, external[g]...)
	}

	known := external.Repositories()
	for repo := range thirdParty.Repositories() {
		known[repo] = struct{}{}
	}
	res := &RegistryResult{}
	for _, group := range external {
		res.Known += len(group)
	}
	for _, group := range thirdParty {
		res.Known += len(group)
	}
	logger.Infof("Detected %d registered packages", res.Known)

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return nil, fmt.Errorf("list modules in %s: %w", modulesDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || bundledModules[e.Name()] || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rec := ReadModuleRecord(filepath.Join(modulesDir, e.Name()))
		if rec.Repository != "" {
			if _, ok := known[rec.Repository]; ok {
				continue
			}
			known[rec.Repository] = struct{}{}
		}
		logger.Infof("  - Registering %s", e.Name())
		externalPackages = append(externalPackages, rec)
		res.Registered = append(res.Registered, rec)
	}

	if len(res.Registered) == 0 {
		return res, nil
	}
	logger.Infof("Saving %d external packages found", len(externalPackages))
	if err := SaveRegistry(externalFile, models.PackageRegistry{models.ExternalPackagesKey: externalPackages}); err != nil {
		return nil, fmt.Errorf("save %s: %w", externalFile, err)
	}
	res.Saved = true
	return res, nil
}
