package models

// ExternalPackagesKey is the only group of the MMPM external packages file.
const ExternalPackagesKey = "External Packages"

/**
 * ModuleRecord describes one installed MagicMirror module
 * @property {string} title - package.json name or directory name
 * @property {string} author - package.json author
 * @property {string} repository - Browsable https URL, empty when unknown
 * @property {string} version - package.json version, not persisted
 * @property {string} description - package.json description
 */
type ModuleRecord struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Repository  string `json:"repository"`
	Version     string `json:"-"`
	Description string `json:"description"`
}

// PackageRegistry maps a package group to its records, as stored by MMPM.
type PackageRegistry map[string][]ModuleRecord

// Repositories lists every repository URL across all groups.
func (r PackageRegistry) Repositories() map[string]struct{} {
	out := map[string]struct{}{}
	for _, group := range r {
		for _, rec := range group {
			out[rec.Repository] = struct{}{}
		}
	}
	return out
}
