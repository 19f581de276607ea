package reconcile

import (
	"path/filepath"

	"mm-swarm/internal/config"
)

// Layout holds every container path the reconciler touches.
type Layout struct {
	Root           string
	Defaults       string
	DefaultModules string
	DefaultConfig  string
	DefaultCSS     string
	DefaultMMPM    string

	MM        string
	MMConfig  string
	MMCSS     string
	MMJS      string
	MMModules string

	MMPMConfig  string
	MMPMStatic  string
	NginxConfig string
	NginxHome   string
	PythonBin   string

	DoneFile               string
	UpdateFile             string
	ConfigFile             string
	SampleConfigFile       string
	CustomCSSFile          string
	ExternalPackagesFile   string
	ThirdPartyPackagesFile string
	MMPMEnvFile            string
	MMPMLogFile            string
	ConsoleStampFile       string
	DefaultsJSFile         string
}

/**
 * Derive the container layout
 * @param {config.PathsConfig} paths - Script root, web root and nginx folders
 * @returns {Layout} Absolute paths, nothing is touched on disk
 */
func NewLayout(paths config.PathsConfig) Layout {
	root := paths.Root
	defaults := filepath.Join(root, ".default")
	mm := filepath.Join(root, "MagicMirror")
	mmModules := filepath.Join(mm, "modules")
	mmConfig := filepath.Join(mm, "config")
	mmpmConfig := filepath.Join(root, ".config", "mmpm")

	return Layout{
		Root:           root,
		Defaults:       defaults,
		DefaultModules: filepath.Join(defaults, "modules"),
		DefaultConfig:  filepath.Join(defaults, "config"),
		DefaultCSS:     filepath.Join(defaults, "css"),
		DefaultMMPM:    filepath.Join(defaults, "mmpm"),

		MM:        mm,
		MMConfig:  mmConfig,
		MMCSS:     filepath.Join(mm, "css"),
		MMJS:      filepath.Join(mm, "js"),
		MMModules: mmModules,

		MMPMConfig:  mmpmConfig,
		MMPMStatic:  filepath.Join(paths.DocumentRoot, "mmpm", "static"),
		NginxConfig: paths.NginxConfig,
		NginxHome:   paths.NginxHome,
		PythonBin:   filepath.Join(root, ".local", "bin"),

		DoneFile:               filepath.Join(mmModules, ".done"),
		UpdateFile:             filepath.Join(mmModules, ".update"),
		ConfigFile:             filepath.Join(mmConfig, "config.js"),
		SampleConfigFile:       filepath.Join(mmConfig, "config.js.sample"),
		CustomCSSFile:          filepath.Join(mm, "css", "custom.css"),
		ExternalPackagesFile:   filepath.Join(mmpmConfig, "mmpm-external-packages.json"),
		ThirdPartyPackagesFile: filepath.Join(mmpmConfig, "MagicMirror-3rd-party-packages-db.json"),
		MMPMEnvFile:            filepath.Join(mmpmConfig, "mmpm-env.json"),
		MMPMLogFile:            filepath.Join(mmpmConfig, "log", "mmpm-cli-interface.log"),
		ConsoleStampFile:       filepath.Join(mm, "node_modules", "console-stamp", "index.js"),
		DefaultsJSFile:         filepath.Join(mm, "js", "defaults.js"),
	}
}
