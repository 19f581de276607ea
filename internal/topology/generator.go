package topology

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mm-swarm/internal/discovery"
	"mm-swarm/internal/document"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/models"
	"mm-swarm/internal/utils"
)

//go:embed instance.yml
var instanceTemplate string

// DefaultDocument is written when no instance is found.
const DefaultDocument = `version: "3"`

// Placeholder names understood by the instance template.
const (
	KeyInstance          = "INSTANCE"
	KeyLocalIP           = "LOCAL_IP"
	KeyMMPort            = "MM_PORT"
	KeyMMPMUIPort        = "MMPM_UI_PORT"
	KeyMMPMAPIPort       = "MMPM_API_PORT"
	KeyMMPMLogPort       = "MMPM_LOG_PORT"
	KeyMMPMRepeaterPort  = "MMPM_REPEATER_PORT"
	KeyImage             = "IMAGE"
	KeyTimezone          = "TZ"
	KeyDebug             = "IS_DEBUG"
	KeyHostMMPMConfig    = "HOST_MMPM_CONFIG_PATH"
	KeyHostModules       = "HOST_MM_MODULES_PATH"
	KeyHostMMConfig      = "HOST_MM_CONFIG_PATH"
	KeyHostCSS           = "HOST_MM_CSS_PATH"
	KeyHostShared        = "HOST_SHARED_PATH"
	KeyContainerMMPM     = "CONTAINER_MMPM_CONFIG_PATH"
	KeyContainerModules  = "CONTAINER_MM_MODULES_PATH"
	KeyContainerMMConfig = "CONTAINER_MM_CONFIG_PATH"
	KeyContainerCSS      = "CONTAINER_MM_CSS_PATH"
	KeyContainerShared   = "CONTAINER_SHARED_PATH"
)

var portKeys = []struct {
	key  string
	port models.PortName
}{
	{KeyMMPort, models.PortMM},
	{KeyMMPMUIPort, models.PortMMPMUI},
	{KeyMMPMAPIPort, models.PortMMPMAPI},
	{KeyMMPMLogPort, models.PortMMPMLog},
	{KeyMMPMRepeaterPort, models.PortMMPMRepeater},
}

/**
 * Generator renders the compose file of every discovered instance
 * @property {string} InstancesDir - Folder of instance subdirectories
 * @property {string} CacheDir - Receives one mmpm_<instance> folder per instance
 * @property {string} ModulesDir - Host modules folder shared by all instances
 * @property {string} SharedDir - Host folder mounted as MagicMirror/shared
 * @property {string} Output - Compose file to write
 * @property {string} Template - Instance template file, embedded template when empty
 * @property {string} BindIP - LAN address published on every port
 * @property {discovery.PortPlan} Plan - Port layout, discovery.DefaultPlan when nil
 * @property {discovery.Order} Order - Instance ordering
 * @property {string} Image - Container image
 * @property {string} Timezone - TZ passed to the containers
 * @property {bool} Debug - IS_DEBUG passed to the containers
 * @property {string} ContainerRoot - Script root inside the container
 * @property {bool} CheckPorts - Warn about ports already accepting connections
 */
type Generator struct {
	InstancesDir  string
	CacheDir      string
	ModulesDir    string
	SharedDir     string
	Output        string
	Template      string
	BindIP        string
	Plan          discovery.PortPlan
	Order         discovery.Order
	Image         string
	Timezone      string
	Debug         bool
	ContainerRoot string
	CheckPorts    bool
}

// Result reports what Generate produced.
type Result struct {
	Instances []models.Instance
	Document  *document.Document
	Output    string
}

/**
 * Generate the compose file
 * @param {context.Context} ctx - Cancels between instances
 * @returns {*Result} Discovered instances and the written document
 * @returns {error} Discovery, template, expansion or write failure
 * @description
 * - No instances: writes DefaultDocument only
 * - Otherwise expands the template once per instance and folds the results in ordinal order
 * - Creates <CacheDir>/mmpm_<instance> for every instance
 * - Warns when sorted ordinals differ from the raw directory listing
 */
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	logger.Infof("Looking for instances in %s", g.InstancesDir)
	if g.Order != discovery.OrderListing {
		if moved, err := discovery.ListingDrift(g.InstancesDir); err == nil && len(moved) > 0 {
			logger.Warnf("Sorted ordering renumbers %s compared to the directory listing used by earlier releases, set compose.order to listing to keep their ports",
				strings.Join(moved, ", "))
		}
	}
	instances, err := discovery.Discover(g.InstancesDir, discovery.Options{
		Plan:    g.Plan,
		BoundIP: g.BindIP,
		Order:   g.Order,
	})
	if err != nil {
		return nil, err
	}

	for _, in := range instances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Infof("Found instance: %s", in.Name)
		for _, pk := range portKeys {
			logger.Infof("  - %-19s: %d", pk.key, in.Port(pk.port))
			if g.CheckPorts && utils.PortInUse(in.BoundIP, in.Port(pk.port)) {
				logger.Warnf("  port %d of %s already accepts connections on %s", in.Port(pk.port), in.Name, in.BoundIP)
			}
		}
		cache := filepath.Join(g.CacheDir, "mmpm_"+in.Name)
		if err := os.MkdirAll(cache, 0o755); err != nil {
			return nil, fmt.Errorf("create cache folder %s: %w", cache, err)
		}
	}
	logger.Infof("Processed %d instances", len(instances))

	doc, err := g.render(instances)
	if err != nil {
		return nil, err
	}
	if err := doc.Write(g.Output); err != nil {
		return nil, fmt.Errorf("write %s: %w", g.Output, err)
	}
	logger.Infof("Generated %s", g.Output)
	return &Result{Instances: instances, Document: doc, Output: g.Output}, nil
}

func (g *Generator) render(instances []models.Instance) (*document.Document, error) {
	if len(instances) == 0 {
		return document.New(DefaultDocument)
	}
	tpl, err := g.loadTemplate()
	if err != nil {
		return nil, err
	}
	set, err := g.Substitutions(instances)
	if err != nil {
		return nil, err
	}
	docs, err := tpl.Expand(set)
	if err != nil {
		return nil, err
	}
	inputs := make([]any, len(docs))
	for i, d := range docs {
		inputs[i] = d
	}
	return document.New(inputs...)
}

func (g *Generator) loadTemplate() (*document.Document, error) {
	if g.Template != "" {
		tpl, err := document.New(g.Template)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", g.Template, err)
		}
		return tpl, nil
	}
	return document.New([]byte(instanceTemplate))
}

/**
 * Build the substitution lists of the instance template
 * @param {[]models.Instance} instances - Instances in ordinal order
 * @returns {document.SubstitutionSet} One value per instance for every placeholder
 * @returns {error} Host path resolution failure
 */
func (g *Generator) Substitutions(instances []models.Instance) (document.SubstitutionSet, error) {
	var set document.SubstitutionSet
	instancesDir, err := filepath.Abs(g.InstancesDir)
	if err != nil {
		return set, err
	}
	cacheDir, err := filepath.Abs(g.CacheDir)
	if err != nil {
		return set, err
	}
	modulesDir, err := filepath.Abs(g.ModulesDir)
	if err != nil {
		return set, err
	}
	sharedDir, err := filepath.Abs(g.SharedDir)
	if err != nil {
		return set, err
	}
	root := g.ContainerRoot
	if root == "" {
		root = "/root"
	}
	mmRoot := filepath.Join(root, "MagicMirror")

	for _, in := range instances {
		set.Add(KeyInstance, in.Name)
		set.Add(KeyLocalIP, in.BoundIP)
		for _, pk := range portKeys {
			set.Add(pk.key, in.Port(pk.port))
		}
		set.Add(KeyImage, g.Image)
		set.Add(KeyTimezone, g.Timezone)
		set.Add(KeyDebug, strconv.FormatBool(g.Debug))
		set.Add(KeyHostMMPMConfig, filepath.Join(cacheDir, "mmpm_"+in.Name))
		set.Add(KeyHostModules, modulesDir)
		set.Add(KeyHostMMConfig, filepath.Join(instancesDir, in.Name, "config"))
		set.Add(KeyHostCSS, filepath.Join(instancesDir, in.Name, "css"))
		set.Add(KeyHostShared, sharedDir)
		set.Add(KeyContainerMMPM, filepath.Join(root, ".config", "mmpm"))
		set.Add(KeyContainerModules, filepath.Join(mmRoot, "modules"))
		set.Add(KeyContainerMMConfig, filepath.Join(mmRoot, "config"))
		set.Add(KeyContainerCSS, filepath.Join(mmRoot, "css"))
		set.Add(KeyContainerShared, filepath.Join(mmRoot, "shared"))
	}
	return set, nil
}
