package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - Status API listening address (e.g. ":9180"), empty disables it
 * @property {string} mode - Gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" or empty for stdout only
 * @property {string} color - Bridged log coloring: always, never or auto
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
	Color string `mapstructure:"color"`
}

/**
 * Compose generation settings
 * @property {string} instances_dir - Directory whose subdirectories name the instances
 * @property {string} cache_dir - Host cache root, receives mmpm_<instance> folders
 * @property {string} modules_dir - Host modules folder shared by every instance
 * @property {string} shared_dir - Host folder mounted as MagicMirror/shared
 * @property {string} output - Generated compose file
 * @property {string} template - Optional instance template overriding the embedded one
 * @property {string} bind_ip - Fixed LAN address, skips interface detection
 * @property {string} image - Container image of every instance
 * @property {string} timezone - TZ passed to the containers
 * @property {string} order - Instance ordering, lexical or listing
 */
type ComposeConfig struct {
	InstancesDir string `mapstructure:"instances_dir"`
	CacheDir     string `mapstructure:"cache_dir"`
	ModulesDir   string `mapstructure:"modules_dir"`
	SharedDir    string `mapstructure:"shared_dir"`
	Output       string `mapstructure:"output"`
	Template     string `mapstructure:"template"`
	BindIP       string `mapstructure:"bind_ip"`
	Image        string `mapstructure:"image"`
	Timezone     string `mapstructure:"timezone"`
	Order        string `mapstructure:"order"`
}

/**
 * Container filesystem layout roots
 * @property {string} root - Script root holding MagicMirror, .default and .config
 * @property {string} document_root - Web root serving the MMPM static files
 * @property {string} nginx_config - nginx virtual host folder
 * @property {string} nginx_home - Folder holding the nginx binary
 */
type PathsConfig struct {
	Root         string `mapstructure:"root"`
	DocumentRoot string `mapstructure:"document_root"`
	NginxConfig  string `mapstructure:"nginx_config"`
	NginxHome    string `mapstructure:"nginx_home"`
}

/**
 * Module folder reconciliation
 * @property {time.Duration} poll_interval - Marker poll period of non-first instances
 * @property {time.Duration} wait_timeout - Upper bound of the marker wait, 0 waits forever
 * @property {time.Duration} settle_delay - Pause of non-first instances before reconciling
 * @property {int} concurrency - Parallel module refreshes
 */
type ModulesConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	Concurrency  int           `mapstructure:"concurrency"`
}

/**
 * Process supervision
 * @property {int} max_start_attempts - Start attempts before giving up, 0 is unlimited
 * @property {time.Duration} start_retry_delay - Pause between start attempts
 * @property {int} max_restarts - Automatic restarts per process, 0 is unlimited
 * @property {time.Duration} restart_delay - Pause before an automatic restart
 * @property {time.Duration} kill_timeout - Grace period between SIGTERM and SIGKILL
 */
type SupervisorConfig struct {
	MaxStartAttempts int           `mapstructure:"max_start_attempts"`
	StartRetryDelay  time.Duration `mapstructure:"start_retry_delay"`
	MaxRestarts      int           `mapstructure:"max_restarts"`
	RestartDelay     time.Duration `mapstructure:"restart_delay"`
	KillTimeout      time.Duration `mapstructure:"kill_timeout"`
}

// OwnerConfig is the uid/gid applied to copied trees, -1 keeps the current owner.
type OwnerConfig struct {
	UID  int    `mapstructure:"uid"`
	GID  int    `mapstructure:"gid"`
	User string `mapstructure:"user"`
}

type AppConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Compose    ComposeConfig    `mapstructure:"compose"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Modules    ModulesConfig    `mapstructure:"modules"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Owner      OwnerConfig      `mapstructure:"owner"`
}

var Config AppConfig

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "console")
	v.SetDefault("log.color", "auto")

	v.SetDefault("compose.instances_dir", "./instances")
	v.SetDefault("compose.cache_dir", "./.cache")
	v.SetDefault("compose.modules_dir", "./modules")
	v.SetDefault("compose.shared_dir", "./shared")
	v.SetDefault("compose.output", "./docker-compose.yml")
	v.SetDefault("compose.image", "andresvanegas/mm-swarm")
	v.SetDefault("compose.timezone", "America/Bogota")
	v.SetDefault("compose.order", "lexical")

	v.SetDefault("paths.root", "/root")
	v.SetDefault("paths.document_root", "/var/www")
	v.SetDefault("paths.nginx_config", "/etc/nginx/http.d")
	v.SetDefault("paths.nginx_home", "/usr/sbin")

	v.SetDefault("modules.poll_interval", time.Second)
	v.SetDefault("modules.wait_timeout", time.Duration(0))
	v.SetDefault("modules.settle_delay", 2*time.Second)
	v.SetDefault("modules.concurrency", 4)

	v.SetDefault("supervisor.max_start_attempts", 0)
	v.SetDefault("supervisor.start_retry_delay", time.Second)
	v.SetDefault("supervisor.max_restarts", 0)
	v.SetDefault("supervisor.restart_delay", time.Second)
	v.SetDefault("supervisor.kill_timeout", 1500*time.Millisecond)

	v.SetDefault("owner.uid", 1000)
	v.SetDefault("owner.gid", 1000)
	v.SetDefault("owner.user", "node")
}

/**
 * Load application configuration
 * @param {string} path - Explicit config file, empty searches the default locations
 * @returns {*AppConfig} Configuration with defaults applied
 * @returns {error} Read or decode failure; a missing default file is not an error
 * @description
 * - Searches mm-swarm.yaml in the working directory and /etc/mm-swarm
 * - Environment variables prefixed MMSWARM_ override file values
 */
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MMSWARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mm-swarm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mm-swarm")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

/**
 * Load the configuration into the package-level Config
 * @param {string} path - Explicit config file or empty
 * @returns {error} Load failure; Config keeps the defaults in that case
 */
func Init(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	Config = *cfg
	return nil
}

func init() {
	if cfg, err := LoadConfig(""); err == nil {
		Config = *cfg
	}
}
