package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// DefaultMMPort is the primary port of the first instance.
const DefaultMMPort = 8080

var (
	ErrMissingVariable = errors.New("missing environment variable")
	ErrInvalidPort     = errors.New("invalid port")
)

/**
 * Environment of one instance container
 * @property {string} Instance - Instance name, also the container name
 * @property {int} MMPort - MagicMirror port, 8080 on the first instance
 * @property {int} MMPMPort - MMPM web UI port
 * @property {string} LocalIP - LAN address the instance is published on
 * @property {int} APIPort - go2rtc API port
 * @property {int} RTSPPort - go2rtc RTSP port
 * @property {int} SRTPPort - go2rtc SRTP port
 * @property {int} WebRTCPort - go2rtc WebRTC port
 * @property {bool} Debug - IS_DEBUG flag
 */
type Environment struct {
	Instance   string
	MMPort     int
	MMPMPort   int
	LocalIP    string
	APIPort    int
	RTSPPort   int
	SRTPPort   int
	WebRTCPort int
	Debug      bool
}

var required = []string{"INSTANCE", "MM_PORT", "MMPM_PORT", "LOCAL_IP"}

/**
 * Read and validate the instance environment
 * @param {func(string) string} getenv - Variable lookup, os.Getenv when nil
 * @returns {*Environment} Validated environment
 * @returns {error} Every missing or malformed variable, aggregated
 */
func Load(getenv func(string) string) (*Environment, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var result *multierror.Error
	for _, name := range required {
		if strings.TrimSpace(getenv(name)) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrMissingVariable, name))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	e := &Environment{
		Instance: strings.TrimSpace(getenv("INSTANCE")),
		LocalIP:  strings.TrimSpace(getenv("LOCAL_IP")),
	}
	ports := []struct {
		name string
		def  int
		dst  *int
	}{
		{"MM_PORT", 0, &e.MMPort},
		{"MMPM_PORT", 0, &e.MMPMPort},
		{"API_PORT", 1984, &e.APIPort},
		{"RTSP_PORT", 8554, &e.RTSPPort},
		{"SRTP_PORT", 8443, &e.SRTPPort},
		{"WEBRTC_PORT", 8555, &e.WebRTCPort},
	}
	for _, p := range ports {
		v, err := parsePort(getenv(p.name), p.def)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", p.name, err))
			continue
		}
		*p.dst = v
	}
	e.Debug, _ = strconv.ParseBool(strings.TrimSpace(getenv("IS_DEBUG")))
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return e, nil
}

func parsePort(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("%w %q", ErrInvalidPort, raw)
	}
	return n, nil
}

// LoadFile loads KEY=VALUE pairs into the process environment without overriding set variables.
func LoadFile(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return godotenv.Load(paths...)
}

// FirstInstance reports whether this container owns the shared one-time initialization.
func (e *Environment) FirstInstance() bool {
	return e.MMPort == DefaultMMPort
}

// Summary lists the values logged at boot, in display order.
func (e *Environment) Summary() [][2]string {
	return [][2]string{
		{"LOCAL_IP", e.LocalIP},
		{"MM_PORT", strconv.Itoa(e.MMPort)},
		{"MMPM_PORT", strconv.Itoa(e.MMPMPort)},
		{"API_PORT", strconv.Itoa(e.APIPort)},
		{"RTSP_PORT", strconv.Itoa(e.RTSPPort)},
		{"SRTP_PORT", strconv.Itoa(e.SRTPPort)},
		{"WEBRTC_PORT", strconv.Itoa(e.WebRTCPort)},
	}
}
