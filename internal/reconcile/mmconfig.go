package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"

	"mm-swarm/internal/document"
	"mm-swarm/internal/env"
)

// RequiredModules are prepended to the MagicMirror module list when missing, in this order.
var RequiredModules = []string{"MMM-RefreshClientOnly", "mmpm"}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

const configEvalTimeout = 5 * time.Second

const configHeader = `/** MagicMirror² Config
 *
 * By Michael Teeuw https://michaelteeuw.nl
 * MIT Licensed.
 *
 * This file is reconciled by mm-swarm on every container start.
 * Address, port, basePath, ipWhitelist and logging.dateFormat are enforced.
 *
 * For more information on how you can configure this file
 * see https://docs.magicmirror.builders/configuration/introduction.html
 * and https://docs.magicmirror.builders/modules/configuration.html
 *
%s */

`

const configFooter = `

/*************** DO NOT EDIT THE LINE BELOW ***************/
if (typeof module !== "undefined") {
  module.exports = config;
}
`

/**
 * Evaluate a MagicMirror config.js and return its exported object
 * @param {string} file - config.js or config.js.sample
 * @returns {*document.Node} Exported object, key order kept
 * @returns {error} Read, evaluation or export failure
 * @description
 * - Runs in an isolated goja runtime with a CommonJS style module object
 * - Evaluation is interrupted after a few seconds
 */
func LoadConfigJS(file string) (*document.Node, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	timer := time.AfterFunc(configEvalTimeout, func() {
		vm.Interrupt("config evaluation timed out")
	})
	defer timer.Stop()

	if _, err := vm.RunString(`var module = { exports: {} }; var exports = module.exports;`); err != nil {
		return nil, err
	}
	if _, err := vm.RunScript(file, string(src)); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", file, err)
	}
	out, err := vm.RunString(`JSON.stringify(module.exports)`)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", file, err)
	}
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return document.Mapping(), nil
	}
	node, err := document.ParseJSON([]byte(out.String()))
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", file, err)
	}
	if node.Kind() != document.MappingKind {
		return nil, fmt.Errorf("export %s: module.exports is a %s", file, node.Kind())
	}
	return node, nil
}

// LoadCurrentConfig reads config.js, else the sample, else an empty object.
func LoadCurrentConfig(configFile, sampleFile string) (*document.Node, error) {
	for _, f := range []string{configFile, sampleFile} {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return LoadConfigJS(f)
	}
	return document.Mapping(), nil
}

// EnforcedConfig holds the keys no user configuration may change.
func EnforcedConfig(e *env.Environment) *document.Node {
	logging := document.Mapping().Set("dateFormat", document.Scalar(""))
	return document.Mapping().
		Set("address", document.Scalar("0.0.0.0")).
		Set("port", document.Scalar(e.MMPort)).
		Set("basePath", document.Scalar("/")).
		Set("ipWhitelist", document.Sequence()).
		Set("logging", logging)
}

// BaseConfig holds defaults a user configuration may override.
func BaseConfig() *document.Node {
	levels := document.Sequence(
		document.Scalar("INFO"), document.Scalar("LOG"), document.Scalar("WARN"), document.Scalar("ERROR"),
	)
	return document.Mapping().
		Set("timeFormat", document.Scalar(12)).
		Set("language", document.Scalar("es")).
		Set("locale", document.Scalar("es_CO")).
		Set("logLevel", levels).
		Set("units", document.Scalar("metric")).
		Set("modules", document.Sequence())
}

func serverOnlyConfig() *document.Node {
	prefs := document.Mapping().
		Set("webviewTag", document.Scalar(true)).
		Set("contextIsolation", document.Scalar(false)).
		Set("enableRemoteModule", document.Scalar(true))
	return document.Mapping().
		Set("serverOnly", document.Scalar(true)).
		Set("electronOptions", document.Mapping().Set("webPreferences", prefs))
}

/**
 * Compute the desired MagicMirror configuration
 * @param {*document.Node} enforced - Keys that always win
 * @param {*document.Node} base - Defaults
 * @param {*document.Node} actual - Current user configuration
 * @returns {*document.Node} enforced, base, actual, enforced and server-only settings merged in order
 * @description
 * - Enforced sequences replace the merged ones so a user ipWhitelist cannot survive
 * - Missing RequiredModules are prepended
 */
func DesiredConfig(enforced, base, actual *document.Node) *document.Node {
	desired := document.MergeAll(enforced, base, actual, enforced, serverOnlyConfig())
	enforce(desired, enforced)

	modules, ok := desired.Get("modules")
	if !ok || modules.Kind() != document.SequenceKind {
		modules = document.Sequence()
		desired.Set("modules", modules)
	}
	for _, name := range RequiredModules {
		if !hasModule(modules, name) {
			modules.Prepend(document.Mapping().Set("module", document.Scalar(name)))
		}
	}
	return desired
}

// enforce overlays src on dst recursing into mappings only, every other value is replaced.
func enforce(dst, src *document.Node) {
	for _, k := range src.Keys() {
		sv, _ := src.Get(k)
		dv, ok := dst.Get(k)
		if ok && sv.Kind() == document.MappingKind && dv.Kind() == document.MappingKind {
			enforce(dv, sv)
			continue
		}
		dst.Set(k, sv.Clone())
	}
}

func hasModule(modules *document.Node, name string) bool {
	for _, m := range modules.Items() {
		if v, ok := m.Get("module"); ok && v.Value() == name {
			return true
		}
	}
	return false
}

/**
 * Render the configuration as a MagicMirror config.js
 * @param {*document.Node} cfg - Configuration object
 * @param {[][2]string} summary - Name/value pairs listed in the header
 * @returns {string} Script text
 */
func RenderConfigJS(cfg *document.Node, summary [][2]string) (string, error) {
	var lines strings.Builder
	width := 0
	for _, kv := range summary {
		if len(kv[0]) > width {
			width = len(kv[0])
		}
	}
	for _, kv := range summary {
		fmt.Fprintf(&lines, " * ► %-*s : %s\n", width, kv[0], kv[1])
	}

	var body bytes.Buffer
	if err := writeJS(&body, cfg, 0); err != nil {
		return "", err
	}
	return fmt.Sprintf(configHeader, lines.String()) + "let config = " + body.String() + ";" + configFooter, nil
}

func writeJS(buf *bytes.Buffer, n *document.Node, depth int) error {
	indent := strings.Repeat("  ", depth+1)
	closing := strings.Repeat("  ", depth)
	switch n.Kind() {
	case document.MappingKind:
		keys := n.Keys()
		if len(keys) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(indent)
			if identifierPattern.MatchString(k) {
				buf.WriteString(k)
			} else if err := writeJSString(buf, k); err != nil {
				return err
			}
			buf.WriteString(": ")
			v, _ := n.Get(k)
			if err := writeJS(buf, v, depth+1); err != nil {
				return err
			}
			if i < len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(closing + "}")
	case document.SequenceKind:
		items := n.Items()
		if len(items) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, it := range items {
			buf.WriteString(indent)
			if err := writeJS(buf, it, depth+1); err != nil {
				return err
			}
			if i < len(items)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(closing + "]")
	default:
		if s, ok := n.Value().(string); ok {
			return writeJSString(buf, s)
		}
		raw, err := n.MarshalJSON()
		if err != nil {
			return err
		}
		buf.Write(raw)
	}
	return nil
}

func writeJSString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
