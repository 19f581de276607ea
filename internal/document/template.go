package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var fileExtensions = []string{".yml", ".yaml", ".json"}

/**
 * Document owns one structured document built by folding inputs together
 * @description
 * - Inputs are merged in call order, later inputs win on scalar conflicts
 * - Serialization keeps key order as authored
 */
type Document struct {
	root *Node
}

/**
 * Create a document from zero or more inputs
 * @param {...any} inputs - File paths, raw YAML text, []byte, *Document or *Node
 * @returns {*Document} Merged document
 * @returns {error} First parse or read failure, no partial document is returned
 * @example
 * doc, err := document.New("docker-compose.yml", "version: '3'")
 */
func New(inputs ...any) (*Document, error) {
	d := &Document{root: Mapping()}
	if err := d.Add(inputs...); err != nil {
		return nil, err
	}
	return d, nil
}

// MustNew is New for statically known inputs.
func MustNew(inputs ...any) *Document {
	d, err := New(inputs...)
	if err != nil {
		panic(err)
	}
	return d
}

/**
 * Merge inputs into the document
 * @param {...any} inputs - Same input kinds as New
 * @returns {error} Parse error; the document is left unchanged on failure
 */
func (d *Document) Add(inputs ...any) error {
	merged := d.root
	for i, in := range inputs {
		n, err := parseInput(in)
		if err != nil {
			return fmt.Errorf("document input %d: %w", i, err)
		}
		merged = Merge(merged, n)
	}
	d.root = merged
	return nil
}

func parseInput(in any) (*Node, error) {
	switch v := in.(type) {
	case *Document:
		text, err := v.Serialize()
		if err != nil {
			return nil, err
		}
		return ParseYAML([]byte(text))
	case *Node:
		return v.Clone(), nil
	case []byte:
		return ParseYAML(v)
	case string:
		if isFilePath(v) {
			data, err := os.ReadFile(v)
			if err != nil {
				return nil, err
			}
			return ParseYAML([]byte(strings.TrimSpace(string(data))))
		}
		return ParseYAML([]byte(v))
	default:
		return nil, fmt.Errorf("unsupported input type %T", in)
	}
}

func isFilePath(s string) bool {
	if strings.Contains(s, "\n") || strings.Contains(s, ": ") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(s))
	for _, e := range fileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Root returns a deep copy of the owned document.
func (d *Document) Root() *Node {
	return d.root.Clone()
}

// Serialize renders the document as YAML.
func (d *Document) Serialize() (string, error) {
	return d.root.MarshalYAML()
}

func (d *Document) String() string {
	s, err := d.Serialize()
	if err != nil {
		return ""
	}
	return s
}

/**
 * Persist the serialized document
 * @param {string} path - Destination file, created or overwritten
 * @returns {error} Render or write failure
 */
func (d *Document) Write(path string) error {
	text, err := d.Serialize()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strings.TrimRight(text, " \t\r\n")+"\n"), 0o644)
}
