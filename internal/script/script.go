// Package script loads action scripts: ordered lists of type, key, hold
// and press steps written in JSON or YAML.
//
//	delay_ms: 5
//	actions:
//	  - hold: ctrl
//	  - key: l
//	  - type: "https://example.org"
//	  - key: return
package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"eitype/internal/typer"
)

//go:embed action-script.schema.json
var schemaJSON []byte

const schemaURL = "mem://eitype/action-script.schema.json"

// ErrInvalid indicates a script does not match the action script schema.
var ErrInvalid = errors.New("script: invalid action script")

// Format is the encoding of a script.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format from a file extension. Unknown
// extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Script is a parsed action script.
type Script struct {
	// Delay overrides the session delay when HasDelay is set.
	Delay    time.Duration
	HasDelay bool
	Actions  []typer.Action
}

type rawScript struct {
	DelayMS *int                `json:"delay_ms"`
	Actions []map[string]string `json:"actions"`
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("script: add schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	s, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script.
func Parse(data []byte, format Format) (*Script, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var raw rawScript
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}

	s := &Script{Actions: make([]typer.Action, 0, len(raw.Actions))}
	if raw.DelayMS != nil {
		s.Delay = time.Duration(*raw.DelayMS) * time.Millisecond
		s.HasDelay = true
	}
	for _, step := range raw.Actions {
		for kind, arg := range step {
			s.Actions = append(s.Actions, toAction(kind, arg))
		}
	}
	return s, nil
}

func toAction(kind, arg string) typer.Action {
	switch kind {
	case "key":
		return typer.Key(arg)
	case "hold":
		return typer.ModifierHold(arg)
	case "press":
		return typer.ModifierPress(arg)
	default:
		return typer.Type(arg)
	}
}

// toJSON normalizes a document to JSON so one schema covers both formats.
func toJSON(data []byte, format Format) ([]byte, error) {
	if format == FormatJSON {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("script: decode yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("script: convert yaml: %w", err)
	}
	return out, nil
}
