// Package registry holds the compile-time table of known commands and
// their JSON-Schema Draft-7 parameter validators. Unlike the original
// filesystem-scanning discovery, command names are wired in at build time:
// see SPEC_FULL.md §6.2 / §12.
package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
)

//go:embed schemas/*.yaml
var schemaFiles embed.FS

// Handler constructs and executes one command. Implementations live in
// internal/command.
type Handler interface {
	// Execute runs the command against the backend. Param binding and
	// precondition failures come back as a failed CommandResult; there is
	// no Go error return.
	Execute(backend Backend, params map[string]any) models.CommandResult
}

// Backend is the subset of autopilot.Backend the command handlers need.
// Defined here, implemented there, to avoid an import cycle.
type Backend interface {
	Connected() bool
	IsArmed() bool
	GetTelemetry() models.TelemetrySnapshot
	GetPX4Origin() *models.PX4Origin
	ActionArm() error
	ActionSetTakeoffAltitude(altitude float64) error
	ActionTakeoff(altitude float64) error
	ActionLand() error
	ActionReturnToLaunch() error
	ActionGotoLocation(latitude, longitude, altitude float64) error
	ActionSetCurrentHeading(headingDeg float64) error
}

// schemaDoc mirrors the YAML shape the original command_schemas/*.yaml
// files used.
type schemaDoc struct {
	Name             string         `yaml:"name"`
	Description      string         `yaml:"description"`
	Category         string         `yaml:"category"`
	ValidationSchema map[string]any `yaml:"validation_schema"`
}

// CommandInfo is the catalog entry returned by Describe().
type CommandInfo struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	HasImplementation bool           `json:"has_implementation"`
	HasSchema        bool            `json:"has_schema"`
	HasValidation    bool            `json:"has_validation"`
	Parameters       []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes one schema property.
type ParameterInfo struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Required    bool    `json:"required"`
	Description string  `json:"description,omitempty"`
	Default     any     `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// Registry is the compile-time command + schema table.
type Registry struct {
	handlers map[string]Handler
	docs     map[string]schemaDoc
	resolved map[string]*jsonschema.Resolved
}

// New builds a registry from the given name->handler table, bound to the
// embedded schemas. Handlers are supplied by the caller (internal/command)
// rather than discovered, to avoid an import cycle between this package's
// Backend interface and the handler implementations.
func New(handlers map[string]Handler) (*Registry, error) {
	r := &Registry{
		handlers: make(map[string]Handler, len(handlers)),
		docs:     make(map[string]schemaDoc),
		resolved: make(map[string]*jsonschema.Resolved),
	}

	for name, handler := range handlers {
		r.handlers[name] = handler
	}

	if err := r.loadSchemas(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) loadSchemas() error {
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return fmt.Errorf("registry: read embedded schemas: %w", err)
	}

	for _, entry := range entries {
		raw, err := schemaFiles.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return fmt.Errorf("registry: read %s: %w", entry.Name(), err)
		}

		var doc schemaDoc
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("registry: parse %s: %w", entry.Name(), err)
		}
		if doc.Name == "" {
			return fmt.Errorf("registry: schema %s has no name", entry.Name())
		}
		r.docs[doc.Name] = doc

		if doc.ValidationSchema != nil {
			resolved, err := compileSchema(doc.ValidationSchema)
			if err != nil {
				return fmt.Errorf("registry: compile schema %s: %w", doc.Name, err)
			}
			r.resolved[doc.Name] = resolved
		}
	}

	return nil
}

// compileSchema round-trips the YAML-decoded map through JSON so it lands
// on jsonschema.Schema's json-tagged fields, then resolves it once so
// validation at call time does no further parsing work.
func compileSchema(raw map[string]any) (*jsonschema.Resolved, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(buf, &schema); err != nil {
		return nil, err
	}

	return schema.Resolve(nil)
}

// GetHandler returns the handler registered for name, if any.
func (r *Registry) GetHandler(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// ValidateParams runs Draft-7 validation for name against params. A name
// with no registered schema always validates (matches the original's
// "no validator registered" behavior).
func (r *Registry) ValidateParams(name string, params map[string]any) []string {
	resolved, ok := r.resolved[name]
	if !ok {
		return nil
	}

	if err := resolved.Validate(params); err != nil {
		// jsonschema-go aggregates every violation into one error; split
		// on newlines so each violation reads as its own entry, matching
		// the original's one-message-per-path list.
		lines := strings.Split(err.Error(), "\n")
		out := make([]string, 0, len(lines))
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	return nil
}

// ListCommands returns every known command name, implemented or not,
// sorted for stable output.
func (r *Registry) ListCommands() []string {
	seen := make(map[string]bool)
	for name := range r.handlers {
		seen[name] = true
	}
	for name := range r.docs {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the full catalog, mirroring the original registry's
// get_command_info().
func (r *Registry) Describe() []CommandInfo {
	var out []CommandInfo
	for _, name := range r.ListCommands() {
		doc, hasDoc := r.docs[name]
		_, hasHandler := r.handlers[name]
		_, hasValidation := r.resolved[name]

		info := CommandInfo{
			Name:              name,
			HasImplementation: hasHandler,
			HasSchema:         hasDoc,
			HasValidation:     hasValidation,
		}
		if hasDoc {
			info.Description = doc.Description
			info.Category = doc.Category
			info.Parameters = extractParameters(doc.ValidationSchema)
		} else {
			info.Description = fmt.Sprintf("Execute %s", name)
			info.Category = "uncategorized"
		}
		out = append(out, info)
	}
	return out
}

func extractParameters(validationSchema map[string]any) []ParameterInfo {
	if validationSchema == nil {
		return nil
	}

	properties, _ := validationSchema["properties"].(map[string]any)
	var required []string
	if r, ok := validationSchema["required"].([]any); ok {
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	requiredSet := make(map[string]bool, len(required))
	for _, name := range required {
		requiredSet[name] = true
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]ParameterInfo, 0, len(names))
	for _, name := range names {
		propRaw, _ := properties[name].(map[string]any)
		p := ParameterInfo{Name: name, Required: requiredSet[name]}
		if t, ok := propRaw["type"].(string); ok {
			p.Type = t
		} else {
			p.Type = "any"
		}
		if d, ok := propRaw["description"].(string); ok {
			p.Description = d
		}
		if d, ok := propRaw["default"]; ok {
			p.Default = d
		}
		if m, ok := toFloat(propRaw["minimum"]); ok {
			p.Minimum = &m
		}
		if m, ok := toFloat(propRaw["maximum"]); ok {
			p.Maximum = &m
		}
		params = append(params, p)
	}
	return params
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
