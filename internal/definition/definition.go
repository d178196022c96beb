package definition

import (
	"encoding/json"
	"strings"

	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Status is the on-disk encryption state of a definition payload.
type Status string

const (
	StatusPlaintext Status = "plaintext"
	StatusEncrypted Status = "encrypted"
)

// Update behaviors applied to the previous version after a new version
// is added. Unrecognized values are tolerated at parse time and skipped
// with a warning when retirement is planned.
const (
	UpdateNone    = "none"
	UpdateDisable = "disable"
	UpdateDestroy = "destroy"
)

// Label is a single desired remote label. Labels are declared as an
// ordered sequence but compared as a set.
type Label struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// Definition is a declared secret: the payload plus the metadata that
// drives reconciliation. Name is derived from the file name, not stored
// in the file.
type Definition struct {
	Name            string   `yaml:"-" json:"-"`
	Status          Status   `yaml:"status" json:"status"`
	Labels          []Label  `yaml:"labels,omitempty" json:"labels,omitempty"`
	ServiceAccounts []string `yaml:"serviceAccounts,omitempty" json:"serviceAccounts,omitempty"`
	OnUpdate        string   `yaml:"onUpdate,omitempty" json:"onUpdate,omitempty"`
	Payload         string   `yaml:"payload" json:"payload"`
}

// metadataSchema validates the shape of a definition document before it
// is unmarshalled into the typed struct, so bad files fail fast with a
// field-level message instead of surfacing as zero values later.
const metadataSchema = `{
	"type": "object",
	"required": ["status", "payload"],
	"properties": {
		"status": {"type": "string", "enum": ["plaintext", "encrypted"]},
		"payload": {"type": "string"},
		"onUpdate": {"type": "string"},
		"labels": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["key", "value"],
				"properties": {
					"key": {"type": "string"},
					"value": {"type": "string"}
				}
			}
		},
		"serviceAccounts": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

// Parse validates and decodes a definition document. path is used only
// for error reporting.
func Parse(path string, data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, sserrors.DefinitionError{Path: path, Message: "invalid YAML: " + err.Error()}
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, sserrors.DefinitionError{Path: path, Message: "cannot convert document for validation: " + err.Error()}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metadataSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return nil, sserrors.DefinitionError{Path: path, Message: "schema validation error: " + err.Error()}
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, sserrors.DefinitionError{Path: path, Message: strings.Join(msgs, "; ")}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, sserrors.DefinitionError{Path: path, Message: err.Error()}
	}
	def.Name = NameFromPath(path)
	return &def, nil
}

// NameFromPath derives the secret name from a definition file path:
// the base name minus the trailing extension.
func NameFromPath(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// LabelMap returns the declared labels as a map for order-independent
// comparison. Duplicate keys resolve to the last declared value.
func (d *Definition) LabelMap() map[string]string {
	m := make(map[string]string, len(d.Labels))
	for _, l := range d.Labels {
		m[l.Key] = l.Value
	}
	return m
}

// EnforcesAccess reports whether the definition declares a service
// account list. When it does not, remote access bindings are left
// untouched.
func (d *Definition) EnforcesAccess() bool {
	return d.ServiceAccounts != nil
}

// Encrypted reports whether the payload is currently encrypted.
func (d *Definition) Encrypted() bool {
	return d.Status == StatusEncrypted
}
