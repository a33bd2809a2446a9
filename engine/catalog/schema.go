package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/n8nkit/n8nctl/engine/core"
)

// PropertyOption is one allowed value of an options/multiOptions property.
type PropertyOption struct {
	Value       any    `json:"value"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayOptions gates whether a property is active for a given node
// configuration.
type DisplayOptions struct {
	Show map[string][]any `json:"show,omitempty"`
	Hide map[string][]any `json:"hide,omitempty"`
}

// PropertySchema describes one configurable property of a node.
type PropertySchema struct {
	Name           string           `json:"name"`
	DisplayName    string           `json:"displayName,omitempty"`
	Type           string           `json:"type"`
	Required       bool             `json:"required,omitempty"`
	Default        any              `json:"default,omitempty"`
	Description    string           `json:"description,omitempty"`
	Placeholder    string           `json:"placeholder,omitempty"`
	Options        []PropertyOption `json:"options,omitempty"`
	DisplayOptions *DisplayOptions  `json:"displayOptions,omitempty"`
}

// OperationInfo is one resource/operation pair a node exposes.
type OperationInfo struct {
	Resource    string `json:"resource,omitempty"`
	Operation   string `json:"operation"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// CredentialInfo names a credential type the node can use.
type CredentialInfo struct {
	Name     string `json:"name"`
	Required bool   `json:"required,omitempty"`
}

// NodeDefinition is the catalog's record of one node type.
type NodeDefinition struct {
	NodeType    string           `json:"nodeType"`
	DisplayName string           `json:"displayName"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	Package     string           `json:"package,omitempty"`
	IsTrigger   bool             `json:"isTrigger,omitempty"`
	IsWebhook   bool             `json:"isWebhook,omitempty"`
	IsAITool    bool             `json:"isAITool,omitempty"`
	IsVersioned bool             `json:"isVersioned,omitempty"`
	Version     string           `json:"version,omitempty"`
	Properties  []PropertySchema `json:"properties,omitempty"`
	Operations  []OperationInfo  `json:"operations,omitempty"`
	Credentials []CredentialInfo `json:"credentials,omitempty"`
}

// LatestVersion parses the definition's current version string. Catalog
// version strings may be "4", "4.2" or "4.2.0"; semver tolerates all three.
func (d *NodeDefinition) LatestVersion() (core.Version, error) {
	if d.Version == "" {
		return core.Version{Major: 1}, nil
	}
	sv, err := semver.NewVersion(d.Version)
	if err != nil {
		return core.Version{}, fmt.Errorf("catalog: node %s version %q: %w", d.NodeType, d.Version, err)
	}
	return core.Version{Major: int(sv.Major()), Minor: int(sv.Minor())}, nil
}

// Property finds a property schema by name.
func (d *NodeDefinition) Property(name string) (*PropertySchema, bool) {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			return &d.Properties[i], true
		}
	}
	return nil, false
}

func decodeProperties(raw string) ([]PropertySchema, error) {
	if raw == "" {
		return nil, nil
	}
	var props []PropertySchema
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("catalog: decode properties: %w", err)
	}
	return props, nil
}

func decodeOperations(raw string) ([]OperationInfo, error) {
	if raw == "" {
		return nil, nil
	}
	var ops []OperationInfo
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, fmt.Errorf("catalog: decode operations: %w", err)
	}
	return ops, nil
}

func decodeCredentials(raw string) ([]CredentialInfo, error) {
	if raw == "" {
		return nil, nil
	}
	var creds []CredentialInfo
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("catalog: decode credentials: %w", err)
	}
	return creds, nil
}
