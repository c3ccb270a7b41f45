package astarte

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Interface type and ownership values as they appear in definition files.
const (
	TypeDatastream = "datastream"
	TypeProperties = "properties"

	OwnershipDevice = "device"
	OwnershipServer = "server"

	AggregationIndividual = "individual"
	AggregationObject     = "object"
)

// InterfaceDefinition describes one interface the device declares. The JSON
// shape follows the platform's interface definition files.
type InterfaceDefinition struct {
	Name         string              `json:"interface_name"`
	VersionMajor int                 `json:"version_major"`
	VersionMinor int                 `json:"version_minor"`
	Type         string              `json:"type"`
	Ownership    string              `json:"ownership"`
	Aggregation  string              `json:"aggregation,omitempty"`
	Mappings     []MappingDefinition `json:"mappings"`
}

// MappingDefinition describes one endpoint of an interface.
type MappingDefinition struct {
	Endpoint          string `json:"endpoint"`
	Type              string `json:"type"`
	AllowUnset        bool   `json:"allow_unset,omitempty"`
	ExplicitTimestamp bool   `json:"explicit_timestamp,omitempty"`
}

// ServerOwned reports whether the platform publishes on this interface.
// Server-owned interfaces drive the subscription set.
func (d InterfaceDefinition) ServerOwned() bool {
	return d.Ownership == OwnershipServer
}

// ObjectAggregated reports whether values travel as one aggregate per message.
// Absent aggregation means individual.
func (d InterfaceDefinition) ObjectAggregated() bool {
	return d.Aggregation == AggregationObject
}

// LoadInterfaces parses every .json definition in dir, keyed by interface
// name. A missing or unreadable directory is an error: a device with no
// declared interfaces cannot exchange anything.
func LoadInterfaces(dir string) (map[string]InterfaceDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading interfaces directory: %w", err)
	}

	defs := make(map[string]InterfaceDefinition)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading interface %s: %w", entry.Name(), err)
		}

		var def InterfaceDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parsing interface %s: %w", entry.Name(), err)
		}

		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("interface %s: %w", entry.Name(), err)
		}

		if _, dup := defs[def.Name]; dup {
			return nil, fmt.Errorf("interface %s declared twice", def.Name)
		}
		defs[def.Name] = def
	}

	return defs, nil
}

// validate checks the fields the session relies on.
func (d InterfaceDefinition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("missing interface_name")
	}
	if d.Type != TypeDatastream && d.Type != TypeProperties {
		return fmt.Errorf("unknown type %q", d.Type)
	}
	if d.Ownership != OwnershipDevice && d.Ownership != OwnershipServer {
		return fmt.Errorf("unknown ownership %q", d.Ownership)
	}
	if d.Aggregation != "" && d.Aggregation != AggregationIndividual && d.Aggregation != AggregationObject {
		return fmt.Errorf("unknown aggregation %q", d.Aggregation)
	}
	if len(d.Mappings) == 0 {
		return fmt.Errorf("no mappings")
	}
	for _, m := range d.Mappings {
		if !strings.HasPrefix(m.Endpoint, "/") {
			return fmt.Errorf("mapping endpoint %q must start with /", m.Endpoint)
		}
	}
	return nil
}
