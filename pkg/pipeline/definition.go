package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pipeline type values accepted in a definition.
const (
	TypeStandard    = "Pipeline"
	TypeDistributed = "DistributedPipeline"
)

// Definition is the parsed form of a pipeline definition document: a list
// of configured components and a list of pipelines wiring them together.
// One document may define several pipelines (a query pipeline and its
// matching indexing pipeline, typically) sharing the component list.
type Definition struct {
	Version    string         `yaml:"version,omitempty"`
	Components []ComponentDef `yaml:"components"`
	Pipelines  []PipelineDef  `yaml:"pipelines"`
}

// ComponentDef declares a named, configured component.
type ComponentDef struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params,omitempty"`
}

// PipelineDef wires declared components into a graph.
type PipelineDef struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type,omitempty"`
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef places one component in a pipeline. Inputs reference other node
// names or the source tokens Query / File. Replicas above 1 are only valid
// in a DistributedPipeline.
type NodeDef struct {
	Name     string   `yaml:"name"`
	Inputs   []string `yaml:"inputs"`
	Replicas int      `yaml:"replicas,omitempty"`
}

// ParseDefinition decodes a YAML definition document.
func ParseDefinition(src []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(src, &def); err != nil {
		return nil, fmt.Errorf("definition parse error: %w", err)
	}
	return &def, nil
}

// LoadDefinition reads and parses a definition file.
func LoadDefinition(path string) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return ParseDefinition(src)
}

// Marshal serializes the definition back to YAML.
func (d *Definition) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("definition marshal error: %w", err)
	}
	return out, nil
}

// Pipeline returns the named pipeline definition.
func (d *Definition) Pipeline(name string) (*PipelineDef, error) {
	for i := range d.Pipelines {
		if d.Pipelines[i].Name == name {
			return &d.Pipelines[i], nil
		}
	}
	return nil, fmt.Errorf("no pipeline named %q in definition", name)
}

// Component returns the named component definition.
func (d *Definition) Component(name string) (*ComponentDef, error) {
	for i := range d.Components {
		if d.Components[i].Name == name {
			return &d.Components[i], nil
		}
	}
	return nil, fmt.Errorf("no component named %q in definition", name)
}
