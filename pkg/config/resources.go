package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/lookout/pkg/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Resource kinds accepted in resource files
const (
	KindSource    = "Source"
	KindDashboard = "Dashboard"
)

// Resource is one document of a resource file
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       yaml.Node        `yaml:"spec"`
}

// ResourceMetadata names a resource. The name becomes the id when the spec
// has none.
type ResourceMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Resources are the sources and dashboards of a resource file, in file order
type Resources struct {
	Sources    []*types.SourceInstance
	Dashboards []*types.Dashboard
}

// LoadResources reads a multi-document YAML resource file
func LoadResources(path string) (*Resources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseResources(data)
}

// ParseResources decodes multi-document YAML. Sources without an id or a
// metadata name get a random id.
func ParseResources(data []byte) (*Resources, error) {
	out := &Resources{}
	dec := yaml.NewDecoder(bytes.NewReader(data))

	for i := 0; ; i++ {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: failed to parse YAML: %w", i, err)
		}
		if res.Kind == "" && res.Spec.Kind == 0 {
			continue
		}

		switch res.Kind {
		case KindSource:
			src := &types.SourceInstance{}
			if err := res.Spec.Decode(src); err != nil {
				return nil, fmt.Errorf("document %d: invalid source: %w", i, err)
			}
			if src.ID == "" {
				src.ID = res.Metadata.Name
			}
			if src.ID == "" {
				src.ID = uuid.New().String()
			}
			if src.Name == "" {
				src.Name = res.Metadata.Name
			}
			if err := src.Validate(); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			out.Sources = append(out.Sources, src)

		case KindDashboard:
			d := &types.Dashboard{}
			if err := res.Spec.Decode(d); err != nil {
				return nil, fmt.Errorf("document %d: invalid dashboard: %w", i, err)
			}
			if d.ID == "" {
				d.ID = res.Metadata.Name
			}
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			out.Dashboards = append(out.Dashboards, d)

		default:
			return nil, fmt.Errorf("document %d: unsupported resource kind %q", i, res.Kind)
		}
	}

	return out, nil
}
