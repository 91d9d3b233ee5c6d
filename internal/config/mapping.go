package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TableMap pairs a source table with its destination table.
type TableMap struct {
	Source      string
	Destination string
}

// TableMapping is the ordered source-to-destination table list. In YAML it
// is written as a mapping; an empty or null value means the destination has
// the same name as the source.
type TableMapping []TableMap

// UnmarshalYAML preserves document order, which a Go map would lose.
func (m *TableMapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tables must be a mapping of source: destination", node.Line)
	}

	seen := make(map[string]bool, len(node.Content)/2)
	out := make(TableMapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return fmt.Errorf("line %d: table name must be a non-empty string", k.Line)
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: table %q mapped twice", k.Line, k.Value)
		}
		seen[k.Value] = true

		dest := k.Value
		switch {
		case v.Kind == yaml.ScalarNode && v.Tag == "!!null":
		case v.Kind == yaml.ScalarNode && v.Value != "":
			dest = v.Value
		case v.Kind == yaml.ScalarNode:
		default:
			return fmt.Errorf("line %d: destination for %q must be a table name", v.Line, k.Value)
		}
		out = append(out, TableMap{Source: k.Value, Destination: dest})
	}
	*m = out
	return nil
}

// MarshalYAML writes the mapping back in order.
func (m TableMapping) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, t := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: t.Source},
			&yaml.Node{Kind: yaml.ScalarNode, Value: t.Destination},
		)
	}
	return node, nil
}
