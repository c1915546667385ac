package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
)

// Merge returns a copy of cfg with dotted-key overrides applied, e.g.
// {"display.format": "yaml"}. Values may be nested maps and slices.
// Keys that do not name a config field are rejected.
func Merge(cfg *Config, overrides map[string]any) (*Config, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := set(&doc, key, overrides[key]); err != nil {
			return nil, err
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	merged := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(merged); err != nil {
		return nil, fmt.Errorf("invalid config override: %w", err)
	}
	merged.Path = cfg.Path
	merged.BaseDir = cfg.BaseDir
	merged.Connection.Hosts = splitHosts(merged.Connection.Hosts)

	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// set assigns value at a dotted key, creating intermediate mappings.
func set(root *yaml.Node, key string, value any) error {
	components := strings.Split(key, ".")
	node := root
	for _, c := range components[:len(components)-1] {
		child := lookup(node, c)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, scalar(c), child)
		} else if child.Kind != yaml.MappingNode {
			return perrors.New("USAGE-0005", map[string]any{"Key": key, "Component": c})
		}
		node = child
	}

	var valueNode yaml.Node
	if err := valueNode.Encode(value); err != nil {
		return fmt.Errorf("encoding value for %s: %w", key, err)
	}

	last := components[len(components)-1]
	if existing := lookup(node, last); existing != nil {
		*existing = valueNode
		return nil
	}
	node.Content = append(node.Content, scalar(last), &valueNode)
	return nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// Document returns the configuration as a YAML mapping with secret
// values replaced by "[hidden]".
func (c *Config) Document() (*yaml.Node, error) {
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	redact(&doc)
	return &doc, nil
}

func redact(n *yaml.Node) {
	if n.Tag == "!secret" {
		n.Tag = "!!str"
		n.Value = "[hidden]"
		n.Style = 0
	}
	for _, child := range n.Content {
		redact(child)
	}
}
