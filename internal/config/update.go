package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SetDefaultHost sets the top-level default in the config file, keeping the
// rest of the file's structure and comments. The host must exist.
func SetDefaultHost(configPath, hostName string) error {
	return editConfig(configPath, func(doc *yaml.Node) error {
		hostsNode := findMapValue(doc, "hosts")
		if findMapValue(hostsNode, hostName) == nil {
			return fmt.Errorf("host '%s' not found in config", hostName)
		}
		setMapValue(doc, "default", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: hostName})
		return nil
	})
}

// AddHost appends a host entry to the config file, keeping existing entries
// and comments. It refuses to replace a host that is already defined.
func AddHost(configPath, hostName string, h Host) error {
	var entry yaml.Node
	if err := entry.Encode(h); err != nil {
		return fmt.Errorf("failed to encode host: %w", err)
	}

	return editConfig(configPath, func(doc *yaml.Node) error {
		hostsNode := findMapValue(doc, "hosts")
		if hostsNode == nil || hostsNode.Kind != yaml.MappingNode {
			hostsNode = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			setMapValue(doc, "hosts", hostsNode)
		}
		if findMapValue(hostsNode, hostName) != nil {
			return fmt.Errorf("host '%s' already exists in config", hostName)
		}
		hostsNode.Content = append(hostsNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: hostName},
			&entry)
		return nil
	})
}

// RemoveHost deletes a host entry. When it was the default, the default
// moves to the first remaining host, or is cleared when none are left.
// It returns the new default.
func RemoveHost(configPath, hostName string) (string, error) {
	var newDefault string
	err := editConfig(configPath, func(doc *yaml.Node) error {
		hostsNode := findMapValue(doc, "hosts")
		if !deleteMapKey(hostsNode, hostName) {
			return fmt.Errorf("host '%s' not found in config", hostName)
		}

		def := findMapValue(doc, "default")
		if def == nil {
			return nil
		}
		newDefault = def.Value
		if def.Value != hostName {
			return nil
		}
		newDefault = ""
		if len(hostsNode.Content) >= 2 {
			newDefault = hostsNode.Content[0].Value
			setMapValue(doc, "default", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: newDefault})
		} else {
			deleteMapKey(doc, "default")
		}
		return nil
	})
	return newDefault, err
}

// editConfig parses configPath as a yaml.Node tree, applies edit to the root
// mapping and writes the result back. A missing or empty file starts from a
// fresh document.
func editConfig(configPath string, edit func(doc *yaml.Node) error) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{
			Kind: yaml.MappingNode,
			Tag:  "!!map",
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: "version"},
				{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(CurrentConfigVersion)},
			},
		}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	if err := edit(docNode); err != nil {
		return err
	}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

// setMapValue replaces the value under key, or appends the pair. A key
// comment on the old value is carried over.
func setMapValue(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Kind == yaml.ScalarNode && node.Content[i].Value == key {
			old := node.Content[i+1]
			value.LineComment = old.LineComment
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value)
}

// deleteMapKey removes key and its value from a mapping node.
func deleteMapKey(node *yaml.Node, key string) bool {
	if node == nil || node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Kind == yaml.ScalarNode && node.Content[i].Value == key {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return true
		}
	}
	return false
}
