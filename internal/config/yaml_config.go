package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WritableConfigPath returns the config file `qc config set` writes to: the
// loaded file if any, else ./.qc/config.yaml.
func WritableConfigPath() string {
	if used := ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(SearchDirs()[0], ConfigFileName)
}

// SetYamlConfig validates and writes key=value into the YAML file at
// configPath, creating parent mappings for dotted keys ("jira.url" becomes
// jira: {url: ...}). Comments and unrelated keys are preserved.
func SetYamlConfig(configPath, key, value string) error {
	if err := ValidateKey(key, value); err != nil {
		return err
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - config file path from caller
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config.yaml: %w", err)
	}

	var root yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("failed to parse config.yaml: %w", err)
		}
	}

	// Handle empty or comment-only files by creating a valid document structure
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if root.Content[0].Kind != yaml.MappingNode {
		root.Content[0] = &yaml.Node{Kind: yaml.MappingNode}
	}

	setNode(root.Content[0], strings.Split(key, "."), value)

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config.yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}

	// Reload so the new value takes effect for the rest of this process.
	Set(key, value)
	return nil
}

// setNode walks/creates nested mappings along path and stores value as a
// string scalar at the leaf.
func setNode(mapping *yaml.Node, path []string, value string) {
	head := path[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != head {
			continue
		}
		if len(path) == 1 {
			mapping.Content[i+1] = scalar(value)
			return
		}
		child := mapping.Content[i+1]
		if child.Kind != yaml.MappingNode {
			child = &yaml.Node{Kind: yaml.MappingNode}
			mapping.Content[i+1] = child
		}
		setNode(child, path[1:], value)
		return
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: head}
	if len(path) == 1 {
		mapping.Content = append(mapping.Content, keyNode, scalar(value))
		return
	}
	child := &yaml.Node{Kind: yaml.MappingNode}
	mapping.Content = append(mapping.Content, keyNode, child)
	setNode(child, path[1:], value)
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
