package checker

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	//go:embed base/suricata.yaml
	baseConfig string
	//go:embed base/reference.config
	referenceConfig string
	//go:embed base/classification.config
	classificationConfig string
)

const yamlHeader = "%YAML 1.1\n---\n"

// writeConfig writes the reference, classification and engine YAML files
// into dir and returns the path of the YAML. override replaces the built-in
// base YAML; the scratch paths and analysis settings are always set on top.
func writeConfig(dir, override string) (string, error) {
	if err := os.WriteFile(filepath.Join(dir, "reference.config"), []byte(referenceConfig), 0o600); err != nil {
		return "", fmt.Errorf("write reference config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "classification.config"), []byte(classificationConfig), 0o600); err != nil {
		return "", fmt.Errorf("write classification config: %w", err)
	}
	base := baseConfig
	if override != "" {
		base = override
	}
	data, err := buildConfig(base, dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "suricata.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write engine config: %w", err)
	}
	return path, nil
}

// buildConfig decodes base, sets the keys the checker depends on and
// re-encodes it with the directive header the engine requires. Keys already
// present in base are overwritten in place so the document keeps its order.
func buildConfig(base, dir string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(base), &doc); err != nil {
		return nil, fmt.Errorf("parse engine config: %w", err)
	}
	var root *yaml.Node
	if len(doc.Content) > 0 {
		root = doc.Content[0]
	}
	if root == nil {
		root = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse engine config: top level is not a mapping")
	}

	setScalar(root, "mpm-algo", "ac-bs")
	setScalar(root, "default-rule-path", dir)
	setScalar(root, "reference-config-file", filepath.Join(dir, "reference.config"))
	setScalar(root, "classification-file", filepath.Join(dir, "classification.config"))
	analysis := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setScalar(analysis, "rules-fast-pattern", "yes")
	setScalar(analysis, "rules", "yes")
	setNode(root, "engine-analysis", analysis)

	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode engine config: %w", err)
	}
	return []byte(yamlHeader + strings.TrimPrefix(string(out), "---\n")), nil
}

func setScalar(m *yaml.Node, key, value string) {
	setNode(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func setNode(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value)
}
