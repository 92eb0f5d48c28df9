package normalizer

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed data/legal_suffixes.yaml
var rulesYAML []byte

// RulesConfig holds the normalization rule tables loaded from the embedded
// YAML (embed, then unmarshal).
type RulesConfig struct {
	Suffixes     []string `yaml:"suffixes"`
	GenericWords []string `yaml:"generic_words"`
}

// LoadRulesConfig loads the embedded legal-suffix and generic-word tables.
func LoadRulesConfig() (*RulesConfig, error) {
	config := &RulesConfig{}
	if err := yaml.Unmarshal(rulesYAML, config); err != nil {
		return nil, err
	}
	return config, nil
}
