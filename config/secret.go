package config

import (
	"gopkg.in/yaml.v3"
)

// SecretString wraps a string value that should be treated as sensitive.
// Credentials are always secret; the !secret tag is accepted and kept.
type SecretString struct {
	value string
}

// NewSecretString creates a new SecretString with the given value.
func NewSecretString(value string) SecretString {
	return SecretString{value: value}
}

// Value returns the actual secret value.
func (s SecretString) Value() string {
	return s.value
}

func (s SecretString) IsZero() bool {
	return s.value == ""
}

// String returns a redacted representation for display.
func (s SecretString) String() string {
	if s.value != "" {
		return "[hidden]"
	}
	return ""
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SecretString) UnmarshalYAML(node *yaml.Node) error {
	var value string
	if err := node.Decode(&value); err != nil {
		return err
	}
	s.value = value
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s SecretString) MarshalYAML() (any, error) {
	if s.value == "" {
		return "", nil
	}
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!secret",
		Value: s.value,
	}, nil
}
