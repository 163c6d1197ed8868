package settings

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// A [time.Duration] written as a Go duration string ("90s", "10m").
type Duration time.Duration

// Decodes a duration string. An empty value is zero.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	if s == "" {
		*d = 0
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Encodes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
