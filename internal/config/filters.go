package config

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// PresetFilter is one entry in the preset filter catalog. The label is what
// the chat client submits verbatim; Where is the SQL predicate the local query
// engine compiles it to. Remote mode forwards the label and ignores Where.
type PresetFilter struct {
	Label string `yaml:"label"`
	Where string `yaml:"where"`
}

// Validate checks a single preset filter entry.
func (f *PresetFilter) Validate() error {
	if f.Label == "" {
		return fmt.Errorf("preset filter is missing a label")
	}
	if f.Where == "" {
		return fmt.Errorf("preset filter %q is missing a where clause", f.Label)
	}
	return nil
}

// filtersFile is the shape of the optional YAML configuration file.
type filtersFile struct {
	Filters []PresetFilter `yaml:"filters"`
}

// LoadFiltersFile parses a preset filter catalog from YAML.
func LoadFiltersFile(r io.Reader) ([]PresetFilter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file filtersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(file.Filters) == 0 {
		return nil, fmt.Errorf("config file defines no preset filters")
	}

	for i := range file.Filters {
		if err := file.Filters[i].Validate(); err != nil {
			return nil, err
		}
	}

	return file.Filters, nil
}

// DefaultFilters returns the built-in preset filter catalog. The labels match
// what the chat client offers in its filter picker.
func DefaultFilters() []PresetFilter {
	return []PresetFilter{
		{
			Label: "VIP customers only",
			Where: "segment = 'VIP'",
		},
		{
			Label: "High value customers (Average Order > $300)",
			Where: "avg_order_value > 300",
		},
		{
			Label: "Active customers in last 30 days",
			Where: "last_purchase_date >= date('now', '-30 days')",
		},
		{
			Label: "Frequent buyers (10+ purchases)",
			Where: "total_purchases >= 10",
		},
		{
			Label: "Churn risk customers (inactive 90+ days)",
			Where: "last_purchase_date < date('now', '-90 days')",
		},
	}
}
