package markers

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cardmap/cardmap-cli/internal/model"
)

// Style is a marker's rendering hint.
type Style struct {
	Icon  string `json:"icon" yaml:"icon"`
	Color string `json:"color" yaml:"color"`
}

// LabelRule styles items carrying a particular label.
type LabelRule struct {
	Label string `yaml:"label"`
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
}

// IconRules maps an item to a style. Precedence is fixed: completion
// first, then workflow-status labels, then priority labels, then the
// neutral fallback. Within a tier the first matching rule wins.
type IconRules struct {
	Completed Style       `yaml:"completed"`
	Workflow  []LabelRule `yaml:"workflow"`
	Priority  []LabelRule `yaml:"priority"`
	Neutral   Style       `yaml:"neutral"`
}

// DefaultIconRules returns the built-in styling.
func DefaultIconRules() IconRules {
	return IconRules{
		Completed: Style{Icon: "check", Color: "green"},
		Workflow: []LabelRule{
			{Label: "In Progress", Icon: "wrench", Color: "orange"},
			{Label: "Scheduled", Icon: "calendar", Color: "purple"},
		},
		Priority: []LabelRule{
			{Label: "Urgent", Icon: "alert", Color: "red"},
			{Label: "High", Icon: "flag", Color: "darkred"},
		},
		Neutral: Style{Icon: "pin", Color: "blue"},
	}
}

// LoadIconRules reads rule overrides from a YAML file. Tiers absent from
// the file keep their defaults.
func LoadIconRules(path string) (IconRules, error) {
	rules := DefaultIconRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "markers: read icon rules %s", path)
	}

	var wrapper struct {
		Icons struct {
			Completed *Style      `yaml:"completed"`
			Workflow  []LabelRule `yaml:"workflow"`
			Priority  []LabelRule `yaml:"priority"`
			Neutral   *Style      `yaml:"neutral"`
		} `yaml:"icons"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return rules, eris.Wrap(err, "markers: parse icon rules")
	}

	if wrapper.Icons.Completed != nil {
		rules.Completed = *wrapper.Icons.Completed
	}
	if wrapper.Icons.Workflow != nil {
		rules.Workflow = wrapper.Icons.Workflow
	}
	if wrapper.Icons.Priority != nil {
		rules.Priority = wrapper.Icons.Priority
	}
	if wrapper.Icons.Neutral != nil {
		rules.Neutral = *wrapper.Icons.Neutral
	}
	return rules, nil
}

// StyleFor returns the style for an item.
func (r IconRules) StyleFor(item model.Item) Style {
	if item.Completed {
		return r.Completed
	}
	for _, rule := range r.Workflow {
		if item.HasLabel(rule.Label) {
			return Style{Icon: rule.Icon, Color: rule.Color}
		}
	}
	for _, rule := range r.Priority {
		if item.HasLabel(rule.Label) {
			return Style{Icon: rule.Icon, Color: rule.Color}
		}
	}
	return r.Neutral
}
