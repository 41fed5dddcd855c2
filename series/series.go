// Package series holds the per-series configuration registry. Configs are
// loaded once per run from YAML and are read-only thereafter.
package series

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	autoimply "github.com/boorubot/autoimply"
)

// Config is the immutable configuration for one series (franchise).
type Config struct {
	// Name uniquely identifies the series, e.g. "blue_archive".
	Name string `yaml:"name"`

	// TopicID is the forum topic that BURs for this series are posted to.
	// Mandatory; a zero value fails validation.
	TopicID int `yaml:"topic_id"`

	// WikiIDs lists wiki pages whose linked tags seed tag discovery.
	WikiIDs []int `yaml:"wiki_ids,omitempty"`

	// ExtraCostumePatterns are series-specific patterns tried before the
	// default costume pattern, in declared order. Each must expose the
	// named capture groups base_name, qualifiers and, optionally,
	// extra_qualifier.
	ExtraCostumePatterns []string `yaml:"extra_costume_patterns,omitempty"`

	// ExtraQualifiers are bare version tokens recognized as qualifiers
	// even without parentheses, e.g. "kai_ni".
	ExtraQualifiers []string `yaml:"extra_qualifiers,omitempty"`

	// Aliases are trailing series-marker tokens accepted in addition to
	// Name, e.g. "kancolle" for kantai_collection.
	Aliases []string `yaml:"aliases,omitempty"`

	// LineBlacklist holds literal "child -> parent" strings that are
	// never proposed.
	LineBlacklist []string `yaml:"line_blacklist,omitempty"`

	// QualifierBlacklist suppresses any implication whose child carries
	// one of these qualifier tokens.
	QualifierBlacklist []string `yaml:"qualifier_blacklist,omitempty"`

	// GroupByQualifier bundles implications sharing an extra-qualifier
	// into one request. Default true.
	GroupByQualifier bool `yaml:"-"`

	// AllowSubImplications lets a costume tag imply another costume tag
	// instead of only the bare character tag. Default true.
	AllowSubImplications bool `yaml:"-"`

	// Autopost gates live submission; false means dry-run/report.
	Autopost bool `yaml:"autopost,omitempty"`

	// MaxBURsPerTopic caps pending BURs per topic before submission
	// stops. Zero means DefaultMaxBURsPerTopic.
	MaxBURsPerTopic int `yaml:"max_burs_per_topic,omitempty"`
}

// rawConfig mirrors Config for YAML decoding; pointer bools distinguish
// "absent" from "false" so the defaults can be true.
type rawConfig struct {
	Name                 string   `yaml:"name"`
	TopicID              int      `yaml:"topic_id"`
	WikiIDs              []int    `yaml:"wiki_ids"`
	ExtraCostumePatterns []string `yaml:"extra_costume_patterns"`
	ExtraQualifiers      []string `yaml:"extra_qualifiers"`
	Aliases              []string `yaml:"aliases"`
	LineBlacklist        []string `yaml:"line_blacklist"`
	QualifierBlacklist   []string `yaml:"qualifier_blacklist"`
	GroupByQualifier     *bool    `yaml:"group_by_qualifier"`
	AllowSubImplications *bool    `yaml:"allow_sub_implications"`
	Autopost             bool     `yaml:"autopost"`
	MaxBURsPerTopic      int      `yaml:"max_burs_per_topic"`
}

// UnmarshalYAML decodes a Config and applies defaults.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*c = Config{
		Name:                 raw.Name,
		TopicID:              raw.TopicID,
		WikiIDs:              raw.WikiIDs,
		ExtraCostumePatterns: raw.ExtraCostumePatterns,
		ExtraQualifiers:      raw.ExtraQualifiers,
		Aliases:              raw.Aliases,
		LineBlacklist:        raw.LineBlacklist,
		QualifierBlacklist:   raw.QualifierBlacklist,
		GroupByQualifier:     raw.GroupByQualifier == nil || *raw.GroupByQualifier,
		AllowSubImplications: raw.AllowSubImplications == nil || *raw.AllowSubImplications,
		Autopost:             raw.Autopost,
		MaxBURsPerTopic:      raw.MaxBURsPerTopic,
	}
	if c.MaxBURsPerTopic == 0 {
		c.MaxBURsPerTopic = autoimply.DefaultMaxBURsPerTopic
	}
	return nil
}

// Validate checks the mandatory fields and pattern syntax. It is called at
// load time so that a malformed config fails before any series processing.
func (c Config) Validate() error {
	if c.Name == "" {
		return autoimply.NewValidationError("", "name", "must not be empty")
	}
	if c.TopicID <= 0 {
		return autoimply.NewValidationError(c.Name, "topic_id", "must be a positive forum topic id")
	}
	for _, p := range c.ExtraCostumePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return autoimply.NewValidationError(c.Name, "extra_costume_patterns", err.Error())
		}
	}
	for _, line := range c.LineBlacklist {
		if !strings.Contains(line, " -> ") {
			return autoimply.NewValidationError(c.Name, "line_blacklist",
				fmt.Sprintf("%q is not of the form \"child -> parent\"", line))
		}
	}
	return nil
}

// Markers returns the accepted trailing series-marker tokens: the series
// name plus any aliases.
func (c Config) Markers() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// TopicURL returns the forum topic URL BURs are posted to.
func (c Config) TopicURL() string {
	return fmt.Sprintf("https://danbooru.donmai.us/forum_topics/%d", c.TopicID)
}

// Matches reports whether a user-supplied name refers to this series.
// Punctuation and underscore/space differences are ignored.
func (c Config) Matches(name string) bool {
	want := normalizeName(name)
	for _, candidate := range c.Markers() {
		if normalizeName(candidate) == want {
			return true
		}
	}
	return false
}

func normalizeName(name string) string {
	name = strings.Trim(name, "!?.")
	return strings.ReplaceAll(name, "_", " ")
}

// Registry is an ordered, read-only collection of series configs.
type Registry struct {
	series []Config
}

type registryFile struct {
	Series []Config `yaml:"series"`
}

// Parse decodes and validates a registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("autoimply: parse series config: %w", err)
	}
	if len(file.Series) == 0 {
		return nil, autoimply.ErrNoSeries
	}

	seen := make(map[string]bool, len(file.Series))
	for _, cfg := range file.Series {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if seen[cfg.Name] {
			return nil, autoimply.NewValidationError(cfg.Name, "name", "duplicate series name")
		}
		seen[cfg.Name] = true
	}

	return &Registry{series: file.Series}, nil
}

// Load reads and parses a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("autoimply: read series config: %w", err)
	}
	return Parse(data)
}

// All returns the configs in declared order.
func (r *Registry) All() []Config {
	return r.series
}

// Len returns the number of configured series.
func (r *Registry) Len() int {
	return len(r.series)
}

// Find returns the config whose name or alias matches the given name.
func (r *Registry) Find(name string) (Config, bool) {
	for _, cfg := range r.series {
		if cfg.Matches(name) {
			return cfg, true
		}
	}
	return Config{}, false
}
