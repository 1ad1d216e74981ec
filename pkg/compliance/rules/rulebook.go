package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rulebook.yaml
var defaultRulebookYAML []byte

// Rulebook is the configurable set of checks applied by the Engine.
// Patterns are regular expressions matched case-insensitively.
type Rulebook struct {
	Version            string         `yaml:"version"`
	CriticalTerms      []Term         `yaml:"critical_terms"`
	SoftTerms          []SoftTerm     `yaml:"soft_terms"`
	Disclaimers        []Disclaimer   `yaml:"disclaimers"`
	Identifier         IdentifierRule `yaml:"identifier"`
	EducationalMarkers []string       `yaml:"educational_markers"`
	Weights            Weights        `yaml:"weights"`
}

// Term is a prohibited phrase. A match yields a critical violation.
type Term struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// SoftTerm is a discouraged phrase that auto-fix replaces with neutral wording.
type SoftTerm struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Message     string `yaml:"message"`
}

// Disclaimer is a mandatory statement. Any one pattern satisfies it; Text
// holds the statement auto-fix appends, keyed by language.
type Disclaimer struct {
	Name     string            `yaml:"name"`
	Patterns []string          `yaml:"patterns"`
	Text     map[string]string `yaml:"text"`
}

// IdentifierRule describes the advisor's regulatory identifier (EUIN or ARN).
type IdentifierRule struct {
	Required bool     `yaml:"required"`
	Patterns []string `yaml:"patterns"`
}

// Weights are the risk contributions of non-critical findings.
type Weights struct {
	SoftTerm          int `yaml:"soft_term"`
	MissingDisclaimer int `yaml:"missing_disclaimer"`
	MissingIdentifier int `yaml:"missing_identifier"`
	NotEducational    int `yaml:"not_educational"`
}

// DefaultRulebook returns the built-in rulebook.
func DefaultRulebook() *Rulebook {
	rb, err := ParseRulebook(defaultRulebookYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in rulebook is invalid: %v", err))
	}
	return rb
}

// LoadRulebook reads and validates a rulebook file.
func LoadRulebook(path string) (*Rulebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rulebook: %w", err)
	}
	rb, err := ParseRulebook(data)
	if err != nil {
		return nil, fmt.Errorf("rulebook %s: %w", path, err)
	}
	return rb, nil
}

// ParseRulebook decodes and validates rulebook YAML.
func ParseRulebook(data []byte) (*Rulebook, error) {
	var rb Rulebook
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("failed to parse rulebook YAML: %w", err)
	}
	if _, err := compile(&rb); err != nil {
		return nil, err
	}
	return &rb, nil
}

type compiledTerm struct {
	re      *regexp.Regexp
	message string
}

type compiledSoftTerm struct {
	re          *regexp.Regexp
	replacement string
	message     string
}

type compiledDisclaimer struct {
	name     string
	patterns []*regexp.Regexp
	text     map[string]string
}

type compiledRulebook struct {
	source      *Rulebook
	critical    []compiledTerm
	soft        []compiledSoftTerm
	disclaimers []compiledDisclaimer
	identifiers []*regexp.Regexp
	idRequired  bool
	markers     []string
	weights     Weights
}

func compilePattern(field, pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%s: empty pattern", field)
	}
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid pattern %q: %w", field, pattern, err)
	}
	return re, nil
}

func compile(rb *Rulebook) (*compiledRulebook, error) {
	c := &compiledRulebook{
		source:     rb,
		idRequired: rb.Identifier.Required,
		weights:    rb.Weights,
	}

	for i, t := range rb.CriticalTerms {
		re, err := compilePattern(fmt.Sprintf("critical_terms[%d]", i), t.Pattern)
		if err != nil {
			return nil, err
		}
		c.critical = append(c.critical, compiledTerm{re: re, message: t.Message})
	}

	for i, t := range rb.SoftTerms {
		re, err := compilePattern(fmt.Sprintf("soft_terms[%d]", i), t.Pattern)
		if err != nil {
			return nil, err
		}
		c.soft = append(c.soft, compiledSoftTerm{re: re, replacement: t.Replacement, message: t.Message})
	}

	for i, d := range rb.Disclaimers {
		if d.Name == "" {
			return nil, fmt.Errorf("disclaimers[%d]: name is required", i)
		}
		if len(d.Patterns) == 0 {
			return nil, fmt.Errorf("disclaimers[%d]: at least one pattern is required", i)
		}
		cd := compiledDisclaimer{name: d.Name, text: d.Text}
		for j, p := range d.Patterns {
			re, err := compilePattern(fmt.Sprintf("disclaimers[%d].patterns[%d]", i, j), p)
			if err != nil {
				return nil, err
			}
			cd.patterns = append(cd.patterns, re)
		}
		c.disclaimers = append(c.disclaimers, cd)
	}

	for i, p := range rb.Identifier.Patterns {
		// Identifiers are case sensitive: "E123456" is valid, "e123456" is not.
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("identifier.patterns[%d]: invalid pattern %q: %w", i, p, err)
		}
		c.identifiers = append(c.identifiers, re)
	}
	if c.idRequired && len(c.identifiers) == 0 {
		return nil, fmt.Errorf("identifier: required but no patterns given")
	}

	for _, m := range rb.EducationalMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			c.markers = append(c.markers, m)
		}
	}

	if rb.Weights.SoftTerm < 0 || rb.Weights.MissingDisclaimer < 0 ||
		rb.Weights.MissingIdentifier < 0 || rb.Weights.NotEducational < 0 {
		return nil, fmt.Errorf("weights: must be non-negative")
	}

	return c, nil
}
