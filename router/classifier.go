package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode is the response path chosen for a message.
type Mode int

const (
	// ModePlain answers conversationally without tools.
	ModePlain Mode = iota
	// ModeTooled answers through the database tool loop.
	ModeTooled
)

// String returns the lower-case mode name used in logs, metrics and the API.
func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeTooled:
		return "tooled"
	default:
		return "unknown"
	}
}

// Rules are the trigger terms and patterns that send a message down the
// tool-using path.
type Rules struct {
	Terms    []string `mapstructure:"terms"`
	Patterns []string `mapstructure:"patterns"`
}

// DefaultRules returns the built-in trigger vocabulary.
func DefaultRules() Rules {
	return Rules{
		Terms: []string{
			"collection", "database", "document", "field", "query", "search",
			"find", "aggregate", "record", "mongodb", "list",
		},
		Patterns: []string{
			`show me .+ from .+`,
			`find .+ in .+`,
			`how many .+ in .+`,
			`list all .+ in .+`,
		},
	}
}

// Classifier decides the Mode of a message. It is immutable and safe for
// concurrent use.
type Classifier struct {
	terms    []string
	patterns []*regexp.Regexp
}

// NewClassifier compiles rules. Terms are lower-cased and blank entries
// ignored. Patterns compile case-insensitively with their source untouched; an
// invalid pattern is an error.
func NewClassifier(rules Rules) (*Classifier, error) {
	c := &Classifier{}
	for _, t := range rules.Terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			c.terms = append(c.terms, t)
		}
	}
	for _, p := range rules.Patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("router: invalid pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// Classify returns ModeTooled when any trigger matches, ModePlain otherwise.
func (c *Classifier) Classify(message string) Mode {
	mode, _ := c.Match(message)
	return mode
}

// Match is Classify plus the trigger that fired, for diagnostics.
func (c *Classifier) Match(message string) (Mode, string) {
	text := strings.ToLower(message)
	for _, t := range c.terms {
		if strings.Contains(text, t) {
			return ModeTooled, t
		}
	}
	for _, re := range c.patterns {
		if re.MatchString(message) {
			return ModeTooled, strings.TrimPrefix(re.String(), "(?i)")
		}
	}
	return ModePlain, ""
}
