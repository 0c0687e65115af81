package motivation

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog string

// templatesPerType is the fixed size of each primary message pool.
const templatesPerType = 4

// goalPlaceholder is replaced by the user's first goal in the future-pacing template.
const goalPlaceholder = "{goal}"

type strategyTemplate struct {
	Technique       Technique `yaml:"technique"`
	Name            string    `yaml:"name"`
	Description     string    `yaml:"description"`
	TargetMood      Mood      `yaml:"target_mood"`
	Effectiveness   int       `yaml:"effectiveness"`
	Explanation     string    `yaml:"explanation"`
	Steps           []string  `yaml:"steps"`
	ExpectedOutcome string    `yaml:"expected_outcome"`
}

type messagePool struct {
	Title        string   `yaml:"title"`
	ActionPrompt string   `yaml:"action_prompt"`
	Templates    []string `yaml:"templates"`
}

type anchorPool struct {
	Title   string                      `yaml:"title"`
	Phrases map[MotivationType][]string `yaml:"phrases"`
}

type futurePacingTemplate struct {
	Title        string `yaml:"title"`
	ActionPrompt string `yaml:"action_prompt"`
	DefaultGoal  string `yaml:"default_goal"`
	Template     string `yaml:"template"`
}

type catalogDoc struct {
	Strategies   []strategyTemplate          `yaml:"strategies"`
	Primary      map[MessageType]messagePool `yaml:"primary"`
	Anchors      anchorPool                  `yaml:"anchors"`
	FuturePacing futurePacingTemplate        `yaml:"future_pacing"`
}

// Catalog holds the static coaching content the engine selects from.
// A Catalog is read-only once loaded and may be shared between engines.
type Catalog struct {
	strategies   map[Technique]strategyTemplate
	primary      map[MessageType]messagePool
	anchors      anchorPool
	futurePacing futurePacingTemplate
}

var defaultCatalog = mustLoadBuiltin()

func mustLoadBuiltin() *Catalog {
	c, err := LoadCatalog(strings.NewReader(builtinCatalog))
	if err != nil {
		panic(fmt.Sprintf("motivation: built-in catalog is invalid: %v", err))
	}
	return c
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// LoadCatalog parses and validates a YAML catalog document.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	c := &Catalog{
		strategies:   make(map[Technique]strategyTemplate, len(doc.Strategies)),
		primary:      doc.Primary,
		anchors:      doc.Anchors,
		futurePacing: doc.FuturePacing,
	}
	for _, s := range doc.Strategies {
		if _, dup := c.strategies[s.Technique]; dup {
			return nil, fmt.Errorf("duplicate strategy for technique %q", s.Technique)
		}
		c.strategies[s.Technique] = s
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	for _, t := range Techniques {
		s, ok := c.strategies[t]
		if !ok {
			return fmt.Errorf("missing strategy for technique %q", t)
		}
		if s.Name == "" || len(s.Steps) == 0 || s.ExpectedOutcome == "" {
			return fmt.Errorf("strategy %q is incomplete", t)
		}
		if s.Effectiveness < 0 || s.Effectiveness > 100 {
			return fmt.Errorf("strategy %q effectiveness %d out of range", t, s.Effectiveness)
		}
		if !s.TargetMood.Valid() {
			return fmt.Errorf("strategy %q has invalid target mood %q", t, s.TargetMood)
		}
	}
	if len(c.strategies) != len(Techniques) {
		return fmt.Errorf("catalog has %d strategies, want %d", len(c.strategies), len(Techniques))
	}

	for _, mt := range []MessageType{Guidance, Challenge, Encouragement} {
		pool, ok := c.primary[mt]
		if !ok {
			return fmt.Errorf("missing primary pool for %q", mt)
		}
		if len(pool.Templates) != templatesPerType {
			return fmt.Errorf("primary pool %q has %d templates, want %d", mt, len(pool.Templates), templatesPerType)
		}
	}

	for _, m := range MotivationTypes {
		if len(c.anchors.Phrases[m]) == 0 {
			return fmt.Errorf("missing anchor phrases for %q", m)
		}
	}

	if !strings.Contains(c.futurePacing.Template, goalPlaceholder) {
		return fmt.Errorf("future pacing template must contain %s", goalPlaceholder)
	}
	if c.futurePacing.DefaultGoal == "" {
		return fmt.Errorf("future pacing default goal is empty")
	}
	return nil
}

// PrimaryTemplates returns a copy of the template pool for a primary message type.
func (c *Catalog) PrimaryTemplates(t MessageType) []string {
	return copyStrings(c.primary[t].Templates)
}

// AnchorPhrases returns a copy of the anchor phrase pool for a motivation type.
func (c *Catalog) AnchorPhrases(m MotivationType) []string {
	return copyStrings(c.anchors.Phrases[m])
}

func (c *Catalog) strategy(t Technique) (strategyTemplate, bool) {
	s, ok := c.strategies[t]
	return s, ok
}
