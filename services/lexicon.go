package services

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"truthlens/models"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

type lexiconFile struct {
	FalseMarkers      []string `yaml:"false_markers"`
	MisleadingMarkers []string `yaml:"misleading_markers"`
	Tactics           []struct {
		Name     string   `yaml:"name"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"tactics"`
	ReportingContacts []struct {
		Description string `yaml:"description"`
		Destination string `yaml:"destination"`
	} `yaml:"reporting_contacts"`
	Sources []curatedSource `yaml:"sources"`
	Context struct {
		Topics   []contextTopic `yaml:"topics"`
		Positive []string       `yaml:"positive"`
		Negative []string       `yaml:"negative"`
	} `yaml:"context"`
}

type curatedSource struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Keywords    []string `yaml:"keywords"`
	Default     bool     `yaml:"default"`
}

type contextTopic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type tacticPattern struct {
	name     string
	label    string
	matchers []*regexp.Regexp
}

// Lexicon holds every classification table. It is built once and never mutated,
// so a single instance is shared by all concurrent analyses.
type Lexicon struct {
	falseMarkers      []string
	misleadingMarkers []string
	tactics           []tacticPattern
	contacts          []models.ReportingContact
	sources           []curatedSource
	topics            []contextTopic
	positive          []string
	negative          []string
}

// DefaultLexicon parses the embedded tables.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(lexiconYAML)
}

func MustDefaultLexicon() *Lexicon {
	lex, err := DefaultLexicon()
	if err != nil {
		panic(fmt.Sprintf("load lexicon.yaml: %v", err))
	}
	return lex
}

func ParseLexicon(data []byte) (*Lexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(f.Tactics) == 0 {
		return nil, fmt.Errorf("parse lexicon: no tactic categories")
	}

	lex := &Lexicon{
		falseMarkers:      lowerAll(f.FalseMarkers),
		misleadingMarkers: lowerAll(f.MisleadingMarkers),
		sources:           f.Sources,
		topics:            f.Context.Topics,
		positive:          lowerAll(f.Context.Positive),
		negative:          lowerAll(f.Context.Negative),
	}

	for _, t := range f.Tactics {
		tp := tacticPattern{name: t.Name, label: tacticLabel(t.Name)}
		for _, p := range t.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("tactic %s: bad pattern %q: %w", t.Name, p, err)
			}
			tp.matchers = append(tp.matchers, re)
		}
		lex.tactics = append(lex.tactics, tp)
	}

	for _, c := range f.ReportingContacts {
		lex.contacts = append(lex.contacts, models.ReportingContact{
			Description: c.Description,
			Destination: c.Destination,
		})
	}

	return lex, nil
}

// TacticCategories is the number of configured categories.
func (l *Lexicon) TacticCategories() int {
	return len(l.tactics)
}

// ReportingContacts returns a copy of the ordered contact list.
func (l *Lexicon) ReportingContacts() []models.ReportingContact {
	out := make([]models.ReportingContact, len(l.contacts))
	copy(out, l.contacts)
	return out
}

// tacticLabel turns "false_urgency" into "False Urgency".
func tacticLabel(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}
