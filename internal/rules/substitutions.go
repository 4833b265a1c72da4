// Package rules rewrites finished transcripts with user-defined
// substitutions, for example "new line => \n" or "s/\bgo lang\b/Go/g".
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnstable is returned when rewriting has not settled within the
// iteration limit, usually because two rules undo each other.
var ErrUnstable = errors.New("substitutions did not settle")

// Rule rewrites text once.
type Rule interface {
	Rewrite(text string) (string, bool)
}

// Syntax recognizes and compiles one kind of rule line.
type Syntax interface {
	Matches(line string) bool
	Compile(line string) (Rule, error)
}

// Substitutions is an ordered rule list applied until the text stops changing.
type Substitutions struct {
	rules []Rule
	limit int
}

// Load reads a rules file. A missing file or empty path yields an empty set.
func Load(path string, limit int) (*Substitutions, error) {
	return LoadWithSyntaxes(path, limit, DefaultSyntaxes())
}

func LoadWithSyntaxes(path string, limit int, syntaxes []Syntax) (*Substitutions, error) {
	if strings.TrimSpace(path) == "" {
		return New(nil, limit), nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil, limit), nil
		}
		return nil, fmt.Errorf("read rules file %q: %w", path, err)
	}

	rules, err := Parse(string(contents), syntaxes)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %q: %w", path, err)
	}
	return New(rules, limit), nil
}

func New(rules []Rule, limit int) *Substitutions {
	if limit <= 0 {
		limit = 30
	}
	return &Substitutions{rules: rules, limit: limit}
}

// Len reports the number of compiled rules.
func (s *Substitutions) Len() int {
	return len(s.rules)
}

// Apply runs every rule in order, repeating passes until none changes the
// text. It returns the last text together with ErrUnstable if the limit is hit.
func (s *Substitutions) Apply(text string) (string, error) {
	if len(s.rules) == 0 {
		return text, nil
	}

	current := text
	for pass := 0; pass < s.limit; pass++ {
		changed := false
		for _, rule := range s.rules {
			if next, ok := rule.Rewrite(current); ok {
				current = next
				changed = true
			}
		}
		if !changed {
			return current, nil
		}
	}
	return current, fmt.Errorf("%w after %d passes", ErrUnstable, s.limit)
}

// Parse compiles rule lines. Blank lines and lines starting with # are skipped.
func Parse(contents string, syntaxes []Syntax) ([]Rule, error) {
	if len(syntaxes) == 0 {
		syntaxes = DefaultSyntaxes()
	}

	var rules []Rule
	for number, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := compileLine(line, syntaxes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", number+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func compileLine(line string, syntaxes []Syntax) (Rule, error) {
	for _, syntax := range syntaxes {
		if syntax.Matches(line) {
			return syntax.Compile(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}
