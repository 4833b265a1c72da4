package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// DefaultSyntaxes returns the sed-style syntax followed by the phrase syntax.
func DefaultSyntaxes() []Syntax {
	return []Syntax{SedSyntax{}, PhraseSyntax{}}
}

// PhraseSyntax handles "spoken phrase => replacement". Matching ignores case
// and only hits whole words. The escapes \n and \t are honoured in the replacement.
type PhraseSyntax struct{}

func (PhraseSyntax) Matches(line string) bool {
	return strings.Contains(line, "=>")
}

func (PhraseSyntax) Compile(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("phrase cannot be empty")
	}

	pattern := regexp.QuoteMeta(from)
	if startsWithWord(from) {
		pattern = `\b` + pattern
	}
	if endsWithWord(from) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid phrase: %w", err)
	}

	replacement := strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(strings.TrimSpace(to))
	return phraseRule{re: re, replacement: replacement}, nil
}

type phraseRule struct {
	re          *regexp.Regexp
	replacement string
}

func (r phraseRule) Rewrite(text string) (string, bool) {
	out := r.re.ReplaceAllLiteralString(text, r.replacement)
	return out, out != text
}

// SedSyntax handles s/pattern/replacement/flags with any punctuation
// delimiter. Patterns are case-insensitive; g replaces every match, m and s
// map onto the regexp flags of the same name.
type SedSyntax struct{}

func (SedSyntax) Matches(line string) bool {
	return len(line) > 1 && line[0] == 's' && isDelimiter(line[1])
}

func (SedSyntax) Compile(line string) (Rule, error) {
	delim := line[1]
	pattern, rest, err := splitDelimited(line[2:], delim)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	replacement, rest, err := splitDelimited(rest, delim)
	if err != nil {
		return nil, fmt.Errorf("replacement: %w", err)
	}

	flags := "i"
	global := false
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			flags += string(flag)
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return sedRule{re: re, replacement: replacement, global: global}, nil
}

type sedRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r sedRule) Rewrite(text string) (string, bool) {
	if r.global {
		out := r.re.ReplaceAllString(text, r.replacement)
		return out, out != text
	}

	match := r.re.FindStringSubmatchIndex(text)
	if match == nil {
		return text, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, text, match)
	out := text[:match[0]] + string(expanded) + text[match[1]:]
	return out, out != text
}

// splitDelimited reads up to the next unescaped delim and returns the text
// before it and the remainder after it. Escapes are kept for the regexp.
func splitDelimited(s string, delim byte) (string, string, error) {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == delim:
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", errors.New("unterminated expression")
}

func isDelimiter(c byte) bool {
	return c > ' ' && c < unicode.MaxASCII && !isWordRune(rune(c))
}

func startsWithWord(s string) bool {
	r := []rune(s)
	return isWordRune(r[0])
}

func endsWithWord(s string) bool {
	r := []rune(s)
	return isWordRune(r[len(r)-1])
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
