package schema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Args describes the positional arguments of a command, in order.
type Args []Arg

type Arg struct {
	Name string
	Help string
	Type ValueType
	Flag int

	// Choices restricts the argument to one of the given keywords,
	// compared case-insensitively. An optional argument with choices
	// is skipped without consuming input when the next word is not
	// one of them.
	Choices []string
}

const (
	Required = 1 << iota
	Trailing
)

type ValueType string

var (
	String ValueType = "string"
	Int    ValueType = "int"
)

func (arg *Arg) value(word string) (interface{}, error) {
	switch arg.Type {
	case "", String:
		return word, nil
	case Int:
		return strconv.Atoi(word)
	}
	panic("internal error: unknown value type: " + string(arg.Type))
}

func (arg *Arg) choice(s string) (string, bool) {
	for _, choice := range arg.Choices {
		if strings.EqualFold(choice, s) {
			return choice, true
		}
	}
	return "", false
}

// UsageError reports input that does not fit the command's argument shape.
// An empty Reason means the generic usage line should be shown instead.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason == "" {
		return "invalid usage"
	}
	return e.Reason
}

// Usagef returns a UsageError with a formatted reason.
func Usagef(format string, args ...interface{}) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// Values holds parsed argument values by argument name.
type Values map[string]interface{}

// Has reports whether the named argument was provided.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// String returns the named value as a string, or "" if absent.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Int returns the named value as an int and whether it was provided.
func (v Values) Int(name string) (int, bool) {
	n, ok := v[name].(int)
	return n, ok
}

// Parse parses text according to args. Words are separated by white
// space, and a trailing argument takes the rest of the text verbatim.
func (args Args) Parse(text string) (Values, error) {
	values := make(Values)
	rest := strings.TrimLeftFunc(text, unicode.IsSpace)
	for i := range args {
		arg := &args[i]
		required := arg.Flag&Required != 0
		if rest == "" {
			if required {
				return nil, &UsageError{}
			}
			continue
		}
		word, after := nextWord(rest)
		if len(arg.Choices) > 0 {
			choice, ok := arg.choice(word)
			switch {
			case ok:
				values[arg.Name] = choice
				rest = after
			case required:
				return nil, &UsageError{}
			}
			continue
		}
		if arg.Flag&Trailing != 0 {
			word, after = strings.TrimSpace(rest), ""
		}
		value, err := arg.value(word)
		if err != nil {
			return nil, &UsageError{}
		}
		values[arg.Name] = value
		rest = after
	}
	if rest != "" {
		return nil, &UsageError{}
	}
	return values, nil
}

var errInvalidCommand = fmt.Errorf("invalid command")

// ParseInvocation splits text into a command name, an optional target
// given as "name@target", and the remaining argument text. Command names
// are made of letters only, and may be preceded by a "!".
func ParseInvocation(text string) (name, target, rest string, err error) {
	s := strings.TrimPrefix(strings.TrimLeftFunc(text, unicode.IsSpace), "!")
	n := strings.IndexFunc(s, func(r rune) bool { return !isLatinLetter(r) })
	if n < 0 {
		n = len(s)
	}
	if n == 0 {
		return "", "", "", errInvalidCommand
	}
	name, s = s[:n], s[n:]
	switch r, _ := utf8.DecodeRuneInString(s); {
	case r == '@':
		target, s = nextWord(s[1:])
	case s != "" && !unicode.IsSpace(r):
		return "", "", "", errInvalidCommand
	}
	return name, target, strings.TrimSpace(s), nil
}

// Fields splits the argument text into words.
func Fields(text string) []string {
	return strings.FieldsFunc(text, unicode.IsSpace)
}

// nextWord splits off the first word of s, which must not start with
// white space, and returns the remainder without leading white space.
func nextWord(s string) (word, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

func isLatinLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z'
}

// IsName reports whether s is a valid command or alias name.
func IsName(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return !isLatinLetter(r) }) < 0
}
