// Package textsub rewrites mentions of people from the nick namespace of
// one service into another, so that "alice_" on IRC reads as "AliceMC" in
// Minecraft and "@alicetw" on Twitter.
package textsub

import (
	"sort"
	"strings"

	"github.com/wurstmineberg/wurstminebot/people"
)

// Directory is the part of people.Store that substitution needs.
type Directory interface {
	All() ([]*people.Person, error)
	Lookup(handle string, c people.Context) (*people.Person, error)
}

type Substituter struct {
	dir Directory
}

func New(dir Directory) *Substituter {
	return &Substituter{dir: dir}
}

// Sub translates a single token. A token naming a person in src becomes
// that person's nick in dst, or their display name if they have none
// there. Unknown tokens are returned unchanged.
func (s *Substituter) Sub(token string, src, dst people.Context) string {
	if src == dst {
		return token
	}
	p, err := s.dir.Lookup(token, src)
	if err != nil {
		return token
	}
	if nick := targetNick(p, dst); nick != "" {
		return nick
	}
	return p.DisplayName()
}

func targetNick(p *people.Person, c people.Context) string {
	nick := p.Nick(c)
	if nick != "" && c == people.Twitter {
		return "@" + nick
	}
	return nick
}

func sourceNicks(p *people.Person, c people.Context, strict bool) []string {
	var nicks []string
	switch c {
	case people.IRC:
		if strict {
			if len(p.IRC.Nicks) > 0 {
				nicks = append(nicks, p.IRC.Nicks[0])
			}
		} else {
			for i := len(p.IRC.Nicks) - 1; i >= 0; i-- {
				nicks = append(nicks, p.IRC.Nicks[i])
			}
		}
	case people.Twitter:
		if p.Twitter != "" {
			nicks = append(nicks, "@"+p.Twitter)
		}
	default:
		if nick := p.Nick(c); nick != "" {
			nicks = append(nicks, nick)
		}
	}
	if !strict {
		nicks = append(nicks, p.Nicks...)
	}
	return nicks
}

type replacement struct {
	from, to string
}

// Text replaces every whole-token, case-insensitive mention of a known
// person's src nick in text with their dst nick. Tokens adjacent to URL
// characters are left alone, so neither partial words nor URL fragments
// are touched. People without a dst nick are skipped. In strict mode only
// the main IRC nick is matched and the free-form nicks are ignored.
func (s *Substituter) Text(text string, src, dst people.Context, strict bool) string {
	if src == dst || text == "" {
		return text
	}
	all, err := s.dir.All()
	if err != nil {
		logf("Cannot load people for substitution: %v", err)
		return text
	}
	var reps []replacement
	seen := make(map[string]bool)
	for _, p := range all {
		to := targetNick(p, dst)
		if to == "" {
			continue
		}
		for _, from := range sourceNicks(p, src, strict) {
			key := strings.ToLower(from)
			if from == "" || seen[key] {
				continue
			}
			seen[key] = true
			reps = append(reps, replacement{from, to})
		}
	}
	if len(reps) == 0 {
		return text
	}
	// Longer nicks first so that "alice_" is preferred over "alice".
	sort.SliceStable(reps, func(i, j int) bool { return len(reps[i].from) > len(reps[j].from) })
	return replaceAll(text, reps)
}

func replaceAll(text string, reps []replacement) string {
	var buf strings.Builder
	buf.Grow(len(text))
	i := 0
	for i < len(text) {
		matched := false
		if i == 0 || !isURLChar(text[i-1]) {
			for _, r := range reps {
				end := i + len(r.from)
				if end > len(text) || !strings.EqualFold(text[i:end], r.from) {
					continue
				}
				if end < len(text) && isURLChar(text[end]) {
					continue
				}
				buf.WriteString(r.to)
				i = end
				matched = true
				break
			}
		}
		if !matched {
			buf.WriteByte(text[i])
			i++
		}
	}
	return buf.String()
}

func isURLChar(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	return strings.IndexByte("-._~:/?#[]@!$&'()*+,;=%", b) >= 0
}
