// Package mclog classifies lines of the Minecraft server log into chat,
// join, achievement and death events.
package mclog

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

type Kind int

const (
	Chat Kind = iota + 1
	Action
	Command
	Join
	Leave
	Achievement
	Death
)

var kindNames = map[Kind]string{
	Chat:        "chat",
	Action:      "action",
	Command:     "command",
	Join:        "join",
	Leave:       "leave",
	Achievement: "achievement",
	Death:       "death",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a classified log line.
type Event struct {
	Kind Kind

	// Stamp is the timestamp as written in the log, and Time is its
	// interpretation.
	Stamp string
	Time  time.Time

	Player string

	// Text holds the chat or action message, or the achievement name.
	Text string

	// DeathID and Groups are set for deaths. Groups holds the values
	// captured by the death pattern, such as the killer's name.
	DeathID string
	Groups  []string

	// Partial is the literal text following the victim's name in a death.
	Partial string
}

var ErrNotAnEvent = errors.New("log line is not an event")

const (
	shortStamp = `\[[0-9]{2}:[0-9]{2}:[0-9]{2}\]`
	fullStamp  = `[0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}`
	prefix     = `^(` + shortStamp + `|` + fullStamp + `) \[Server thread/INFO\]: `
)

var (
	achievementRe = regexp.MustCompile(prefix + playerGroup + ` has just earned the achievement \[(.+)\]$`)
	actionRe      = regexp.MustCompile(prefix + `\* ` + playerGroup + ` (.*)$`)
	chatRe        = regexp.MustCompile(prefix + `<` + playerGroup + `> (.*)$`)
	joinLeaveRe   = regexp.MustCompile(prefix + playerGroup + ` (joined|left) the game$`)
	bangsRe       = regexp.MustCompile(`^!+$`)
)

type compiledDeath struct {
	id string
	re *regexp.Regexp
}

var deathPatterns = compileDeaths(DeathTable)

func compileDeaths(table []DeathMessage) []compiledDeath {
	compiled := make([]compiledDeath, len(table))
	for i, d := range table {
		compiled[i] = compiledDeath{d.ID, regexp.MustCompile(prefix + playerGroup + ` ` + d.Pattern + `$`)}
	}
	return compiled
}

// Classify interprets a single log line. Short timestamps are taken to
// be from the current day in the local time zone.
func Classify(line string) (*Event, error) {
	return ClassifyAt(line, time.Now())
}

// ClassifyAt is like Classify but takes short timestamps relative to the
// day of now, in now's location. Full timestamps are in UTC.
func ClassifyAt(line string, now time.Time) (*Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if m := achievementRe.FindStringSubmatch(line); m != nil {
		return newEvent(Achievement, m, now, m[3]), nil
	}
	if m := actionRe.FindStringSubmatch(line); m != nil {
		return newEvent(Action, m, now, m[3]), nil
	}
	if m := chatRe.FindStringSubmatch(line); m != nil {
		kind := Chat
		if strings.HasPrefix(m[3], "!") && !bangsRe.MatchString(m[3]) {
			kind = Command
		}
		return newEvent(kind, m, now, m[3]), nil
	}
	if m := joinLeaveRe.FindStringSubmatch(line); m != nil {
		kind := Join
		if m[3] == "left" {
			kind = Leave
		}
		return newEvent(kind, m, now, ""), nil
	}
	for _, d := range deathPatterns {
		m := d.re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		e := newEvent(Death, submatches(line, m), now, "")
		e.DeathID = d.id
		e.Partial = line[m[5]+1:]
		for i := 6; i < len(m); i += 2 {
			if m[i] >= 0 {
				e.Groups = append(e.Groups, line[m[i]:m[i+1]])
			} else {
				e.Groups = append(e.Groups, "")
			}
		}
		return e, nil
	}
	return nil, ErrNotAnEvent
}

func submatches(line string, m []int) []string {
	s := make([]string, len(m)/2)
	for i := range s {
		if m[2*i] >= 0 {
			s[i] = line[m[2*i]:m[2*i+1]]
		}
	}
	return s
}

func newEvent(kind Kind, m []string, now time.Time, text string) *Event {
	return &Event{
		Kind:   kind,
		Stamp:  m[1],
		Time:   parseStamp(m[1], now),
		Player: m[2],
		Text:   text,
	}
}

func parseStamp(stamp string, now time.Time) time.Time {
	if strings.HasPrefix(stamp, "[") {
		t, err := time.Parse("15:04:05", stamp[1:len(stamp)-1])
		if err != nil {
			return now
		}
		y, mo, d := now.Date()
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	}
	t, err := time.Parse("2006-01-02 15:04:05", stamp)
	if err != nil {
		return now
	}
	return t
}
