package people

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Context is a naming namespace in which a person may have a nick.
type Context string

const (
	ID        Context = "id"
	IRC       Context = "irc"
	Minecraft Context = "minecraft"
	Reddit    Context = "reddit"
	Twitter   Context = "twitter"
)

var (
	ErrNotFound  = errors.New("person not found")
	ErrAnonymous = errors.New("unsupported for anonymous identity")
	ErrExists    = errors.New("person already exists")
)

// NotFoundError reports which handle could not be resolved in which context.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Context Context
	Handle  string
}

func (e *NotFoundError) Error() string {
	if e.Context == ID {
		return fmt.Sprintf("person with id %s not found", e.Handle)
	}
	return fmt.Sprintf("person with %s nick %q not found", e.Context, e.Handle)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

var validID = regexp.MustCompile(`^[a-z][0-9a-z]{1,15}$`)

// ValidID reports whether id is acceptable as a person id.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Level is the permission tier of an identity.
type Level int

const (
	LevelUnknown Level = iota
	LevelPerson
	LevelInvited
	LevelWhitelisted
	LevelOp
)

// Denied returns the message shown when an action requires level l.
func (l Level) Denied() string {
	switch l {
	case LevelPerson:
		return "you must be in people.json to do this"
	case LevelInvited:
		return "this command requires a server invite"
	case LevelWhitelisted:
		return "you must be on the whitelist to do this"
	case LevelOp:
		return "you must be a bot op to do this"
	}
	return "you don't have permission to do this"
}

// Options that are on unless a person turns them off.
var defaultOptions = map[string]bool{
	"chatsync_highlight": true,
	"inactivity_tweets":  true,
}

// Identity is the read-only view shared by Person and Dummy.
type Identity interface {
	// DisplayName returns the name used when no context nick exists.
	DisplayName() string

	// Nick returns the nick in the given context, or "" if there is none.
	Nick(c Context) string

	// Option returns the value of the named option, honoring defaults.
	Option(name string) bool

	// Level computes the permission level given the operator ids.
	Level(ops []string) Level
}

// NickOr returns the nick of id in context c, or its display name.
func NickOr(id Identity, c Context) string {
	if nick := id.Nick(c); nick != "" {
		return nick
	}
	return id.DisplayName()
}

// TwitterHandle returns the @-prefixed twitter handle of id, or its
// display name when it has none.
func TwitterHandle(id Identity) string {
	if nick := id.Nick(Twitter); nick != "" {
		return "@" + nick
	}
	return id.DisplayName()
}

// IRCNick returns the preferred IRC nick for id. When respectHighlight is
// set and the identity has the chatsync_highlight option off, a zero-width
// non-joiner is inserted after the first character so that mentioning the
// nick does not trigger a highlight.
func IRCNick(id Identity, respectHighlight bool) string {
	nick := NickOr(id, IRC)
	if !respectHighlight || id.Option("chatsync_highlight") || nick == "" {
		return nick
	}
	_, size := utf8.DecodeRuneInString(nick)
	return nick[:size] + "\u200c" + nick[size:]
}

// Same reports whether a and b denote the same person. Dummies are
// never the same as anything but themselves.
func Same(a, b Identity) bool {
	pa, ok1 := a.(*Person)
	pb, ok2 := b.(*Person)
	if ok1 && ok2 {
		return pa.ID == pb.ID
	}
	return a == b
}

type IRCInfo struct {
	Nicks    []string `json:"nicks,omitempty"`
	NickServ string   `json:"nickserv,omitempty"`
}

type Color struct {
	Red   int `json:"red"`
	Green int `json:"green"`
	Blue  int `json:"blue"`
}

// Person is a canonical identity record as stored in people.json.
type Person struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	IRC           IRCInfo         `json:"irc"`
	Minecraft     string          `json:"minecraft,omitempty"`
	MinecraftUUID string          `json:"minecraftUUID,omitempty"`
	Reddit        string          `json:"reddit,omitempty"`
	Twitter       string          `json:"twitter,omitempty"`
	Website       string          `json:"website,omitempty"`
	Wiki          string          `json:"wiki,omitempty"`
	Description   string          `json:"description,omitempty"`
	FavColor      *Color          `json:"favColor,omitempty"`
	Gravatar      string          `json:"gravatar,omitempty"`
	Options       map[string]bool `json:"options,omitempty"`
	Status        string          `json:"status,omitempty"`
	Nicks         []string        `json:"nicks,omitempty"`
}

func (p *Person) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func (p *Person) Nick(c Context) string {
	switch c {
	case ID:
		return p.ID
	case IRC:
		if len(p.IRC.Nicks) > 0 {
			return p.IRC.Nicks[0]
		}
	case Minecraft:
		return p.Minecraft
	case Reddit:
		return p.Reddit
	case Twitter:
		return p.Twitter
	}
	return ""
}

func (p *Person) Option(name string) bool {
	name = strings.ToLower(name)
	if value, ok := p.Options[name]; ok {
		return value
	}
	return defaultOptions[name]
}

// OptionIsDefault reports whether the person never set the named option.
func (p *Person) OptionIsDefault(name string) bool {
	_, ok := p.Options[strings.ToLower(name)]
	return !ok
}

// CurrentStatus returns the membership status, which defaults to "later".
func (p *Person) CurrentStatus() string {
	if p.Status == "" {
		return "later"
	}
	return p.Status
}

func (p *Person) Whitelisted() bool {
	switch p.CurrentStatus() {
	case "founding", "later", "postfreeze":
		return true
	}
	return false
}

func (p *Person) Invited() bool {
	return p.Whitelisted() || p.CurrentStatus() == "invited"
}

func (p *Person) Level(ops []string) Level {
	for _, op := range ops {
		if op == p.ID {
			return LevelOp
		}
	}
	if p.Whitelisted() {
		return LevelWhitelisted
	}
	if p.Invited() {
		return LevelInvited
	}
	return LevelPerson
}

// UUID returns the bound Minecraft UUID, if any.
func (p *Person) UUID() (uuid.UUID, bool) {
	if p.MinecraftUUID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(p.MinecraftUUID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Dummy stands in for a handle that matches no Person.
type Dummy struct {
	Handle  string
	Context Context
}

// NewDummy returns a Dummy for handle as seen in context c, with the
// usual reddit and twitter prefixes stripped.
func NewDummy(handle string, c Context) *Dummy {
	switch c {
	case Reddit:
		handle = strings.TrimPrefix(handle, "/u/")
	case Twitter:
		handle = strings.TrimPrefix(handle, "@")
	}
	return &Dummy{Handle: handle, Context: c}
}

func (d *Dummy) DisplayName() string {
	return d.Handle
}

func (d *Dummy) Nick(c Context) string {
	if c == d.Context && c != ID {
		return d.Handle
	}
	return ""
}

func (d *Dummy) Option(name string) bool {
	return defaultOptions[strings.ToLower(name)]
}

func (d *Dummy) Level(ops []string) Level {
	return LevelUnknown
}
