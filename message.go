package wurstminebot

import (
	"strings"
	"time"
	"unicode"
)

const (
	cmdWelcome   = "001"
	cmdEndOfMOTD = "376"
	cmdNoMOTD    = "422"
	cmdNickInUse = "433"
	cmdPrivMsg   = "PRIVMSG"
	cmdNotice    = "NOTICE"
	cmdNick      = "NICK"
	cmdPing      = "PING"
	cmdPong      = "PONG"
	cmdJoin      = "JOIN"
	cmdPart      = "PART"
	cmdQuit      = "QUIT"
	cmdTopic     = "TOPIC"
)

// Message is a single IRC protocol line, either received from the
// network or queued to be sent.
type Message struct {
	Time time.Time

	// Sender prefix, only filled in for incoming lines.
	Nick string
	User string
	Host string

	Command string

	// Channel is the channel a PRIVMSG or NOTICE went to. It is empty
	// for private messages.
	Channel string

	// Params holds the middle parameters of everything but PRIVMSG
	// and NOTICE.
	Params []string

	// Text is the trailing parameter.
	Text string

	// BotText is Text without the "nick:" or bang prefix for messages
	// addressed to the bot, and empty for anything else.
	BotText string

	// Addressing settings in place when the line was parsed.
	Bang   string
	AsNick string
}

const ctcpAction = "\x01ACTION "

// Action returns the text of a CTCP ACTION message, as sent by
// "/me waves", and whether the message is one.
func (m *Message) Action() (text string, ok bool) {
	if m.Command != cmdPrivMsg || !strings.HasPrefix(m.Text, ctcpAction) {
		return "", false
	}
	return strings.TrimSuffix(m.Text[len(ctcpAction):], "\x01"), true
}

// Target returns the channel the message was sent to, or the sender's
// nick for private messages.
func (m *Message) Target() string {
	if m.Channel != "" {
		return m.Channel
	}
	return m.Nick
}

var lineSanitizer = strings.NewReplacer("\r", "_", "\n", "_", "\x00", "_")

// String returns the message as an IRC protocol line. Parsing a line
// with ParseIncoming and formatting it again yields the same line.
func (m *Message) String() string {
	var b strings.Builder
	if m.AsNick != "" {
		switch {
		case m.Nick != "":
			b.WriteString(":" + m.Nick)
			if m.User != "" {
				b.WriteString("!" + m.User)
			}
			if m.Host != "" {
				b.WriteString("@" + m.Host)
			}
			b.WriteByte(' ')
		case m.Host != "":
			b.WriteString(":" + m.Host + " ")
		}
	}

	cmd := m.Command
	if cmd == "" {
		cmd = cmdPrivMsg
	}
	b.WriteString(cmd)
	switch {
	case cmd == cmdPrivMsg || cmd == cmdNotice:
		b.WriteString(" " + m.recipient())
	default:
		for _, param := range m.Params {
			b.WriteString(" " + param)
		}
	}
	if m.Text != "" || cmd == cmdTopic && len(m.Params) > 0 {
		b.WriteString(" :" + m.Text)
	}
	return lineSanitizer.Replace(b.String())
}

// recipient is the PRIVMSG or NOTICE target. Incoming private
// messages were sent to the bot itself.
func (m *Message) recipient() string {
	switch {
	case m.Channel != "":
		return m.Channel
	case m.AsNick != "":
		return m.AsNick
	}
	return m.Nick
}

func isChannel(name string) bool {
	return name != "" && (name[0] == '#' || name[0] == '&') && !strings.ContainsAny(name, " ,\x07")
}

// ParseIncoming parses line as received from the IRC server while the bot
// was known as asnick. Messages addressed to the bot, either privately, with
// an "asnick:" prefix or with the bang prefix (as in "!status"), get BotText
// set.
func ParseIncoming(asnick, bang, line string) *Message {
	return parse(asnick, bang, line)
}

// ParseOutgoing parses line as a message the bot is about to send.
func ParseOutgoing(line string) *Message {
	return parse("", "", line)
}

func parse(asnick, bang, line string) *Message {
	m := &Message{AsNick: asnick, Bang: bang, Time: time.Now()}
	rest := strings.TrimLeft(line, " ")
	if strings.HasPrefix(rest, ":") {
		var prefix string
		prefix, rest = cutField(rest[1:])
		if asnick != "" {
			m.setPrefix(prefix)
		}
	}
	m.Command, rest = cutField(rest)

	if m.Command == cmdPrivMsg || m.Command == cmdNotice {
		var target string
		target, rest = cutField(rest)
		if isChannel(target) {
			m.Channel = target
		} else if asnick == "" {
			m.Nick = target
		}
		m.Text = strings.TrimPrefix(rest, ":")
		if asnick != "" && m.Command == cmdPrivMsg {
			m.setBotText()
		}
		return m
	}

	for rest != "" {
		if rest[0] == ':' {
			m.Text = rest[1:]
			break
		}
		var param string
		param, rest = cutField(rest)
		m.Params = append(m.Params, param)
	}
	return m
}

// cutField splits off the first space separated field of s. The remainder
// comes back without leading spaces.
func cutField(s string) (field, rest string) {
	field, rest, _ = strings.Cut(s, " ")
	return field, strings.TrimLeft(rest, " ")
}

// setPrefix fills in the sender from a "nick!user@host" prefix. A bare
// name with dots in it is a server.
func (m *Message) setPrefix(prefix string) {
	nick, host, _ := strings.Cut(prefix, "@")
	nick, user, _ := strings.Cut(nick, "!")
	if user == "" && host == "" && strings.Contains(nick, ".") {
		m.Host = nick
		return
	}
	m.Nick, m.User, m.Host = nick, user, host
}

func (m *Message) setBotText() {
	if _, action := m.Action(); action {
		return
	}
	text := m.Text
	n := len(m.AsNick)
	switch {
	case len(text) > n+1 && (text[n] == ':' || text[n] == ',') && strings.EqualFold(text[:n], m.AsNick):
		text = strings.TrimSpace(text[n+1:])
		m.BotText = text
	case m.Channel == "":
		text = strings.TrimSpace(text)
		m.BotText = text
	}
	if n := len(m.Bang); n > 0 && len(text) > n && strings.HasPrefix(text, m.Bang) && unicode.IsLetter(rune(text[n])) {
		m.BotText = text[n:]
	}
}
