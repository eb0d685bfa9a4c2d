package wurstminebot

import (
	"time"

	. "gopkg.in/check.v1"
)

const fromAlice = ":alice!~alice@wurstmineberg.de "

var parseTests = []struct {
	asnick string
	line   string
	msg    Message
}{
	{"", "QUIT", Message{Command: "QUIT"}},
	{"", "MODE #wurstmineberg +o alice", Message{Command: "MODE", Params: []string{"#wurstmineberg", "+o", "alice"}}},
	{"", "KICK #wurstmineberg bob :no:colons :here", Message{Command: "KICK", Params: []string{"#wurstmineberg", "bob"}, Text: "no:colons :here"}},
	{"", "PRIVMSG #wurstmineberg :<AliceMC> hi", Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "<AliceMC> hi"}},
	{"", "PRIVMSG   alice   :Error 404", Message{Command: "PRIVMSG", Nick: "alice", Text: "Error 404"}},
	{"", ":ignored.example.com NOTICE bob :hi", Message{Command: "NOTICE", Nick: "bob", Text: "hi"}},
	{
		"wurstminebot",
		":irc.example.com 376 wurstminebot :End of /MOTD command.",
		Message{Host: "irc.example.com", Command: "376", Params: []string{"wurstminebot"}, Text: "End of /MOTD command."},
	}, {
		"wurstminebot",
		":alice 332 wurstminebot #wurstmineberg :Welcome",
		Message{Nick: "alice", Command: "332", Params: []string{"wurstminebot", "#wurstmineberg"}, Text: "Welcome"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG #wurstmineberg :wurstminebot: LastSeen Bob",
		Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "wurstminebot: LastSeen Bob", BotText: "LastSeen Bob"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG #wurstmineberg :WurstMineBot,   status",
		Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "WurstMineBot,   status", BotText: "status"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG #wurstmineberg :wurstminebot: !status",
		Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "wurstminebot: !status", BotText: "status"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG #wurstmineberg :!DeathGames win bob",
		Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "!DeathGames win bob", BotText: "DeathGames win bob"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG #wurstmineberg :!!1",
		Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "!!1"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG #wurstmineberg :wurstminebot is great",
		Message{Command: "PRIVMSG", Channel: "#wurstmineberg", Text: "wurstminebot is great"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG wurstminebot : Time ",
		Message{Command: "PRIVMSG", Text: " Time ", BotText: "Time"},
	}, {
		"wurstminebot",
		fromAlice + "PRIVMSG wurstminebot :\x01ACTION digs\x01",
		Message{Command: "PRIVMSG", Text: "\x01ACTION digs\x01"},
	}, {
		"wurstminebot",
		fromAlice + "NOTICE wurstminebot :version",
		Message{Command: "NOTICE", Text: "version"},
	},
}

type MessageSuite struct{}

var _ = Suite(&MessageSuite{})

func (s *MessageSuite) TestParseIncoming(c *C) {
	for _, test := range parseTests {
		msg := ParseIncoming(test.asnick, "!", test.line)
		c.Assert(msg.Time.IsZero(), Equals, false)
		msg.Time = time.Time{}

		want := test.msg
		want.Bang = "!"
		want.AsNick = test.asnick
		if test.asnick != "" && want.Host == "" && want.Nick == "" {
			want.Nick, want.User, want.Host = "alice", "~alice", "wurstmineberg.de"
		}
		c.Assert(msg, DeepEquals, &want, Commentf("Line: %q", test.line))
	}
}

func (s *MessageSuite) TestRoundTrip(c *C) {
	for _, test := range parseTests {
		if test.asnick == "" {
			continue
		}
		c.Assert(ParseIncoming(test.asnick, "!", test.line).String(), Equals, test.line, Commentf("Line: %q", test.line))
	}
}

var stringTests = []struct {
	msg  Message
	line string
}{
	{Message{Command: "QUIT"}, "QUIT"},
	{Message{Nick: "bob", Text: "(from alice) hi"}, "PRIVMSG bob :(from alice) hi"},
	{Message{Command: "NOTICE", Channel: "#wurstmineberg", Text: "hi"}, "NOTICE #wurstmineberg :hi"},
	{Message{Command: "JOIN", Params: []string{"#wurstmineberg-dev"}}, "JOIN #wurstmineberg-dev"},
	{Message{Command: "TOPIC", Params: []string{"#wurstmineberg"}, Text: "Welcome | Currently online: alice"}, "TOPIC #wurstmineberg :Welcome | Currently online: alice"},
	{Message{Command: "TOPIC", Params: []string{"#wurstmineberg"}}, "TOPIC #wurstmineberg :"},
	{Message{Channel: "#wurstmineberg", Text: "<carol> first\r\nsecond\x00"}, "PRIVMSG #wurstmineberg :<carol> first__second_"},
	{Message{Nick: "alice", Host: "h", Text: "hidden prefix"}, "PRIVMSG alice :hidden prefix"},
}

func (s *MessageSuite) TestMessageString(c *C) {
	for _, test := range stringTests {
		c.Check(test.msg.String(), Equals, test.line)
	}
}

func (s *MessageSuite) TestParseOutgoing(c *C) {
	msg := ParseOutgoing("PRIVMSG #wurstmineberg :\x01ACTION waves\x01")
	c.Assert(msg.Channel, Equals, "#wurstmineberg")
	c.Assert(msg.BotText, Equals, "")
	text, ok := msg.Action()
	c.Assert(ok, Equals, true)
	c.Assert(text, Equals, "waves")
	c.Assert(msg.String(), Equals, "PRIVMSG #wurstmineberg :\x01ACTION waves\x01")
}

func (s *MessageSuite) TestAction(c *C) {
	msg := ParseIncoming("wurstminebot", "!", fromAlice+"PRIVMSG #wurstmineberg :\x01ACTION waves at you\x01")
	text, ok := msg.Action()
	c.Assert(ok, Equals, true)
	c.Assert(text, Equals, "waves at you")

	msg = ParseIncoming("wurstminebot", "!", fromAlice+"NOTICE #wurstmineberg :\x01ACTION waves\x01")
	_, ok = msg.Action()
	c.Assert(ok, Equals, false)
}

func (s *MessageSuite) TestTarget(c *C) {
	private := ParseIncoming("wurstminebot", "!", fromAlice+"PRIVMSG wurstminebot :hi")
	public := ParseIncoming("wurstminebot", "!", fromAlice+"PRIVMSG #wurstmineberg :hi")
	c.Assert(private.Target(), Equals, "alice")
	c.Assert(public.Target(), Equals, "#wurstmineberg")
}
