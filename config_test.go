package wurstminebot

import (
	"os"
	"path/filepath"

	. "gopkg.in/check.v1"
)

type ConfigSuite struct{}

var _ = Suite(&ConfigSuite{})

func (s *ConfigSuite) SetUpTest(c *C) {
	SetLogger(c)
}

func (s *ConfigSuite) TearDownTest(c *C) {
	SetLogger(nil)
}

func (s *ConfigSuite) TestMissingFile(c *C) {
	store, err := LoadConfig(filepath.Join(c.MkDir(), "config.json"))
	c.Assert(err, IsNil)
	c.Assert(store.Get(), DeepEquals, DefaultConfig())
}

func (s *ConfigSuite) TestInvalidFile(c *C) {
	path := filepath.Join(c.MkDir(), "config.json")
	c.Assert(os.WriteFile(path, []byte("{"), 0644), IsNil)
	_, err := LoadConfig(path)
	c.Assert(err, ErrorMatches, "cannot parse config file .*")
}

func (s *ConfigSuite) TestLoadJSON(c *C) {
	path := filepath.Join(c.MkDir(), "config.json")
	data := `{
		"irc": {"server": "irc.example.com", "main_channel": "#main", "nick": "bot", "player_list": "topic"},
		"ops": ["alice"],
		"aliases": {"hi": {"type": "reply", "text": "hello"}, "gone": null}
	}`
	c.Assert(os.WriteFile(path, []byte(data), 0644), IsNil)
	store, err := LoadConfig(path)
	c.Assert(err, IsNil)
	config := store.Get()
	c.Assert(config.IRC.Server, Equals, "irc.example.com")
	c.Assert(config.IRC.MainChannel, Equals, "#main")
	c.Assert(config.IRC.PlayerList, Equals, "topic")
	c.Assert(config.IRC.Port, Equals, 6667)
	c.Assert(config.Ops, DeepEquals, []string{"alice"})
	c.Assert(config.Aliases, DeepEquals, map[string]*Alias{"hi": {Type: "reply", Text: "hello"}})
	c.Assert(config.URLs.Wiki, Equals, "https://minecraft.wiki/w/")
}

func (s *ConfigSuite) TestLoadYAML(c *C) {
	path := filepath.Join(c.MkDir(), "config.yaml")
	data := "" +
		"irc:\n" +
		"  main_channel: '#main'\n" +
		"  channels: ['#a', '#b']\n" +
		"dailyRestart: false\n" +
		"commentLines:\n" +
		"  death: [\"Oops.\", \"Again?\"]\n"
	c.Assert(os.WriteFile(path, []byte(data), 0644), IsNil)
	store, err := LoadConfig(path)
	c.Assert(err, IsNil)
	config := store.Get()
	c.Assert(config.IRC.MainChannel, Equals, "#main")
	c.Assert(config.IRC.Nick, Equals, "wurstminebot")
	c.Assert(config.IRC.AllChannels(), DeepEquals, []string{"#a", "#b", "#main"})
	c.Assert(config.DailyRestart, Equals, false)
	c.Assert(config.CommentLines.Death, DeepEquals, []string{"Oops.", "Again?"})
	c.Assert(config.Aliases, HasLen, 4)
}

func (s *ConfigSuite) TestUpdatePersists(c *C) {
	for _, name := range []string{"config.json", "config.yaml"} {
		path := filepath.Join(c.MkDir(), name)
		store, err := LoadConfig(path)
		c.Assert(err, IsNil)
		err = store.Update(func(config *Config) error {
			config.IRC.Topic = "Hello"
			config.Aliases["new"] = &Alias{Text: "text"}
			delete(config.Aliases, "ping")
			return nil
		})
		c.Assert(err, IsNil)

		reloaded, err := LoadConfig(path)
		c.Assert(err, IsNil)
		c.Assert(reloaded.Get().IRC.Topic, Equals, "Hello", Commentf("File: %s", name))
		c.Assert(reloaded.Get().IRC.MainChannel, Equals, "#wurstmineberg")
		_, alias := reloaded.Get().Alias("PING")
		c.Assert(alias, IsNil)
		_, alias = reloaded.Get().Alias("New")
		c.Assert(alias, DeepEquals, &Alias{Text: "text"})
	}
}

func (s *ConfigSuite) TestGetReturnsCopy(c *C) {
	store := NewConfigStore(filepath.Join(c.MkDir(), "config.json"), DefaultConfig())
	config := store.Get()
	config.Ops = append(config.Ops, "mallory")
	config.Aliases["ping"].Text = "changed"
	c.Assert(store.Get().Ops, HasLen, 0)
	c.Assert(store.Get().Aliases["ping"].Text, Equals, "pong")
}
