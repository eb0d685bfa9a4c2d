package wurstminebot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wurstmineberg/wurstminebot/twitter"
)

// Alias is a user defined command.
type Alias struct {
	// Type is "say" (the default), "reply" or "command".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Text        string `json:"text,omitempty" yaml:"text,omitempty"`
	TellrawText string `json:"tellraw_text,omitempty" yaml:"tellraw_text,omitempty"`

	// CommandName is the built-in run by command aliases.
	CommandName string `json:"command_name,omitempty" yaml:"command_name,omitempty"`

	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

func (a *Alias) kind() string {
	if a.Type == "" {
		return "say"
	}
	return a.Type
}

// CommentLines are picked at random with equal weight.
type CommentLines struct {
	Death      []string `json:"death" yaml:"death"`
	ServerJoin []string `json:"serverJoin" yaml:"serverJoin"`
}

// AdvancedComment is a comment line whose weight may depend on the
// player and on the kind of death. The "@default" key of the weight
// maps applies to anything not listed.
type AdvancedComment struct {
	Text          string             `json:"text" yaml:"text"`
	Weight        *float64           `json:"weight,omitempty" yaml:"weight,omitempty"`
	PlayerWeights map[string]float64 `json:"player_weights,omitempty" yaml:"player_weights,omitempty"`
	TypeWeights   map[string]float64 `json:"type_weights,omitempty" yaml:"type_weights,omitempty"`

	// HelloPrefix controls whether join messages start with "Hello <player>. ".
	HelloPrefix *bool `json:"hello_prefix,omitempty" yaml:"hello_prefix,omitempty"`
}

type AdvancedCommentLines struct {
	Death      []AdvancedComment `json:"death" yaml:"death"`
	ServerJoin []AdvancedComment `json:"serverJoin" yaml:"serverJoin"`
}

type IRCConfig struct {
	Server           string   `json:"server" yaml:"server"`
	Port             int      `json:"port" yaml:"port"`
	SSL              bool     `json:"ssl" yaml:"ssl"`
	SSLInsecure      bool     `json:"ssl_insecure,omitempty" yaml:"ssl_insecure,omitempty"`
	Nick             string   `json:"nick" yaml:"nick"`
	Password         string   `json:"password,omitempty" yaml:"password,omitempty"`
	NickServPassword string   `json:"nickserv_password,omitempty" yaml:"nickserv_password,omitempty"`
	Channels         []string `json:"channels" yaml:"channels"`
	MainChannel      string   `json:"main_channel" yaml:"main_channel"`
	DevChannel       string   `json:"dev_channel,omitempty" yaml:"dev_channel,omitempty"`
	LiveChannel      string   `json:"live_channel,omitempty" yaml:"live_channel,omitempty"`
	Topic            string   `json:"topic,omitempty" yaml:"topic,omitempty"`

	// PlayerList is "announce" to announce joins and leaves in the main
	// channel, or "topic" to list online players in its topic.
	PlayerList   string   `json:"player_list" yaml:"player_list"`
	QuitMessages []string `json:"quit_messages" yaml:"quit_messages"`
	Ignore       []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// AllChannels returns the configured channels followed by the main, dev
// and live channels, without duplicates.
func (c *IRCConfig) AllChannels() []string {
	var all []string
	seen := make(map[string]bool)
	for _, list := range [][]string{c.Channels, {c.MainChannel, c.DevChannel, c.LiveChannel}} {
		for _, ch := range list {
			if ch != "" && !seen[strings.ToLower(ch)] {
				seen[strings.ToLower(ch)] = true
				all = append(all, ch)
			}
		}
	}
	return all
}

type PathsConfig struct {
	People          string `json:"people" yaml:"people"`
	Logs            string `json:"logs" yaml:"logs"`
	DeathGames      string `json:"deathgames" yaml:"deathgames"`
	MinecraftServer string `json:"minecraft_server" yaml:"minecraft_server"`
	DB              string `json:"db" yaml:"db"`
}

// ServerLog returns the location of the live Minecraft server log.
func (p *PathsConfig) ServerLog() string {
	return filepath.Join(p.MinecraftServer, "logs", "latest.log")
}

type TwitterConfig struct {
	twitter.Credentials `yaml:",inline"`

	ScreenName  string `json:"screen_name" yaml:"screen_name"`
	MembersList string `json:"members_list,omitempty" yaml:"members_list,omitempty"`
}

// Enabled reports whether credentials are configured.
func (c *TwitterConfig) Enabled() bool {
	return c.ConsumerKey != "" && c.AccessToken != ""
}

// USCConfig describes the next season of the Ultra Softcore event.
type USCConfig struct {
	CompletedSeasons *int   `json:"completedSeasons,omitempty" yaml:"completedSeasons,omitempty"`
	NextDate         string `json:"nextDate,omitempty" yaml:"nextDate,omitempty"`
	NextPoll         string `json:"nextPoll,omitempty" yaml:"nextPoll,omitempty"`
}

type MinecraftConfig struct {
	// Container is the name of the Docker container running the server.
	Container   string `json:"container" yaml:"container"`
	StopTimeout int    `json:"stop_timeout" yaml:"stop_timeout"`
}

type URLsConfig struct {
	Wiki       string `json:"wiki" yaml:"wiki"`
	Mojira     string `json:"mojira" yaml:"mojira"`
	People     string `json:"people" yaml:"people"`
	DeathGames string `json:"deathgames" yaml:"deathgames"`
}

type HTTPConfig struct {
	// Listen is the address of the status endpoint. Empty disables it.
	Listen string `json:"listen" yaml:"listen"`
}

type Config struct {
	Aliases              map[string]*Alias    `json:"aliases" yaml:"aliases"`
	CommentLines         CommentLines         `json:"commentLines" yaml:"commentLines"`
	AdvancedCommentLines AdvancedCommentLines `json:"advancedCommentLines" yaml:"advancedCommentLines"`
	DailyRestart         bool                 `json:"dailyRestart" yaml:"dailyRestart"`
	Debug                bool                 `json:"debug" yaml:"debug"`
	IRC                  IRCConfig            `json:"irc" yaml:"irc"`
	Ops                  []string             `json:"ops" yaml:"ops"`
	Paths                PathsConfig          `json:"paths" yaml:"paths"`
	Twitter              TwitterConfig        `json:"twitter" yaml:"twitter"`
	USC                  USCConfig            `json:"usc" yaml:"usc"`
	Minecraft            MinecraftConfig      `json:"minecraft" yaml:"minecraft"`
	URLs                 URLsConfig           `json:"urls" yaml:"urls"`
	HTTP                 HTTPConfig           `json:"http" yaml:"http"`
}

func defaultAliases() map[string]*Alias {
	return map[string]*Alias{
		"dg":    {Type: "command", CommandName: "DeathGames"},
		"mwiki": {Type: "command", CommandName: "MinecraftWiki"},
		"opt":   {Type: "command", CommandName: "Option"},
		"ping":  {Type: "reply", Text: "pong"},
	}
}

// DefaultConfig returns the configuration used for anything the
// config file does not mention.
func DefaultConfig() *Config {
	return &Config{
		Aliases: defaultAliases(),
		CommentLines: CommentLines{
			Death: []string{"Well done."},
		},
		DailyRestart: true,
		IRC: IRCConfig{
			Port:         6667,
			MainChannel:  "#wurstmineberg",
			Nick:         "wurstminebot",
			PlayerList:   "announce",
			QuitMessages: []string{"brb"},
		},
		Paths: PathsConfig{
			People:          "/opt/wurstmineberg/config/people.json",
			Logs:            "/opt/wurstmineberg/log",
			DeathGames:      "/opt/wurstmineberg/log/deathgames.json",
			MinecraftServer: "/opt/wurstmineberg/server",
			DB:              "/opt/wurstmineberg/db",
		},
		Twitter: TwitterConfig{
			ScreenName: "wurstmineberg",
		},
		Minecraft: MinecraftConfig{
			Container:   "minecraft",
			StopTimeout: 30,
		},
		URLs: URLsConfig{
			Wiki:       "https://minecraft.wiki/w/",
			Mojira:     "https://bugs.mojang.com/browse/",
			People:     "https://wurstmineberg.de/people",
			DeathGames: "https://wiki.wurstmineberg.de/Death_Games",
		},
	}
}

func (c *Config) clone() *Config {
	cc := *c
	cc.Aliases = make(map[string]*Alias, len(c.Aliases))
	for name, alias := range c.Aliases {
		a := *alias
		cc.Aliases[name] = &a
	}
	cc.CommentLines.Death = append([]string(nil), c.CommentLines.Death...)
	cc.CommentLines.ServerJoin = append([]string(nil), c.CommentLines.ServerJoin...)
	cc.AdvancedCommentLines.Death = append([]AdvancedComment(nil), c.AdvancedCommentLines.Death...)
	cc.AdvancedCommentLines.ServerJoin = append([]AdvancedComment(nil), c.AdvancedCommentLines.ServerJoin...)
	cc.IRC.Channels = append([]string(nil), c.IRC.Channels...)
	cc.IRC.QuitMessages = append([]string(nil), c.IRC.QuitMessages...)
	cc.IRC.Ignore = append([]string(nil), c.IRC.Ignore...)
	cc.Ops = append([]string(nil), c.Ops...)
	if c.USC.CompletedSeasons != nil {
		n := *c.USC.CompletedSeasons
		cc.USC.CompletedSeasons = &n
	}
	return &cc
}

// Alias returns the alias with the given name, compared
// case-insensitively, or nil if there is none.
func (c *Config) Alias(name string) (string, *Alias) {
	for key, alias := range c.Aliases {
		if strings.EqualFold(key, name) {
			return key, alias
		}
	}
	return "", nil
}

// ConfigStore holds the bot configuration and persists every change to
// the file it was loaded from, in that file's format.
type ConfigStore struct {
	path   string
	mu     sync.Mutex
	config *Config
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig reads the configuration file at path. A file that does not
// exist or cannot be read yields the defaults, and is reported in the log.
func LoadConfig(path string) (*ConfigStore, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		logf("Cannot read config file, using defaults: %v", err)
		return &ConfigStore{path: path, config: config}, nil
	}
	if err := decodeConfig(path, data, config); err != nil {
		return nil, err
	}
	return &ConfigStore{path: path, config: config}, nil
}

// NewConfigStore returns a store for config that writes changes to path.
func NewConfigStore(path string, config *Config) *ConfigStore {
	return &ConfigStore{path: path, config: config.clone()}
}

func decodeConfig(path string, data []byte, config *Config) error {
	// Aliases present in the file replace the defaults altogether,
	// so that deleted default aliases stay deleted.
	defaults := config.Aliases
	config.Aliases = nil
	var err error
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("cannot parse config file %s: %v", path, err)
	}
	if config.Aliases == nil {
		config.Aliases = defaults
	}
	for name, alias := range config.Aliases {
		if alias == nil {
			delete(config.Aliases, name)
		}
	}
	return nil
}

func encodeConfig(path string, config *Config) ([]byte, error) {
	if isYAML(path) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(config); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Path returns the location of the configuration file.
func (s *ConfigStore) Path() string {
	return s.path
}

// Get returns a copy of the current configuration.
func (s *ConfigStore) Get() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.clone()
}

// Update calls change with a copy of the configuration and, if it
// succeeds, rewrites the configuration file with the result.
func (s *ConfigStore) Update(change func(config *Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	config := s.config.clone()
	if err := change(config); err != nil {
		return err
	}
	data, err := encodeConfig(s.path, config)
	if err != nil {
		return fmt.Errorf("cannot encode config: %v", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("cannot write config file: %v", err)
	}
	s.config = config
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
	}
	return err
}
