package wurstminebot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/tail"
	"github.com/wurstmineberg/wurstminebot/textsub"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

// Poster publishes to and reads from the bot's social media account.
type Poster interface {
	Post(text string) (id string, err error)
	Get(id string) (*twitter.Tweet, error)
	Follow(screenName string) error
	AddListMember(list, screenName string) error
	ScreenName() string
	StatusURL(id string) string
}

var errServerLocked = errors.New("server access is locked")
var errNoTwitter = errors.New("twitter is not configured")

type Options struct {
	Config    *ConfigStore
	People    *people.Store
	DB        *sql.DB
	Minecraft minecraft.Server

	// Poster is nil when no social media account is configured.
	Poster Poster

	HTTPClient *http.Client
	Clock      Clock
	Version    string

	// Chat and Incoming replace the IRC connection described in the
	// configuration when set.
	Chat     Chat
	Incoming <-chan *Message

	// LogLines replaces following the Minecraft server log when set.
	LogLines <-chan string
}

// Bot bridges the IRC channels and the Minecraft server.
type Bot struct {
	tomb tomb.Tomb

	config  *ConfigStore
	people  *people.Store
	textsub *textsub.Substituter
	db      *sql.DB
	server  minecraft.Server
	poster  Poster
	http    *http.Client
	clock   Clock
	version string

	chat     Chat
	irc      *ircClient
	incoming <-chan *Message
	logLines <-chan string
	tailer   *tail.Tailer

	dispatcher *Dispatcher
	topics     *topicUpdater
	logins     *loginLog
	deathGames *deathGamesLog
	metrics    *metrics
	httpServer *http.Server

	achievementTweets *Toggle
	deathTweets       *Toggle
	serverLock        sync.Mutex

	mu            sync.Mutex
	specialStatus string
	onlinePlayers []string
	nick          string
	started       bool
	dst           int
	quit          *QuitError
}

// New creates a bot with the given collaborators. The bot does nothing
// until started.
func New(opts *Options) *Bot {
	b := &Bot{
		config:   opts.Config,
		people:   opts.People,
		textsub:  textsub.New(opts.People),
		db:       opts.DB,
		server:   opts.Minecraft,
		poster:   opts.Poster,
		http:     opts.HTTPClient,
		clock:    opts.Clock,
		version:  opts.Version,
		chat:     opts.Chat,
		incoming: opts.Incoming,
		logLines: opts.LogLines,

		achievementTweets: NewToggle(true),
		deathTweets:       NewToggle(true),
		dst:               -1,
	}
	if b.http == nil {
		b.http = &http.Client{Timeout: NetworkTimeout}
	}
	if b.clock == nil {
		b.clock = realClock{}
	}
	if b.version == "" {
		b.version = "unknown"
	}
	config := b.config.Get()
	b.logins = &loginLog{path: filepath.Join(config.Paths.Logs, "logins.log")}
	b.deathGames = &deathGamesLog{path: config.Paths.DeathGames}
	b.metrics = newMetrics()
	b.dispatcher = newDispatcher(b)
	b.topics = newTopicUpdater(b)
	return b
}

// Start connects to IRC, starts following the server log, and runs the
// periodic announcements.
func (b *Bot) Start() error {
	config := b.config.Get()
	if b.chat == nil {
		incoming := make(chan *Message)
		info := &ircInfo{
			Host:        net.JoinHostPort(config.IRC.Server, strconv.Itoa(config.IRC.Port)),
			TLS:         config.IRC.SSL,
			TLSInsecure: config.IRC.SSLInsecure,
			Nick:        config.IRC.Nick,
			Password:    config.IRC.Password,
			NickServ:    config.IRC.NickServPassword,
		}
		b.irc = startIrcClient(info, incoming)
		b.chat = b.irc
		b.incoming = incoming
	}
	b.mu.Lock()
	b.nick = config.IRC.Nick
	b.mu.Unlock()
	if config.HTTP.Listen != "" {
		if err := b.startHTTP(config.HTTP.Listen); err != nil {
			if b.irc != nil {
				b.irc.Stop()
			}
			return err
		}
	}
	b.tomb.Go(b.loop)
	return nil
}

// Stop terminates the bot, disconnecting from IRC with the given message.
func (b *Bot) Stop() error {
	b.tomb.Kill(errStop)
	return b.wait()
}

// Dying returns a channel closed when the bot starts terminating.
func (b *Bot) Dying() <-chan struct{} {
	return b.tomb.Dying()
}

// Wait blocks until the bot terminates. It returns a *QuitError when
// termination was requested by a command.
func (b *Bot) Wait() error {
	return b.wait()
}

func (b *Bot) wait() error {
	err := b.tomb.Wait()
	b.mu.Lock()
	quit := b.quit
	b.mu.Unlock()
	if quit != nil {
		return quit
	}
	if err == errStop {
		return nil
	}
	return err
}

func (b *Bot) loop() error {
	b.tomb.Go(b.topics.loop)
	b.tomb.Go(b.announceLoop)
	if b.logLines == nil {
		b.tailer = tail.Start(b.config.Get().Paths.ServerLog(), nil)
		b.logLines = b.tailer.Lines
	}
	defer b.cleanup()

	var ircDying <-chan struct{}
	if b.irc != nil {
		ircDying = b.irc.Dying()
	}
	b.tomb.Go(b.logLoop)
	for {
		select {
		case msg, ok := <-b.incoming:
			if !ok {
				b.incoming = nil
				continue
			}
			b.handleIRC(msg)
		case <-ircDying:
			return fmt.Errorf("IRC connection terminated: %v", b.irc.Err())
		case <-b.tomb.Dying():
			return tomb.ErrDying
		}
	}
}

// logLoop handles server log lines alongside the IRC loop.
func (b *Bot) logLoop() error {
	lines := b.logLines
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				<-b.tomb.Dying()
				return nil
			}
			b.handleLogLine(line)
		case <-b.tomb.Dying():
			return nil
		}
	}
}

func (b *Bot) cleanup() {
	b.achievementTweets.Stop()
	b.deathTweets.Stop()
	if b.tailer != nil {
		if err := b.tailer.Stop(); err != nil {
			logf("[tail] %v", err)
		}
	}
	if b.httpServer != nil {
		b.httpServer.Close()
	}
	b.mu.Lock()
	quit := b.quit
	b.mu.Unlock()
	message := "bye"
	if quit != nil {
		message = quit.Message
	}
	if err := b.chat.Quit(message); err != nil {
		logf("[irc] %v", err)
	}
}

// requestQuit records a quit request from a command and stops the bot.
func (b *Bot) requestQuit(quit *QuitError) {
	b.mu.Lock()
	if b.quit == nil {
		b.quit = quit
	}
	b.mu.Unlock()
	b.tomb.Kill(errStop)
}

func (b *Bot) ctx() context.Context {
	return b.tomb.Context(nil)
}

func (b *Bot) say(target, text string) {
	if target == "" {
		return
	}
	if err := b.chat.Say(target, text); err != nil {
		logf("[irc] Cannot send message to %s: %v", target, err)
	}
}

// sayMain says text in the main channel, if there is one.
func (b *Bot) sayMain(text string) {
	b.say(b.config.Get().IRC.MainChannel, text)
}

func (b *Bot) tellraw(player string, texts ...minecraft.Text) {
	if err := minecraft.Tellraw(b.ctx(), b.server, player, texts...); err != nil {
		logf("[minecraft] Cannot send tellraw: %v", err)
	}
}

// announce tells text to everyone in Minecraft in the given color and
// says it in the main channel.
func (b *Bot) announce(text, color string) {
	b.tellraw("", minecraft.Text{Text: text, Color: color})
	b.sayMain(text)
}

func (b *Bot) currentNick() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nick
}

func (b *Bot) randomQuitMessage(config *Config) string {
	if len(config.IRC.QuitMessages) == 0 {
		return "bye"
	}
	return config.IRC.QuitMessages[rand.Intn(len(config.IRC.QuitMessages))]
}

// tweet posts text, counting the outcome.
func (b *Bot) tweet(text string) (url string, err error) {
	if b.poster == nil {
		b.metrics.tweet("disabled")
		return "", errNoTwitter
	}
	if n := twitter.Length(text); n > twitter.MaxLength {
		b.metrics.tweet("too_long")
		return "", &tweetLengthError{n}
	}
	id, err := b.poster.Post(text)
	if err != nil {
		b.metrics.tweet("error")
		return "", err
	}
	b.metrics.tweet("ok")
	return b.poster.StatusURL(id), nil
}

type tweetLengthError struct {
	length int
}

func (e *tweetLengthError) Error() string {
	return fmt.Sprintf("tweet is too long (%d/%d characters)", e.length, twitter.MaxLength)
}

// setTwitter binds screenName to person and follows it.
func (b *Bot) setTwitter(person *people.Person, screenName string) error {
	screenName = strings.TrimPrefix(screenName, "@")
	if err := b.people.SetAttribute(person, []string{"twitter"}, screenName); err != nil {
		return err
	}
	if b.poster == nil {
		return errNoTwitter
	}
	if list := b.config.Get().Twitter.MembersList; list != "" {
		if err := b.poster.AddListMember(list, screenName); err != nil {
			return err
		}
	}
	return b.poster.Follow(screenName)
}

// runLocked runs f while holding the server control lock, failing
// immediately if someone else holds it.
func (b *Bot) runLocked(f func() error) error {
	if !b.serverLock.TryLock() {
		return errServerLocked
	}
	defer b.serverLock.Unlock()
	return f()
}

// onlinePlayerList returns the Minecraft names of everyone online, and
// records them for the status endpoint.
func (b *Bot) onlinePlayerList(ctx context.Context) ([]string, error) {
	players, err := b.server.OnlinePlayers(ctx)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.onlinePlayers = players
	b.mu.Unlock()
	b.metrics.onlinePlayers.Set(float64(len(players)))
	return players, nil
}
