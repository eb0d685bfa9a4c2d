package wurstminebot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

// BotTester runs a bot against in-memory stand-ins for IRC, the
// Minecraft server and Twitter, for testing purposes.
//
// Everything the bot sends out is queued for Recv in order. IRC traffic
// is formatted as raw protocol lines, Minecraft console commands are
// prefixed by "[minecraft] ", and tweets by "[twitter] ". Topic changes
// are written asynchronously and are queued apart for RecvTopic.
type BotTester struct {
	mu      sync.Mutex
	cond    sync.Cond
	stopped bool
	replies []string
	topics  []string

	bot      *Bot
	dir      string
	incoming chan *Message
	logLines chan string
	clock    *testClock

	players    []string
	running    bool
	version    string
	serverErr  error
	playersErr error
	tweets     map[string]*twitter.Tweet
	nextTweet  int
	twitterErr error
	tweetHold  chan struct{}
}

// NewBotTester creates a bot with the given configuration and people
// records. The bot's files are kept under dir, which the configured
// paths are changed to point into.
func NewBotTester(dir string, config *Config, records ...map[string]interface{}) *BotTester {
	if config == nil {
		config = DefaultConfig()
	}
	config.Paths.People = filepath.Join(dir, "people.json")
	config.Paths.Logs = filepath.Join(dir, "logs")
	config.Paths.DeathGames = filepath.Join(dir, "deathgames.json")
	config.Paths.MinecraftServer = filepath.Join(dir, "server")
	config.Paths.DB = dir
	config.HTTP.Listen = ""

	if records == nil {
		records = []map[string]interface{}{}
	}
	writeJSON(config.Paths.People, map[string]interface{}{"people": records})

	db, err := OpenDB(dir)
	if err != nil {
		panic("cannot open test database: " + err.Error())
	}
	t := &BotTester{
		dir:      dir,
		incoming: make(chan *Message),
		logLines: make(chan string),
		clock:    &testClock{now: time.Date(2014, 3, 12, 12, 30, 0, 0, time.UTC)},
		running:  true,
		version:  "1.7.5",
		tweets:   make(map[string]*twitter.Tweet),
	}
	t.cond.L = &t.mu
	t.bot = New(&Options{
		Config:    NewConfigStore(filepath.Join(dir, "config.json"), config),
		People:    people.NewStore(config.Paths.People, nil),
		DB:        db,
		Minecraft: &testServer{t},
		Poster:    &testPoster{t},
		Clock:     t.clock,
		Version:   "test",
		Chat:      &testChat{t},
		Incoming:  t.incoming,
		LogLines:  t.logLines,
	})
	return t
}

func writeJSON(path string, value interface{}) {
	data, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		panic(err)
	}
}

// Bot returns the bot being tested.
func (t *BotTester) Bot() *Bot {
	return t.bot
}

// Start starts the bot being tested.
func (t *BotTester) Start() error {
	return t.bot.Start()
}

// Stop stops the bot being tested.
func (t *BotTester) Stop() error {
	err := t.bot.Stop()
	t.mu.Lock()
	t.stopped = true
	t.cond.Broadcast()
	t.mu.Unlock()
	if t.bot.db != nil {
		t.bot.db.Close()
	}
	return err
}

// SetNow changes the time seen by the bot.
func (t *BotTester) SetNow(now time.Time) {
	t.clock.set(now)
}

// SetPlayers sets the players reported as online.
func (t *BotTester) SetPlayers(players ...string) {
	t.mu.Lock()
	t.players = players
	t.mu.Unlock()
}

// SetRunning sets whether the Minecraft server is reported as up.
func (t *BotTester) SetRunning(running bool) {
	t.mu.Lock()
	t.running = running
	t.mu.Unlock()
}

// SetServerError makes the server control operations fail with err.
func (t *BotTester) SetServerError(err error) {
	t.mu.Lock()
	t.serverErr = err
	t.mu.Unlock()
}

// SetPlayersError makes listing the online players fail with err.
func (t *BotTester) SetPlayersError(err error) {
	t.mu.Lock()
	t.playersErr = err
	t.mu.Unlock()
}

// SetTwitterError makes posting to Twitter fail with err.
func (t *BotTester) SetTwitterError(err error) {
	t.mu.Lock()
	t.twitterErr = err
	t.mu.Unlock()
}

func (t *BotTester) appendReply(reply string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, reply)
	t.cond.Broadcast()
}

// Recv receives the next message sent by the bot. If no message is
// currently pending, Recv waits up to a few seconds for a message to
// arrive. If no messages arrive even then, an empty string is returned.
//
// Recv may be used after the tester is stopped.
func (t *BotTester) Recv() string {
	return t.recv(&t.replies)
}

// RecvTopic receives the next topic change, as a raw TOPIC line, waiting
// like Recv does.
func (t *BotTester) RecvTopic() string {
	return t.recv(&t.topics)
}

func (t *BotTester) recv(queue *[]string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	timeout := time.Now().Add(3 * time.Second)
	timer := time.AfterFunc(3*time.Second, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer timer.Stop()
	for !t.stopped && len(*queue) == 0 && time.Now().Before(timeout) {
		t.cond.Wait()
	}
	if len(*queue) == 0 {
		return ""
	}
	reply := (*queue)[0]
	copy(*queue, (*queue)[1:])
	*queue = (*queue)[0 : len(*queue)-1]
	return reply
}

// RecvAll receives all currently pending messages sent by the bot.
func (t *BotTester) RecvAll() []string {
	t.mu.Lock()
	replies := t.replies
	t.replies = nil
	t.mu.Unlock()
	return replies
}

// RecvUntil receives messages until one matching prefix arrives, and
// returns it. Messages received before it are discarded. If none
// arrives, an empty string is returned.
func (t *BotTester) RecvUntil(prefix string) string {
	for {
		reply := t.Recv()
		if reply == "" || strings.HasPrefix(reply, prefix) {
			return reply
		}
	}
}

// SendLine delivers a raw IRC protocol line to the bot.
func (t *BotTester) SendLine(line string) {
	t.incoming <- ParseIncoming(t.bot.currentNick(), "!", line)
}

// Sendf formats a PRIVMSG coming from "nick!~user@host" and delivers it
// to the bot. The target defines the channel or bot nick the message was
// addressed to, and defaults to the bot's nick, which means the message
// is received as if it had been privately delivered to the bot.
func (t *BotTester) Sendf(target, format string, args ...interface{}) {
	t.SendfFrom("nick", target, format, args...)
}

// SendfFrom is like Sendf but the message comes from the given nick.
func (t *BotTester) SendfFrom(nick, target, format string, args ...interface{}) {
	if target == "" {
		target = t.bot.currentNick()
	}
	t.SendLine(fmt.Sprintf(":"+nick+"!~user@host PRIVMSG "+target+" :"+format, args...))
}

// Log delivers a line of the Minecraft server log to the bot.
func (t *BotTester) Log(line string) {
	t.logLines <- line
}

// Logf formats a chat line of the Minecraft server log for player.
func (t *BotTester) Logf(player, format string, args ...interface{}) {
	t.Log("[12:30:00] [Server thread/INFO]: <" + player + "> " + fmt.Sprintf(format, args...))
}

// HoldTweets makes posting block until the returned function is called.
func (t *BotTester) HoldTweets() (release func()) {
	hold := make(chan struct{})
	t.mu.Lock()
	t.tweetHold = hold
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.tweetHold = nil
		t.mu.Unlock()
		close(hold)
	}
}

// AddTweet makes a status available for reading.
func (t *BotTester) AddTweet(tweet *twitter.Tweet) {
	t.mu.Lock()
	t.tweets[tweet.ID] = tweet
	t.mu.Unlock()
}

type testChat struct {
	t *BotTester
}

func (c *testChat) Say(target, text string) error {
	for _, line := range strings.Split(text, "\n") {
		c.t.appendReply("PRIVMSG " + target + " :" + line)
	}
	return nil
}

func (c *testChat) SetTopic(channel, topic string) error {
	t := c.t
	t.mu.Lock()
	t.topics = append(t.topics, "TOPIC "+channel+" :"+topic)
	t.cond.Broadcast()
	t.mu.Unlock()
	return nil
}

func (c *testChat) Join(channel string) error {
	c.t.appendReply("JOIN " + channel)
	return nil
}

func (c *testChat) Raw(line string) error {
	c.t.appendReply(line)
	return nil
}

func (c *testChat) Quit(message string) error {
	c.t.appendReply("QUIT :" + message)
	return nil
}

type testServer struct {
	t *BotTester
}

func (s *testServer) Running(ctx context.Context) (bool, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.running, nil
}

func (s *testServer) Command(ctx context.Context, cmd string) (string, error) {
	s.t.appendReply("[minecraft] " + cmd)
	if strings.HasPrefix(cmd, "tellraw ") {
		return "", nil
	}
	return "Executed " + cmd, nil
}

func (s *testServer) OnlinePlayers(ctx context.Context) ([]string, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.t.playersErr != nil {
		return nil, s.t.playersErr
	}
	return append([]string(nil), s.t.players...), nil
}

func (s *testServer) Version(ctx context.Context) (string, error) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.version, nil
}

func (s *testServer) control(what string) error {
	s.t.appendReply("[minecraft] <" + what + ">")
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.serverErr
}

func (s *testServer) Start(ctx context.Context) error   { return s.control("start") }
func (s *testServer) Stop(ctx context.Context) error    { return s.control("stop") }
func (s *testServer) Restart(ctx context.Context) error { return s.control("restart") }

func (s *testServer) Update(ctx context.Context, version string, snapshot bool, progress func(string)) (string, error) {
	what := "update"
	if snapshot {
		what += " snapshot"
	}
	if version != "" {
		what += " " + version
	}
	if err := s.control(what); err != nil {
		return "", err
	}
	if version == "" {
		version = "1.7.6"
	}
	progress("downloading " + version)
	s.t.mu.Lock()
	s.t.version = version
	s.t.mu.Unlock()
	return version, nil
}

func (s *testServer) WhitelistAdd(ctx context.Context, player string) error {
	s.Command(ctx, "whitelist add "+player)
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.t.serverErr
}

func (s *testServer) Describe() string {
	return "test server"
}

type testPoster struct {
	t *BotTester
}

func (p *testPoster) Post(text string) (string, error) {
	t := p.t
	t.appendReply("[twitter] " + text)
	t.mu.Lock()
	hold := t.tweetHold
	t.mu.Unlock()
	if hold != nil {
		<-hold
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.twitterErr != nil {
		return "", t.twitterErr
	}
	t.nextTweet++
	id := strconv.Itoa(t.nextTweet)
	t.tweets[id] = &twitter.Tweet{ID: id, Text: text, User: twitter.User{ScreenName: "wurstminebot"}}
	return id, nil
}

func (p *testPoster) Get(id string) (*twitter.Tweet, error) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	tweet, ok := p.t.tweets[id]
	if !ok {
		return nil, &twitter.Error{Code: 144, Message: "No status found with that ID.", StatusCode: 404}
	}
	return tweet, nil
}

func (p *testPoster) Follow(screenName string) error {
	p.t.appendReply("[twitter] <follow @" + screenName + ">")
	return nil
}

func (p *testPoster) AddListMember(list, screenName string) error {
	p.t.appendReply("[twitter] <list " + list + " @" + screenName + ">")
	return nil
}

func (p *testPoster) ScreenName() string {
	return "wurstminebot"
}

func (p *testPoster) StatusURL(id string) string {
	return "https://twitter.com/wurstminebot/status/" + id
}

// testClock stands still. Waits of up to five minutes pass immediately,
// and longer ones never do.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if d <= 5*time.Minute {
		ch <- c.Now().Add(d)
	}
	return ch
}
