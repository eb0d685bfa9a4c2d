package wurstminebot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wurstmineberg/wurstminebot/people"
)

// topicUpdater owns the channel topics. Changes are queued and written by
// a single goroutine, so that a burst of updates results in one write of
// the latest topic.
type topicUpdater struct {
	bot     *Bot
	mu      sync.Mutex
	desired map[string]string
	current map[string]string
	force   map[string]bool
	wake    chan struct{}

	// retrying is set while a player list retry is pending.
	retrying bool
}

func newTopicUpdater(b *Bot) *topicUpdater {
	return &topicUpdater{
		bot:     b,
		desired: make(map[string]string),
		current: make(map[string]string),
		force:   make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}
}

// Set requests the topic of channel to become topic. Unless force is set,
// nothing is sent when the channel already has that topic.
func (t *topicUpdater) Set(channel, topic string, force bool) {
	key := strings.ToLower(channel)
	t.mu.Lock()
	t.desired[key] = topic
	t.force[key] = t.force[key] || force
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// retryLater refreshes the topic after a minute, unless a refresh is
// already pending.
func (t *topicUpdater) retryLater() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retrying {
		return
	}
	t.retrying = true
	b := t.bot
	b.tomb.Go(func() error {
		select {
		case <-b.clock.After(time.Minute):
		case <-b.tomb.Dying():
			return nil
		}
		t.mu.Lock()
		t.retrying = false
		t.mu.Unlock()
		b.updateTopic(b.ctx(), false)
		return nil
	})
}

// Current returns the last topic set for channel.
func (t *topicUpdater) Current(channel string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[strings.ToLower(channel)]
}

// Observe records a topic change seen on the network.
func (t *topicUpdater) Observe(channel, topic string) {
	t.mu.Lock()
	t.current[strings.ToLower(channel)] = topic
	t.mu.Unlock()
}

func (t *topicUpdater) loop() error {
	for {
		select {
		case <-t.wake:
			t.flush()
		case <-t.bot.tomb.Dying():
			return nil
		}
	}
}

func (t *topicUpdater) flush() {
	for {
		t.mu.Lock()
		var channel, topic string
		var found bool
		for channel, topic = range t.desired {
			found = true
			break
		}
		if !found {
			t.mu.Unlock()
			return
		}
		force := t.force[channel]
		delete(t.desired, channel)
		delete(t.force, channel)
		if !force && t.current[channel] == topic {
			t.mu.Unlock()
			continue
		}
		t.current[channel] = topic
		t.mu.Unlock()

		debugf("[irc] Setting topic of %s to %q", channel, topic)
		if err := t.bot.chat.SetTopic(channel, topic); err != nil {
			logf("[irc] Cannot set topic of %s: %v", channel, err)
		}
	}
}

// keepStatus leaves the special status unchanged in updateTopic.
const keepStatus = "\x00"

// setSpecialStatus replaces the special server status shown in the topic,
// and refreshes the topic. An empty status brings back the player list.
func (b *Bot) setSpecialStatus(ctx context.Context, status string) {
	b.updateTopicStatus(ctx, true, status)
}

// updateTopic refreshes the main channel topic. When the online players
// cannot be determined, force reports the failure in the topic, while
// otherwise another attempt is made a minute later.
func (b *Bot) updateTopic(ctx context.Context, force bool) {
	b.updateTopicStatus(ctx, force, keepStatus)
}

func (b *Bot) updateTopicStatus(ctx context.Context, force bool, status string) {
	config := b.config.Get()
	parts := b.topicParts(config)

	b.mu.Lock()
	if status != keepStatus {
		b.specialStatus = status
	}
	special := b.specialStatus
	b.mu.Unlock()

	if config.IRC.MainChannel == "" {
		return
	}
	players, err := b.onlinePlayerList(ctx)
	if err != nil {
		if !force {
			logf("[irc] Cannot list online players for topic, retrying in a minute: %v", err)
			b.topics.retryLater()
			if special == "" {
				return
			}
		} else if special == "" {
			special = "Error getting online players: " + err.Error()
		}
		players = nil
	}
	if len(players) > 0 && config.IRC.PlayerList == "topic" && special == "" {
		var nicks []string
		for _, id := range b.people.Sorted(players, people.Minecraft) {
			nicks = append(nicks, people.IRCNick(id, false))
		}
		parts = append(parts, "Currently online: "+strings.Join(nicks, ", "))
	} else if special != "" {
		parts = append(parts, special)
	}
	b.topics.Set(config.IRC.MainChannel, strings.Join(parts, " | "), force)
}

func (b *Bot) topicParts(config *Config) []string {
	var parts []string
	if config.IRC.Topic != "" {
		parts = append(parts, config.IRC.Topic)
	}
	usc := config.USC
	season := "Next USC"
	if usc.CompletedSeasons != nil {
		season = fmt.Sprintf("USC %d", *usc.CompletedSeasons+1)
	}
	switch {
	case usc.NextDate != "":
		next, err := time.ParseInLocation("2006-01-02 15:04:05", usc.NextDate, time.UTC)
		if err != nil {
			logf("Invalid USC date %q: %v", usc.NextDate, err)
			break
		}
		part := fmt.Sprintf("%s on %s at %s UTC", season, next.Format("2006-01-02"), next.Format("15:04"))
		local := next.In(time.Local)
		if local.Format("2006-01-02 15:04") != next.Format("2006-01-02 15:04") {
			if local.Format("2006-01-02") == next.Format("2006-01-02") {
				part += fmt.Sprintf(" (%s local time)", local.Format("15:04"))
			} else {
				part += fmt.Sprintf(" (%s local time)", local.Format("2006-01-02 15:04"))
			}
		}
		parts = append(parts, part)
	case usc.NextPoll != "":
		if usc.CompletedSeasons == nil {
			parts = append(parts, "Poll for next USC: "+usc.NextPoll)
		} else {
			parts = append(parts, season+" poll: "+usc.NextPoll)
		}
	}
	return parts
}
