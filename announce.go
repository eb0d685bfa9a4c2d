package wurstminebot

import (
	"context"
	"strings"
	"time"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
)

// Clock tells the time for the scheduled announcements. The location of
// the times returned by Now is taken as the local time zone.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// sleep waits for d, and reports false if the bot died meanwhile.
func (b *Bot) sleep(d time.Duration) bool {
	select {
	case <-b.clock.After(d):
		return true
	case <-b.tomb.Dying():
		return false
	}
}

func (b *Bot) announceLoop() error {
	for {
		now := b.clock.Now()
		if !b.sleep(nextHour(now).Sub(now)) {
			return nil
		}
		debugf("[announce] Telling the time")
		err := b.tellTime(b.ctx(), b.announceTime, true, b.config.Get().DailyRestart)
		if err != nil {
			logf("[announce] %v", err)
		}
	}
}

// nextHour returns one second past the next full hour of now's local
// time, which for zones offset by a half hour is not a full UTC hour.
func nextHour(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 1, 0, now.Location())
}

func (b *Bot) announceTime(text string, warning bool) {
	color := "gold"
	if warning {
		color = "red"
	}
	b.tellraw("", minecraft.Text{Text: text, Color: color})
}

var hourComments = map[int]string{
	0: "Dark outside, better play some Minecraft.",
	1: "You better don't stay up all night again.",
	2: "Some late night mining always cheers me up.",
	3: "Seems like you are having fun.",
	4: "Getting pretty late, huh?",
	5: "It is really getting late. You should go to sleep.",
	6: "Are you still going, just starting or asking yourself the same thing?",
}

// tellTime reports the current time through say. The hourly announcement
// also reports daylight saving time changes since the previous one, and
// comments on the night hours. With restart set the daily server restart
// runs when it is due.
func (b *Bot) tellTime(ctx context.Context, say func(text string, warning bool), hourly, restart bool) error {
	now := b.clock.Now()
	dst := 0
	if now.IsDST() {
		dst = 1
	}
	prev := dst
	if hourly {
		b.mu.Lock()
		prev, b.dst = b.dst, dst
		b.mu.Unlock()
	}

	if prev >= 0 && prev != dst {
		if dst == 1 {
			say("Daylight saving time is now in effect.", false)
		} else {
			say("Daylight saving time is no longer in effect.", false)
		}
	}
	say("The time is "+now.Format("15:04")+" ("+now.UTC().Format("15:04")+" UTC)", false)

	if hourly && (prev < 0 || prev == dst) {
		hour := now.Hour()
		if text, ok := hourComments[hour]; ok {
			say(text, hour == 5)
		}
		switch hour {
		case 2:
			if !b.sleep(10 * time.Second) {
				return nil
			}
			say("...Or redstoning. Or building. Whatever floats your boat.", false)
		case 3:
			if !b.sleep(time.Minute) {
				return nil
			}
			say("I heard that zombie over there talk trash about you. Thought you'd wanna know...", false)
		}
	}

	if restart && now.Hour() == 11 && now.Minute() < 5 {
		b.dailyRestart(ctx)
	}
	b.updateTopic(ctx, false)
	return nil
}

func (b *Bot) dailyRestart(ctx context.Context) {
	logf("[announce] Running the daily server restart")
	players, err := b.onlinePlayerList(ctx)
	if err != nil {
		logf("[minecraft] Cannot list online players: %v", err)
	}
	if len(players) > 0 {
		b.announce("The server is going to restart in 5 minutes.", "red")
		if !b.sleep(4 * time.Minute) {
			return
		}
		b.announce("The server is going to restart in 60 seconds.", "red")
		if !b.sleep(50 * time.Second) {
			return
		}
	}
	err = b.runLocked(func() error {
		b.setSpecialStatus(ctx, "The server is restarting…")
		defer b.setSpecialStatus(ctx, "")
		return b.server.Restart(ctx)
	})
	if err != nil {
		logf("[announce] Daily restart failed: %v", err)
		b.sayMain("Please help! Something went wrong with the server restart!")
		return
	}
	if len(players) > 0 {
		var nicks []string
		for _, id := range b.people.Sorted(players, people.Minecraft) {
			nicks = append(nicks, people.IRCNick(id, false))
		}
		b.sayMain(strings.Join(nicks, ", ") + ": The server has restarted.")
	}
}
