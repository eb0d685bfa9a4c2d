package wurstminebot

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/wurstmineberg/wurstminebot/mclog"
	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

const cmdTopicReply = "332"

func (b *Bot) handleIRC(msg *Message) {
	if msg.AsNick != "" {
		b.mu.Lock()
		b.nick = msg.AsNick
		b.mu.Unlock()
	}
	switch msg.Command {
	case cmdEndOfMOTD, cmdNoMOTD:
		b.ircReady()
	case cmdTopic:
		if len(msg.Params) > 0 {
			b.topics.Observe(msg.Params[0], msg.Text)
		}
	case cmdTopicReply:
		if len(msg.Params) > 1 {
			b.topics.Observe(msg.Params[1], msg.Text)
		}
	case cmdJoin, cmdPart:
		channel := msg.Text
		if len(msg.Params) > 0 {
			channel = msg.Params[0]
		}
		if strings.EqualFold(msg.Nick, b.currentNick()) || !strings.EqualFold(channel, b.config.Get().IRC.MainChannel) {
			break
		}
		what := " joined "
		if msg.Command == cmdPart {
			what = " left "
		}
		b.syncToMinecraft("sync_join_part", msg.Nick+what+channel)
	case cmdNick:
		newNick := msg.Text
		if newNick == "" && len(msg.Params) > 0 {
			newNick = msg.Params[0]
		}
		if msg.Nick != "" && !strings.EqualFold(newNick, b.currentNick()) {
			b.syncToMinecraft("sync_nick_changes", msg.Nick+" is now known as "+newNick)
		}
	case cmdPrivMsg:
		b.handlePrivMsg(msg)
	}
}

// ircReady joins the channels once the server accepted the connection.
func (b *Bot) ircReady() {
	config := b.config.Get()
	for _, channel := range config.IRC.AllChannels() {
		if err := b.chat.Join(channel); err != nil {
			logf("[irc] Cannot join %s: %v", channel, err)
		}
	}
	b.mu.Lock()
	started := b.started
	b.started = true
	b.mu.Unlock()
	if !started {
		b.announce("aaand I'm back.", "gold")
	}
	b.updateTopic(b.ctx(), true)
}

// syncToMinecraft shows text to the online players who enabled option.
func (b *Bot) syncToMinecraft(option, text string) {
	players, err := b.onlinePlayerList(b.ctx())
	if err != nil {
		logf("[minecraft] Cannot list online players: %v", err)
		return
	}
	for _, player := range players {
		if b.people.Resolve(player, people.Minecraft).Option(option) {
			b.tellraw(player, minecraft.Text{Text: text, Color: "yellow"})
		}
	}
}

func (b *Bot) handlePrivMsg(msg *Message) {
	config := b.config.Get()
	main := config.IRC.MainChannel
	if strings.EqualFold(msg.Nick, b.currentNick()) {
		if dev := config.IRC.DevChannel; dev != "" && !strings.EqualFold(dev, main) && strings.EqualFold(msg.Channel, dev) {
			b.sayMain(msg.Text)
		}
		return
	}
	for _, nick := range config.IRC.Ignore {
		if strings.EqualFold(nick, msg.Nick) {
			return
		}
	}
	sender := b.people.Resolve(msg.Nick, people.IRC)
	inMain := msg.Channel != "" && strings.EqualFold(msg.Channel, main)

	if msg.BotText != "" {
		if inMain {
			b.logChat(&chatLine{Time: msg.Time, Channel: msg.Channel, Command: cmdPrivMsg, Nick: msg.Nick, Text: msg.Text, BotText: msg.BotText})
		}
		b.runAsync(msg.BotText, sender, msg.Nick, people.IRC, msg.Channel)
		return
	}
	if !inMain {
		return
	}

	text, action := msg.Action()
	line := &chatLine{Time: msg.Time, Channel: msg.Channel, Command: cmdPrivMsg, Nick: msg.Nick, Text: msg.Text}
	if action {
		line.Command, line.Text = "ACTION", text
	}
	b.logChat(line)
	b.relayToMinecraft(sender, msg.Nick, msg.Channel, line.Text, action)
}

func (b *Bot) logChat(line *chatLine) {
	if b.db == nil {
		return
	}
	if err := logChat(b.db, line); err != nil {
		logf("%v", err)
	}
}

// runAsync runs a command line without blocking the event loop.
func (b *Bot) runAsync(text string, sender people.Identity, nick string, origin people.Context, channel string) {
	b.tomb.Go(func() error {
		inv := &Invocation{Sender: sender, SenderNick: nick, Origin: origin, Channel: channel}
		_, err := b.dispatcher.run(b.ctx(), inv, text)
		var quit *QuitError
		if errors.As(err, &quit) {
			b.requestQuit(quit)
		}
		return nil
	})
}

var (
	mojiraURLRe = regexp.MustCompile(`^https?://(?:bugs\.mojang\.com|mojang\.atlassian\.net|report\.bugs\.mojang\.com)/browse/([A-Z][0-9A-Z]*)-([0-9]+)$`)
	urlPrefixRe = regexp.MustCompile(`^https?://\S+`)
)

// relayToMinecraft shows a main channel message in the Minecraft chat,
// and pastes the contents of bug and tweet links on both sides.
func (b *Bot) relayToMinecraft(sender people.Identity, nick, channel, text string, action bool) {
	mcnick := people.NickOr(sender, people.Minecraft)
	nickText := minecraft.Text{
		Text:       "<" + mcnick + ">",
		Color:      "aqua",
		HoverEvent: minecraft.ShowText(nick + " in " + channel),
		ClickEvent: minecraft.SuggestCommand(mcnick + ": "),
	}
	if action {
		nickText.Text = "* " + mcnick
	}
	subbed := b.textsub.Text(text, people.IRC, people.Minecraft, false)
	texts := []minecraft.Text{nickText, {Text: " ", Color: "aqua"}}
	if url := urlPrefixRe.FindString(subbed); url != "" {
		texts = append(texts, minecraft.Text{Text: url, Color: "aqua", ClickEvent: minecraft.OpenURL(url)})
		if rest := subbed[len(url):]; rest != "" {
			texts = append(texts, minecraft.Text{Text: rest, Color: "aqua"})
		}
	} else {
		texts = append(texts, minecraft.Text{Text: subbed, Color: "aqua"})
	}
	b.tellraw("", texts...)

	for _, word := range strings.Fields(text) {
		if m := mojiraURLRe.FindStringSubmatch(word); m != nil {
			issue, _ := strconv.Atoi(m[2])
			pasted, rich := b.pasteMojira(b.ctx(), m[1], issue, false)
			b.tellraw("", rich...)
			b.sayMain(pasted)
		} else if m := tweetURLRe.FindStringSubmatch(word); m != nil {
			pasted, rich, err := b.pasteTweet(m[1], false)
			if err != nil {
				logf("[twitter] Cannot paste tweet %s: %v", m[1], err)
				continue
			}
			b.tellraw("", rich...)
			b.sayMain(pasted)
		}
	}
}

// handleLogLine reacts to a line of the Minecraft server log.
func (b *Bot) handleLogLine(line string) {
	ev, err := mclog.ClassifyAt(line, b.clock.Now())
	if err != nil {
		return
	}
	b.metrics.logEvent(ev.Kind.String())
	debugf("[minecraft] %s event from %s", ev.Kind, ev.Player)
	switch ev.Kind {
	case mclog.Chat, mclog.Action:
		b.relayToIRC(ev)
	case mclog.Command:
		sender := b.people.Resolve(ev.Player, people.Minecraft)
		b.runAsync(ev.Text, sender, ev.Player, people.Minecraft, "")
	case mclog.Join, mclog.Leave:
		b.handleJoinLeave(ev)
	case mclog.Achievement:
		b.handleAchievement(ev)
	case mclog.Death:
		b.handleDeath(ev)
	}
}

func (b *Bot) relayToIRC(ev *mclog.Event) {
	person := b.people.Resolve(ev.Player, people.Minecraft)
	text := b.textsub.Text(ev.Text, people.Minecraft, people.IRC, false)
	line := &chatLine{Time: ev.Time, Channel: b.config.Get().IRC.MainChannel, Command: cmdPrivMsg, Nick: people.IRCNick(person, false), Text: text}
	if ev.Kind == mclog.Action {
		line.Command = "ACTION"
		b.sayMain("* " + people.IRCNick(person, true) + " " + text)
	} else {
		b.sayMain("<" + people.IRCNick(person, true) + "> " + text)
	}
	if line.Channel != "" {
		b.logChat(line)
	}
}

func (b *Bot) handleJoinLeave(ev *mclog.Event) {
	joined := ev.Kind == mclog.Join
	seen, err := b.logins.Seen(ev.Player)
	if err != nil {
		logf("%v", err)
	}
	newPlayer := err == nil && !seen
	if err := b.logins.Append(ev.Time, ev.Player, joined); err != nil {
		logf("Cannot write login log: %v", err)
	}
	person := b.people.Resolve(ev.Player, people.Minecraft)
	if joined {
		b.tellraw(ev.Player, b.welcome(ev.Player, person, newPlayer)...)
	}
	if b.config.Get().IRC.PlayerList == "announce" {
		what := " left the game"
		if joined {
			what = " joined the game"
		}
		b.sayMain(people.IRCNick(person, true) + what)
	}
	b.updateTopic(b.ctx(), false)
}

// weightFor returns the weight stored under key, or under "@default",
// or 1 when neither is present.
func weightFor(weights map[string]float64, key string) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	if w, ok := weights["@default"]; ok {
		return w
	}
	return 1
}

// pickWeighted returns an index chosen with probability proportional to
// its weight, or -1 if all weights are zero.
func pickWeighted(weights []float64) int {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	r := rand.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if r < w {
			return i
		}
		r -= w
	}
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}

func (b *Bot) welcome(player string, id people.Identity, newPlayer bool) []minecraft.Text {
	gray := func(text string) minecraft.Text {
		return minecraft.Text{Text: text, Color: "gray"}
	}
	hello := "Hello " + player + ". "
	if newPlayer {
		return []minecraft.Text{gray(hello + "Welcome to the server!")}
	}
	person, ok := id.(*people.Person)
	if !ok {
		return []minecraft.Text{gray(hello + "How did you do that?")}
	}

	config := b.config.Get()
	var choices [][]minecraft.Text
	var weights []float64
	for _, line := range config.CommentLines.ServerJoin {
		choices = append(choices, []minecraft.Text{gray(hello + line)})
		weights = append(weights, 1)
	}
	if person.Description == "" {
		peopleURL := config.URLs.People
		choices = append(choices, []minecraft.Text{
			gray(hello + "You should add a description of yourself to the "),
			{Text: "people page", Color: "gray", ClickEvent: minecraft.OpenURL(peopleURL)},
			gray(". "),
			{Text: "Click here", Color: "gray", ClickEvent: minecraft.SuggestCommand("!people " + person.ID + " description ")},
			gray(" to do it in chat."),
		})
		weights = append(weights, 1)
	}
	for _, comment := range config.AdvancedCommentLines.ServerJoin {
		weight := 1.0
		if comment.Weight != nil {
			weight = *comment.Weight
		}
		weight *= weightFor(comment.PlayerWeights, person.ID)
		text := comment.Text
		if comment.HelloPrefix == nil || *comment.HelloPrefix {
			text = hello + text
		}
		choices = append(choices, []minecraft.Text{gray(text)})
		weights = append(weights, weight)
	}
	if i := pickWeighted(weights); i >= 0 {
		return choices[i]
	}
	return []minecraft.Text{gray(hello + "Um... sup?")}
}

// tweetNote describes the outcome of a tweet in IRC announcements.
func tweetNote(url string, err error) string {
	if err == nil {
		return url
	}
	var terr *twitter.Error
	if errors.As(err, &terr) {
		return fmt.Sprintf("error %d: %s", terr.StatusCode, terr.Message)
	}
	return "error: " + err.Error()
}

func (b *Bot) handleAchievement(ev *mclog.Event) {
	person := b.people.Resolve(ev.Player, people.Minecraft)
	note := "achievement tweets are disabled"
	if b.achievementTweets.On() {
		url, err := b.tweet("[Achievement Get] " + people.TwitterHandle(person) + " got " + ev.Text)
		if err != nil {
			logf("[twitter] Cannot tweet achievement: %v", err)
		}
		note = tweetNote(url, err)
	}
	b.sayMain("Achievement Get: " + people.IRCNick(person, true) + " got " + ev.Text + " [" + note + "]")
}

// deathGamesWeapons maps death kinds to the weapon that marks a
// defended Death Games attempt.
var deathGamesWeapons = map[string]string{
	"slain-player-using": "Sword of Justice",
	"shot-player-using":  "Bow of Justice",
}

func (b *Bot) handleDeath(ev *mclog.Event) {
	config := b.config.Get()
	person := b.people.Resolve(ev.Player, people.Minecraft)

	var prev *deathRecord
	if b.db != nil {
		var err error
		if prev, err = lastDeath(b.db); err != nil {
			logf("%v", err)
		}
	}
	logLine := ev.Time.UTC().Format(logStampFormat) + " " + ev.Player + " " + ev.Partial + "\n"
	if err := appendLine(filepath.Join(config.Paths.Logs, "deaths.log"), logLine); err != nil {
		logf("Cannot write death log: %v", err)
	}
	record := &deathRecord{Time: ev.Time, Player: ev.Player, DeathID: ev.DeathID, Message: ev.Partial}

	note := "deathtweets are disabled"
	if b.deathTweets.On() {
		comment := b.deathComment(ev, person, prev)
		status := "[DEATH] " + people.TwitterHandle(person) + " " + b.textsub.Text(ev.Partial, people.Minecraft, people.Twitter, true)
		if withComment := status + " … " + comment; twitter.Length(withComment) <= twitter.MaxLength {
			status = withComment
		}
		url, err := b.tweet(status)
		note = tweetNote(url, err)
		if err != nil {
			logf("[twitter] Cannot tweet death: %v", err)
			b.tellraw(ev.Player,
				minecraft.Text{Text: "Your fail has ", Color: "gray"},
				minecraft.Text{Text: "not", Color: "red"},
				minecraft.Text{Text: " been reported because of ", Color: "gray"},
				minecraft.Text{Text: "reasons", Color: "gray", HoverEvent: minecraft.ShowText(errorReply(err))},
				minecraft.Text{Text: ".", Color: "gray"},
			)
		} else {
			record.Tweet = url
			b.tellraw(ev.Player, minecraft.Text{Text: "Your fail has been reported. Congratulations.", Color: "gold", ClickEvent: minecraft.OpenURL(url)})
		}
	}
	b.sayMain(people.IRCNick(person, true) + " " + b.textsub.Text(ev.Partial, people.Minecraft, people.IRC, true) + " [" + note + "]")

	if b.db != nil {
		if err := logDeath(b.db, record); err != nil {
			logf("%v", err)
		}
	}
}

// deathComment picks the remark added to a death tweet.
func (b *Bot) deathComment(ev *mclog.Event, victim people.Identity, prev *deathRecord) string {
	if prev != nil && prev.Player == ev.Player && prev.Message == ev.Partial {
		return "Again."
	}
	config := b.config.Get()
	if weapon, ok := deathGamesWeapons[ev.DeathID]; ok && len(ev.Groups) > 1 && ev.Groups[1] == weapon {
		if err := b.logDefendedAttempt(victim, ev.Groups[0]); err != nil {
			logf("[death] Cannot log Death Games attempt: %v", err)
		}
		return "And loses a diamond " + config.URLs.DeathGames
	}

	var choices []string
	var weights []float64
	for _, line := range config.CommentLines.Death {
		choices = append(choices, line)
		weights = append(weights, 1)
	}
	id := ""
	if person, ok := victim.(*people.Person); ok {
		id = person.ID
	}
	for _, comment := range config.AdvancedCommentLines.Death {
		weight := 1.0
		if comment.Weight != nil {
			weight = *comment.Weight
		}
		weight *= weightFor(comment.PlayerWeights, id) * weightFor(comment.TypeWeights, ev.DeathID)
		choices = append(choices, comment.Text)
		weights = append(weights, weight)
	}
	if i := pickWeighted(weights); i >= 0 {
		return choices[i]
	}
	return "Well done."
}

// logDefendedAttempt records the failed attempt of victim on the player
// who killed them with a Death Games weapon.
func (b *Bot) logDefendedAttempt(victim people.Identity, killer string) error {
	attacker, ok := victim.(*people.Person)
	if !ok {
		return people.ErrAnonymous
	}
	target, err := b.people.Lookup(killer, people.Minecraft)
	if err != nil {
		return err
	}
	return b.logDeathGames(attacker, target, false, b.clock.Now())
}
