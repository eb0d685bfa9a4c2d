package wurstminebot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/schema"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

func runLeak(inv *Invocation) error {
	b := inv.bot
	main := b.config.Get().IRC.MainChannel
	if main == "" {
		inv.Warning("No channel to leak from!")
		return nil
	}
	count := 1
	if inv.Values.Has("count") {
		n, err := strconv.Atoi(inv.Values.String("count"))
		if err != nil || n < 1 {
			inv.Warning("I can't find that in my chatlog")
			return nil
		}
		count = n
	}
	lines, err := recentChat(b.db, main, count)
	if err != nil {
		return err
	}
	if len(lines) < count {
		inv.Warning("I can't find that in my chatlog")
		return nil
	}
	var parts []string
	for _, line := range lines {
		nick := b.textsub.Sub(line.Nick, people.IRC, people.Twitter)
		text := b.textsub.Text(line.Text, people.IRC, people.Twitter, false)
		if line.Action() {
			parts = append(parts, "* "+nick+" "+text)
		} else {
			parts = append(parts, "<"+nick+"> "+text)
		}
	}
	status := strings.Join(parts, "\n")
	suffix := "\n#ircleaks"
	if len(parts) == 1 {
		suffix = " #ircleaks"
	}
	if twitter.Length(status+suffix) <= twitter.MaxLength {
		status += suffix
	}
	url, err := b.tweet(status)
	if err != nil {
		return err
	}
	b.tellraw("", minecraft.Text{Text: "leaked", Color: "gold", ClickEvent: minecraft.OpenURL(url)})
	b.sayMain("leaked " + url)
	return nil
}

var mojiraIssueRe = regexp.MustCompile(`^(?:https?://[^/]+/browse/)?([A-Z][0-9A-Z]*)-([0-9]+)$`)

func checkPasteMojira(inv *Invocation) error {
	words := []string{inv.Values.String("first"), inv.Values.String("second"), inv.Values.String("third")}
	for len(words) > 0 && words[len(words)-1] == "" {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return nil
	}
	if strings.EqualFold(words[len(words)-1], "nolink") {
		inv.Values["nolink"] = true
		words = words[:len(words)-1]
	}
	project := "MC"
	var issue string
	switch len(words) {
	case 1:
		if m := mojiraIssueRe.FindStringSubmatch(words[0]); m != nil {
			project, issue = m[1], m[2]
		} else {
			issue = words[0]
		}
	case 2:
		project, issue = strings.ToUpper(words[0]), words[1]
	default:
		return &schema.UsageError{}
	}
	n, err := strconv.Atoi(issue)
	if err != nil || n < 1 {
		return &schema.UsageError{}
	}
	inv.Values["project"] = project
	inv.Values["issue"] = n
	return nil
}

func runPasteMojira(inv *Invocation) error {
	b := inv.bot
	issue, ok := inv.Values.Int("issue")
	if !ok {
		url := b.config.Get().URLs.Mojira + "MC"
		inv.Reply(url, minecraft.Text{Text: url, Color: "gold", ClickEvent: minecraft.OpenURL(url)})
		return nil
	}
	text, rich := b.pasteMojira(inv.Context(), inv.Values.String("project"), issue, !inv.Values.Has("nolink"))
	inv.Reply(text, rich...)
	return nil
}

var tweetURLRe = regexp.MustCompile(`^https?://(?:www\.|mobile\.)?(?:twitter|x)\.com/[0-9A-Z_a-z]+/status/([0-9]+)`)

func checkPasteTweet(inv *Invocation) error {
	status := inv.Values.String("status")
	if m := tweetURLRe.FindStringSubmatch(status); m != nil {
		inv.Values["id"] = m[1]
		return nil
	}
	if _, err := strconv.ParseUint(status, 10, 64); err != nil {
		return &schema.UsageError{}
	}
	inv.Values["id"] = status
	return nil
}

// statusID returns the status id at the end of a tweet URL.
func statusID(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func runTweet(inv *Invocation) error {
	b := inv.bot
	text := b.textsub.Text(inv.Values.String("message"), inv.Origin, people.Twitter, false)
	url, err := b.tweet(text)
	if err != nil {
		return err
	}
	main := b.config.Get().IRC.MainChannel
	pasted, rich, err := b.pasteTweet(statusID(url), true)
	if err != nil {
		logf("[twitter] Cannot read back tweet %s: %v", url, err)
		pasted, rich = url, nil
	}
	if inv.Origin == people.Minecraft || rich == nil {
		b.tellraw("", minecraft.Text{Text: url, Color: "gold", ClickEvent: minecraft.OpenURL(url)})
	} else {
		b.tellraw("", rich...)
	}
	switch {
	case inv.Origin == people.IRC && inv.Channel != "" && strings.EqualFold(inv.Channel, main):
		b.say(inv.Channel, url)
	case inv.Origin == people.IRC && inv.Channel != "":
		b.say(inv.Channel, pasted)
	default:
		b.sayMain(pasted)
	}
	return nil
}
