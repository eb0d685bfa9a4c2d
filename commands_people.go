package wurstminebot

import (
	"errors"
	"strings"
	"time"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/schema"
)

func notAPerson(handle string) error {
	return schema.Usagef("%s is not in people.json", handle)
}

// Death Games

func checkDeathGames(inv *Invocation) error {
	attacker, target := "", inv.Values.String("first")
	if inv.Values.Has("second") {
		attacker, target = target, inv.Values.String("second")
	}
	if attacker != "" {
		p, err := inv.bot.findPerson(attacker, inv.Origin)
		if err != nil {
			return notAPerson(attacker)
		}
		inv.Values["attacker"] = p
	} else if p, ok := inv.Sender.(*people.Person); ok {
		inv.Values["attacker"] = p
	}
	p, err := inv.bot.findPerson(target, inv.Origin)
	if err != nil {
		return notAPerson(target)
	}
	inv.Values["target"] = p
	return nil
}

func runDeathGames(inv *Invocation) error {
	attacker, ok := inv.Values["attacker"].(*people.Person)
	if !ok {
		return people.ErrAnonymous
	}
	target := inv.Values["target"].(*people.Person)
	success := inv.Values.String("outcome") == "win"
	return inv.bot.logDeathGames(attacker, target, success, inv.bot.clock.Now())
}

// Last seen

func checkLastSeen(inv *Invocation) error {
	handle := inv.Values.String("player")
	p, err := inv.bot.findPerson(handle, inv.Origin, people.Minecraft)
	if err != nil {
		return notAPerson(handle)
	}
	if p.Minecraft == "" {
		return schema.Usagef("%s has no Minecraft nick", p.DisplayName())
	}
	inv.Values["person"] = p
	return nil
}

func runLastSeen(inv *Invocation) error {
	b := inv.bot
	person := inv.Values["person"].(*people.Person)
	name := people.NickOr(person, inv.Origin)
	if inv.Origin == people.IRC {
		name = people.IRCNick(person, true)
	}
	nameText := minecraft.Text{
		Text:       name,
		Color:      "gold",
		HoverEvent: minecraft.ShowText(person.Minecraft + " in Minecraft"),
		ClickEvent: minecraft.SuggestCommand(person.Minecraft + ": "),
	}

	players, err := b.onlinePlayerList(inv.Context())
	if err != nil {
		logf("[minecraft] Cannot list online players: %v", err)
	}
	for _, player := range players {
		if strings.EqualFold(player, person.Minecraft) {
			text := " is currently on the server."
			inv.Reply(name+text, nameText, minecraft.Text{Text: text, Color: "gold"})
			return nil
		}
	}

	seen, err := b.logins.LastSeen(person.Minecraft)
	if err != nil {
		return err
	}
	if seen.IsZero() {
		text := "I have not seen " + name + " on the server yet."
		inv.Reply(text)
		return nil
	}
	text := " was last seen " + lastSeenDate(seen, b.clock.Now()) + " at " + seen.UTC().Format("15:04") + " UTC."
	inv.Reply(name+text, nameText, minecraft.Text{Text: text, Color: "gold"})
	return nil
}

func lastSeenDate(seen, now time.Time) string {
	seen, now = seen.UTC(), now.UTC()
	day := seen.Format("2006-01-02")
	switch day {
	case now.Format("2006-01-02"):
		return "today"
	case now.AddDate(0, 0, -1).Format("2006-01-02"):
		return "yesterday"
	}
	return "on " + day
}

// People

var peopleAttributes = []string{"description", "name", "reddit", "twitter", "website", "wiki"}

func checkPeople(inv *Invocation) error {
	if !inv.Values.Has("person") {
		return nil
	}
	attribute := inv.Values.String("attribute")
	value := inv.Values.String("value")
	if value != "" && attribute == "" {
		return &schema.UsageError{}
	}
	switch attribute {
	case "reddit", "twitter", "website", "wiki":
		if len(schema.Fields(value)) > 1 {
			return &schema.UsageError{}
		}
	}
	id := inv.Values.String("person")
	p, err := inv.bot.people.ByID(id)
	if err != nil {
		return schema.Usagef("no person with id %s in people.json", id)
	}
	inv.Values["record"] = p
	return nil
}

func peopleLevel(inv *Invocation) people.Level {
	if inv.Values.String("value") == "" {
		return people.LevelUnknown
	}
	if p, ok := inv.Values["record"].(*people.Person); ok && people.Same(inv.Sender, p) {
		return people.LevelPerson
	}
	return people.LevelOp
}

func runPeople(inv *Invocation) error {
	b := inv.bot
	p, ok := inv.Values["record"].(*people.Person)
	if !ok {
		url := b.config.Get().URLs.People
		inv.Reply(url, minecraft.Text{Text: url, Color: "gold", ClickEvent: minecraft.OpenURL(url)})
		return nil
	}
	attribute := inv.Values.String("attribute")
	value := inv.Values.String("value")
	if attribute == "" {
		if p.Name != "" {
			inv.Reply("person with id " + p.ID + " and name " + p.Name)
		} else {
			inv.Reply("person with id " + p.ID + " and no name (id will be used as name)")
		}
		return nil
	}
	if value == "" {
		inv.Reply(describeAttribute(p, attribute))
		return nil
	}

	changed := func(what, old string) string {
		if old != "" {
			return what + " changed"
		}
		return what + " added"
	}
	var reply string
	var err error
	switch attribute {
	case "description":
		err = b.people.SetAttribute(p, []string{"description"}, value)
		reply = "description updated"
	case "name":
		err = b.people.SetAttribute(p, []string{"name"}, value)
		reply = changed("name", p.Name)
	case "reddit":
		err = b.people.SetAttribute(p, []string{"reddit"}, strings.TrimPrefix(value, "/u/"))
		reply = changed("reddit nick", p.Reddit)
	case "twitter":
		screenName := strings.TrimPrefix(value, "@")
		err = b.setTwitter(p, screenName)
		if errors.Is(err, errNoTwitter) {
			err = nil
			reply = changed("twitter nick", p.Twitter)
		} else {
			reply = "@" + b.poster.ScreenName() + " is now following @" + screenName
		}
	case "website":
		err = b.people.SetAttribute(p, []string{"website"}, value)
		reply = changed("website", p.Website)
	case "wiki":
		err = b.people.SetAttribute(p, []string{"wiki"}, strings.TrimPrefix(value, "User:"))
		reply = changed("wiki account", p.Wiki)
	}
	if err != nil {
		return err
	}
	inv.Reply(reply)
	return nil
}

func describeAttribute(p *people.Person, attribute string) string {
	switch attribute {
	case "description":
		if p.Description != "" {
			return p.Description
		}
		return "no description"
	case "name":
		if p.Name != "" {
			return p.Name
		}
		return "no name, using id: " + p.ID
	case "reddit":
		if p.Reddit != "" {
			return "/u/" + p.Reddit
		}
		return "no reddit nick"
	case "twitter":
		if p.Twitter != "" {
			return "@" + p.Twitter
		}
		return "no twitter nick"
	case "website":
		if p.Website != "" {
			return p.Website
		}
		return "no website"
	case "wiki":
		if p.Wiki != "" {
			return p.Wiki
		}
		return "no wiki account"
	}
	return ""
}

// Whitelist

func checkWhitelist(inv *Invocation) error {
	if id := inv.Values.String("id"); !people.ValidID(id) {
		return schema.Usagef("invalid person id: %s", id)
	}
	return nil
}

func runWhitelist(inv *Invocation) error {
	b := inv.bot
	id := inv.Values.String("id")
	mcname := inv.Values.String("minecraft")
	err := b.people.Add(map[string]interface{}{
		"id":        id,
		"minecraft": mcname,
		"status":    "later",
	})
	if errors.Is(err, people.ErrExists) {
		inv.Warning("id " + id + " already exists")
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.server.WhitelistAdd(inv.Context(), mcname); err != nil {
		if rerr := b.people.Remove(id); rerr != nil {
			logf("Cannot remove %s after failing to whitelist them: %v", id, rerr)
		}
		return err
	}
	inv.Reply(mcname + " is now whitelisted")

	if !inv.Values.Has("twitter") {
		return nil
	}
	p, err := b.people.ByID(id)
	if err != nil {
		return err
	}
	screenName := strings.TrimPrefix(inv.Values.String("twitter"), "@")
	err = b.setTwitter(p, screenName)
	if errors.Is(err, errNoTwitter) {
		return nil
	}
	if err != nil {
		return err
	}
	inv.Reply("@" + b.poster.ScreenName() + " is now following @" + screenName)
	return nil
}
