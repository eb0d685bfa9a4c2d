package wurstminebot

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/schema"
)

func builtinCommands() []*Command {
	return []*Command{{
		Name:  "AchievementTweet",
		Help:  "toggle achievement message tweeting",
		Usage: "[on | off [<time>]]",
		Args:  toggleArgs,
		Check: checkToggle,
		Level: toggleLevel,
		Run: func(inv *Invocation) error {
			return runToggle(inv, inv.bot.achievementTweets, "Achievement tweeting is", "Achievement tweets are back on")
		},
	}, {
		Name:  "Alias",
		Help:  "add, edit, or remove an alias (you can use aliases like regular commands)",
		Usage: "<alias_name> [<text>...]",
		Args: schema.Args{
			{Name: "name", Flag: schema.Required},
			{Name: "text", Flag: schema.Trailing},
		},
		Check: checkAlias,
		Level: aliasLevel,
		Run:   runAliasCommand,
	}, {
		Name:     "Command",
		Help:     "perform a Minecraft server command",
		Usage:    "<command> [<arguments>...]",
		Args:     schema.Args{{Name: "command", Flag: schema.Required | schema.Trailing}},
		MinLevel: people.LevelOp,
		Run:      runCommand,
	}, {
		Name:  "DeathGames",
		Help:  "record an assassination attempt in the Death Games log",
		Usage: "(win | fail) [<attacker>] <target>",
		Args: schema.Args{
			{Name: "outcome", Flag: schema.Required, Choices: []string{"win", "fail"}},
			{Name: "first", Flag: schema.Required},
			{Name: "second"},
		},
		Check:    checkDeathGames,
		MinLevel: people.LevelWhitelisted,
		Run:      runDeathGames,
	}, {
		Name:  "DeathTweet",
		Help:  "toggle death message tweeting",
		Usage: "[on | off [<time>]]",
		Args:  toggleArgs,
		Check: checkToggle,
		Level: toggleLevel,
		Run: func(inv *Invocation) error {
			return runToggle(inv, inv.bot.deathTweets, "Deathtweeting is", "Death tweets are back on")
		},
	}, {
		Name: "FixStatus",
		Help: "update the server status in the channel topic",
		Run: func(inv *Invocation) error {
			inv.bot.updateTopic(inv.Context(), true)
			return nil
		},
	}, {
		Name:    "Help",
		Help:    "get help on a command",
		Usage:   "[aliases | commands | <alias> | <command>]",
		Args:    schema.Args{{Name: "topic"}},
		Run:     runHelp,
		Private: true,
	}, {
		Name:     "Join",
		Help:     "make the bot join a channel",
		Usage:    "<channel>",
		Args:     schema.Args{{Name: "channel", Flag: schema.Required}},
		Check:    checkJoin,
		MinLevel: people.LevelOp,
		Run:      runJoin,
	}, {
		Name:  "LastSeen",
		Help:  "when was the player last seen logging in or out on Minecraft",
		Usage: "<player>",
		Args:  schema.Args{{Name: "player", Flag: schema.Required}},
		Check: checkLastSeen,
		Run:   runLastSeen,
	}, {
		Name:     "Leak",
		Help:     "tweet the last line_count (defaults to 1) chatlog lines",
		Usage:    "[<line_count>]",
		Args:     schema.Args{{Name: "count"}},
		MinLevel: people.LevelInvited,
		Run:      runLeak,
	}, {
		Name:  "MinecraftWiki",
		Help:  "look something up in the Minecraft Wiki",
		Usage: "(<url> | <article>...)",
		Args:  schema.Args{{Name: "article", Flag: schema.Required | schema.Trailing}},
		Run: func(inv *Invocation) error {
			text, rich := inv.bot.wikiLookup(inv.Context(), strings.Join(inv.Fields(), "_"))
			inv.Reply(text, rich...)
			return nil
		},
	}, {
		Name:  "Option",
		Help:  "show or change your options, or someone else's",
		Usage: "<option> [show | on | off | reset] [<person>]",
		Args: schema.Args{
			{Name: "option", Flag: schema.Required},
			{Name: "value", Choices: optionValues},
			{Name: "person"},
			{Name: "value2", Choices: optionValues},
		},
		Check: checkOption,
		Level: optionLevel,
		Run:   runOption,
	}, {
		Name:  "PasteMojira",
		Help:  "print the title of a bug in Mojang's bug tracker",
		Usage: "[<url> | [<project_key>] <issue_id>] [nolink]",
		Args: schema.Args{
			{Name: "first"},
			{Name: "second"},
			{Name: "third"},
		},
		Check: checkPasteMojira,
		Run:   runPasteMojira,
	}, {
		Name:  "PasteTweet",
		Help:  "print the contents of a tweet",
		Usage: "(<url> | <status_id>) [nolink]",
		Args: schema.Args{
			{Name: "status", Flag: schema.Required},
			{Name: "nolink", Choices: []string{"nolink"}},
		},
		Check: checkPasteTweet,
		Run: func(inv *Invocation) error {
			text, rich, err := inv.bot.pasteTweet(inv.Values.String("id"), !inv.Values.Has("nolink"))
			if err != nil {
				return err
			}
			inv.Reply(text, rich...)
			return nil
		},
	}, {
		Name:  "People",
		Help:  "people.json management",
		Usage: "[<person> [<attribute> [<value>...]]]",
		Args: schema.Args{
			{Name: "person"},
			{Name: "attribute", Choices: peopleAttributes},
			{Name: "value", Flag: schema.Trailing},
		},
		Check: checkPeople,
		Level: peopleLevel,
		Run:   runPeople,
	}, {
		Name:     "Quit",
		Help:     "stop the bot with a custom quit message",
		Usage:    "[<quit_message>...]",
		Args:     schema.Args{{Name: "message", Flag: schema.Trailing}},
		MinLevel: people.LevelOp,
		Run: func(inv *Invocation) error {
			return quitBot(inv, inv.Values.String("message"))
		},
	}, {
		Name:     "Raw",
		Help:     "send raw message to IRC",
		Usage:    "<raw_message>...",
		Args:     schema.Args{{Name: "line", Flag: schema.Required | schema.Trailing}},
		MinLevel: people.LevelOp,
		Run: func(inv *Invocation) error {
			return inv.bot.chat.Raw(inv.Values.String("line"))
		},
	}, {
		Name:     "Restart",
		Help:     "restart the Minecraft server or the bot",
		Usage:    "[minecraft | bot]",
		Args:     schema.Args{{Name: "what", Choices: []string{"minecraft", "bot"}}},
		MinLevel: people.LevelOp,
		Run:      runRestart,
	}, {
		Name: "Status",
		Help: "print some server status",
		Run:  runStatus,
	}, {
		Name:     "Stop",
		Help:     "stop the Minecraft server or the bot",
		Usage:    "[minecraft | bot]",
		Args:     schema.Args{{Name: "what", Choices: []string{"minecraft", "bot"}}},
		MinLevel: people.LevelOp,
		Run:      runStop,
	}, {
		Name: "Time",
		Help: "reply with the current time",
		Run: func(inv *Invocation) error {
			return inv.bot.tellTime(inv.Context(), inv.say, false, false)
		},
	}, {
		Name:     "Topic",
		Help:     "change the main channel's topic",
		Usage:    "[<topic>...]",
		Args:     schema.Args{{Name: "topic", Flag: schema.Trailing}},
		MinLevel: people.LevelOp,
		Run:      runTopic,
	}, {
		Name:     "Tweet",
		Help:     "write a tweet as the bot's Twitter account",
		Usage:    "<message>...",
		Args:     schema.Args{{Name: "message", Flag: schema.Required | schema.Trailing}},
		MinLevel: people.LevelOp,
		Run:      runTweet,
	}, {
		Name:  "Update",
		Help:  "update Minecraft",
		Usage: "[snapshot <snapshot_id> | <version>]",
		Args: schema.Args{
			{Name: "snapshot", Choices: []string{"snapshot"}},
			{Name: "version"},
		},
		Check:    checkUpdate,
		MinLevel: people.LevelOp,
		Run:      runUpdate,
	}, {
		Name: "Version",
		Help: "reply with the current version of wurstminebot and the Minecraft server backend",
		Run: func(inv *Invocation) error {
			inv.Reply("I am wurstminebot version " + inv.bot.version + ", running on " + inv.bot.server.Describe())
			return nil
		},
	}, {
		Name:  "Whitelist",
		Help:  "add someone to the whitelist",
		Usage: "<unique_id> <minecraft_name> [<twitter_username>]",
		Args: schema.Args{
			{Name: "id", Flag: schema.Required},
			{Name: "minecraft", Flag: schema.Required},
			{Name: "twitter"},
		},
		Check:    checkWhitelist,
		MinLevel: people.LevelOp,
		Run:      runWhitelist,
	}}
}

// say adapts Reply and Warning to the announcer's output function.
func (inv *Invocation) say(text string, warning bool) {
	if warning {
		inv.Warning(text)
	} else {
		inv.Reply(text)
	}
}

var durationRe = regexp.MustCompile(`^([0-9]+)([dhms])`)

// parseDuration parses intervals such as "1d12h", "90m" or "3600", where
// a plain number at the end counts seconds.
func parseDuration(s string) (time.Duration, error) {
	invalid := fmt.Errorf("%s is not a valid time interval", s)
	var d time.Duration
	add := func(n int, unit time.Duration) error {
		if n < 0 || time.Duration(n) > (math.MaxInt64-d)/unit {
			return invalid
		}
		d += time.Duration(n) * unit
		return nil
	}
	rest := s
	for rest != "" {
		m := durationRe.FindStringSubmatch(rest)
		if m == nil {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return 0, invalid
			}
			if err := add(n, time.Second); err != nil {
				return 0, err
			}
			return d, nil
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, invalid
		}
		unit := map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute, "s": time.Second}[m[2]]
		if err := add(n, unit); err != nil {
			return 0, err
		}
		rest = rest[len(m[0]):]
	}
	return d, nil
}

// findPerson resolves handle as a person id first, and then as a nick
// in each of the given contexts.
func (b *Bot) findPerson(handle string, contexts ...people.Context) (*people.Person, error) {
	return b.people.Find(handle, append([]people.Context{people.ID}, contexts...)...)
}

// Toggles

var toggleArgs = schema.Args{
	{Name: "state", Choices: []string{"on", "off"}},
	{Name: "time"},
}

func checkToggle(inv *Invocation) error {
	if !inv.Values.Has("time") {
		return nil
	}
	if inv.Values.String("state") != "off" {
		return &schema.UsageError{}
	}
	if _, err := parseDuration(inv.Values.String("time")); err != nil {
		return &schema.UsageError{}
	}
	return nil
}

func toggleLevel(inv *Invocation) people.Level {
	if inv.Values.String("state") != "off" {
		return people.LevelWhitelisted
	}
	if !inv.Values.Has("time") {
		return people.LevelOp
	}
	d, err := parseDuration(inv.Values.String("time"))
	if err != nil || d > 24*time.Hour {
		return people.LevelOp
	}
	return people.LevelWhitelisted
}

func runToggle(inv *Invocation, toggle *Toggle, subject, backOn string) error {
	state := func(on bool) string {
		if on {
			return "enabled"
		}
		return "disabled"
	}
	switch inv.Values.String("state") {
	case "":
		inv.Reply(subject + " currently " + state(toggle.On()))
	case "on":
		toggle.Set(true)
		inv.Reply(subject + " now enabled")
	case "off":
		if inv.Values.Has("time") {
			d, _ := parseDuration(inv.Values.String("time"))
			toggle.DisableFor(d, func() { inv.Reply(backOn) })
		} else {
			toggle.Set(false)
		}
		inv.Reply(subject + " now disabled")
	}
	return nil
}

// Aliases

func checkAlias(inv *Invocation) error {
	name := inv.Values.String("name")
	if !schema.IsName(name) {
		return &schema.UsageError{}
	}
	if cmd := inv.bot.dispatcher.Lookup(name); cmd != nil {
		return &schema.UsageError{Reason: "there is already a command named " + cmd.Name}
	}
	return nil
}

func aliasLevel(inv *Invocation) people.Level {
	if !inv.Values.Has("text") {
		return people.LevelOp
	}
	if _, alias := inv.bot.config.Get().Alias(inv.Values.String("name")); alias != nil {
		return people.LevelOp
	}
	return people.LevelUnknown
}

func runAliasCommand(inv *Invocation) error {
	name := inv.Values.String("name")
	text := inv.Values.String("text")
	var reply string
	var warning bool
	err := inv.bot.config.Update(func(config *Config) error {
		key, alias := config.Alias(name)
		if text == "" {
			if alias == nil {
				reply, warning = "The alias you tried to delete did not exist!", true
				return nil
			}
			switch alias.kind() {
			case "command":
				reply = "Alias deleted. (Was an alias for " + alias.CommandName + ")"
			default:
				reply = "Alias deleted. (Was “" + alias.Text + "”)"
			}
			delete(config.Aliases, key)
			return nil
		}
		if alias != nil {
			delete(config.Aliases, key)
			reply = "Alias edited."
		} else {
			reply = "Alias added."
		}
		if config.Aliases == nil {
			config.Aliases = make(map[string]*Alias)
		}
		config.Aliases[strings.ToLower(name)] = &Alias{Type: "say", Text: text}
		return nil
	})
	if err != nil {
		return err
	}
	if warning {
		inv.Warning(reply)
	} else {
		inv.Reply(reply)
	}
	return nil
}

// runAlias runs a reply or say alias. Command aliases are resolved by
// the dispatcher.
func (b *Bot) runAlias(inv *Invocation, alias *Alias) {
	rich := []minecraft.Text{{Text: alias.Text, Color: "aqua"}}
	if alias.TellrawText != "" {
		rich = []minecraft.Text{{Text: alias.TellrawText, Color: "aqua"}}
	}
	if alias.kind() == "reply" {
		if alias.TellrawText != "" {
			inv.Reply(alias.Text, minecraft.Text{Text: alias.TellrawText, Color: "gold"})
		} else {
			inv.Reply(alias.Text)
		}
		return
	}

	config := b.config.Get()
	switch {
	case inv.Origin == people.IRC && inv.Channel != "" && strings.EqualFold(inv.Channel, config.IRC.MainChannel):
		mcnick := people.NickOr(inv.Sender, people.Minecraft)
		prefix := minecraft.Text{
			Text:       "<" + mcnick + ">",
			Color:      "aqua",
			HoverEvent: minecraft.ShowText(inv.ircNick(inv.Sender) + " in " + inv.Channel),
			ClickEvent: minecraft.SuggestCommand(mcnick + ": "),
		}
		b.tellraw("", append([]minecraft.Text{prefix, {Text: " "}}, rich...)...)
	case inv.Origin == people.Minecraft:
		name := inv.Sender.Nick(people.Minecraft)
		if name == "" {
			name = inv.Sender.DisplayName()
		}
		b.tellraw("", append([]minecraft.Text{{Text: name, Color: "gold"}, {Text: ": ", Color: "gold"}}, rich...)...)
	}
	switch {
	case inv.Origin == people.IRC && inv.Channel != "":
		b.say(inv.Channel, inv.ircNick(inv.Sender)+": "+alias.Text)
	case inv.Origin == people.IRC:
		b.say(inv.ircNick(inv.Sender), alias.Text)
	case inv.Origin == people.Minecraft:
		b.sayMain("<" + people.IRCNick(inv.Sender, true) + "> " + alias.Text)
	}
}

// Help

func runHelp(inv *Invocation) error {
	b := inv.bot
	config := b.config.Get()
	topic := inv.Values.String("topic")
	var aliases []string
	for name := range config.Aliases {
		aliases = append(aliases, name)
	}
	sortStrings(aliases)

	switch {
	case topic == "":
		inv.Reply("Hello, I am wurstminebot. I sync messages between IRC and Minecraft, and respond to various commands.")
		inv.Reply("Execute “help commands” for a list of commands, or “help <command>” (replace <command> with a command name) for help on a specific command.",
			minecraft.Text{Text: `Execute "help commands" for a list of commands, or "help <command>" (replace <command> with a command name) for help on a specific command.`, Color: "gold"})
		text := "To execute a command, send it to me in private chat (here)"
		rich := text
		if config.IRC.MainChannel != "" {
			text += " or address me in " + config.IRC.MainChannel + " (like this: “" + b.currentNick() + ": <command>...”)"
			rich += " or address me in " + config.IRC.MainChannel + ` (like this: "` + b.currentNick() + `: <command>...")`
		}
		inv.Reply(text+". You can also execute commands in a channel or in Minecraft like this: “!<command>...”.",
			minecraft.Text{Text: rich + `. You can also execute commands in a channel or in Minecraft like this: "!<command>...".`, Color: "gold"})
	case strings.EqualFold(topic, "aliases"):
		var text string
		if len(aliases) > 0 {
			text = "Currently defined aliases: " + strings.Join(aliases, ", ") + ". For more information, execute"
		} else {
			text = "No aliases are currently defined. For more information, execute"
		}
		inv.Reply(text+" “help alias”.", minecraft.Text{Text: text + ` "help alias".`, Color: "gold"})
	case strings.EqualFold(topic, "commands"):
		var names []string
		for _, cmd := range b.dispatcher.Commands() {
			names = append(names, cmd.Name)
		}
		text := "Available commands: " + strings.Join(names, ", ")
		if len(aliases) > 0 {
			text += fmt.Sprintf(", and %d aliases.", len(aliases))
		} else {
			text += "."
		}
		inv.Reply(text)
	default:
		if cmd := b.dispatcher.Lookup(topic); cmd != nil {
			inv.Reply(cmd.Name + ": " + cmd.Help)
			inv.Reply(cmd.usage())
			return nil
		}
		if name, alias := config.Alias(topic); alias != nil {
			switch alias.kind() {
			case "command":
				inv.Reply(name + " is an alias of " + alias.CommandName + ".")
			case "reply":
				inv.Reply(name + " is an echo alias.")
			default:
				inv.Reply(name + " is an alias.")
			}
			return nil
		}
		inv.Reply(unknownCommand(topic))
	}
	return nil
}

// Channels and topic

func checkJoin(inv *Invocation) error {
	if !strings.HasPrefix(inv.Values.String("channel"), "#") {
		return &schema.UsageError{}
	}
	return nil
}

func runJoin(inv *Invocation) error {
	channel := inv.Values.String("channel")
	already := false
	err := inv.bot.config.Update(func(config *Config) error {
		for _, ch := range config.IRC.Channels {
			if strings.EqualFold(ch, channel) {
				already = true
				return nil
			}
		}
		config.IRC.Channels = append(config.IRC.Channels, channel)
		sortStrings(config.IRC.Channels)
		return nil
	})
	if err != nil {
		return err
	}
	if already {
		inv.Warning("I am already in " + channel)
	}
	return inv.bot.chat.Join(channel)
}

func runTopic(inv *Invocation) error {
	topic := inv.Values.String("topic")
	err := inv.bot.config.Update(func(config *Config) error {
		config.IRC.Topic = topic
		return nil
	})
	if err != nil {
		return err
	}
	inv.bot.updateTopic(inv.Context(), true)
	return nil
}

// Options

var optionValues = []string{"show", "on", "off", "true", "false", "yes", "no", "reset"}

// checkOption accepts the value either before or after the person, and
// resolves the person whose option is meant.
func checkOption(inv *Invocation) error {
	if inv.Values.Has("value2") {
		if inv.Values.Has("value") {
			return &schema.UsageError{}
		}
		inv.Values["value"] = inv.Values["value2"]
	}
	if !inv.Values.Has("person") {
		if p, ok := inv.Sender.(*people.Person); ok {
			inv.Values["record"] = p
		}
		return nil
	}
	name := inv.Values.String("person")
	p, err := inv.bot.people.Find(name, people.ID, inv.Origin)
	if err != nil {
		return schema.Usagef("no person with id %s in people.json", name)
	}
	inv.Values["record"] = p
	return nil
}

func optionLevel(inv *Invocation) people.Level {
	switch inv.Values.String("value") {
	case "", "show":
		return people.LevelPerson
	}
	if p, ok := inv.Values["record"].(*people.Person); ok && !people.Same(inv.Sender, p) {
		return people.LevelOp
	}
	return people.LevelPerson
}

func runOption(inv *Invocation) error {
	person, ok := inv.Values["record"].(*people.Person)
	if !ok {
		return people.ErrAnonymous
	}
	option := strings.ToLower(inv.Values.String("option"))
	whose := "for you"
	if !people.Same(inv.Sender, person) {
		whose = "for " + person.DisplayName()
	}
	onOff := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}
	switch value := inv.Values.String("value"); value {
	case "", "show":
		where := whose
		if person.OptionIsDefault(option) {
			where = "by default"
		}
		inv.Reply("option " + option + " is " + onOff(person.Option(option)) + " " + where)
	case "reset":
		if err := inv.bot.people.DeleteOption(person, option); err != nil {
			return err
		}
		dummy := people.NewDummy(person.ID, people.ID)
		inv.Reply("option " + option + " is now " + onOff(dummy.Option(option)) + " by default")
	default:
		on := value == "on" || value == "true" || value == "yes"
		if err := inv.bot.people.SetOption(person, option, on); err != nil {
			return err
		}
		inv.Reply("option " + option + " is now " + onOff(on) + " " + whose)
	}
	return nil
}

// sortStrings sorts s case-insensitively, keeping the order of names
// that differ only in case.
func sortStrings(s []string) {
	slices.SortStableFunc(s, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
}
