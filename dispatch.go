package wurstminebot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/schema"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

// Command is a built-in bot command.
type Command struct {
	Name  string
	Help  string
	Usage string
	Args  schema.Args

	// Check validates the arguments beyond what Args can express.
	Check func(inv *Invocation) error

	// MinLevel is the permission level required to run the command,
	// unless Level is set and computes it from the arguments.
	MinLevel people.Level
	Level    func(inv *Invocation) people.Level

	Run func(inv *Invocation) error

	// Private commands answer IRC users in a private message.
	Private bool
}

func (cmd *Command) level(inv *Invocation) people.Level {
	if cmd.Level != nil {
		return cmd.Level(inv)
	}
	return cmd.MinLevel
}

func (cmd *Command) usage() string {
	if cmd.Usage == "" {
		return "Usage: " + cmd.Name
	}
	return "Usage: " + cmd.Name + " " + cmd.Usage
}

// QuitError requests the bot to shut down, and optionally to start
// again afterwards.
type QuitError struct {
	Message string
	Restart bool
}

func (e *QuitError) Error() string {
	if e.Restart {
		return "restart requested"
	}
	return "quit requested"
}

// Invocation is a single run of a command.
type Invocation struct {
	// Name is the command or alias name as typed.
	Name    string
	Command *Command
	Args    string
	Values  schema.Values

	Sender     people.Identity
	SenderNick string
	Origin     people.Context
	Channel    string
	Addressing people.Identity

	private bool
	ctx     context.Context
	bot     *Bot
}

func (inv *Invocation) Context() context.Context {
	return inv.ctx
}

// Fields returns the argument words.
func (inv *Invocation) Fields() []string {
	return schema.Fields(inv.Args)
}

// Level returns the permission level of the sender.
func (inv *Invocation) Level() people.Level {
	return inv.Sender.Level(inv.bot.config.Get().Ops)
}

func (inv *Invocation) ircNick(id people.Identity) string {
	if id == inv.Sender && inv.Origin == people.IRC && inv.SenderNick != "" {
		return inv.SenderNick
	}
	return people.IRCNick(id, false)
}

// Reply answers the sender, or the addressed person, where the command
// came from. Minecraft players see rich when provided, or text in gold.
func (inv *Invocation) Reply(text string, rich ...minecraft.Text) {
	if len(rich) == 0 {
		rich = []minecraft.Text{{Text: text, Color: "gold"}}
	}
	inv.reply(text, rich)
}

// Warning is like Reply, but shows Minecraft players the text in red.
func (inv *Invocation) Warning(text string) {
	inv.reply(text, []minecraft.Text{{Text: text, Color: "red"}})
}

func (inv *Invocation) reply(text string, rich []minecraft.Text) {
	b := inv.bot
	if inv.Origin == people.Minecraft {
		target := inv.Sender
		if inv.Addressing != nil {
			target = inv.Addressing
		}
		player := target.Nick(people.Minecraft)
		if inv.Sender.Nick(people.Minecraft) == "" {
			prefix := minecraft.Text{Text: inv.Sender.DisplayName() + ": ", Color: "gold"}
			rich = append([]minecraft.Text{prefix}, rich...)
		}
		if player == "" && target == inv.Sender {
			player = inv.SenderNick
		}
		b.tellraw(player, rich...)
		return
	}
	switch {
	case inv.Channel == "" || inv.private:
		if inv.Addressing != nil {
			b.say(inv.ircNick(inv.Addressing), "(from "+inv.ircNick(inv.Sender)+") "+text)
		} else {
			b.say(inv.ircNick(inv.Sender), text)
		}
	default:
		nick := inv.ircNick(inv.Sender)
		if inv.Addressing != nil {
			nick = inv.ircNick(inv.Addressing)
		}
		b.say(inv.Channel, nick+": "+text)
	}
}

func unknownCommand(name string) string {
	return fmt.Sprintf("“%s” is not a command. Execute “Help commands” for a list of commands, or “Help aliases” for a list of aliases.", name)
}

// Dispatcher parses command lines and runs the matching command.
type Dispatcher struct {
	bot      *Bot
	commands []*Command
}

func newDispatcher(b *Bot) *Dispatcher {
	return &Dispatcher{bot: b, commands: builtinCommands()}
}

// Commands returns the built-in commands in name order.
func (d *Dispatcher) Commands() []*Command {
	return d.commands
}

// Lookup returns the built-in with the given name, compared
// case-insensitively, or nil if there is none.
func (d *Dispatcher) Lookup(name string) *Command {
	for _, cmd := range d.commands {
		if strings.EqualFold(cmd.Name, name) {
			return cmd
		}
	}
	return nil
}

// Run runs the command line text on behalf of sender. It reports whether
// a command or alias ran, so a usage error or a permission denial yields
// false. Failures are reported to the sender and only a *QuitError is
// returned.
func (d *Dispatcher) Run(ctx context.Context, text string, sender people.Identity, origin people.Context, channel string) (bool, error) {
	return d.run(ctx, &Invocation{
		Sender:     sender,
		SenderNick: people.NickOr(sender, origin),
		Origin:     origin,
		Channel:    channel,
	}, text)
}

func (d *Dispatcher) run(ctx context.Context, inv *Invocation, text string) (handled bool, err error) {
	inv.ctx = ctx
	inv.bot = d.bot

	name, target, args, perr := schema.ParseInvocation(text)
	if perr != nil {
		name = strings.TrimPrefix(strings.SplitN(strings.TrimSpace(text), " ", 2)[0], "!")
		inv.Warning(unknownCommand(name))
		return false, nil
	}
	inv.Name = name
	inv.Args = args
	if target != "" {
		inv.Addressing = d.bot.people.Resolve(target, inv.Origin)
	}

	cmd := d.Lookup(name)
	var alias *Alias
	if cmd == nil {
		_, alias = d.bot.config.Get().Alias(name)
		if alias != nil && alias.Disabled {
			alias = nil
		}
		if alias != nil && alias.kind() == "command" {
			cmd = d.Lookup(alias.CommandName)
			if cmd == nil {
				logf("Alias %q refers to missing command %q", name, alias.CommandName)
				inv.Warning(unknownCommand(name))
				return false, nil
			}
			alias = nil
		}
	}
	if cmd == nil && alias == nil {
		inv.Warning(unknownCommand(name))
		d.bot.metrics.command(name, "unknown")
		return false, nil
	}

	defer func() {
		if v := recover(); v != nil {
			logf("Panic running %q: %v\n%s", text, v, debug.Stack())
			inv.Warning(fmt.Sprintf("Error: %v", v))
			d.bot.metrics.command(inv.metricName(), "error")
			handled, err = true, nil
		}
	}()

	if alias != nil {
		if args != "" {
			inv.Warning("Usage: " + name)
			d.bot.metrics.command(name, "usage")
			return false, nil
		}
		d.bot.runAlias(inv, alias)
		d.bot.metrics.command(name, "ok")
		return true, nil
	}

	inv.Command = cmd
	inv.private = cmd.Private
	values, uerr := cmd.Args.Parse(args)
	if uerr == nil && cmd.Check != nil {
		inv.Values = values
		uerr = cmd.Check(inv)
	}
	if uerr != nil {
		var usage *schema.UsageError
		if errors.As(uerr, &usage) && usage.Reason != "" {
			inv.Warning(usage.Reason)
		} else {
			inv.Warning(cmd.usage())
		}
		d.bot.metrics.command(cmd.Name, "usage")
		return false, nil
	}
	inv.Values = values

	if required := cmd.level(inv); inv.Level() < required {
		inv.Warning(required.Denied())
		d.bot.metrics.command(cmd.Name, "denied")
		return false, nil
	}

	err = cmd.Run(inv)
	var quit *QuitError
	switch {
	case err == nil:
		d.bot.metrics.command(cmd.Name, "ok")
	case errors.As(err, &quit):
		d.bot.metrics.command(cmd.Name, "ok")
		return true, quit
	default:
		logf("Command %q from %s failed: %v", text, inv.Sender.DisplayName(), err)
		inv.Warning(errorReply(err))
		d.bot.metrics.command(cmd.Name, "error")
	}
	return true, nil
}

func (inv *Invocation) metricName() string {
	if inv.Command != nil {
		return inv.Command.Name
	}
	return inv.Name
}

func errorReply(err error) string {
	var terr *twitter.Error
	if errors.As(err, &terr) {
		return fmt.Sprintf("Error %d: %s", terr.StatusCode, terr.Message)
	}
	var lerr *tweetLengthError
	if errors.Is(err, errServerLocked) || errors.As(err, &lerr) {
		return err.Error()
	}
	return "Error: " + err.Error()
}
