package wurstminebot

import (
	"strings"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/schema"
)

func runCommand(inv *Invocation) error {
	output, err := inv.bot.server.Command(inv.Context(), inv.Values.String("command"))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			inv.Reply(line)
		}
	}
	return nil
}

func quitBot(inv *Invocation, message string) error {
	b := inv.bot
	if message != "" {
		b.tellraw("", minecraft.Text{Text: "Shutting down the bot: " + message, Color: "red"})
		b.sayMain("bye, " + message)
		return &QuitError{Message: message}
	}
	b.tellraw("", minecraft.Text{Text: "Shutting down the bot...", Color: "red"})
	b.sayMain(b.randomQuitMessage(b.config.Get()))
	return &QuitError{Message: "bye"}
}

func runRestart(inv *Invocation) error {
	b := inv.bot
	if inv.Values.String("what") != "minecraft" {
		b.tellraw("", minecraft.Text{Text: "Restarting the bot...", Color: "red"})
		b.sayMain(b.randomQuitMessage(b.config.Get()))
		return &QuitError{Message: "brb", Restart: true}
	}
	ctx := inv.Context()
	return b.runLocked(func() error {
		b.setSpecialStatus(ctx, "The server is restarting…")
		defer b.setSpecialStatus(ctx, "")
		if err := b.server.Restart(ctx); err != nil {
			logf("[minecraft] Cannot restart the server: %v", err)
			inv.Warning("Could not restart the server!")
			return nil
		}
		inv.Reply("Server restarted.")
		return nil
	})
}

func runStop(inv *Invocation) error {
	b := inv.bot
	if inv.Values.String("what") != "minecraft" {
		return quitBot(inv, "")
	}
	ctx := inv.Context()
	return b.runLocked(func() error {
		b.setSpecialStatus(ctx, "The server is down for now. Blame "+inv.Sender.DisplayName()+".")
		if err := b.server.Stop(ctx); err != nil {
			logf("[minecraft] Cannot stop the server: %v", err)
			inv.Warning("The server could not be stopped! D:")
			return nil
		}
		inv.Reply("Server stopped.")
		return nil
	})
}

// versionURL returns the wiki page describing a Minecraft version.
func versionURL(wiki, version string) string {
	if strings.Contains(version, "pre") || (len(version) > 2 && version[2] == 'w') {
		return wiki + "Version_history/Development_versions#" + version
	}
	return wiki + "Version_history#" + version
}

func runStatus(inv *Invocation) error {
	b := inv.bot
	ctx := inv.Context()
	running, err := b.server.Running(ctx)
	if err != nil {
		return err
	}
	if !running {
		inv.Reply("The server is currently offline.")
		return nil
	}
	if inv.Origin != people.Minecraft {
		players, err := b.onlinePlayerList(ctx)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			inv.Reply("The server is currently empty.")
		} else {
			var nicks []string
			for _, id := range b.people.Sorted(players, people.Minecraft) {
				if inv.Origin == people.IRC {
					nicks = append(nicks, people.IRCNick(id, true))
				} else {
					nicks = append(nicks, people.NickOr(id, inv.Origin))
				}
			}
			inv.Reply("Online players: " + strings.Join(nicks, ", "))
		}
	}
	version, err := b.server.Version(ctx)
	if err != nil {
		logf("[minecraft] Cannot get server version: %v", err)
	}
	if version == "" {
		inv.Reply("unknown Minecraft version")
		return nil
	}
	url := versionURL(b.config.Get().URLs.Wiki, version)
	inv.Reply("Minecraft version "+version,
		minecraft.Text{Text: "Minecraft version ", Color: "gold"},
		minecraft.Text{Text: version, Color: "gold", ClickEvent: minecraft.OpenURL(url)},
	)
	return nil
}

func checkUpdate(inv *Invocation) error {
	if inv.Values.Has("snapshot") && !inv.Values.Has("version") {
		return &schema.UsageError{}
	}
	return nil
}

func runUpdate(inv *Invocation) error {
	b := inv.bot
	ctx := inv.Context()
	return b.runLocked(func() error {
		b.setSpecialStatus(ctx, "The server is being updated, wait a sec.")
		defer b.setSpecialStatus(ctx, "")
		version, err := b.server.Update(ctx, inv.Values.String("version"), inv.Values.Has("snapshot"), func(text string) {
			inv.Reply(text)
		})
		if err != nil {
			return err
		}
		url, err := b.tweet("Server updated to " + version + "! Wheee! See " + versionURL(b.config.Get().URLs.Wiki, version) + " for details.")
		if err != nil {
			logf("[twitter] Cannot tweet about the update to %s: %v", version, err)
			inv.Reply("…done updating, but the announcement tweet failed.")
			return nil
		}
		inv.Reply("…done ["+url+"]", minecraft.Text{Text: "…done", Color: "gold", ClickEvent: minecraft.OpenURL(url)})
		return nil
	})
}
