// Package minecraft controls a Minecraft server and talks to its players.
package minecraft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Server is the set of operations the bot needs from a Minecraft server.
type Server interface {
	// Running reports whether the server process is up.
	Running(ctx context.Context) (bool, error)

	// Command runs an admin console command and returns its output.
	Command(ctx context.Context, cmd string) (string, error)

	OnlinePlayers(ctx context.Context) ([]string, error)

	// Version returns the configured server version, or "" if unknown.
	Version(ctx context.Context) (string, error)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error

	// Update switches the server to the given version, reporting
	// progress messages along the way, and returns the version that
	// is now running.
	Update(ctx context.Context, version string, snapshot bool, progress func(string)) (string, error)

	WhitelistAdd(ctx context.Context, player string) error

	// Describe returns a short human readable description of the backend.
	Describe() string
}

// Text is a JSON chat component as understood by tellraw.
type Text struct {
	Text       string `json:"text"`
	Color      string `json:"color,omitempty"`
	Bold       bool   `json:"bold,omitempty"`
	Italic     bool   `json:"italic,omitempty"`
	ClickEvent *Event `json:"clickEvent,omitempty"`
	HoverEvent *Event `json:"hoverEvent,omitempty"`
	Extra      []Text `json:"extra,omitempty"`
}

// Event is a click or hover action attached to a Text.
type Event struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

// OpenURL returns a click event opening url.
func OpenURL(url string) *Event {
	return &Event{Action: "open_url", Value: url}
}

// ShowText returns a hover event showing text.
func ShowText(text string) *Event {
	return &Event{Action: "show_text", Value: text}
}

// SuggestCommand returns a click event filling in the chat line.
func SuggestCommand(cmd string) *Event {
	return &Event{Action: "suggest_command", Value: cmd}
}

// TellrawCommand returns the console command displaying texts to player,
// or to every player if player is empty.
func TellrawCommand(player string, texts ...Text) (string, error) {
	if player == "" {
		player = "@a"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	var err error
	if len(texts) == 1 {
		err = enc.Encode(texts[0])
	} else {
		err = enc.Encode(texts)
	}
	if err != nil {
		return "", err
	}
	return "tellraw " + player + " " + strings.TrimSuffix(buf.String(), "\n"), nil
}

// Tellraw displays texts in the chat of player, or of every player if
// player is empty.
func Tellraw(ctx context.Context, srv Server, player string, texts ...Text) error {
	if len(texts) == 0 {
		return nil
	}
	cmd, err := TellrawCommand(player, texts...)
	if err != nil {
		return fmt.Errorf("cannot encode tellraw text: %v", err)
	}
	_, err = srv.Command(ctx, cmd)
	return err
}

var (
	listRe   = regexp.MustCompile(`There are ([0-9]+)(?:/| of a max(?: of)? )([0-9]+) players online:((?s:.*))`)
	formatRe = regexp.MustCompile(`§.`)
)

// ParsePlayers extracts the player names from the output of the list
// console command.
func ParsePlayers(output string) ([]string, error) {
	output = formatRe.ReplaceAllString(output, "")
	m := listRe.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("unexpected player list output: %q", strings.TrimSpace(output))
	}
	count, _ := strconv.Atoi(m[1])
	players := []string{}
	if count == 0 {
		return players, nil
	}
	for _, name := range strings.Split(m[3], ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			players = append(players, name)
		}
	}
	return players, nil
}
