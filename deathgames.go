package wurstminebot

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
)

type deathGamesEntry struct {
	Attacker string `json:"attacker"`
	Target   string `json:"target"`
	Date     string `json:"date"`
	Success  bool   `json:"success"`
}

// deathGamesLog is the JSON record of Death Games assassination attempts.
type deathGamesLog struct {
	path string
	mu   sync.Mutex
}

type deathGamesDoc struct {
	Log []deathGamesEntry `json:"log"`
}

func (l *deathGamesLog) Append(entry deathGamesEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var doc deathGamesDoc
	data, err := os.ReadFile(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot read Death Games log: %v", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("cannot parse Death Games log: %v", err)
		}
	}
	doc.Log = append(doc.Log, entry)
	data, err = json.MarshalIndent(&doc, "", "    ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(l.path, append(data, '\n')); err != nil {
		return fmt.Errorf("cannot write Death Games log: %v", err)
	}
	return nil
}

// Entries returns every recorded attempt.
func (l *deathGamesLog) Entries() ([]deathGamesEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read Death Games log: %v", err)
	}
	var doc deathGamesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse Death Games log: %v", err)
	}
	return doc.Log, nil
}

// logDeathGames records an attempt by attacker on target and announces
// it on both sides.
func (b *Bot) logDeathGames(attacker, target *people.Person, success bool, now time.Time) error {
	err := b.deathGames.Append(deathGamesEntry{
		Attacker: attacker.ID,
		Target:   target.ID,
		Date:     now.UTC().Format("2006-01-02"),
		Success:  success,
	})
	if err != nil {
		return err
	}
	outcome := " failed."
	if success {
		outcome = " succeeded."
	}
	url := b.config.Get().URLs.DeathGames
	b.tellraw("",
		minecraft.Text{Text: "[Death Games]", Color: "gold", ClickEvent: minecraft.OpenURL(url)},
		minecraft.Text{Text: " ", Color: "gold"},
		playerText(attacker, "gold"),
		minecraft.Text{Text: "'s attempt on ", Color: "gold"},
		playerText(target, "gold"),
		minecraft.Text{Text: outcome, Color: "gold"},
	)
	b.sayMain("[Death Games] " + people.IRCNick(attacker, true) + "'s attempt on " + people.IRCNick(target, true) + outcome)
	return nil
}

// playerText shows the Minecraft name of id, suggesting a chat line
// addressed to them when clicked.
func playerText(id people.Identity, color string) minecraft.Text {
	name := people.NickOr(id, people.Minecraft)
	return minecraft.Text{Text: name, Color: color, ClickEvent: minecraft.SuggestCommand(name + ": ")}
}
