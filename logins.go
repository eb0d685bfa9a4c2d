package wurstminebot

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const logStampFormat = "2006-01-02 15:04:05"

// loginLog is the record of players joining and leaving the server,
// one "<UTC time> <player> joined|left the game" line per event.
type loginLog struct {
	path string
	mu   sync.RWMutex
}

// Append records that player joined or left the game at t.
func (l *loginLog) Append(t time.Time, player string, joined bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	what := "left"
	if joined {
		what = "joined"
	}
	line := fmt.Sprintf("%s %s %s the game\n", t.UTC().Format(logStampFormat), player, what)
	return appendLine(l.path, line)
}

// scan calls f with the time and player of every entry, in order.
func (l *loginLog) scan(f func(t time.Time, player string)) error {
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		t, err := time.ParseInLocation(logStampFormat, fields[0]+" "+fields[1], time.UTC)
		if err != nil {
			continue
		}
		f(t, fields[2])
	}
	return scanner.Err()
}

// Seen reports whether player appears in the log at all.
func (l *loginLog) Seen(player string) (bool, error) {
	t, err := l.LastSeen(player)
	return !t.IsZero(), err
}

// LastSeen returns when player last joined or left the game, or the zero
// time if they never did.
func (l *loginLog) LastSeen(player string) (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var last time.Time
	err := l.scan(func(t time.Time, p string) {
		if strings.EqualFold(p, player) {
			last = t
		}
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot read login log: %v", err)
	}
	return last, nil
}

func appendLine(path, line string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	_, err = file.WriteString(line)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
