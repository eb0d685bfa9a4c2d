package wurstminebot

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbName = "wurstminebot.db"

var errNoDatabase = errors.New("chat log is not available")

// OpenDB opens the chat and death log database in dirpath, creating it or
// bringing its schema up to date as needed.
func OpenDB(dirpath string) (*sql.DB, error) {
	dsn := filepath.Join(dirpath, dbName) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// WipeDB removes the database in dirpath along with its WAL files.
func WipeDB(dirpath string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Remove(filepath.Join(dirpath, dbName+suffix))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// migrations[i] takes the schema from user_version i to i+1.
// Only ever append to this list.
var migrations = [][]string{{
	"CREATE TABLE chatlog (" +
		"id INTEGER PRIMARY KEY AUTOINCREMENT," +
		"time DATETIME NOT NULL," +
		"channel TEXT NOT NULL DEFAULT ''," +
		"command TEXT NOT NULL DEFAULT ''," +
		"nick TEXT NOT NULL DEFAULT ''," +
		"text TEXT NOT NULL DEFAULT ''," +
		"bottext TEXT NOT NULL DEFAULT '')",
	"CREATE INDEX chatlog_channel ON chatlog (channel,id)",
	"CREATE TABLE death (" +
		"id INTEGER PRIMARY KEY AUTOINCREMENT," +
		"time DATETIME NOT NULL," +
		"player TEXT NOT NULL DEFAULT ''," +
		"deathid TEXT NOT NULL DEFAULT ''," +
		"message TEXT NOT NULL DEFAULT '')",
}, {
	"ALTER TABLE death ADD COLUMN tweet TEXT NOT NULL DEFAULT ''",
}}

func schemaVersion(q interface {
	QueryRow(string, ...interface{}) *sql.Row
}) (int, error) {
	var version int
	err := q.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

func migrate(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("cannot read database schema version: %v", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this bot knows (%d)", version, len(migrations))
	}
	for ; version < len(migrations); version++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range migrations[version] {
			if _, err = tx.Exec(stmt); err != nil {
				break
			}
		}
		if err == nil {
			// PRAGMA arguments cannot be bound parameters.
			_, err = tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", version+1))
		}
		if err == nil {
			err = tx.Commit()
		} else {
			tx.Rollback()
		}
		if err != nil {
			return fmt.Errorf("cannot update database schema to version %d: %v", version+1, err)
		}
		debugf("Database schema updated to version %d", version+1)
	}
	return nil
}

// chatLine is a message seen in an IRC channel.
type chatLine struct {
	Time    time.Time
	Channel string
	Command string
	Nick    string
	Text    string
	BotText string
}

// Action reports whether the line was sent with /me.
func (l *chatLine) Action() bool {
	return l.Command == "ACTION"
}

const chatlogColumns = "time,channel,command,nick,text,bottext"

func logChat(db *sql.DB, line *chatLine) error {
	_, err := db.Exec("INSERT INTO chatlog ("+chatlogColumns+") VALUES (?,?,?,?,?,?)",
		line.Time.UTC(), strings.ToLower(line.Channel), line.Command, line.Nick, line.Text, line.BotText)
	if err != nil {
		return fmt.Errorf("cannot log chat line: %v", err)
	}
	return nil
}

// recentChat returns the last n lines of regular chat in channel, oldest
// first. Lines addressed to the bot are left out.
func recentChat(db *sql.DB, channel string, n int) ([]*chatLine, error) {
	if db == nil {
		return nil, errNoDatabase
	}
	rows, err := db.Query("SELECT "+chatlogColumns+" FROM chatlog WHERE channel=? AND bottext='' ORDER BY id DESC LIMIT ?",
		strings.ToLower(channel), n)
	if err != nil {
		return nil, fmt.Errorf("cannot read chat log: %v", err)
	}
	defer rows.Close()
	var lines []*chatLine
	for rows.Next() {
		var line chatLine
		err := rows.Scan(&line.Time, &line.Channel, &line.Command, &line.Nick, &line.Text, &line.BotText)
		if err != nil {
			return nil, fmt.Errorf("cannot read chat log: %v", err)
		}
		lines = append(lines, &line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot read chat log: %v", err)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

type deathRecord struct {
	Time    time.Time
	Player  string
	DeathID string
	Message string
	Tweet   string
}

const deathColumns = "time,player,deathid,message,tweet"

func logDeath(db *sql.DB, d *deathRecord) error {
	_, err := db.Exec("INSERT INTO death ("+deathColumns+") VALUES (?,?,?,?,?)",
		d.Time.UTC(), d.Player, d.DeathID, d.Message, d.Tweet)
	if err != nil {
		return fmt.Errorf("cannot log death: %v", err)
	}
	return nil
}

// lastDeath returns the most recent death recorded, or nil if there is none.
func lastDeath(db *sql.DB) (*deathRecord, error) {
	var d deathRecord
	err := db.QueryRow("SELECT "+deathColumns+" FROM death ORDER BY id DESC LIMIT 1").Scan(&d.Time, &d.Player, &d.DeathID, &d.Message, &d.Tweet)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read death log: %v", err)
	}
	return &d, nil
}
