package wurstminebot

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"
)

type DBSuite struct {
	dir string
	db  *sql.DB
}

var _ = Suite(&DBSuite{})

func (s *DBSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
	db, err := OpenDB(s.dir)
	c.Assert(err, IsNil)
	s.db = db
}

func (s *DBSuite) TearDownTest(c *C) {
	s.db.Close()
}

func (s *DBSuite) TestReopen(c *C) {
	s.db.Close()
	db, err := OpenDB(s.dir)
	c.Assert(err, IsNil)
	s.db = db
	version, err := schemaVersion(db)
	c.Assert(err, IsNil)
	c.Assert(version, Equals, len(migrations))
}

func (s *DBSuite) TestNewerSchema(c *C) {
	_, err := s.db.Exec("PRAGMA user_version=99")
	c.Assert(err, IsNil)
	s.db.Close()
	_, err = OpenDB(s.dir)
	c.Assert(err, ErrorMatches, "database schema version 99 is newer than this bot knows .*")
	s.db, err = OpenDB(c.MkDir())
	c.Assert(err, IsNil)
}

func (s *DBSuite) TestWipe(c *C) {
	s.db.Close()
	c.Assert(WipeDB(s.dir), IsNil)
	_, err := os.Stat(filepath.Join(s.dir, dbName))
	c.Assert(os.IsNotExist(err), Equals, true)
	db, err := OpenDB(s.dir)
	c.Assert(err, IsNil)
	s.db = db
}

func (s *DBSuite) TestRecentChat(c *C) {
	t0 := time.Date(2014, 3, 12, 12, 0, 0, 0, time.UTC)
	lines := []*chatLine{
		{Time: t0, Channel: "#Wurstmineberg", Command: "PRIVMSG", Nick: "alice", Text: "one"},
		{Time: t0.Add(time.Minute), Channel: "#wurstmineberg", Command: "ACTION", Nick: "bob", Text: "waves"},
		{Time: t0.Add(2 * time.Minute), Channel: "#wurstmineberg", Command: "PRIVMSG", Nick: "bob", Text: "!leak", BotText: "leak"},
		{Time: t0.Add(3 * time.Minute), Channel: "#other", Command: "PRIVMSG", Nick: "carol", Text: "elsewhere"},
	}
	for _, line := range lines {
		c.Assert(logChat(s.db, line), IsNil)
	}

	recent, err := recentChat(s.db, "#wurstmineberg", 5)
	c.Assert(err, IsNil)
	c.Assert(recent, HasLen, 2)
	c.Assert(recent[0].Nick, Equals, "alice")
	c.Assert(recent[0].Text, Equals, "one")
	c.Assert(recent[0].Time.Equal(t0), Equals, true)
	c.Assert(recent[1].Action(), Equals, true)

	recent, err = recentChat(s.db, "#WURSTMINEBERG", 1)
	c.Assert(err, IsNil)
	c.Assert(recent, HasLen, 1)
	c.Assert(recent[0].Text, Equals, "waves")
}

func (s *DBSuite) TestLastDeath(c *C) {
	d, err := lastDeath(s.db)
	c.Assert(err, IsNil)
	c.Assert(d, IsNil)

	t0 := time.Date(2014, 3, 12, 12, 0, 0, 0, time.UTC)
	c.Assert(logDeath(s.db, &deathRecord{Time: t0, Player: "Bob", DeathID: "drowned", Message: "drowned"}), IsNil)
	c.Assert(logDeath(s.db, &deathRecord{Time: t0.Add(time.Hour), Player: "AliceMC", DeathID: "lava", Message: "tried to swim in lava", Tweet: "https://twitter.com/x/status/1"}), IsNil)

	d, err = lastDeath(s.db)
	c.Assert(err, IsNil)
	c.Assert(d.Player, Equals, "AliceMC")
	c.Assert(d.DeathID, Equals, "lava")
	c.Assert(d.Message, Equals, "tried to swim in lava")
	c.Assert(d.Tweet, Equals, "https://twitter.com/x/status/1")
	c.Assert(d.Time.Equal(t0.Add(time.Hour)), Equals, true)
}

type LogsSuite struct{}

var _ = Suite(&LogsSuite{})

func (s *LogsSuite) TestLoginLog(c *C) {
	dir := c.MkDir()
	l := &loginLog{path: filepath.Join(dir, "logs", "logins.log")}

	seen, err := l.Seen("Bob")
	c.Assert(err, IsNil)
	c.Assert(seen, Equals, false)

	t0 := time.Date(2014, 3, 12, 12, 0, 0, 0, time.UTC)
	c.Assert(l.Append(t0, "Bob", true), IsNil)
	c.Assert(l.Append(t0.Add(time.Minute), "AliceMC", true), IsNil)
	c.Assert(l.Append(t0.Add(time.Hour), "Bob", false), IsNil)

	last, err := l.LastSeen("bob")
	c.Assert(err, IsNil)
	c.Assert(last.Equal(t0.Add(time.Hour)), Equals, true)

	data, err := os.ReadFile(l.path)
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, ""+
		"2014-03-12 12:00:00 Bob joined the game\n"+
		"2014-03-12 12:01:00 AliceMC joined the game\n"+
		"2014-03-12 13:00:00 Bob left the game\n")
}

func (s *LogsSuite) TestDeathGamesLog(c *C) {
	l := &deathGamesLog{path: filepath.Join(c.MkDir(), "deathgames.json")}
	entries, err := l.Entries()
	c.Assert(err, IsNil)
	c.Assert(entries, HasLen, 0)

	c.Assert(l.Append(deathGamesEntry{Attacker: "alice", Target: "bob", Date: "2014-03-12", Success: true}), IsNil)
	c.Assert(l.Append(deathGamesEntry{Attacker: "bob", Target: "alice", Date: "2014-03-13"}), IsNil)

	entries, err = l.Entries()
	c.Assert(err, IsNil)
	c.Assert(entries, DeepEquals, []deathGamesEntry{
		{Attacker: "alice", Target: "bob", Date: "2014-03-12", Success: true},
		{Attacker: "bob", Target: "alice", Date: "2014-03-13"},
	})
}
