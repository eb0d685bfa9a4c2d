package wurstminebot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "gopkg.in/check.v1"
)

type WebSuite struct {
	server *httptest.Server
	config *Config
	tester *BotTester
}

var _ = Suite(&WebSuite{})

func (s *WebSuite) SetUpTest(c *C) {
	SetLogger(c)
	mux := http.NewServeMux()
	mux.HandleFunc("/w/", func(w http.ResponseWriter, req *http.Request) {
		switch strings.TrimPrefix(req.URL.Path, "/w/") {
		case "Crafting_Table":
			fmt.Fprint(w, "'''Crafting tables''' are blocks.")
		case "Workbench":
			fmt.Fprint(w, "#REDIRECT [[Crafting Table]]")
		default:
			http.NotFound(w, req)
		}
	})
	mux.HandleFunc("/browse/MC-1234", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, "<html><head><title>[MC-1234] Creepers explode twice - Jira</title></head></html>")
	})
	mux.HandleFunc("/browse/MC-1", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, "<html><head><title>Log in</title></head></html>")
	})
	s.server = httptest.NewServer(mux)

	s.config = DefaultConfig()
	s.config.URLs.Wiki = s.server.URL + "/w/"
	s.config.URLs.Mojira = s.server.URL + "/browse/"
	s.tester = NewBotTester(c.MkDir(), s.config, testPeople...)
	c.Assert(s.tester.Start(), IsNil)
}

func (s *WebSuite) TearDownTest(c *C) {
	s.tester.Stop()
	s.server.Close()
	SetLogger(nil)
}

func (s *WebSuite) TestWikiArticle(c *C) {
	s.tester.Sendf("", "minecraftwiki crafting table")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :Error 404")
	s.tester.Sendf("", "minecraftwiki Crafting Table")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :Article "+s.server.URL+"/w/Crafting_Table")
	s.tester.Sendf("", "mwiki "+s.server.URL+"/w/Crafting_Table")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :Article "+s.server.URL+"/w/Crafting_Table")
}

func (s *WebSuite) TestWikiRedirect(c *C) {
	s.tester.Logf("Bob", "!minecraftwiki Workbench")
	c.Assert(s.tester.Recv(), Equals, `[minecraft] tellraw Bob {"text":"Redirect","color":"gold","clickEvent":{"action":"open_url","value":"`+s.server.URL+`/w/Crafting_Table"}}`)
}

func (s *WebSuite) TestPasteMojira(c *C) {
	s.tester.Sendf("", "pastemojira 1234")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :[MC-1234] Creepers explode twice ["+s.server.URL+"/browse/MC-1234]")
	s.tester.Sendf("", "pastemojira mc 1234 nolink")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :[MC-1234] Creepers explode twice")
	s.tester.Sendf("", "pastemojira MC-1")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :could not get title")
	s.tester.Sendf("", "pastemojira 99")
	c.Assert(s.tester.Recv(), Equals, "PRIVMSG nick :Error 404")
}

func (s *WebSuite) TestMojiraLinkRelay(c *C) {
	s.tester.SendfFrom("bob", "#wurstmineberg", "https://bugs.mojang.com/browse/MC-1234")
	c.Assert(s.tester.RecvUntil("PRIVMSG"), Equals, "PRIVMSG #wurstmineberg :[MC-1234] Creepers explode twice")
}

func (s *WebSuite) TestStatusEndpoint(c *C) {
	b := s.tester.Bot()
	s.tester.SetPlayers("Bob")
	s.tester.Sendf("", "status")
	s.tester.Recv()
	s.tester.Recv()

	rec := httptest.NewRecorder()
	b.router().ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	c.Assert(rec.Code, Equals, http.StatusOK)
	var doc statusDoc
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &doc), IsNil)
	c.Assert(doc, DeepEquals, statusDoc{
		Nick:              "wurstminebot",
		OnlinePlayers:     []string{"Bob"},
		AchievementTweets: true,
		DeathTweets:       true,
		Version:           "test",
	})

	rec = httptest.NewRecorder()
	b.router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	c.Assert(rec.Code, Equals, http.StatusOK)
	body := rec.Body.String()
	c.Assert(strings.Contains(body, "wurstminebot_online_players 1"), Equals, true)
}
