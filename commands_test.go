package wurstminebot

import (
	"errors"
	"time"

	. "gopkg.in/check.v1"

	"github.com/wurstmineberg/wurstminebot/twitter"
)

type CommandsSuite struct{}

var _ = Suite(&CommandsSuite{})

var durationTests = []struct {
	text     string
	duration time.Duration
	err      bool
}{
	{"90", 90 * time.Second, false},
	{"90m", 90 * time.Minute, false},
	{"1d12h", 36 * time.Hour, false},
	{"1h30", time.Hour + 30*time.Second, false},
	{"2h15m10s", 2*time.Hour + 15*time.Minute + 10*time.Second, false},
	{"soon", 0, true},
	{"1x", 0, true},
	{"-5", 0, true},
	{"106751d23h47m16s", 106751*24*time.Hour + 23*time.Hour + 47*time.Minute + 16*time.Second, false},
	{"106752d", 0, true},
	{"9223372036s1", 0, true},
	{"99999999999999999999s", 0, true},
}

func (s *CommandsSuite) TestParseDuration(c *C) {
	for _, test := range durationTests {
		d, err := parseDuration(test.text)
		if test.err {
			c.Check(err, ErrorMatches, test.text+" is not a valid time interval")
			continue
		}
		c.Check(err, IsNil)
		c.Check(d, Equals, test.duration, Commentf("Interval: %s", test.text))
	}
}

func (s *CommandsSuite) TestVersionURL(c *C) {
	wiki := "https://minecraft.wiki/w/"
	c.Assert(versionURL(wiki, "1.7.5"), Equals, wiki+"Version_history#1.7.5")
	c.Assert(versionURL(wiki, "14w10a"), Equals, wiki+"Version_history/Development_versions#14w10a")
	c.Assert(versionURL(wiki, "1.8-pre1"), Equals, wiki+"Version_history/Development_versions#1.8-pre1")
}

func (s *CommandsSuite) TestLastSeenDate(c *C) {
	now := time.Date(2014, 3, 12, 0, 30, 0, 0, time.UTC)
	c.Assert(lastSeenDate(now.Add(-time.Minute*20), now), Equals, "today")
	c.Assert(lastSeenDate(now.Add(-time.Hour), now), Equals, "yesterday")
	c.Assert(lastSeenDate(now.AddDate(0, 0, -3), now), Equals, "on 2014-03-09")
}

func (s *CommandsSuite) TestSortStrings(c *C) {
	list := []string{"#b", "#C", "#a"}
	sortStrings(list)
	c.Assert(list, DeepEquals, []string{"#a", "#b", "#C"})

	list = []string{"Hello", "abc", "hello", "HELLO"}
	sortStrings(list)
	c.Assert(list, DeepEquals, []string{"abc", "Hello", "hello", "HELLO"})
}

func (s *CommandsSuite) TestStatusID(c *C) {
	c.Assert(statusID("https://twitter.com/wurstminebot/status/123"), Equals, "123")
}

func (s *CommandsSuite) TestErrorReply(c *C) {
	c.Assert(errorReply(errors.New("boom")), Equals, "Error: boom")
	c.Assert(errorReply(errServerLocked), Equals, "server access is locked")
	c.Assert(errorReply(&tweetLengthError{300}), Equals, "tweet is too long (300/280 characters)")
	c.Assert(errorReply(&twitter.Error{Code: 187, Message: "Status is a duplicate.", StatusCode: 403}), Equals, "Error 403: Status is a duplicate.")
}

func (s *CommandsSuite) TestTweetNote(c *C) {
	c.Assert(tweetNote("https://twitter.com/x/status/1", nil), Equals, "https://twitter.com/x/status/1")
	c.Assert(tweetNote("", errors.New("boom")), Equals, "error: boom")
}

func (s *CommandsSuite) TestPickWeighted(c *C) {
	c.Assert(pickWeighted(nil), Equals, -1)
	c.Assert(pickWeighted([]float64{0, 0}), Equals, -1)
	for i := 0; i < 20; i++ {
		c.Assert(pickWeighted([]float64{0, 2, 0}), Equals, 1)
	}
	weights := map[string]float64{"alice": 3, "@default": 0.5}
	c.Assert(weightFor(weights, "alice"), Equals, 3.0)
	c.Assert(weightFor(weights, "bob"), Equals, 0.5)
	c.Assert(weightFor(nil, "bob"), Equals, 1.0)
}

type ToggleSuite struct{}

var _ = Suite(&ToggleSuite{})

func (s *ToggleSuite) TestSet(c *C) {
	t := NewToggle(true)
	c.Assert(t.On(), Equals, true)
	t.Set(false)
	c.Assert(t.On(), Equals, false)
}

func (s *ToggleSuite) TestDisableFor(c *C) {
	t := NewToggle(true)
	done := make(chan bool, 1)
	t.DisableFor(50*time.Millisecond, func() { done <- true })
	c.Assert(t.On(), Equals, false)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		c.Fatalf("toggle was not turned back on")
	}
	c.Assert(t.On(), Equals, true)
}

func (s *ToggleSuite) TestSetCancelsTimer(c *C) {
	t := NewToggle(true)
	called := make(chan bool, 1)
	t.DisableFor(50*time.Millisecond, func() { called <- true })
	t.Set(false)
	select {
	case <-called:
		c.Fatalf("cancelled timer fired")
	case <-time.After(200 * time.Millisecond):
	}
	c.Assert(t.On(), Equals, false)
}
