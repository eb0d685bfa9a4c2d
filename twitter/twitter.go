// Package twitter is a small client for the parts of the Twitter v1.1 API
// the bot uses.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	DefaultBaseURL = "https://api.twitter.com/1.1/"

	// MaxLength is the longest status text that may be posted.
	MaxLength = 280
)

// URLLength is what any link counts for once shortened.
const URLLength = 23

var linkRe = regexp.MustCompile(`https?://\S+`)

// Length returns the weighted length of text as counted against
// MaxLength. Links count URLLength each. Latin, Greek, Cyrillic and
// similar scripts count one per character, and everything else, CJK
// and emoji included, counts two.
func Length(text string) int {
	n, last := 0, 0
	for _, m := range linkRe.FindAllStringIndex(text, -1) {
		n += weight(text[last:m[0]]) + URLLength
		last = m[1]
	}
	return n + weight(text[last:])
}

// Code point ranges weighing one, as in the twitter-text configuration.
var lightRanges = [][2]rune{
	{0x0000, 0x10FF},
	{0x2000, 0x200D},
	{0x2010, 0x201F},
	{0x2032, 0x2037},
}

func weight(s string) int {
	n := 0
	for _, r := range s {
		w := 2
		for _, lr := range lightRanges {
			if r >= lr[0] && r <= lr[1] {
				w = 1
				break
			}
		}
		n += w
	}
	return n
}

type Credentials struct {
	ConsumerKey    string `json:"consumer_key" yaml:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret" yaml:"consumer_secret"`
	AccessToken    string `json:"access_token_key" yaml:"access_token_key"`
	AccessSecret   string `json:"access_token_secret" yaml:"access_token_secret"`
}

// Error is an error reported by the Twitter API.
type Error struct {
	Code       int
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return e.Message
}

type User struct {
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type Tweet struct {
	ID              string `json:"id_str"`
	Text            string `json:"text"`
	FullText        string `json:"full_text"`
	User            User   `json:"user"`
	RetweetedStatus *Tweet `json:"retweeted_status"`
}

// Content returns the complete text of the tweet.
func (t *Tweet) Content() string {
	if t.FullText != "" {
		return t.FullText
	}
	return t.Text
}

type Client struct {
	// BaseURL is the API root, ending in a slash.
	BaseURL string

	httpClient *http.Client
	screenName string
}

// New returns a client acting as screenName with the given credentials.
func New(creds Credentials, screenName string, timeout time.Duration) *Client {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := config.Client(context.Background(), token)
	httpClient.Timeout = timeout
	return NewWithClient(httpClient, screenName)
}

// NewWithClient returns a client issuing requests through httpClient,
// which must take care of authentication.
func NewWithClient(httpClient *http.Client, screenName string) *Client {
	return &Client{BaseURL: DefaultBaseURL, httpClient: httpClient, screenName: screenName}
}

func (c *Client) ScreenName() string {
	return c.screenName
}

// StatusURL returns the web address of the status with the given id
// posted by the client's account.
func (c *Client) StatusURL(id string) string {
	return "https://twitter.com/" + c.screenName + "/status/" + id
}

func (c *Client) do(method, endpoint string, params url.Values, result interface{}) error {
	u := c.BaseURL + endpoint
	var body io.Reader
	if method == "GET" {
		u += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	debugf("%s %s", method, endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach Twitter: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cannot read Twitter response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, data)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("cannot decode Twitter response: %v", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var doc struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	e := &Error{StatusCode: status, Message: http.StatusText(status)}
	if json.Unmarshal(data, &doc) == nil && len(doc.Errors) > 0 {
		e.Code = doc.Errors[0].Code
		e.Message = doc.Errors[0].Message
	}
	logf("Twitter error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	return e
}

// Post publishes a status and returns its id.
func (c *Client) Post(text string) (string, error) {
	if n := Length(text); n > MaxLength {
		return "", fmt.Errorf("tweet is too long (%d/%d characters)", n, MaxLength)
	}
	var tweet Tweet
	err := c.do("POST", "statuses/update.json", url.Values{"status": {text}}, &tweet)
	if err != nil {
		return "", err
	}
	return tweet.ID, nil
}

// Get fetches the status with the given id.
func (c *Client) Get(id string) (*Tweet, error) {
	var tweet Tweet
	err := c.do("GET", "statuses/show.json", url.Values{"id": {id}, "tweet_mode": {"extended"}}, &tweet)
	if err != nil {
		return nil, err
	}
	return &tweet, nil
}

// Follow makes the client's account follow screenName.
func (c *Client) Follow(screenName string) error {
	return c.do("POST", "friendships/create.json", url.Values{"screen_name": {strings.TrimPrefix(screenName, "@")}}, nil)
}

// AddListMember adds screenName to the client's list with the given slug.
func (c *Client) AddListMember(list, screenName string) error {
	params := url.Values{
		"slug":              {list},
		"owner_screen_name": {c.screenName},
		"screen_name":       {strings.TrimPrefix(screenName, "@")},
	}
	return c.do("POST", "lists/members/create.json", params, nil)
}
