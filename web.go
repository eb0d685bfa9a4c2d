package wurstminebot

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wurstmineberg/wurstminebot/minecraft"
)

func (b *Bot) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "wurstminebot/"+b.version)
	return b.http.Do(req)
}

var (
	wikiURLRe      = regexp.MustCompile(`^https?://(?:minecraft\.gamepedia\.com|minecraft\.fandom\.com/wiki|minecraftwiki\.net(?:/wiki)?|minecraft\.wiki/w)/(.*)$`)
	wikiRedirectRe = regexp.MustCompile(`^#(?i:redirect) \[\[([^|\]]+)(?:\|.*)?\]\]`)
)

// wikiLookup checks whether article exists on the Minecraft Wiki and
// returns a reply pointing at it.
func (b *Bot) wikiLookup(ctx context.Context, article string) (string, []minecraft.Text) {
	base := b.config.Get().URLs.Wiki
	if strings.HasPrefix(article, base) {
		article = article[len(base):]
	} else if m := wikiURLRe.FindStringSubmatch(article); m != nil {
		article = m[1]
	}
	resp, err := b.get(ctx, base+article+"?action=raw")
	if err != nil {
		logf("Cannot reach the wiki: %v", err)
		return "Error: " + err.Error(), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		text := fmt.Sprintf("Error %d", resp.StatusCode)
		return text, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	body := string(data)
	if strings.HasPrefix(strings.ToLower(body), "#redirect") {
		m := wikiRedirectRe.FindStringSubmatch(body)
		if m == nil {
			return "Broken redirect", nil
		}
		target := base + strings.ReplaceAll(m[1], " ", "_")
		return "Redirect " + target, []minecraft.Text{{Text: "Redirect", Color: "gold", ClickEvent: minecraft.OpenURL(target)}}
	}
	url := base + article
	return "Article " + url, []minecraft.Text{{Text: "Article", Color: "gold", ClickEvent: minecraft.OpenURL(url)}}
}

var mojiraTitleRe = regexp.MustCompile(`^\[([A-Z]+)-([0-9]+)\] (.+) - M?o?[Jj][Ii][Rr][Aa]$`)

// pasteMojira returns the title of a bug in Mojang's bug tracker.
func (b *Bot) pasteMojira(ctx context.Context, project string, issue int, link bool) (string, []minecraft.Text) {
	key := fmt.Sprintf("%s-%d", project, issue)
	url := b.config.Get().URLs.Mojira + key
	fail := func(text string) (string, []minecraft.Text) {
		return text, []minecraft.Text{{Text: text, Color: "red"}}
	}
	resp, err := b.get(ctx, url)
	if err != nil {
		logf("Cannot reach Mojira: %v", err)
		return fail("Error: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Sprintf("Error %d", resp.StatusCode))
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fail("could not get title")
	}
	m := mojiraTitleRe.FindStringSubmatch(strings.TrimSpace(doc.Find("title").First().Text()))
	if m == nil {
		return fail("could not get title")
	}
	text := "[" + key + "] " + m[3]
	rich := []minecraft.Text{{Text: text, Color: "gold", ClickEvent: minecraft.OpenURL(url)}}
	if link {
		text += " [" + url + "]"
	}
	return text, rich
}

// pasteTweet renders the status with the given id as "<@author> text".
func (b *Bot) pasteTweet(id string, link bool) (string, []minecraft.Text, error) {
	if b.poster == nil {
		return "", nil, errNoTwitter
	}
	tweet, err := b.poster.Get(id)
	if err != nil {
		return "", nil, err
	}
	profile := func(screenName string) minecraft.Text {
		return minecraft.Text{Text: "@" + screenName, Color: "gold", ClickEvent: minecraft.OpenURL("https://twitter.com/" + screenName)}
	}
	author := "<@" + tweet.User.ScreenName + "> "
	authorRich := []minecraft.Text{profile(tweet.User.ScreenName)}
	content := tweet.Content()
	if rt := tweet.RetweetedStatus; rt != nil {
		author = "<@" + tweet.User.ScreenName + " RT @" + rt.User.ScreenName + "> "
		authorRich = append(authorRich, minecraft.Text{Text: " RT ", Color: "gold"}, profile(rt.User.ScreenName))
		content = rt.Content()
	}
	content = html.UnescapeString(content)
	url := "https://twitter.com/" + tweet.User.ScreenName + "/status/" + tweet.ID

	extra := append(authorRich, minecraft.Text{Text: "> " + content, Color: "gold"})
	text := author + content
	if link {
		text += " [" + url + "]"
		extra = append(extra,
			minecraft.Text{Text: " [", Color: "gold"},
			minecraft.Text{Text: url, Color: "gold", ClickEvent: minecraft.OpenURL(url)},
			minecraft.Text{Text: "]", Color: "gold"},
		)
	}
	return text, []minecraft.Text{{Text: "<", Color: "gold", Extra: extra}}, nil
}
