package engine

import (
	"strings"
	"unicode"

	"github.com/anatolykoptev/go-kit/strutil"
	"golang.org/x/net/html"
)

// User-Agent used for upstream API calls.
const UserAgentBot = "JobLens/1.0"

// CleanHTML strips tags, decodes entities and collapses whitespace runs to one space.
func CleanHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				b.WriteByte(' ')
			}
		}
	}
}

// blockTags separate words; inline tags like <b> do not.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"tr": true, "td": true, "h1": true, "h2": true, "h3": true, "h4": true,
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8.
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// DedupKey is the cross-strategy identity of a listing: lowercased
// title and company joined by "-" with all whitespace removed.
func DedupKey(title, company string) string {
	raw := strings.ToLower(title + "-" + company)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// TitleCase upper-cases the first letter of each space-separated word.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
