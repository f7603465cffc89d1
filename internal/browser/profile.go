package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PickMessageButton parses page HTML and returns a CSS path to the first
// element matching one of candidates, tried in order. Candidates may use
// goquery extensions such as :contains("Message"); the returned path uses
// only standard CSS so the browser can query it.
func PickMessageButton(page string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoMessageButton
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		var found *goquery.Selection
		doc.Find(c).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if _, disabled := s.Attr("disabled"); disabled {
				return true
			}
			if strings.EqualFold(s.AttrOr("aria-hidden", ""), "true") {
				return true
			}
			found = s
			return false
		})
		if found != nil {
			return cssPath(found), nil
		}
	}
	return "", ErrButtonNotFound
}

// cssPath builds "html > body > … > tag:nth-of-type(k)" for the first node
// of sel.
func cssPath(sel *goquery.Selection) string {
	var parts []string
	for s := sel.First(); s.Length() > 0; s = s.Parent() {
		node := s.Get(0)
		if node.Type != html.ElementNode {
			break
		}
		tag := goquery.NodeName(s)
		if tag == "html" {
			parts = append(parts, "html")
			break
		}
		n := 1
		for p := s.Prev(); p.Length() > 0; p = p.Prev() {
			if goquery.NodeName(p) == tag {
				n++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", tag, n))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// onProfilePage reports whether loc looks like a member profile.
func onProfilePage(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "/in/")
}

// onFeed reports whether loc is under the feed URL's path.
func onFeed(loc, feedURL string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	f, err := url.Parse(feedURL)
	if err != nil || f.Path == "" {
		return strings.Contains(u.Path, "/feed")
	}
	return strings.HasPrefix(strings.TrimRight(u.Path, "/")+"/", strings.TrimRight(f.Path, "/")+"/")
}
