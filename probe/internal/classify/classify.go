// Package classify decides whether a probed page accepted a candidate code.
//
// Classification is text matching over the page's visible content: the
// target site renders a distinctive success screen when a code is valid.
// The indicator strings are configuration, not code, because the matching
// rule is site-structure-dependent and brittle by nature.
package classify

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Verdict is the best-effort classification of one probe.
type Verdict string

const (
	Accepted     Verdict = "accepted"
	Rejected     Verdict = "rejected"
	Inconclusive Verdict = "inconclusive"
)

// Rules configures the matcher.
type Rules struct {
	// AcceptIndicators are phrases present on the success screen.
	// A page is Accepted when at least MinMatches of them appear.
	AcceptIndicators []string

	// RejectIndicators are phrases that mark an explicit refusal
	// (e.g. "invalid coupon"). Any single match rejects.
	RejectIndicators []string

	// MinMatches is the accept threshold. Default: 2.
	MinMatches int
}

func (r *Rules) defaults() {
	if r.MinMatches <= 0 {
		r.MinMatches = 2
	}
}

// Classify parses the page HTML, collects its visible text, and matches the
// configured indicators case-insensitively. An empty or unparseable page is
// Inconclusive with a reason.
func Classify(pageHTML string, rules Rules) (Verdict, string) {
	rules.defaults()

	if strings.TrimSpace(pageHTML) == "" {
		return Inconclusive, "empty page"
	}

	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return Inconclusive, "unparseable page: " + err.Error()
	}

	text := strings.ToLower(visibleText(doc))
	if text == "" {
		return Inconclusive, "page has no visible text"
	}

	for _, ind := range rules.RejectIndicators {
		if ind != "" && strings.Contains(text, strings.ToLower(ind)) {
			return Rejected, "matched reject indicator: " + ind
		}
	}

	matches := 0
	for _, ind := range rules.AcceptIndicators {
		if ind != "" && strings.Contains(text, strings.ToLower(ind)) {
			matches++
		}
	}
	if len(rules.AcceptIndicators) > 0 && matches >= rules.MinMatches {
		return Accepted, ""
	}

	return Rejected, ""
}

// visibleText extracts all visible text from the document, skipping
// script, style, and noscript subtrees.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}
