package extractor

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// VisibleText returns the text under n with each text run trimmed and runs
// joined by single spaces.
func VisibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if fields := strings.Fields(node.Data); len(fields) > 0 {
				parts = append(parts, strings.Join(fields, " "))
			}
			return
		}
		if node.Type == html.CommentNode {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// removeText drops every occurrence of needle and tidies the whitespace left behind.
func removeText(haystack, needle string) string {
	if needle == "" {
		return strings.TrimSpace(haystack)
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(haystack, needle, "")), " ")
}
