package extractor

import (
	"regexp"
	"strings"
)

var readMorePatterns = []string{
	`read\s*more`,
	`continue\s*reading`,
	`full\s*(story|article|post)`,
	`learn\s*more`,
	`see\s*more`,
	`view\s*(full|more|article)`,
	`click\s*here`,
	`more\s*details`,
	`read\s*the\s*(full|rest|entire)`,
	`keep\s*reading`,
	`go\s*to\s*(article|story)`,
}

var readMoreRegex = regexp.MustCompile(`(?i)` + strings.Join(readMorePatterns, "|"))

// IsReadMore reports whether anchor text signals more content behind the link.
// The vocabulary is deliberately broad; false positives are tolerated.
func IsReadMore(text string) bool {
	return readMoreRegex.MatchString(text)
}
