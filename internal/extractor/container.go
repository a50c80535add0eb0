package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// maxContainerHops bounds how many container ancestors an upward walk visits.
// Non-container wrappers (font, span, center, tbody) do not count.
const maxContainerHops = 32

// ContainerClassifier decides whether a node is a structural container worth
// treating as an article boundary.
type ContainerClassifier interface {
	IsContainer(n *html.Node) bool
}

// TagSet classifies element nodes by tag name.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from lowercase tag names.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, tag := range tags {
		set[strings.ToLower(tag)] = struct{}{}
	}
	return set
}

// IsContainer implements ContainerClassifier.
func (t TagSet) IsContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	_, ok := t[n.Data]
	return ok
}

var (
	// bodyContainers bound the text taken as an article body.
	bodyContainers = NewTagSet("td", "div", "article", "section", "tr", "li", "p")
	// titleContainers bound the search for a heading.
	titleContainers = NewTagSet("td", "div", "article", "section")
)

// walkContainers visits the container ancestors of n from nearest to farthest
// until visit returns true or maxContainerHops containers have been visited.
func walkContainers(n *html.Node, c ContainerClassifier, visit func(*html.Node) bool) {
	hops := 0
	for p := n.Parent; p != nil && hops < maxContainerHops; p = p.Parent {
		if !c.IsContainer(p) {
			continue
		}
		hops++
		if visit(p) {
			return
		}
	}
}
