// Package extractor finds articles and links inside newsletter HTML.
//
// Articles are discovered by two strategies applied in priority order: anchors
// whose text reads like "read more" (with the surrounding container as the
// article body), and, only when that finds nothing, a scan of containers whose
// class names look like article wrappers.
package extractor
