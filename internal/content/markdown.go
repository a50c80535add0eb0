package content

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/markusmobius/go-trafilatura"
)

// MainContent extracts the dominant content of a whole document with its links
// kept, rendered as Markdown. It is used when no individual articles could be
// found. An empty string means nothing usable was found.
type MainContent struct {
	conv *converter.Converter
}

// NewMainContent creates a MainContent renderer.
func NewMainContent() *MainContent {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &MainContent{conv: conv}
}

// Extract returns the main content of rawHTML as Markdown.
func (m *MainContent) Extract(rawHTML string) (string, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return "", nil
	}
	result, err := trafilatura.Extract(strings.NewReader(rawHTML), trafilatura.Options{
		EnableFallback: true,
		IncludeLinks:   true,
	})
	if err != nil {
		// Trafilatura reports an error when it finds no content at all.
		return "", nil
	}
	if result == nil {
		return "", nil
	}
	if result.ContentNode == nil {
		return strings.TrimSpace(result.ContentText), nil
	}

	fragment, err := renderNode(result.ContentNode)
	if err != nil {
		return "", fmt.Errorf("render main content: %w", err)
	}
	md, err := m.conv.ConvertString(fragment)
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(result.ContentText), nil
	}
	return strings.TrimSpace(md), nil
}
