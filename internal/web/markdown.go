package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Linkify,
		emoji.Emoji,
	),
	// Raw HTML passthrough stays off (no html.WithUnsafe()).
)

// Todo text is a single line, so only inline formatting survives.
var inlinePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("em", "strong", "code", "del", "a")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

func renderInlineMarkdown(src string) template.HTML {
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	return template.HTML(inlinePolicy.Sanitize(out))
}

// todoText is the template func used for todo names.
func (s *Server) todoText(text string) template.HTML {
	if !s.cfgSnapshot().Markdown {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return renderInlineMarkdown(text)
}
