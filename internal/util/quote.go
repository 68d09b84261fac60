package util

import (
	"html"
	"regexp"
	"strings"
)

// [quote] and [quote=author] blocks, innermost first
var quoteBlock = regexp.MustCompile(`(?is)\[quote(?:=([^\]]*))?\]((?:[^\[]|\[[^/q]|\[/[^q]|\[q[^u])*?)\[/quote\]`)

// maxQuoteDepth bounds nested quote expansion
const maxQuoteDepth = 8

// StripQuotes removes quoted blocks, including nested ones, and collapses
// the whitespace they leave behind
func StripQuotes(text string) string {
	for i := 0; i < maxQuoteDepth && quoteBlock.MatchString(text); i++ {
		text = quoteBlock.ReplaceAllString(text, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// FlattenQuotes replaces quote markup with its author and body as plain
// text, so quoted content can be classified like the rest of the message
func FlattenQuotes(text string) string {
	for i := 0; i < maxQuoteDepth && quoteBlock.MatchString(text); i++ {
		text = quoteBlock.ReplaceAllString(text, " $1 $2 ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// RenderQuotes escapes text and converts quote blocks to blockquote markup
func RenderQuotes(text string) string {
	out := html.EscapeString(text)
	// escaping leaves brackets and the author attribute intact except for quotes
	for i := 0; i < maxQuoteDepth && quoteBlock.MatchString(out); i++ {
		out = quoteBlock.ReplaceAllStringFunc(out, func(m string) string {
			parts := quoteBlock.FindStringSubmatch(m)
			author, body := strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
			author = strings.Trim(author, `"'`)
			author = strings.TrimSuffix(strings.TrimPrefix(author, "&#34;"), "&#34;")
			if author == "" {
				return "<blockquote>" + body + "</blockquote>"
			}
			return "<blockquote><cite>" + author + "</cite>" + body + "</blockquote>"
		})
	}
	return out
}

// Preview strips quotes and truncates to at most n runes
func Preview(text string, n int) string {
	text = StripQuotes(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
