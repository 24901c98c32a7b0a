// Package render turns post notes (markdown) into HTML that is safe to hand
// to a browser. Markdown first, then the UGC sanitizer; whatever survives
// both is what readers get.
package render

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.UGCPolicy()

const extensions = parser.CommonExtensions | parser.HardLineBreak

// Notes renders markdown to sanitized HTML. Pure, no shared state between
// calls; markdown parsers are single-use.
func Notes(text string) string {
	if text == "" {
		return ""
	}
	unsafe := markdown.ToHTML([]byte(text), parser.NewWithExtensions(extensions), nil)
	return policy.Sanitize(string(unsafe))
}
