// Package richtext converts task descriptions between the HTML markup stored
// on the server and the markdown text edited and rendered in the terminal.
// Markup is passed through as-is; nothing here sanitizes user content.
package richtext

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

var (
	converter = goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithRendererOptions(goldhtml.WithHardWraps(), goldhtml.WithUnsafe()),
	)
	blankRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns = regexp.MustCompile(`\s+`)
)

// ToHTML renders markdown to HTML. Empty input yields an empty string.
func ToHTML(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := converter.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// LooksLikeHTML reports whether s contains at least one element tag.
func LooksLikeHTML(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			return true
		}
	}
}

// ToMarkdown converts stored HTML back into editable markdown. Plain text
// without tags is returned unchanged apart from trimming.
func ToMarkdown(markup string) string {
	if !LooksLikeHTML(markup) {
		return strings.TrimSpace(markup)
	}
	w := &mdWriter{}
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return strings.TrimSpace(markup)
			}
			return w.String()
		case html.TextToken:
			w.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}
			w.open(string(name), attrs)
			if tt == html.SelfClosingTagToken {
				w.close(string(name))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			w.close(string(name))
		}
	}
}

// PlainText strips all markup and collapses whitespace.
func PlainText(markup string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(spaceRuns.ReplaceAllString(b.String(), " "))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

// Preview returns at most width runes of plain description text.
func Preview(markup string, width int) string {
	if width <= 0 {
		return ""
	}
	text := []rune(PlainText(markup))
	if len(text) <= width {
		return string(text)
	}
	if width == 1 {
		return "…"
	}
	return string(text[:width-1]) + "…"
}

type listFrame struct {
	ordered bool
	n       int
}

// mdWriter accumulates markdown while walking HTML tokens.
type mdWriter struct {
	b      strings.Builder
	lists  []listFrame
	hrefs  []string
	inPre  bool
	quoted int
}

func (w *mdWriter) String() string {
	out := blankRuns.ReplaceAllString(w.b.String(), "\n\n")
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (w *mdWriter) text(s string) {
	if w.inPre {
		w.b.WriteString(s)
		return
	}
	s = spaceRuns.ReplaceAllString(s, " ")
	if strings.TrimSpace(s) == "" && w.atLineStart() {
		return
	}
	if w.atLineStart() {
		s = strings.TrimLeft(s, " ")
	}
	w.b.WriteString(s)
}

func (w *mdWriter) atLineStart() bool {
	s := w.b.String()
	return s == "" || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "> ") || strings.HasSuffix(s, "- ") || strings.HasSuffix(s, ". ")
}

func (w *mdWriter) newline() {
	if w.b.Len() == 0 {
		return
	}
	w.b.WriteString("\n")
	if w.quoted > 0 {
		w.b.WriteString(strings.Repeat("> ", w.quoted))
	}
}

func (w *mdWriter) block() {
	if w.b.Len() == 0 {
		return
	}
	w.newline()
	w.newline()
}

func (w *mdWriter) open(tag string, attrs map[string]string) {
	switch tag {
	case "p", "div":
		w.block()
	case "br":
		w.newline()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		w.block()
		w.b.WriteString(strings.Repeat("#", int(tag[1]-'0')) + " ")
	case "strong", "b":
		w.b.WriteString("**")
	case "em", "i":
		w.b.WriteString("_")
	case "s", "del", "strike":
		w.b.WriteString("~~")
	case "code":
		if !w.inPre {
			w.b.WriteString("`")
		}
	case "pre":
		w.block()
		w.b.WriteString("```\n")
		w.inPre = true
	case "blockquote":
		w.quoted++
		w.block()
	case "ul", "ol":
		if len(w.lists) == 0 {
			w.block()
		}
		w.lists = append(w.lists, listFrame{ordered: tag == "ol"})
	case "li":
		w.newline()
		depth := max(0, len(w.lists)-1)
		w.b.WriteString(strings.Repeat("  ", depth))
		if len(w.lists) > 0 && w.lists[len(w.lists)-1].ordered {
			w.lists[len(w.lists)-1].n++
			fmt.Fprintf(&w.b, "%d. ", w.lists[len(w.lists)-1].n)
		} else {
			w.b.WriteString("- ")
		}
	case "a":
		w.hrefs = append(w.hrefs, attrs["href"])
		w.b.WriteString("[")
	case "hr":
		w.block()
		w.b.WriteString("---")
		w.block()
	}
}

func (w *mdWriter) close(tag string) {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6":
		w.block()
	case "strong", "b":
		w.b.WriteString("**")
	case "em", "i":
		w.b.WriteString("_")
	case "s", "del", "strike":
		w.b.WriteString("~~")
	case "code":
		if !w.inPre {
			w.b.WriteString("`")
		}
	case "pre":
		w.inPre = false
		if !strings.HasSuffix(w.b.String(), "\n") {
			w.b.WriteString("\n")
		}
		w.b.WriteString("```")
		w.block()
	case "blockquote":
		w.quoted = max(0, w.quoted-1)
		w.block()
	case "ul", "ol":
		if len(w.lists) > 0 {
			w.lists = w.lists[:len(w.lists)-1]
		}
		if len(w.lists) == 0 {
			w.block()
		}
	case "a":
		href := ""
		if n := len(w.hrefs); n > 0 {
			href = w.hrefs[n-1]
			w.hrefs = w.hrefs[:n-1]
		}
		fmt.Fprintf(&w.b, "](%s)", href)
	}
}
