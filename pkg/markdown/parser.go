// Package markdown turns the small Markdown dialect used by the knowledge
// base into HTML and strips that HTML down to a safe subset.
package markdown

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	quoteRe      = regexp.MustCompile(`^>\s?(.*)$`)
	bulletRe     = regexp.MustCompile(`^[-*]\s+(.*)$`)
	orderedRe    = regexp.MustCompile(`^\d+\.\s+(.*)$`)
	codeSpanRe   = regexp.MustCompile("`([^`]+)`")
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*(.+?)\*`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	lineEndingRe = regexp.MustCompile(`\r\n?`)
)

const fence = "```"

type listKind string

const (
	noList      listKind = ""
	bulletList  listKind = "ul"
	orderedList listKind = "ol"
)

// parser holds the block state of a single ToHTML call.
type parser struct {
	out strings.Builder

	inCode bool
	code   []string

	list  listKind
	items []string

	paragraph []string
}

// ToHTML converts src to HTML. It accepts any input; text it does not
// recognise ends up in paragraphs. The result is not safe to display
// before it has gone through Sanitize.
func ToHTML(src string) string {
	p := &parser{}
	src = lineEndingRe.ReplaceAllString(src, "\n")

	for _, line := range strings.Split(src, "\n") {
		p.line(line)
	}

	p.flushParagraph()
	p.flushList()
	p.flushCode()

	return p.out.String()
}

func (p *parser) line(line string) {
	trimmed := strings.TrimSpace(line)
	isFence := strings.HasPrefix(trimmed, fence)

	switch {
	case p.inCode && isFence:
		p.flushCode()
	case p.inCode:
		p.code = append(p.code, line)
	case isFence:
		p.flushParagraph()
		p.flushList()
		p.inCode = true
	case trimmed == "":
		p.flushParagraph()
		p.flushList()
	default:
		p.block(trimmed)
	}
}

func (p *parser) block(line string) {
	if m := headingRe.FindStringSubmatch(line); m != nil {
		p.flushParagraph()
		p.flushList()
		level := strconv.Itoa(len(m[1]))
		p.out.WriteString("<h" + level + ">" + inline(strings.TrimSpace(m[2])) + "</h" + level + ">")
		return
	}
	if m := quoteRe.FindStringSubmatch(line); m != nil {
		p.flushParagraph()
		p.flushList()
		p.out.WriteString("<blockquote>" + inline(m[1]) + "</blockquote>")
		return
	}
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		p.item(bulletList, m[1])
		return
	}
	if m := orderedRe.FindStringSubmatch(line); m != nil {
		p.item(orderedList, m[1])
		return
	}

	p.flushList()
	p.paragraph = append(p.paragraph, line)
}

// item adds a list item, closing a list of the other kind first.
func (p *parser) item(kind listKind, text string) {
	p.flushParagraph()
	if p.list != kind {
		p.flushList()
		p.list = kind
	}
	p.items = append(p.items, "<li>"+inline(text)+"</li>")
}

func (p *parser) flushParagraph() {
	if len(p.paragraph) == 0 {
		return
	}
	p.out.WriteString("<p>" + inline(strings.Join(p.paragraph, " ")) + "</p>")
	p.paragraph = p.paragraph[:0]
}

func (p *parser) flushList() {
	if p.list == noList {
		return
	}
	tag := string(p.list)
	p.out.WriteString("<" + tag + ">" + strings.Join(p.items, "") + "</" + tag + ">")
	p.list = noList
	p.items = p.items[:0]
}

// flushCode closes an open code block. An unterminated fence still
// produces a block holding everything after it.
func (p *parser) flushCode() {
	if !p.inCode {
		return
	}
	p.out.WriteString("<pre><code>" + html.EscapeString(strings.Join(p.code, "\n")) + "</code></pre>")
	p.inCode = false
	p.code = p.code[:0]
}

// inline renders code spans, then emphasis and links on the escaped
// remainder. Link targets are not escaped a second time, so an & in an
// href is kept as the entity the escaping produced.
func inline(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range codeSpanRe.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(spans(text[last:loc[0]]))
		b.WriteString("<code>" + html.EscapeString(text[loc[2]:loc[3]]) + "</code>")
		last = loc[1]
	}
	b.WriteString(spans(text[last:]))
	return b.String()
}

func spans(segment string) string {
	if segment == "" {
		return ""
	}
	s := html.EscapeString(segment)
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	return s
}
