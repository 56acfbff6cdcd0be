package markdown

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var allowedTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Li:         true,
	atom.Strong:     true,
	atom.Em:         true,
	atom.Code:       true,
	atom.Pre:        true,
	atom.Blockquote: true,
	atom.A:          true,
}

// Attributes an anchor may keep, in output order.
var anchorAttrs = []string{"href", "title", "target", "rel"}

var requiredRel = []string{"noopener", "noreferrer"}

// Sanitize reduces an HTML fragment to the allowed subset. Disallowed
// elements are unwrapped so their text survives. Links must be
// site-relative or http(s); external links open in a new tab without
// opener or referrer. It returns "" if the fragment cannot be processed.
func Sanitize(fragment string) string {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return ""
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	clean(root)

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return b.String()
}

// clean sanitizes the children of parent in place. Children promoted by an
// unwrap are visited next, so nesting never hides a disallowed element.
func clean(parent *html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling

		switch c.Type {
		case html.TextNode:
		case html.ElementNode:
			if !allowedTags[c.DataAtom] || (c.DataAtom == atom.A && !cleanAnchor(c)) {
				if first := unwrap(c); first != nil {
					next = first
				}
				break
			}
			if c.DataAtom != atom.A {
				c.Attr = nil
			}
			clean(c)
		default:
			parent.RemoveChild(c)
		}

		c = next
	}
}

// unwrap replaces n by its children and returns the first of them.
func unwrap(n *html.Node) *html.Node {
	parent := n.Parent
	first := n.FirstChild
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
	return first
}

// cleanAnchor rewrites the attributes of an <a>. It reports false when the
// link target is not acceptable and the element must be unwrapped.
func cleanAnchor(n *html.Node) bool {
	kept := make(map[string]string, len(anchorAttrs))
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" || strings.HasPrefix(key, "on") {
			continue
		}
		for _, name := range anchorAttrs {
			if key == name {
				kept[key] = attr.Val
			}
		}
	}

	href := strings.TrimSpace(kept["href"])
	external, ok := classifyHref(href)
	if !ok {
		return false
	}
	kept["href"] = href

	if external {
		kept["target"] = "_blank"
		kept["rel"] = mergeRel(kept["rel"])
	} else {
		delete(kept, "target")
		if rel, ok := kept["rel"]; ok && strings.TrimSpace(rel) == "" {
			delete(kept, "rel")
		}
	}

	n.Attr = n.Attr[:0]
	for _, name := range anchorAttrs {
		if val, ok := kept[name]; ok {
			n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
		}
	}
	return true
}

// classifyHref reports whether href is acceptable and, if so, whether it
// leaves the site. Browsers read a leading "//" or "/\" as a network
// path, so neither counts as site-relative.
func classifyHref(href string) (external bool, ok bool) {
	if href == "" {
		return false, false
	}
	if strings.HasPrefix(href, "/") {
		if strings.HasPrefix(href, "//") || strings.HasPrefix(href, "/\\") {
			return false, false
		}
		return false, true
	}
	u, err := url.Parse(href)
	if err != nil {
		return false, false
	}
	switch u.Scheme {
	case "http", "https":
		return true, true
	}
	return false, false
}

// mergeRel adds noopener and noreferrer to rel, dropping duplicates and
// keeping the order of the existing tokens.
func mergeRel(rel string) string {
	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range append(strings.Fields(strings.ToLower(rel)), requiredRel...) {
		if !seen[tok] {
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return strings.Join(tokens, " ")
}

// Render converts Markdown to sanitized HTML.
func Render(src string) string {
	return Sanitize(ToHTML(src))
}
