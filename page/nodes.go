package page

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element returns an element node. attrs are key/value pairs; a trailing
// unpaired key is ignored.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text returns a text node. Rendering escapes it.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Append adds children to parent and returns parent. Children attached
// elsewhere are moved; nil children are skipped.
func Append(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		parent.AppendChild(c)
	}
	return parent
}

// Br returns a line break.
func Br() *html.Node {
	return Element("br")
}

// Link returns an anchor with text.
func Link(href, text string) *html.Node {
	return Append(Element("a", "href", href), Text(text))
}

// Pre returns preformatted monospace text.
func Pre(text string) *html.Node {
	return Append(Element("pre", "lang", "en", "style", "font-family: monospace;"), Text(text))
}

// Infobox returns a titled box and the node its content goes in.
func Infobox(class, title string) (box, content *html.Node) {
	box = Element("div", "class", "infobox "+class)
	header := Append(Element("div", "class", "infobox-header"), Text(title))
	content = Element("div", "class", "infobox-content")
	Append(box, header, content)
	return box, content
}

// Lines appends each line as text followed by a line break.
func Lines(parent *html.Node, lines ...string) *html.Node {
	for _, l := range lines {
		Append(parent, Text(l), Br())
	}
	return parent
}

// ErrorBox returns an error infobox listing errs, with a retry link when
// retryHref is set.
func ErrorBox(title string, errs []string, retryHref, retryText string) *html.Node {
	box, content := Infobox("infobox-error", title)
	Lines(content, errs...)
	if retryHref != "" {
		Append(content, Link(retryHref, retryText))
	}
	return box
}

// Form returns a POST form carrying the form password.
func Form(action, name, formPassword string) *html.Node {
	form := Element("form",
		"action", action,
		"method", "post",
		"enctype", "multipart/form-data",
		"accept-charset", "utf-8",
		"id", name,
	)
	return Append(form, Hidden(FormPasswordField, formPassword))
}

// FormPasswordField is the name of the hidden form password input.
const FormPasswordField = "formPassword"

// Input returns an input element. Extra attrs are key/value pairs.
func Input(typ, name, value string, attrs ...string) *html.Node {
	all := []string{"type", typ, "name", name}
	if value != "" {
		all = append(all, "value", value)
	}
	return Element("input", append(all, attrs...)...)
}

// Hidden returns a hidden input.
func Hidden(name, value string) *html.Node {
	return Input("hidden", name, value)
}

// Checkbox returns a checkbox with value "ok".
func Checkbox(name string, checked bool) *html.Node {
	if checked {
		return Input("checkbox", name, "ok", "checked", "checked")
	}
	return Input("checkbox", name, "ok")
}
