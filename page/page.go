// Package page composes HTML pages from node trees.
//
// Renderers write to a Sink, which keeps them independent of the HTTP
// layer: a Document collects the emitted fragments, redirects and errors,
// and the handler decides how to answer the request.
package page

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// Sink receives page output.
type Sink interface {
	// Emit appends a fragment to the page content.
	Emit(n *html.Node)

	// Redirect asks for the request to be answered with a redirect.
	Redirect(location string)

	// ReportErrors shows errs in an error box. retry, when set, is the
	// target of a retry link.
	ReportErrors(errs []string, retry string)
}

var _ Sink = (*Document)(nil)

const style = `body{font-family:sans-serif;margin:1em 2em}
.infobox{border:1px solid #999;margin:1em 0}
.infobox-header{background:#ddd;font-weight:bold;padding:.3em .5em}
.infobox-content{padding:.5em}
.infobox-error .infobox-header{background:#e99}
pre{overflow-x:auto}`

// Document is a Sink that renders a complete HTML page.
type Document struct {
	title      string
	lang       string
	errorTitle string
	retryText  string
	footer     *html.Node
	content    []*html.Node
	redirect   string
	hasErrors  bool
}

// Option configures a Document.
type Option func(*Document)

// WithLang sets the lang attribute of the page.
func WithLang(lang string) Option {
	return func(d *Document) {
		d.lang = lang
	}
}

// WithErrorLabels sets the error box title and the retry link text.
func WithErrorLabels(title, retry string) Option {
	return func(d *Document) {
		d.errorTitle = title
		d.retryText = retry
	}
}

// WithFooter sets a fragment rendered after the content.
func WithFooter(n *html.Node) Option {
	return func(d *Document) {
		d.footer = n
	}
}

// New returns an empty page titled title.
func New(title string, opts ...Option) *Document {
	d := &Document{
		title:      title,
		lang:       "en",
		errorTitle: "Error",
		retryText:  "Retry",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit implements Sink.
func (d *Document) Emit(n *html.Node) {
	if n != nil {
		d.content = append(d.content, n)
	}
}

// Redirect implements Sink. The last redirect wins.
func (d *Document) Redirect(location string) {
	d.redirect = location
}

// ReportErrors implements Sink. An empty list emits nothing.
func (d *Document) ReportErrors(errs []string, retry string) {
	if len(errs) == 0 {
		return
	}
	d.hasErrors = true
	d.Emit(ErrorBox(d.errorTitle, errs, retry, d.retryText))
}

// Redirected returns the requested redirect location, if any.
func (d *Document) Redirected() (string, bool) {
	return d.redirect, d.redirect != ""
}

// HasErrors reports whether errors were reported.
func (d *Document) HasErrors() bool {
	return d.hasErrors
}

// Title returns the page title.
func (d *Document) Title() string {
	return d.title
}

// Render writes the page as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.tree())
}

// String renders the page to a string.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf) //nolint:errcheck // bytes.Buffer writes do not fail
	return buf.String()
}

func (d *Document) tree() *html.Node {
	head := Append(Element("head"),
		Element("meta", "charset", "utf-8"),
		Append(Element("title"), Text(d.title)),
		Append(Element("style"), Text(style)),
	)
	content := Append(Element("div", "id", "content"), d.content...)
	body := Append(Element("body"),
		Append(Element("h1"), Text(d.title)),
		content,
		d.footer,
	)
	root := &html.Node{Type: html.DocumentNode}
	return Append(root,
		&html.Node{Type: html.DoctypeNode, Data: "html"},
		Append(Element("html", "lang", d.lang), head, body),
	)
}
