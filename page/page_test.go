package page

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func find(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parse(t *testing.T, d *Document) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(d.String()))
	require.NoError(t, err)
	return root
}

func TestDocumentRender(t *testing.T) {
	t.Parallel()

	d := New("Key Explorer", WithLang("de"), WithFooter(Append(Element("p", "class", "footer"), Text("bye"))))
	box, content := Infobox("infobox-normal", "Box <title>")
	Lines(content, "one", "two & three")
	d.Emit(box)
	d.Emit(nil)

	out := d.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<html lang="de">`)
	assert.Contains(t, out, "<title>Key Explorer</title>")
	assert.Contains(t, out, "Box &lt;title&gt;")
	assert.Contains(t, out, "two &amp; three<br/>")
	assert.Contains(t, out, `<p class="footer">bye</p>`)

	// Rendering twice gives the same page.
	assert.Equal(t, out, d.String())
	assert.False(t, d.HasErrors())
	assert.Equal(t, "Key Explorer", d.Title())
}

func TestDocumentReportErrors(t *testing.T) {
	t.Parallel()

	d := New("t", WithErrorLabels("Fehler", "Nochmal"))
	d.ReportErrors(nil, "/retry")
	assert.False(t, d.HasErrors())

	d.ReportErrors([]string{"first", "second"}, "/keyutils/?key=x")
	assert.True(t, d.HasErrors())

	root := parse(t, d)
	boxes := find(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.Contains(attr(n, "class"), "infobox-error")
	})
	require.Len(t, boxes, 1)
	links := find(boxes[0], func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "a" })
	require.Len(t, links, 1)
	assert.Equal(t, "/keyutils/?key=x", attr(links[0], "href"))
	assert.Equal(t, "Nochmal", links[0].FirstChild.Data)
	assert.Contains(t, d.String(), "Fehler")
	assert.Contains(t, d.String(), "first<br/>second<br/>")
}

func TestDocumentRedirect(t *testing.T) {
	t.Parallel()

	d := New("t")
	_, ok := d.Redirected()
	assert.False(t, ok)

	d.Redirect("/a")
	d.Redirect("/b")
	loc, ok := d.Redirected()
	assert.True(t, ok)
	assert.Equal(t, "/b", loc)
}

func TestFormHelpers(t *testing.T) {
	t.Parallel()

	form := Form("/keyutils/", "uriForm", "secret")
	Append(form,
		Input("text", "key", "", "size", "70"),
		Checkbox("automf", true),
		Checkbox("deep", false),
	)
	d := New("t")
	d.Emit(form)
	root := parse(t, d)

	inputs := find(root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "input" })
	require.Len(t, inputs, 4)
	assert.Equal(t, "hidden", attr(inputs[0], "type"))
	assert.Equal(t, FormPasswordField, attr(inputs[0], "name"))
	assert.Equal(t, "secret", attr(inputs[0], "value"))
	assert.Equal(t, "", attr(inputs[1], "value"))
	assert.Equal(t, "70", attr(inputs[1], "size"))
	assert.Equal(t, "checked", attr(inputs[2], "checked"))
	assert.Equal(t, "", attr(inputs[3], "checked"))

	forms := find(root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "form" })
	require.Len(t, forms, 1)
	assert.Equal(t, "post", attr(forms[0], "method"))
}

func TestAppendMovesAttachedNodes(t *testing.T) {
	t.Parallel()

	a := Element("div")
	b := Element("div")
	child := Text("x")
	Append(a, child)
	Append(b, child)
	assert.Nil(t, a.FirstChild)
	assert.Same(t, child, b.FirstChild)
}

func TestPre(t *testing.T) {
	t.Parallel()

	d := New("t")
	d.Emit(Pre("0000000: 3C3E  <>\n"))
	assert.Contains(t, d.String(), "0000000: 3C3E  &lt;&gt;\n</pre>")
}
