package htmlutil

import (
	"bytes"
	"net/url"
	"strings"

	"jagriti-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.Data {
		case "script", "style":
			return
		case "br", "p", "div", "li":
			defer buffer.WriteByte(' ')
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Text returns the whitespace normalized text of every node in sel.
func Text(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
		buffer.WriteByte(' ')
	}
	return textutil.NormalizeSpace(buffer.String())
}

// ResolveHref resolves href against base, it returns "" for hrefs that do
// not point anywhere (empty, fragment only, javascript:) or that cannot be
// made absolute.
func ResolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	link, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		link = base.ResolveReference(link)
	}
	if !link.IsAbs() || link.Host == "" {
		return ""
	}
	return link.String()
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors returns the resolvable links under sel, in document order.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := ResolveHref(base, a.AttrOr("href", ""))
		if href == "" {
			return
		}
		anchors = append(anchors, Anchor{
			Name: Text(a),
			Href: href,
		})
	})
	return anchors
}
