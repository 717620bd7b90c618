package jagriti

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type searchForm struct {
	action string
	method string
	fields url.Values
}

// parseSearchForm reads the action, method and prefilled hidden/text inputs
// of the first form matching selector. the action is resolved against the
// page's own URL.
func parseSearchForm(page RawResponse, selector string) (searchForm, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return searchForm{}, false
	}
	form := doc.Find(selector).First()
	if form.Length() == 0 {
		return searchForm{}, false
	}

	out := searchForm{
		action: page.URL,
		method: strings.ToUpper(strings.TrimSpace(form.AttrOr("method", ""))),
		fields: url.Values{},
	}
	if out.method != http.MethodGet {
		out.method = http.MethodPost
	}

	action := strings.TrimSpace(form.AttrOr("action", ""))
	if action != "" {
		base, err := url.Parse(page.URL)
		ref, refErr := url.Parse(action)
		if err == nil && refErr == nil {
			out.action = base.ResolveReference(ref).String()
		}
	}

	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		inputType := strings.ToLower(input.AttrOr("type", "text"))
		if inputType != "hidden" && inputType != "text" {
			return
		}
		name := input.AttrOr("name", "")
		if name == "" || out.fields.Has(name) {
			return
		}
		out.fields.Set(name, input.AttrOr("value", ""))
	})
	return out, true
}
