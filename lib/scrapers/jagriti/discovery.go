package jagriti

import (
	"bytes"
	"fmt"
	"strings"

	"jagriti-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

type option struct {
	id   string
	name string
}

var (
	optionListKeys = []string{"states", "commissions", "data", "results", "items"}
	optionIDKeys   = []string{"id", "value", "code", "state_id", "commission_id"}
	optionNameKeys = []string{"name", "label", "text", "state_name", "commission_name"}
)

// parseOptions reads an (id, name) list out of either a <select> on an HTML
// page or a JSON list of objects.
func parseOptions(raw RawResponse, selectors []string) ([]option, error) {
	format, err := sniffFormat(raw)
	if err != nil {
		return nil, err
	}
	if format == formatJSON {
		return parseJSONOptions(raw.Body)
	}
	return parseSelectOptions(raw.Body, selectors)
}

func parseSelectOptions(body []byte, selectors []string) ([]option, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(body, "parse html: %s", err.Error())
	}

	var sel *goquery.Selection
	for _, selector := range selectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			sel = found.First()
			break
		}
	}
	if sel == nil {
		return nil, parseError(body, "no element matches any of %s", strings.Join(selectors, ", "))
	}

	var options []option
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		id := strings.TrimSpace(opt.AttrOr("value", ""))
		name := textutil.NormalizeSpace(opt.Text())
		if id == "" || name == "" {
			return
		}
		options = append(options, option{id: id, name: name})
	})
	return options, nil
}

func parseJSONOptions(body []byte) ([]option, error) {
	doc, err := decodeJSON(body)
	if err != nil {
		return nil, parseError(body, "decode json: %s", err.Error())
	}

	items, ok := doc.([]any)
	if !ok {
		obj, isObj := doc.(map[string]any)
		if !isObj {
			return nil, parseError(body, "expected a JSON list or object, got %T", doc)
		}
		list, found := lookupFold(obj, optionListKeys...)
		if !found {
			return nil, parseError(body, "no option list under any of %s", strings.Join(optionListKeys, ", "))
		}
		if list == nil {
			return nil, nil
		}
		items, ok = list.([]any)
		if !ok {
			return nil, parseError(body, "option list is %T, not a list", list)
		}
	}

	var options []option
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, parseError(body, "option %d is %T, not an object", i, item)
		}
		idValue, _ := lookupFold(obj, optionIDKeys...)
		nameValue, _ := lookupFold(obj, optionNameKeys...)
		id := strings.TrimSpace(scalarString(idValue))
		name := textutil.NormalizeSpace(scalarString(nameValue))
		if id == "" || name == "" {
			continue
		}
		options = append(options, option{id: id, name: name})
	}
	return options, nil
}

func describeOptions(options []option) string {
	names := make([]string, 0, len(options))
	for _, o := range options {
		names = append(names, fmt.Sprintf("%s=%s", o.id, o.name))
	}
	return strings.Join(names, ", ")
}
