package jagriti

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

type payloadFormat int

const (
	formatHTML payloadFormat = iota
	formatJSON
)

func (f payloadFormat) String() string {
	if f == formatJSON {
		return "json"
	}
	return "html"
}

var utf8BOM = []byte("\ufeff")

// sniffFormat decides whether a body is a JSON document or an HTML page. the
// body wins over the declared content type since the portal labels some
// JSON responses as text/html.
func sniffFormat(raw RawResponse) (payloadFormat, error) {
	body := bytes.TrimSpace(bytes.TrimPrefix(raw.Body, utf8BOM))
	if len(body) == 0 {
		return 0, parseError(raw.Body, "empty response body from %s", raw.URL)
	}

	switch body[0] {
	case '{', '[':
		if json.Valid(body) {
			return formatJSON, nil
		}
	case '<':
		return formatHTML, nil
	}

	mediaType, _, _ := mime.ParseMediaType(raw.ContentType)
	switch {
	case strings.Contains(mediaType, "json"):
		return 0, parseError(raw.Body, "response declared as %s is not valid JSON", mediaType)
	case strings.Contains(mediaType, "html"), strings.Contains(mediaType, "xml"):
		return formatHTML, nil
	}
	return 0, parseError(raw.Body, "unrecognized payload (content type %q)", raw.ContentType)
}

// lookupFold finds a key in obj ignoring case and separators, so "stateId",
// "state_id" and "State ID" are the same key.
func lookupFold(obj map[string]any, keys ...string) (any, bool) {
	folded := make(map[string]any, len(obj))
	for k, v := range obj {
		folded[foldKey(k)] = v
	}
	for _, key := range keys {
		v, ok := folded[foldKey(key)]
		if ok {
			return v, true
		}
	}
	return nil, false
}

func foldKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '.':
			return -1
		}
		return r
	}, strings.ToLower(key))
}

// scalarString renders a JSON scalar as text, objects and arrays give "".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return ""
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	dec.UseNumber()
	var doc any
	err := dec.Decode(&doc)
	return doc, err
}
