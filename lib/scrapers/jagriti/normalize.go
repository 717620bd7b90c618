package jagriti

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"jagriti-backend/lib/htmlutil"
	"jagriti-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

type CaseRecord struct {
	CaseNumber          string  `json:"case_number"`
	CaseStage           string  `json:"case_stage"`
	FilingDate          *string `json:"filing_date"`
	Complainant         string  `json:"complainant"`
	ComplainantAdvocate string  `json:"complainant_advocate"`
	Respondent          string  `json:"respondent"`
	RespondentAdvocate  string  `json:"respondent_advocate"`
	DocumentLink        *string `json:"document_link"`
}

// Normalized is the outcome of normalizing one response. RawRows counts
// every data row seen, Skipped the ones that could not be turned into a
// record.
type Normalized struct {
	Cases   []CaseRecord
	RawRows int
	Skipped int
}

type NormalizeOptions struct {
	// Base resolves relative document links.
	Base               *url.URL
	EmptyResultMarkers []string
}

type field int

const (
	fieldCaseNumber field = iota
	fieldCaseStage
	fieldFilingDate
	fieldComplainant
	fieldComplainantAdvocate
	fieldRespondent
	fieldRespondentAdvocate
	fieldDocumentLink
	fieldCount
)

func (f field) identifying() bool {
	return f == fieldCaseNumber || f == fieldComplainant || f == fieldRespondent
}

// column labels and JSON keys each field is known under, compared after
// textutil.NormalizeLabel.
var fieldAliases = map[field][]string{
	fieldCaseNumber: {
		"case_number", "case number", "case no", "case no.", "case no/year", "case_no",
		"caseno", "case id", "case",
	},
	fieldCaseStage: {
		"case_stage", "case stage", "stage", "status", "case status", "current stage",
	},
	fieldFilingDate: {
		"filing_date", "filing date", "date of filing", "filed on", "filing dt",
		"date filed", "filingdate",
	},
	fieldComplainant: {
		"complainant", "complainant name", "complainant_name", "complainant(s)",
		"petitioner", "complainant/petitioner",
	},
	fieldComplainantAdvocate: {
		"complainant_advocate", "complainant advocate", "complainant's advocate",
		"complainant advocate name", "advocate for complainant", "complainant counsel",
		"petitioner advocate",
	},
	fieldRespondent: {
		"respondent", "respondent name", "respondent_name", "respondent(s)",
		"opposite party", "opp. party",
	},
	fieldRespondentAdvocate: {
		"respondent_advocate", "respondent advocate", "respondent's advocate",
		"respondent advocate name", "advocate for respondent", "respondent counsel",
		"opposite party advocate",
	},
	fieldDocumentLink: {
		"document_link", "document link", "document", "document_url", "order_link",
		"pdf", "pdf_link", "link", "url",
	},
}

var labelFields = buildLabelFields()

func buildLabelFields() map[string]field {
	out := map[string]field{}
	for f, aliases := range fieldAliases {
		for _, alias := range aliases {
			out[textutil.NormalizeLabel(alias)] = f
		}
	}
	return out
}

func fieldForLabel(label string) (field, bool) {
	f, ok := labelFields[textutil.NormalizeLabel(label)]
	return f, ok
}

// payload is one recognized response shape.
type payload interface {
	records(kind SearchKind, opts NormalizeOptions) (Normalized, error)
}

type jsonPayload struct {
	body []byte
}

type htmlPayload struct {
	body []byte
}

func newPayload(raw RawResponse) (payload, error) {
	format, err := sniffFormat(raw)
	if err != nil {
		return nil, err
	}
	if format == formatJSON {
		return jsonPayload{body: raw.Body}, nil
	}
	return htmlPayload{body: raw.Body}, nil
}

// Normalize turns a search response, JSON or HTML, into case records.
func Normalize(raw RawResponse, kind SearchKind, opts NormalizeOptions) (Normalized, error) {
	p, err := newPayload(raw)
	if err != nil {
		return Normalized{}, err
	}
	return p.records(kind, opts)
}

func finishRecord(values [fieldCount]string, base *url.URL) CaseRecord {
	record := CaseRecord{
		CaseNumber:          values[fieldCaseNumber],
		CaseStage:           values[fieldCaseStage],
		FilingDate:          NormalizeDate(values[fieldFilingDate]),
		Complainant:         values[fieldComplainant],
		ComplainantAdvocate: values[fieldComplainantAdvocate],
		Respondent:          values[fieldRespondent],
		RespondentAdvocate:  values[fieldRespondentAdvocate],
	}
	if link := htmlutil.ResolveHref(base, values[fieldDocumentLink]); link != "" {
		record.DocumentLink = &link
	}
	return record
}

var jsonRowKeys = []string{"cases", "data", "results", "records", "rows", "items"}

func findJSONRows(doc any, depth int) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		if depth > 1 {
			return nil, false
		}
		for _, key := range jsonRowKeys {
			inner, ok := lookupFold(v, key)
			if !ok {
				continue
			}
			if inner == nil {
				return nil, true
			}
			rows, ok := findJSONRows(inner, depth+1)
			if ok {
				return rows, true
			}
		}
	}
	return nil, false
}

func (p jsonPayload) records(kind SearchKind, opts NormalizeOptions) (Normalized, error) {
	doc, err := decodeJSON(p.body)
	if err != nil {
		return Normalized{}, parseError(p.body, "decode %s results: %s", kind, err.Error())
	}
	rows, ok := findJSONRows(doc, 0)
	if !ok {
		return Normalized{}, parseError(p.body, "no result rows in %s response", kind)
	}

	out := Normalized{Cases: []CaseRecord{}}
	for _, row := range rows {
		out.RawRows++
		obj, ok := row.(map[string]any)
		if !ok {
			out.Skipped++
			continue
		}

		values, known := rowValues(obj)
		if known == 0 {
			out.Skipped++
			continue
		}
		out.Cases = append(out.Cases, finishRecord(values, opts.Base))
	}
	return out, nil
}

// rowValues maps a JSON row onto the record fields. when a row carries
// several aliases of one field, the first non-empty one in fieldAliases
// order wins.
func rowValues(obj map[string]any) ([fieldCount]string, int) {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	byLabel := make(map[string]any, len(obj))
	for _, key := range keys {
		label := textutil.NormalizeLabel(key)
		if _, exists := byLabel[label]; !exists {
			byLabel[label] = obj[key]
		}
	}

	var values [fieldCount]string
	known := 0
	for f := field(0); f < fieldCount; f++ {
		present := false
		for _, alias := range fieldAliases[f] {
			value, ok := byLabel[textutil.NormalizeLabel(alias)]
			if !ok {
				continue
			}
			present = true
			if values[f] == "" {
				values[f] = textutil.NormalizeSpace(scalarString(value))
			}
		}
		if present {
			known++
		}
	}
	return values, known
}

type resultsTable struct {
	header  *goquery.Selection
	rows    []*goquery.Selection
	columns []field
	known   int
}

// needed is the number of cells a row needs to reach every known column.
func (t resultsTable) needed() int {
	n := 0
	for i, f := range t.columns {
		if f != fieldCount {
			n = i + 1
		}
	}
	return n
}

// ownRows returns the rows of table, leaving out rows of nested tables.
func ownRows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").IsSelection(table) {
			rows = append(rows, tr)
		}
	})
	return rows
}

func cells(row *goquery.Selection) *goquery.Selection {
	return row.ChildrenFiltered("td, th")
}

// spanningRow reports a single cell stretched over several columns, a
// title or message row.
func spanningRow(row *goquery.Selection) bool {
	rowCells := cells(row)
	return rowCells.Length() == 1 && rowCells.AttrOr("colspan", "1") != "1"
}

func findResultsTable(doc *goquery.Document) (resultsTable, bool) {
	var best resultsTable
	found := false

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := ownRows(table)
		if len(rows) == 0 {
			return
		}

		// the header is the first row made of <th>, else the first row.
		// full-width title rows above it are never the header.
		headerIdx := -1
		for i, row := range rows {
			if spanningRow(row) {
				continue
			}
			if headerIdx < 0 {
				headerIdx = i
			}
			if row.ChildrenFiltered("th").Length() > 0 {
				headerIdx = i
				break
			}
		}
		if headerIdx < 0 {
			return
		}

		header := rows[headerIdx]
		candidate := resultsTable{header: header, rows: rows[headerIdx+1:]}
		identifying := false
		seen := map[field]bool{}
		cells(header).Each(func(_ int, cell *goquery.Selection) {
			f, ok := fieldForLabel(htmlutil.Text(cell))
			if !ok || seen[f] {
				candidate.columns = append(candidate.columns, fieldCount)
				return
			}
			seen[f] = true
			candidate.columns = append(candidate.columns, f)
			candidate.known++
			if f.identifying() {
				identifying = true
			}
		})

		if candidate.known < 2 || !identifying {
			return
		}
		if !found || candidate.known > best.known {
			best = candidate
			found = true
		}
	})
	return best, found
}

func containsMarker(body []byte, markers []string) bool {
	lower := bytes.ToLower(body)
	for _, m := range markers {
		if m != "" && bytes.Contains(lower, []byte(strings.ToLower(m))) {
			return true
		}
	}
	return false
}

func (p htmlPayload) records(kind SearchKind, opts NormalizeOptions) (Normalized, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return Normalized{}, parseError(p.body, "parse %s results: %s", kind, err.Error())
	}

	table, ok := findResultsTable(doc)
	if !ok {
		if containsMarker([]byte(htmlutil.Text(doc.Selection)), opts.EmptyResultMarkers) {
			return Normalized{Cases: []CaseRecord{}}, nil
		}
		return Normalized{}, parseError(p.body, "no results table in %s response", kind)
	}

	needed := table.needed()
	out := Normalized{Cases: []CaseRecord{}}
	for _, row := range table.rows {
		rowCells := cells(row)
		if rowCells.Length() == 0 {
			continue
		}
		if spanningRow(row) {
			// "no records found" style message spanning the table
			continue
		}

		texts := make([]string, rowCells.Length())
		blank := true
		rowCells.Each(func(i int, cell *goquery.Selection) {
			texts[i] = htmlutil.Text(cell)
			if texts[i] != "" {
				blank = false
			}
		})
		if blank && row.Find("a[href]").Length() == 0 {
			continue
		}

		out.RawRows++
		if len(texts) < needed {
			out.Skipped++
			continue
		}

		var values [fieldCount]string
		for i, f := range table.columns {
			if f == fieldCount || f == fieldDocumentLink || i >= len(texts) {
				continue
			}
			values[f] = texts[i]
		}
		anchors := htmlutil.GetAnchors(opts.Base, row)
		if len(anchors) > 0 {
			values[fieldDocumentLink] = anchors[0].Href
		}
		out.Cases = append(out.Cases, finishRecord(values, opts.Base))
	}
	return out, nil
}
