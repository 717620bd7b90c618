package jagriti

import (
	"strings"
)

// SearchKind is the field a search matches against.
type SearchKind string

const (
	KindCaseNumber          SearchKind = "case_number"
	KindComplainant         SearchKind = "complainant"
	KindRespondent          SearchKind = "respondent"
	KindComplainantAdvocate SearchKind = "complainant_advocate"
	KindRespondentAdvocate  SearchKind = "respondent_advocate"
	KindIndustry            SearchKind = "industry_type"
	KindJudge               SearchKind = "judge"
)

var searchKinds = []SearchKind{
	KindCaseNumber,
	KindComplainant,
	KindRespondent,
	KindComplainantAdvocate,
	KindRespondentAdvocate,
	KindIndustry,
	KindJudge,
}

// the form field the portal reads each kind's value from
var kindParams = map[SearchKind]string{
	KindCaseNumber:          "case_no",
	KindComplainant:         "complainant_name",
	KindRespondent:          "respondent_name",
	KindComplainantAdvocate: "complainant_advocate",
	KindRespondentAdvocate:  "respondent_advocate",
	KindIndustry:            "industry_type",
	KindJudge:               "judge_name",
}

// SearchKinds lists every supported kind.
func SearchKinds() []SearchKind {
	out := make([]SearchKind, len(searchKinds))
	copy(out, searchKinds)
	return out
}

// ParseSearchKind accepts a kind's wire value in any case, with dashes or
// underscores ("case-number", "CASE_NUMBER"), and "industry" for
// industry_type.
func ParseSearchKind(value string) (SearchKind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	if normalized == "industry" {
		return KindIndustry, nil
	}
	kind := SearchKind(normalized)
	if !kind.Valid() {
		return "", validationError("unknown search kind %q", value)
	}
	return kind, nil
}

func (k SearchKind) Valid() bool {
	_, ok := kindParams[k]
	return ok
}

// Param is the form field the portal expects the search value in.
func (k SearchKind) Param() string {
	return kindParams[k]
}

// Slug is the kind as it appears in URLs, "case-number".
func (k SearchKind) Slug() string {
	return strings.ReplaceAll(string(k), "_", "-")
}
