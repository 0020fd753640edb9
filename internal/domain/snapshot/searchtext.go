package snapshot

import (
	"sort"
	"strings"

	"apotheca/internal/domain/catalogs/item"
)

// abbreviations maps full drug/form names to the short forms pharmacists
// actually type. When a full name appears in the item text, its short form
// is appended to search_text so abbreviated queries still match.
var abbreviations = map[string]string{
	"paracetamol":            "pcm",
	"amoxicillin":            "amox",
	"azithromycin":           "azithro",
	"ciprofloxacin":          "cipro",
	"metronidazole":          "metro",
	"omeprazole":             "omep",
	"chlorpheniramine":       "cpm",
	"dextromethorphan":       "dxm",
	"oral rehydration salts": "ors",
	"vitamin":                "vit",
	"tablet":                 "tab",
	"capsule":                "cap",
	"suspension":             "susp",
	"injection":              "inj",
	"ointment":               "oint",
	"supposit":               "supp",
	"syrup":                  "syr",
}

// BuildSearchText concatenates the item's searchable fields in lowercase
// and appends abbreviation expansions. The result feeds the snapshot's
// search_text column; search handlers match against it and never compute
// it ad hoc. Output is deterministic for identical input, which keeps
// snapshot refreshes idempotent.
func BuildSearchText(it *item.Item) string {
	parts := []string{strings.ToLower(it.Name), strings.ToLower(it.SKU)}
	if it.Barcode != nil && *it.Barcode != "" {
		parts = append(parts, strings.ToLower(*it.Barcode))
	}
	if it.Description != nil && *it.Description != "" {
		parts = append(parts, strings.ToLower(*it.Description))
	}

	base := strings.Join(parts, " ")

	var expansions []string
	for full, abbrev := range abbreviations {
		if strings.Contains(base, full) && !strings.Contains(base, abbrev) {
			expansions = append(expansions, abbrev)
		}
	}
	sort.Strings(expansions)

	if len(expansions) == 0 {
		return base
	}
	return base + " " + strings.Join(expansions, " ")
}
