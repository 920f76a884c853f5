package search

// Resolve chooses the display values for a field: highlight snippets when
// the engine produced them (verbatim, order and duplicates preserved),
// otherwise the raw stored values, otherwise nothing.
func Resolve(r Record, field string) []string {
	if r == nil {
		return nil
	}
	if r.HasHighlight(field) {
		return r.Highlight(field)
	}
	if r.HasField(field) {
		return r.Fetch(field)
	}
	return nil
}

// OfficialHeadword returns the display value for the official headword:
// the first resolved element, or "" when the field is entirely absent.
func OfficialHeadword(r Record) string {
	values := Resolve(r, FieldOfficialHeadword)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// OtherSpellings returns the resolved headword spellings with every
// occurrence equal to the official headword removed, so the official form
// is never repeated among its variants.
func OtherSpellings(r Record) []string {
	official := OfficialHeadword(r)
	resolved := Resolve(r, FieldHeadword)
	if len(resolved) == 0 {
		return nil
	}
	// No official headword means nothing to remove; an empty-string
	// element is not an occurrence of an absent official form.
	if official == "" {
		return append([]string(nil), resolved...)
	}
	others := make([]string, 0, len(resolved))
	for _, v := range resolved {
		if v == official {
			continue
		}
		others = append(others, v)
	}
	return others
}
