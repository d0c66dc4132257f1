package retrieval

import (
	"strings"

	"roofline/pkg/silver"
)

// mergeIntent fills empty filter fields from the extracted intent. Explicit
// filters always win.
func mergeIntent(f Filters, intent LocationIntent) Filters {
	if f.City == "" {
		f.City = intent.City
	}
	if f.State == "" {
		f.State = intent.State
	}
	if f.Neighborhood == "" {
		f.Neighborhood = intent.Neighborhood
	}
	if f.ZipCode == "" {
		f.ZipCode = intent.ZipCode
	}
	return f
}

// compileFilters renders the filter clause list. The same list is pushed
// into both the lexical and the vector retriever.
func compileFilters(f Filters) []map[string]any {
	var out []map[string]any
	term := func(field string, value any) {
		out = append(out, map[string]any{"term": map[string]any{field: value}})
	}

	if f.City != "" {
		term("address.city", strings.ToLower(f.City))
	}
	if f.State != "" {
		state := silver.StateCode(f.State)
		if state == "" {
			state = strings.ToUpper(strings.TrimSpace(f.State))
		}
		term("address.state", state)
	}
	if f.Neighborhood != "" {
		term("neighborhood.name.keyword", f.Neighborhood)
	}
	if f.ZipCode != "" {
		term("address.zip_code", f.ZipCode)
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		bounds := map[string]any{}
		if f.MinPrice > 0 {
			bounds["gte"] = f.MinPrice
		}
		if f.MaxPrice > 0 {
			bounds["lte"] = f.MaxPrice
		}
		out = append(out, map[string]any{"range": map[string]any{"price": bounds}})
	}
	if f.MinBedrooms > 0 {
		out = append(out, map[string]any{"range": map[string]any{"bedrooms": map[string]any{"gte": f.MinBedrooms}}})
	}
	if f.PropertyType != "" {
		term("property_type", strings.ToLower(f.PropertyType))
	}
	return out
}
