package catalog

import "fmt"

// GraphLabel is a node label in the property graph.
type GraphLabel string

const (
	LabelProperty         GraphLabel = "Property"
	LabelNeighborhood     GraphLabel = "Neighborhood"
	LabelWikipediaArticle GraphLabel = "WikipediaArticle"
	LabelFeature          GraphLabel = "Feature"
	LabelPropertyType     GraphLabel = "PropertyType"
	LabelPriceRange       GraphLabel = "PriceRange"
	LabelCity             GraphLabel = "City"
	LabelState            GraphLabel = "State"
	LabelCounty           GraphLabel = "County"
	LabelZipCode          GraphLabel = "ZipCode"
)

type nodeSpec struct {
	table  string
	prefix string
	key    string
}

var nodeSpecs = map[GraphLabel]nodeSpec{
	LabelProperty:         {"gold_graph_properties", "property", "listing_id"},
	LabelNeighborhood:     {"gold_graph_neighborhoods", "neighborhood", "neighborhood_id"},
	LabelWikipediaArticle: {"gold_graph_wikipedia", "wikipedia_article", "page_id"},
	LabelFeature:          {"gold_graph_features", "feature", "id"},
	LabelPropertyType:     {"gold_graph_property_types", "property_type", "id"},
	LabelPriceRange:       {"gold_graph_price_ranges", "price_range", "id"},
	LabelCity:             {"gold_graph_cities", "city", "id"},
	LabelState:            {"gold_graph_states", "state", "id"},
	LabelCounty:           {"gold_graph_counties", "county", "id"},
	LabelZipCode:          {"gold_graph_zip_codes", "zip_code", "id"},
}

// GraphLabels lists all node labels in build order.
func GraphLabels() []GraphLabel {
	return []GraphLabel{
		LabelProperty, LabelNeighborhood, LabelWikipediaArticle,
		LabelFeature, LabelPropertyType, LabelPriceRange,
		LabelCity, LabelState, LabelCounty, LabelZipCode,
	}
}

// NodeTable resolves the materialized node table for a label.
func NodeTable(l GraphLabel) (string, error) {
	s, ok := nodeSpecs[l]
	if !ok {
		return "", fmt.Errorf("catalog: unknown graph label %q", l)
	}
	return s.table, nil
}

// NodeIDPrefix returns the lowercase prefix of graph node IDs for a label,
// e.g. "property" in "property:prop-123".
func NodeIDPrefix(l GraphLabel) (string, error) {
	s, ok := nodeSpecs[l]
	if !ok {
		return "", fmt.Errorf("catalog: unknown graph label %q", l)
	}
	return s.prefix, nil
}

// NodeKey returns the property used as the MERGE key for a label.
func NodeKey(l GraphLabel) (string, error) {
	s, ok := nodeSpecs[l]
	if !ok {
		return "", fmt.Errorf("catalog: unknown graph label %q", l)
	}
	return s.key, nil
}

// RelType is a relationship type in the property graph.
type RelType string

const (
	RelLocatedIn           RelType = "LOCATED_IN"
	RelHasFeature          RelType = "HAS_FEATURE"
	RelInCity              RelType = "IN_CITY"
	RelInState             RelType = "IN_STATE"
	RelInZipCode           RelType = "IN_ZIP_CODE"
	RelTypeOf              RelType = "TYPE_OF"
	RelInPriceRange        RelType = "IN_PRICE_RANGE"
	RelSimilarTo           RelType = "SIMILAR_TO"
	RelGeographicHierarchy RelType = "GEOGRAPHIC_HIERARCHY"
)

// RelSpec fixes the endpoints of a relationship type. Dynamic relationships
// carry their endpoint labels per row instead.
type RelSpec struct {
	Type     RelType
	Table    string
	From     GraphLabel
	To       GraphLabel
	Weighted bool
	Dynamic  bool
}

var relSpecs = []RelSpec{
	{Type: RelLocatedIn, Table: "gold_graph_rel_located_in", From: LabelProperty, To: LabelNeighborhood},
	{Type: RelHasFeature, Table: "gold_graph_rel_has_feature", From: LabelProperty, To: LabelFeature},
	{Type: RelInCity, Table: "gold_graph_rel_in_city", From: LabelNeighborhood, To: LabelCity},
	{Type: RelInState, Table: "gold_graph_rel_in_state", From: LabelCity, To: LabelState},
	{Type: RelInZipCode, Table: "gold_graph_rel_in_zip_code", From: LabelProperty, To: LabelZipCode},
	{Type: RelTypeOf, Table: "gold_graph_rel_type_of", From: LabelProperty, To: LabelPropertyType},
	{Type: RelInPriceRange, Table: "gold_graph_rel_in_price_range", From: LabelProperty, To: LabelPriceRange},
	{Type: RelSimilarTo, Table: "gold_graph_rel_similar_to", From: LabelProperty, To: LabelProperty, Weighted: true},
	{Type: RelGeographicHierarchy, Table: "gold_graph_rel_geographic_hierarchy", Dynamic: true},
}

// RelSpecs lists every relationship type in build order.
func RelSpecs() []RelSpec {
	out := make([]RelSpec, len(relSpecs))
	copy(out, relSpecs)
	return out
}

// RelTable resolves the materialized edge table for a relationship type.
func RelTable(t RelType) (string, error) {
	for _, s := range relSpecs {
		if s.Type == t {
			return s.Table, nil
		}
	}
	return "", fmt.Errorf("catalog: unknown relationship type %q", t)
}
