// Package catalog is the single registry of entity, layer, and graph table
// names. Nothing else in the codebase spells a medallion table name.
package catalog

import "fmt"

// Entity is one of the four ingested streams.
type Entity string

const (
	Property     Entity = "property"
	Neighborhood Entity = "neighborhood"
	Wikipedia    Entity = "wikipedia"
	Location     Entity = "location"
)

// Entities lists all known entities in pipeline order.
func Entities() []Entity {
	return []Entity{Location, Neighborhood, Property, Wikipedia}
}

// ParseEntity maps a user-supplied name onto an Entity.
func ParseEntity(s string) (Entity, error) {
	switch Entity(s) {
	case Property, Neighborhood, Wikipedia, Location:
		return Entity(s), nil
	}
	return "", fmt.Errorf("catalog: unknown entity %q", s)
}

// Layer is a medallion layer.
type Layer string

const (
	Bronze Layer = "bronze"
	Silver Layer = "silver"
	Gold   Layer = "gold"
)

var tables = map[Entity]map[Layer]string{
	Property: {
		Bronze: "bronze_properties",
		Silver: "silver_properties",
		Gold:   "gold_properties",
	},
	Neighborhood: {
		Bronze: "bronze_neighborhoods",
		Silver: "silver_neighborhoods",
		Gold:   "gold_neighborhoods",
	},
	Wikipedia: {
		Bronze: "bronze_wikipedia",
		Silver: "silver_wikipedia",
		Gold:   "gold_wikipedia",
	},
	Location: {
		Bronze: "bronze_locations",
		Silver: "silver_locations",
		Gold:   "gold_locations",
	},
}

var primaryKeys = map[Entity]string{
	Property:     "listing_id",
	Neighborhood: "neighborhood_id",
	Wikipedia:    "page_id",
	Location:     "location_id",
}

// TableFor resolves the physical table (or view, for Gold) name of an
// entity/layer pair.
func TableFor(e Entity, l Layer) (string, error) {
	byLayer, ok := tables[e]
	if !ok {
		return "", fmt.Errorf("catalog: unknown entity %q", e)
	}
	name, ok := byLayer[l]
	if !ok {
		return "", fmt.Errorf("catalog: unknown layer %q for entity %q", l, e)
	}
	return name, nil
}

// MustTable is TableFor for the static entity/layer pairs spelled in code.
// It panics on a miss, which can only be a programming error.
func MustTable(e Entity, l Layer) string {
	name, err := TableFor(e, l)
	if err != nil {
		panic(err)
	}
	return name
}

// PrimaryKey returns the primary key column of an entity. The same column
// name is used across all three layers.
func PrimaryKey(e Entity) (string, error) {
	pk, ok := primaryKeys[e]
	if !ok {
		return "", fmt.Errorf("catalog: unknown entity %q", e)
	}
	return pk, nil
}
