package silver

import (
	"context"
	"time"

	"roofline/pkg/catalog"
	"roofline/pkg/metadata"
)

// TransformProperties flattens the nested listing records, standardizes the
// address and computes the embedding text, all in one pass over Bronze.
func (t *Transformer) TransformProperties(ctx context.Context) (metadata.SilverMetadata, error) {
	started := time.Now()
	bronze := catalog.MustTable(catalog.Property, catalog.Bronze)

	// Null coordinates pass through: they are a Bronze validation finding,
	// not a drop condition, and the sinks take a missing geo point.
	flattened := t.eng.Table(bronze).
		Filter("listing_id IS NOT NULL AND trim(listing_id) <> ''").
		Filter("listing_price > 0").
		Filter("property_details.square_feet > 0").
		Project(
			"trim(listing_id) AS listing_id",
			"nullif(trim(neighborhood_id), '') AS neighborhood_id",
			"CAST(listing_price AS DOUBLE) AS price",
			"CAST(property_details.bedrooms AS INTEGER) AS bedrooms",
			"CAST(property_details.bathrooms AS DOUBLE) AS bathrooms",
			"CAST(property_details.square_feet AS INTEGER) AS square_feet",
			"lower(trim(property_details.property_type)) AS property_type",
			"CAST(property_details.year_built AS INTEGER) AS year_built",
			"CAST(property_details.garage_spaces AS INTEGER) AS garage_spaces",
			// Lot sizes arrive in acres; sqft is the canonical unit.
			"CAST(round(property_details.lot_size * 43560) AS INTEGER) AS lot_size_sqft",
			"round(CAST(listing_price AS DOUBLE) / NULLIF(property_details.square_feet, 0), 2) AS price_per_sqft",
			"{'street': trim(address.street), 'city': trim(address.city), 'state': " + StateCodeSQL("address.state") +
				", 'zip_code': nullif(trim(address.zip), '')" +
				", 'location': [coordinates.longitude, coordinates.latitude]} AS address",
			ZipStatusSQL("address.zip") + " AS zip_code_status",
			"trim(description) AS description",
			"features",
			"CAST(listing_date AS DATE) AS listing_date",
			"date_diff('day', CAST(listing_date AS DATE), current_date) AS days_on_market",
		)

	final := flattened.Wrap("p").Project(append([]string{
		"*",
		"concat_ws(' ', description, property_type," +
			" CAST(bedrooms AS VARCHAR) || ' bedrooms'," +
			" CAST(bathrooms AS VARCHAR) || ' bathrooms'," +
			" CAST(square_feet AS VARCHAR) || ' sqft'," +
			" address.city) AS embedding_text",
	}, vectorColumns...)...)

	return t.materialize(ctx, catalog.Property, final, started)
}
