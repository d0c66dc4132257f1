package bronze

import (
	"context"
	"fmt"
	"log/slog"

	"roofline/pkg/catalog"
	"roofline/pkg/engine"
	"roofline/pkg/metadata"
)

// sampleLimit caps how many offending keys a failed check reports.
const sampleLimit = 3

// Validator runs read-only quality checks against Bronze tables. It never
// mutates data; the orchestrator decides what to do with the findings.
type Validator struct {
	eng *engine.Engine
	log *slog.Logger
}

// NewValidator wires a validator to the engine.
func NewValidator(eng *engine.Engine) *Validator {
	return &Validator{eng: eng, log: slog.With("component", "bronze_validate")}
}

// check is one named predicate counting offending rows. keyExpr renders the
// sample keys logged for failures.
type check struct {
	name    string
	where   string
	keyExpr string
}

var propertyChecks = []check{
	{"null_or_blank_listing_id", "listing_id IS NULL OR trim(listing_id) = ''", "coalesce(listing_id, '<null>')"},
	{"nonpositive_price", "listing_price IS NULL OR listing_price <= 0", "listing_id"},
	{"nonpositive_square_feet", "property_details.square_feet IS NULL OR property_details.square_feet <= 0", "listing_id"},
	{"missing_coordinates", "coordinates.latitude IS NULL OR coordinates.longitude IS NULL", "listing_id"},
	{"coordinates_out_of_range", "coordinates.latitude NOT BETWEEN -90 AND 90 OR coordinates.longitude NOT BETWEEN -180 AND 180", "listing_id"},
}

var neighborhoodChecks = []check{
	{"null_neighborhood_id", "neighborhood_id IS NULL OR trim(neighborhood_id) = ''", "coalesce(name, '<null>')"},
	{"null_name", "name IS NULL OR trim(name) = ''", "coalesce(neighborhood_id, '<null>')"},
	{"coordinates_out_of_range", "coordinates.latitude NOT BETWEEN -90 AND 90 OR coordinates.longitude NOT BETWEEN -180 AND 180", "neighborhood_id"},
}

var wikipediaChecks = []check{
	{"null_page_id", "pageid IS NULL", "coalesce(title, '<null>')"},
	{"null_or_blank_title", "title IS NULL OR trim(title) = ''", "CAST(pageid AS VARCHAR)"},
	{"short_extract", "extract IS NOT NULL AND length(extract) < 100", "CAST(pageid AS VARCHAR)"},
}

var locationChecks = []check{
	{"no_city_or_state", "city IS NULL AND state IS NULL", "coalesce(zip_code, '<null>')"},
}

// Validate runs the entity's checks plus a duplicate-primary-key check and
// aggregates the findings.
func (v *Validator) Validate(ctx context.Context, entity catalog.Entity) (metadata.ValidationResult, error) {
	table := catalog.MustTable(entity, catalog.Bronze)

	var checks []check
	var pkCol string
	switch entity {
	case catalog.Property:
		checks, pkCol = propertyChecks, "listing_id"
	case catalog.Neighborhood:
		checks, pkCol = neighborhoodChecks, "neighborhood_id"
	case catalog.Wikipedia:
		checks, pkCol = wikipediaChecks, "pageid"
	case catalog.Location:
		checks, pkCol = locationChecks, "" // the reference file has no primary key
	default:
		return metadata.ValidationResult{}, fmt.Errorf("bronze: unknown entity %q", entity)
	}

	total, err := v.eng.RowCount(ctx, table)
	if err != nil {
		return metadata.ValidationResult{}, err
	}

	result := metadata.ValidationResult{Entity: string(entity), Table: table, TotalRows: total}
	for _, c := range checks {
		res, err := v.runCheck(ctx, table, c)
		if err != nil {
			return metadata.ValidationResult{}, err
		}
		result.Checks = append(result.Checks, res)
	}
	if pkCol != "" {
		res, err := v.duplicateCheck(ctx, table, pkCol)
		if err != nil {
			return metadata.ValidationResult{}, err
		}
		result.Checks = append(result.Checks, res)
	}

	for _, c := range result.Checks {
		if c.Failed > 0 {
			v.log.Warn("bronze check failed rows", "entity", entity,
				"check", c.Name, "rows", c.Failed, "samples", c.Samples)
		}
	}
	return result, nil
}

func (v *Validator) runCheck(ctx context.Context, table string, c check) (metadata.CheckResult, error) {
	var failed int64
	countSQL := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", table, c.where)
	if err := v.eng.QueryRow(ctx, countSQL).Scan(&failed); err != nil {
		return metadata.CheckResult{}, fmt.Errorf("bronze: check %s on %s: %w", c.name, table, err)
	}

	res := metadata.CheckResult{Name: c.name, Failed: failed}
	if failed == 0 {
		return res, nil
	}

	sampleSQL := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT %d", c.keyExpr, table, c.where, sampleLimit)
	rows, err := v.eng.Query(ctx, sampleSQL)
	if err != nil {
		return metadata.CheckResult{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return metadata.CheckResult{}, err
		}
		res.Samples = append(res.Samples, key)
	}
	return res, rows.Err()
}

func (v *Validator) duplicateCheck(ctx context.Context, table, pkCol string) (metadata.CheckResult, error) {
	if err := engine.ValidateIdent(pkCol); err != nil {
		return metadata.CheckResult{}, err
	}
	name := "duplicate_" + pkCol

	var failed int64
	countSQL := fmt.Sprintf(
		"SELECT coalesce(sum(n - 1), 0) FROM (SELECT count(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING count(*) > 1) d",
		table, pkCol, pkCol)
	if err := v.eng.QueryRow(ctx, countSQL).Scan(&failed); err != nil {
		return metadata.CheckResult{}, fmt.Errorf("bronze: check %s on %s: %w", name, table, err)
	}

	res := metadata.CheckResult{Name: name, Failed: failed}
	if failed == 0 {
		return res, nil
	}

	sampleSQL := fmt.Sprintf(
		"SELECT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL GROUP BY %s HAVING count(*) > 1 LIMIT %d",
		pkCol, table, pkCol, pkCol, sampleLimit)
	rows, err := v.eng.Query(ctx, sampleSQL)
	if err != nil {
		return metadata.CheckResult{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return metadata.CheckResult{}, err
		}
		res.Samples = append(res.Samples, key)
	}
	return res, rows.Err()
}
