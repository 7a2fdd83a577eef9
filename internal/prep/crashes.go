// Package prep turns raw public datasets into the GeoJSON files the overlays
// load.
package prep

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Victim roles 3 and 4 in TIMS exports.
const crashesQuery = `
WITH victims AS (
	SELECT CAST(CASE_ID AS VARCHAR) AS CASE_ID,
	       VICTIM_AGE,
	       CASE VICTIM_ROLE WHEN 3 THEN 'pedestrian' WHEN 4 THEN 'bicyclist' END AS VICTIM_ROLE
	FROM read_csv_auto(%s)
	WHERE VICTIM_ROLE IN (3, 4)
),
youngest AS (
	SELECT v.* FROM victims v
	WHERE v.VICTIM_AGE = (SELECT min(w.VICTIM_AGE) FROM victims w WHERE w.CASE_ID = v.CASE_ID)
)
SELECT CAST(c.CASE_ID AS VARCHAR),
       CAST(c.COLLISION_DATE AS VARCHAR),
       c.COLLISION_SEVERITY,
       c.POINT_X,
       c.POINT_Y,
       y.VICTIM_AGE,
       y.VICTIM_ROLE
FROM read_csv_auto(%s) c
LEFT JOIN youngest y ON y.CASE_ID = CAST(c.CASE_ID AS VARCHAR)
ORDER BY 1, 7`

// Crashes joins a TIMS crashes export with its victims export. Each crash
// becomes a point carrying its youngest pedestrian or bicyclist victim, if
// any. Crashes without coordinates are skipped.
func Crashes(ctx context.Context, conn *sql.DB, crashesCSV, victimsCSV string, logger *log.Logger) (*geojson.FeatureCollection, error) {
	if logger == nil {
		logger = log.Default()
	}
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(crashesQuery, quote(victimsCSV), quote(crashesCSV)))
	if err != nil {
		return nil, fmt.Errorf("joining crashes: %w", err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	skipped := 0
	for rows.Next() {
		var (
			caseID, date string
			severity     sql.NullInt64
			x, y         sql.NullFloat64
			age          sql.NullInt64
			role         sql.NullString
		)
		if err := rows.Scan(&caseID, &date, &severity, &x, &y, &age, &role); err != nil {
			return nil, fmt.Errorf("reading crash: %w", err)
		}
		if !x.Valid || !y.Valid {
			skipped++
			continue
		}
		f := geojson.NewFeature(orb.Point{x.Float64, y.Float64})
		f.Properties["CASE_ID"] = caseID
		f.Properties["COLLISION_DATE"] = date
		f.Properties["COLLISION_SEVERITY"] = nullable(severity.Int64, severity.Valid)
		f.Properties["VICTIM_AGE"] = nullable(age.Int64, age.Valid)
		f.Properties["VICTIM_ROLE"] = nullable(role.String, role.Valid)
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading crashes: %w", err)
	}
	if skipped > 0 {
		logger.Warn("crashes without coordinates skipped", "count", skipped)
	}
	logger.Info("crashes joined", "features", len(fc.Features))
	return fc, nil
}

func nullable[T any](v T, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

// quote renders s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
