package domain

import (
	"fmt"
	"strings"
)

// QueryParam is a named query parameter (@Name in the SQL text).
type QueryParam struct {
	Name  string
	Type  FieldType
	Value any
}

// Statement is SQL text plus its parameters. Identifiers are validated and
// quoted when the text is built; values only travel as parameters.
type Statement struct {
	SQL    string
	Params []QueryParam
}

// QuoteTable renders a validated table reference as a backquoted path.
func QuoteTable(t TableRef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.Project == "" {
		return fmt.Sprintf("`%s.%s`", t.Dataset, t.Table), nil
	}
	return fmt.Sprintf("`%s.%s.%s`", t.Project, t.Dataset, t.Table), nil
}

// TripsQueryInput names the landing tables and window of the curated trips query.
type TripsQueryInput struct {
	Trips    TableRef
	Stations TableRef
	Window   DateRange
	BikeType string
}

// TripsQuery selects electric round trips that started at an active station
// within the window, keeping the first row per trip_id.
func TripsQuery(in TripsQueryInput) (Statement, error) {
	trips, err := QuoteTable(in.Trips)
	if err != nil {
		return Statement{}, fmt.Errorf("trips table: %w", err)
	}
	stations, err := QuoteTable(in.Stations)
	if err != nil {
		return Statement{}, fmt.Errorf("stations table: %w", err)
	}
	bikeType := in.BikeType
	if bikeType == "" {
		bikeType = "electric"
	}

	var b strings.Builder
	b.WriteString("SELECT\n")
	b.WriteString("  BIKE_ID,\n")
	b.WriteString("  (DURATION_MINUTES / 60.0) AS DURATION_HOURS,\n")
	b.WriteString("  START_STATION_NAME,\n")
	b.WriteString("  DATE(start_time) AS TRIP_DATE\n")
	fmt.Fprintf(&b, "FROM %s\n", trips)
	b.WriteString("WHERE DATE(start_time) BETWEEN @start_date AND @end_date\n")
	b.WriteString("  AND bike_type = @bike_type\n")
	b.WriteString("  AND start_station_id = SAFE_CAST(end_station_id AS INT64)\n")
	fmt.Fprintf(&b, "  AND start_station_id IN (SELECT station_id FROM %s WHERE status = 'active')\n", stations)
	b.WriteString("QUALIFY ROW_NUMBER() OVER (PARTITION BY trip_id ORDER BY start_time) = 1")

	return Statement{
		SQL: b.String(),
		Params: []QueryParam{
			{Name: "start_date", Type: TypeDate, Value: in.Window.Start},
			{Name: "end_date", Type: TypeDate, Value: in.Window.End},
			{Name: "bike_type", Type: TypeString, Value: bikeType},
		},
	}, nil
}

// EnrichedQueryInput names the four landing tables joined by the enriched query.
type EnrichedQueryInput struct {
	Trips   TableRef
	Weather TableRef
	Bikes   TableRef
	Rates   TableRef
}

// EnrichedQuery joins trips with the day's weather, the bike catalogue and the
// day's exchange rate, pricing each bike in the local currency.
func EnrichedQuery(in EnrichedQueryInput) (Statement, error) {
	refs := []struct {
		name string
		ref  TableRef
	}{
		{"trips", in.Trips},
		{"weather", in.Weather},
		{"bikes", in.Bikes},
		{"rates", in.Rates},
	}
	quoted := make([]string, len(refs))
	for i, r := range refs {
		q, err := QuoteTable(r.ref)
		if err != nil {
			return Statement{}, fmt.Errorf("%s table: %w", r.name, err)
		}
		quoted[i] = q
	}

	sql := fmt.Sprintf(`SELECT
  bt.BIKE_ID,
  bt.DURATION_HOURS,
  bt.START_STATION_NAME,
  bt.TRIP_DATE,
  wd.temp,
  bd.manufacturer,
  (bd.price_eur * dd.Rate) AS bike_price
FROM %s AS bt
JOIN %s AS wd ON bt.TRIP_DATE = DATE(wd.datetime)
JOIN %s AS bd ON bt.BIKE_ID = CAST(bd.bike_id AS STRING)
JOIN %s AS dd ON bt.TRIP_DATE = dd.Datum`, quoted[0], quoted[1], quoted[2], quoted[3])

	return Statement{SQL: sql}, nil
}
