// Command seed loads locations from a CSV file into the SQLite store so the
// weather and alert endpoints can resolve them.
//
// The CSV needs a header row with the columns id, name, country, lat, lon.
//
// Usage:
//
//	go run ./cmd/seed -db data/weather.db -csv data/locations.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/weather-cache-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

var requiredColumns = []string{"id", "name", "country", "lat", "lon"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "data/weather.db", "path to the SQLite database")
	csvPath := flag.String("csv", "", "CSV file of locations")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -csv")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	locations, err := parseLocations(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", *csvPath, err)
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, loc := range locations {
		if err := store.UpsertLocation(ctx, loc); err != nil {
			return fmt.Errorf("upsert %s: %w", loc.ID, err)
		}
	}
	log.Printf("seeded %d locations into %s", len(locations), *dbPath)
	return nil
}

func parseLocations(r io.Reader) ([]domain.Location, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := colIdx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	out := make([]domain.Location, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		lat, err := strconv.ParseFloat(get(row, colIdx, "lat"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(get(row, colIdx, "lon"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lon: %w", line, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("line %d: coordinates out of range", line)
		}
		id := get(row, colIdx, "id")
		if id == "" {
			return nil, fmt.Errorf("line %d: empty id", line)
		}
		out = append(out, domain.Location{
			ID:      id,
			Name:    get(row, colIdx, "name"),
			Country: get(row, colIdx, "country"),
			Lat:     lat,
			Lon:     lon,
		})
	}
	return out, nil
}

func get(row []string, colIdx map[string]int, col string) string {
	i, ok := colIdx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
