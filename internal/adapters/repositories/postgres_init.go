package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"truck-dispatch-service/internal/platform/obs"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS drivers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		license_no TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		size_class TEXT NOT NULL DEFAULT 'MEDIUM',
		status TEXT NOT NULL DEFAULT 'AVAILABLE',
		truck_id BIGINT
	);`,
	`CREATE TABLE IF NOT EXISTS trucks (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		capacity_cu_ft DOUBLE PRECISION NOT NULL DEFAULT 0,
		max_weight_lbs DOUBLE PRECISION NOT NULL DEFAULT 0,
		size_class TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		status TEXT NOT NULL DEFAULT 'AVAILABLE',
		last_lat DOUBLE PRECISION,
		last_lng DOUBLE PRECISION,
		driver_id BIGINT REFERENCES drivers(id) ON DELETE SET NULL
	);`,
	`CREATE TABLE IF NOT EXISTS locations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 1,
		required_size_class TEXT,
		large_truck_only BOOLEAN NOT NULL DEFAULT FALSE,
		location_id BIGINT REFERENCES locations(id) ON DELETE SET NULL,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		assigned_truck_id BIGINT REFERENCES trucks(id) ON DELETE SET NULL,
		assigned_driver_id BIGINT REFERENCES drivers(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		weight_lbs DOUBLE PRECISION,
		length_in DOUBLE PRECISION,
		width_in DOUBLE PRECISION,
		height_in DOUBLE PRECISION
	);`,
	`CREATE TABLE IF NOT EXISTS job_items (
		job_id BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		item_id BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		PRIMARY KEY (job_id, item_id)
	);`,
	`CREATE TABLE IF NOT EXISTS route_cache (
		path_key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_unassigned
		ON jobs (priority DESC, id) WHERE assigned_truck_id IS NULL AND NOT is_completed;`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_open_by_truck
		ON jobs (assigned_truck_id) WHERE NOT is_completed;`,
}

// InitSchema creates the dispatch tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) (err error) {
	defer obs.Time(ctx, "schema.Init")(&err)

	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// SeedFixture replaces all dispatch entities with the fixture's contents in
// one transaction. Location positions must already be resolved.
func SeedFixture(ctx context.Context, db *sql.DB, f *Fixture) (err error) {
	defer obs.Time(ctx, "seed.Fixture")(&err)

	if db == nil {
		return errors.New("seed fixture: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed fixture: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`TRUNCATE job_items, jobs, items, locations, trucks, drivers RESTART IDENTITY CASCADE;`,
	); err != nil {
		return fmt.Errorf("seed fixture: truncate: %w", err)
	}

	drivers := make(map[string]int64, len(f.Drivers))
	for _, ds := range f.Drivers {
		d, err := ds.toDomain()
		if err != nil {
			return fmt.Errorf("seed fixture: %w", err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, `
		INSERT INTO drivers (name, license_no, phone, size_class, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
		`, d.Name, ds.LicenseNo, ds.Phone, string(d.SizeClass), string(d.Status)).Scan(&id); err != nil {
			return fmt.Errorf("seed fixture: insert driver %q: %w", ds.Key, err)
		}
		drivers[ds.Key] = id
	}

	trucks := make(map[string]int64, len(f.Trucks))
	truckDrivers := make(map[string]sql.NullInt64, len(f.Trucks))
	for _, ts := range f.Trucks {
		t, err := ts.toDomain()
		if err != nil {
			return fmt.Errorf("seed fixture: %w", err)
		}

		var lat, lng sql.NullFloat64
		if t.LastKnown != nil {
			lat = sql.NullFloat64{Float64: t.LastKnown.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: t.LastKnown.Lon, Valid: true}
		}
		var driverID sql.NullInt64
		if ts.Driver != "" {
			driverID = sql.NullInt64{Int64: drivers[ts.Driver], Valid: true}
		}

		var id int64
		if err := tx.QueryRowContext(ctx, `
		INSERT INTO trucks (name, capacity_cu_ft, max_weight_lbs, size_class, is_active, status, last_lat, last_lng, driver_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;
		`, t.Name, t.CapacityCuFt, t.MaxWeightLbs, string(t.SizeClass), t.IsActive, string(t.Status), lat, lng, driverID).Scan(&id); err != nil {
			return fmt.Errorf("seed fixture: insert truck %q: %w", ts.Key, err)
		}
		trucks[ts.Key] = id
		truckDrivers[ts.Key] = driverID

		if driverID.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE drivers SET truck_id = $1, status = 'ASSIGNED' WHERE id = $2;`,
				id, driverID.Int64,
			); err != nil {
				return fmt.Errorf("seed fixture: pair driver %q: %w", ts.Driver, err)
			}
		}
	}

	locations := make(map[string]int64, len(f.Locations))
	for _, ls := range f.Locations {
		loc, err := ls.toDomain()
		if err != nil {
			return fmt.Errorf("seed fixture: %w", err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, `
		INSERT INTO locations (name, address, city, state, country, postal_code, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
		`, loc.Name, loc.Address, loc.City, loc.State, loc.Country, loc.PostalCode,
			loc.Coordinates.Lat, loc.Coordinates.Lon).Scan(&id); err != nil {
			return fmt.Errorf("seed fixture: insert location %q: %w", ls.Key, err)
		}
		locations[ls.Key] = id
	}

	items := make(map[string]int64, len(f.Items))
	for _, is := range f.Items {
		var id int64
		if err := tx.QueryRowContext(ctx, `
		INSERT INTO items (name, weight_lbs, length_in, width_in, height_in)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
		`, is.Name, nullFloat(is.WeightLbs), nullFloat(is.LengthIn), nullFloat(is.WidthIn), nullFloat(is.HeightIn)).Scan(&id); err != nil {
			return fmt.Errorf("seed fixture: insert item %q: %w", is.Key, err)
		}
		items[is.Key] = id
	}

	for i, js := range f.Jobs {
		j, err := js.toDomain()
		if err != nil {
			return fmt.Errorf("seed fixture: %w", err)
		}

		var required sql.NullString
		if j.RequiredSizeClass != nil {
			required = sql.NullString{String: string(*j.RequiredSizeClass), Valid: true}
		}
		var locID, truckID, driverID sql.NullInt64
		if js.Location != "" {
			locID = sql.NullInt64{Int64: locations[js.Location], Valid: true}
		}
		if js.Truck != "" {
			truckID = sql.NullInt64{Int64: trucks[js.Truck], Valid: true}
			driverID = truckDrivers[js.Truck]
		}

		var id int64
		if err := tx.QueryRowContext(ctx, `
		INSERT INTO jobs (title, priority, required_size_class, large_truck_only, location_id, is_completed, assigned_truck_id, assigned_driver_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
		`, j.Title, j.Priority, required, j.LargeTruckOnly, locID, j.IsCompleted, truckID, driverID).Scan(&id); err != nil {
			return fmt.Errorf("seed fixture: insert job #%d: %w", i+1, err)
		}

		for _, k := range js.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_items (job_id, item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
				id, items[k],
			); err != nil {
				return fmt.Errorf("seed fixture: link job #%d item %q: %w", i+1, k, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed fixture: commit tx: %w", err)
	}

	return nil
}
