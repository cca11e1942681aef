package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/ports"
)

// Postgres-backed implementation of the DispatchStore port.
type PostgresDispatchStore struct{ DB *sql.DB }

func NewPostgresDispatchStore(db *sql.DB) *PostgresDispatchStore {
	return &PostgresDispatchStore{DB: db}
}

const jobColumns = `
	j.id, j.title, j.priority, j.required_size_class, j.large_truck_only,
	j.is_completed, j.assigned_truck_id, j.assigned_driver_id,
	l.id, l.name, l.address, l.city, l.state, l.country, l.postal_code, l.lat, l.lng
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(rs rowScanner) (domain.Job, error) {
	var (
		j                      domain.Job
		required               sql.NullString
		truckID, driverID      sql.NullInt64
		locID                  sql.NullInt64
		locName, addr, city    sql.NullString
		state, country, postal sql.NullString
		lat, lng               sql.NullFloat64
	)
	if err := rs.Scan(
		&j.ID, &j.Title, &j.Priority, &required, &j.LargeTruckOnly,
		&j.IsCompleted, &truckID, &driverID,
		&locID, &locName, &addr, &city, &state, &country, &postal, &lat, &lng,
	); err != nil {
		return domain.Job{}, err
	}

	if required.Valid {
		c, err := domain.ParseSizeClass(required.String)
		if err != nil {
			return domain.Job{}, fmt.Errorf("job %d: %w", j.ID, err)
		}
		j.RequiredSizeClass = &c
	}
	if truckID.Valid {
		v := truckID.Int64
		j.AssignedTruckID = &v
	}
	if driverID.Valid {
		v := driverID.Int64
		j.AssignedDriverID = &v
	}
	if locID.Valid {
		j.Location = &domain.Location{
			ID:          locID.Int64,
			Name:        locName.String,
			Address:     addr.String,
			City:        city.String,
			State:       state.String,
			Country:     country.String,
			PostalCode:  postal.String,
			Coordinates: domain.Coordinates{Lat: lat.Float64, Lon: lng.Float64},
		}
	}
	return j, nil
}

func (s *PostgresDispatchStore) queryJobs(ctx context.Context, where string, args ...any) ([]domain.Job, error) {
	q := `SELECT ` + jobColumns + `
	FROM jobs j
	LEFT JOIN locations l ON l.id = j.location_id
	WHERE ` + where + `
	ORDER BY j.priority DESC, j.id;`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs table: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0, 32)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job row iteration: %w", err)
	}

	return jobs, nil
}

// loadItems attaches items to jobs with one query.
func (s *PostgresDispatchStore) loadItems(ctx context.Context, jobs []domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(jobs))
	index := make(map[int64]int, len(jobs))
	for i, j := range jobs {
		ids = append(ids, j.ID)
		index[j.ID] = i
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT ji.job_id, i.id, i.name, i.weight_lbs, i.length_in, i.width_in, i.height_in
	FROM job_items ji
	JOIN items i ON i.id = ji.item_id
	WHERE ji.job_id = ANY($1::bigint[])
	ORDER BY ji.job_id, i.id;
	`, ids)
	if err != nil {
		return fmt.Errorf("query job items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobID int64
		var it domain.Item
		var w, l, wd, h sql.NullFloat64
		if err := rows.Scan(&jobID, &it.ID, &it.Name, &w, &l, &wd, &h); err != nil {
			return fmt.Errorf("scan job item row: %w", err)
		}
		it.WeightLbs, it.LengthIn, it.WidthIn, it.HeightIn = floatPtr(w), floatPtr(l), floatPtr(wd), floatPtr(h)

		if i, ok := index[jobID]; ok {
			jobs[i].Items = append(jobs[i].Items, it)
		}
	}
	return rows.Err()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *PostgresDispatchStore) ListUnassignedJobs(ctx context.Context) (_ []domain.Job, err error) {
	defer obs.Time(ctx, "store.ListUnassignedJobs")(&err)

	jobs, err := s.queryJobs(ctx, `j.assigned_truck_id IS NULL AND NOT j.is_completed`)
	if err != nil {
		return nil, fmt.Errorf("list unassigned jobs: %w", err)
	}
	if err := s.loadItems(ctx, jobs); err != nil {
		return nil, fmt.Errorf("list unassigned jobs: %w", err)
	}
	return jobs, nil
}

func (s *PostgresDispatchStore) ListOpenJobs(ctx context.Context, truckID int64) (_ []domain.Job, err error) {
	defer obs.Time(ctx, "store.ListOpenJobs")(&err)

	jobs, err := s.queryJobs(ctx, `j.assigned_truck_id = $1 AND NOT j.is_completed`, truckID)
	if err != nil {
		return nil, fmt.Errorf("list open jobs truck=%d: %w", truckID, err)
	}
	return jobs, nil
}

func (s *PostgresDispatchStore) ListActiveTrucks(ctx context.Context) (_ []domain.Truck, err error) {
	defer obs.Time(ctx, "store.ListActiveTrucks")(&err)

	rows, err := s.DB.QueryContext(ctx, `
	SELECT t.id, t.name, t.capacity_cu_ft, t.max_weight_lbs, t.size_class, t.is_active, t.status,
		t.last_lat, t.last_lng,
		d.id, d.name, d.status, d.size_class
	FROM trucks t
	LEFT JOIN drivers d ON d.id = t.driver_id
	WHERE t.is_active
	ORDER BY t.id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list active trucks: query trucks table: %w", err)
	}
	defer rows.Close()

	trucks := make([]domain.Truck, 0, 16)
	for rows.Next() {
		var (
			t                          domain.Truck
			class, status              string
			lat, lng                   sql.NullFloat64
			driverID                   sql.NullInt64
			driverName, dStatus, dSize sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.Name, &t.CapacityCuFt, &t.MaxWeightLbs, &class, &t.IsActive, &status,
			&lat, &lng,
			&driverID, &driverName, &dStatus, &dSize,
		); err != nil {
			return nil, fmt.Errorf("list active trucks: scan row: %w", err)
		}

		// Class is kept raw so the scorer can report a malformed truck
		// instead of failing the whole listing.
		t.SizeClass = domain.SizeClass(class)
		t.Status = domain.TruckStatus(status)
		if lat.Valid && lng.Valid {
			t.LastKnown = &domain.Coordinates{Lat: lat.Float64, Lon: lng.Float64}
		}
		if driverID.Valid {
			id := t.ID
			t.Driver = &domain.Driver{
				ID:        driverID.Int64,
				Name:      driverName.String,
				Status:    domain.DriverStatus(dStatus.String),
				SizeClass: domain.SizeClass(dSize.String),
				TruckID:   &id,
			}
		}
		trucks = append(trucks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active trucks: row iteration: %w", err)
	}

	return trucks, nil
}

func (s *PostgresDispatchStore) CountOpenJobs(ctx context.Context, truckID int64) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM jobs WHERE assigned_truck_id = $1 AND NOT is_completed;`,
		truckID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open jobs truck=%d: %w", truckID, err)
	}
	return n, nil
}

func (s *PostgresDispatchStore) FindAvailableDriver(
	ctx context.Context,
	classes []domain.SizeClass,
) (*domain.Driver, error) {
	if len(classes) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, string(c))
	}

	var d domain.Driver
	var status, class string
	err := s.DB.QueryRowContext(ctx, `
	SELECT id, name, status, size_class
	FROM drivers
	WHERE status = 'AVAILABLE'
		AND truck_id IS NULL
		AND size_class = ANY($1::text[])
	ORDER BY id
	LIMIT 1;
	`, names).Scan(&d.ID, &d.Name, &status, &class)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find available driver: %w", err)
	}
	d.Status = domain.DriverStatus(status)
	d.SizeClass = domain.SizeClass(class)
	return &d, nil
}

func (s *PostgresDispatchStore) PairDriverWithTruck(ctx context.Context, driverID, truckID int64) (err error) {
	defer obs.Time(ctx, "store.PairDriverWithTruck")(&err)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pair driver: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE drivers SET status = 'ASSIGNED', truck_id = $2
	WHERE id = $1 AND status = 'AVAILABLE' AND truck_id IS NULL;
	`, driverID, truckID)
	if err != nil {
		return fmt.Errorf("pair driver %d: update driver: %w", driverID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("pair driver %d: %w", driverID, ports.ErrConflict)
	}

	res, err = tx.ExecContext(ctx, `
	UPDATE trucks SET driver_id = $1, status = 'IN_TRANSIT'
	WHERE id = $2 AND driver_id IS NULL;
	`, driverID, truckID)
	if err != nil {
		return fmt.Errorf("pair truck %d: update truck: %w", truckID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("pair truck %d: %w", truckID, ports.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pair driver commit: %w", err)
	}
	return nil
}

// AssignJob locks the truck row, then writes the job only if it is still free
// and the truck holds fewer than maxOpen open jobs. Concurrent assignments to
// the same truck serialize on the row lock.
func (s *PostgresDispatchStore) AssignJob(
	ctx context.Context,
	jobID, truckID int64,
	driverID *int64,
	maxOpen int,
) (err error) {
	defer obs.Time(ctx, "store.AssignJob")(&err)

	var driver sql.NullInt64
	if driverID != nil {
		driver = sql.NullInt64{Int64: *driverID, Valid: true}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("assign job: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM trucks WHERE id = $1 FOR UPDATE;`, truckID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("assign job %d: truck %d: %w", jobID, truckID, ports.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("assign job %d: lock truck %d: %w", jobID, truckID, err)
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE jobs SET assigned_truck_id = $2, assigned_driver_id = $3
	WHERE id = $1
		AND assigned_truck_id IS NULL
		AND NOT is_completed
		AND (SELECT count(*) FROM jobs o WHERE o.assigned_truck_id = $2 AND NOT o.is_completed) < $4;
	`, jobID, truckID, driver, maxOpen)
	if err != nil {
		return fmt.Errorf("assign job %d: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("assign job %d to truck %d: %w", jobID, truckID, ports.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("assign job %d commit: %w", jobID, err)
	}
	return nil
}
