package repositories

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

// MemoryDispatchStore is an in-process ports.DispatchStore used by tests and
// by local runs without DATABASE_URL. Writes store deep copies and reads
// return deep copies, so callers never alias stored state.
type MemoryDispatchStore struct {
	mu      sync.Mutex
	nextID  int64
	jobs    []domain.Job
	trucks  []domain.Truck
	drivers []domain.Driver
}

func NewMemoryDispatchStore() *MemoryDispatchStore {
	return &MemoryDispatchStore{}
}

func (m *MemoryDispatchStore) id(v int64) int64 {
	if v != 0 {
		if v > m.nextID {
			m.nextID = v
		}
		return v
	}
	m.nextID++
	return m.nextID
}

// AddDriver stores d and returns its id. A zero ID is allocated.
func (m *MemoryDispatchStore) AddDriver(d domain.Driver) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d = cloneDriver(d)
	d.ID = m.id(d.ID)
	m.drivers = append(m.drivers, d)
	return d.ID
}

// AddTruck stores t and returns its id. Only t.Driver.ID is kept as the link.
func (m *MemoryDispatchStore) AddTruck(t domain.Truck) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id(t.ID)
	t.LastKnown = clonePtr(t.LastKnown)
	if t.Driver != nil {
		t.Driver = &domain.Driver{ID: t.Driver.ID}
	}
	m.trucks = append(m.trucks, t)
	return t.ID
}

// AddJob stores j and returns its id.
func (m *MemoryDispatchStore) AddJob(j domain.Job) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	j = cloneJob(j)
	j.ID = m.id(j.ID)
	m.jobs = append(m.jobs, j)
	return j.ID
}

// Job returns a copy of the stored job.
func (m *MemoryDispatchStore) Job(id int64) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j := m.job(id); j != nil {
		return cloneJob(*j), nil
	}
	return domain.Job{}, fmt.Errorf("job %d: %w", id, ports.ErrNotFound)
}

// Truck returns a copy of the stored truck with its driver loaded.
func (m *MemoryDispatchStore) Truck(id int64) (domain.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.truck(id); t != nil {
		return m.loadTruck(*t), nil
	}
	return domain.Truck{}, fmt.Errorf("truck %d: %w", id, ports.ErrNotFound)
}

// Driver returns a copy of the stored driver.
func (m *MemoryDispatchStore) Driver(id int64) (domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.driver(id); d != nil {
		return cloneDriver(*d), nil
	}
	return domain.Driver{}, fmt.Errorf("driver %d: %w", id, ports.ErrNotFound)
}

func (m *MemoryDispatchStore) job(id int64) *domain.Job {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			return &m.jobs[i]
		}
	}
	return nil
}

func (m *MemoryDispatchStore) truck(id int64) *domain.Truck {
	for i := range m.trucks {
		if m.trucks[i].ID == id {
			return &m.trucks[i]
		}
	}
	return nil
}

func (m *MemoryDispatchStore) driver(id int64) *domain.Driver {
	for i := range m.drivers {
		if m.drivers[i].ID == id {
			return &m.drivers[i]
		}
	}
	return nil
}

func (m *MemoryDispatchStore) loadTruck(t domain.Truck) domain.Truck {
	t.LastKnown = clonePtr(t.LastKnown)
	if t.Driver != nil {
		if d := m.driver(t.Driver.ID); d != nil {
			cp := cloneDriver(*d)
			t.Driver = &cp
		} else {
			t.Driver = nil
		}
	}
	return t
}

func byPriorityDesc(a, b domain.Job) int {
	return cmp.Compare(b.Priority, a.Priority)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneJob(j domain.Job) domain.Job {
	j.RequiredSizeClass = clonePtr(j.RequiredSizeClass)
	j.Location = clonePtr(j.Location)
	j.AssignedTruckID = clonePtr(j.AssignedTruckID)
	j.AssignedDriverID = clonePtr(j.AssignedDriverID)
	if j.Items != nil {
		items := make([]domain.Item, len(j.Items))
		for i, it := range j.Items {
			it.WeightLbs = clonePtr(it.WeightLbs)
			it.LengthIn = clonePtr(it.LengthIn)
			it.WidthIn = clonePtr(it.WidthIn)
			it.HeightIn = clonePtr(it.HeightIn)
			items[i] = it
		}
		j.Items = items
	}
	return j
}

func cloneDriver(d domain.Driver) domain.Driver {
	d.TruckID = clonePtr(d.TruckID)
	return d
}

func (m *MemoryDispatchStore) ListUnassignedJobs(_ context.Context) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if !j.IsCompleted && j.AssignedTruckID == nil {
			out = append(out, cloneJob(j))
		}
	}
	slices.SortStableFunc(out, byPriorityDesc)
	return out, nil
}

func (m *MemoryDispatchStore) ListActiveTrucks(_ context.Context) ([]domain.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Truck, 0, len(m.trucks))
	for _, t := range m.trucks {
		if t.IsActive {
			out = append(out, m.loadTruck(t))
		}
	}
	return out, nil
}

func (m *MemoryDispatchStore) openJobs(truckID int64) []domain.Job {
	var out []domain.Job
	for _, j := range m.jobs {
		if j.IsOpen() && *j.AssignedTruckID == truckID {
			out = append(out, cloneJob(j))
		}
	}
	return out
}

func (m *MemoryDispatchStore) CountOpenJobs(_ context.Context, truckID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.openJobs(truckID)), nil
}

func (m *MemoryDispatchStore) ListOpenJobs(_ context.Context, truckID int64) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.openJobs(truckID)
	slices.SortStableFunc(out, byPriorityDesc)
	return out, nil
}

func (m *MemoryDispatchStore) FindAvailableDriver(
	_ context.Context,
	classes []domain.SizeClass,
) (*domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.drivers {
		if d.Status == domain.DriverAvailable && d.TruckID == nil && slices.Contains(classes, d.SizeClass) {
			cp := cloneDriver(d)
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryDispatchStore) PairDriverWithTruck(_ context.Context, driverID, truckID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.driver(driverID)
	if d == nil {
		return fmt.Errorf("pair driver %d: %w", driverID, ports.ErrNotFound)
	}
	t := m.truck(truckID)
	if t == nil {
		return fmt.Errorf("pair truck %d: %w", truckID, ports.ErrNotFound)
	}
	if d.Status != domain.DriverAvailable || d.TruckID != nil || t.Driver != nil {
		return fmt.Errorf("pair driver %d with truck %d: %w", driverID, truckID, ports.ErrConflict)
	}

	tid := truckID
	d.TruckID = &tid
	d.Status = domain.DriverAssigned
	t.Driver = &domain.Driver{ID: driverID}
	t.Status = domain.TruckInTransit
	return nil
}

func (m *MemoryDispatchStore) AssignJob(
	_ context.Context,
	jobID, truckID int64,
	driverID *int64,
	maxOpen int,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := m.job(jobID)
	if j == nil {
		return fmt.Errorf("assign job %d: %w", jobID, ports.ErrNotFound)
	}
	if m.truck(truckID) == nil {
		return fmt.Errorf("assign job %d: truck %d: %w", jobID, truckID, ports.ErrNotFound)
	}
	if j.AssignedTruckID != nil || j.IsCompleted || len(m.openJobs(truckID)) >= maxOpen {
		return fmt.Errorf("assign job %d to truck %d: %w", jobID, truckID, ports.ErrConflict)
	}

	tid := truckID
	j.AssignedTruckID = &tid
	if driverID != nil {
		did := *driverID
		j.AssignedDriverID = &did
	}
	return nil
}

// LoadFixture fills the store from a validated fixture whose locations all
// have positions. Keys are replaced by allocated ids.
func (m *MemoryDispatchStore) LoadFixture(f *Fixture) error {
	drivers := make(map[string]int64, len(f.Drivers))
	for _, ds := range f.Drivers {
		d, err := ds.toDomain()
		if err != nil {
			return err
		}
		drivers[ds.Key] = m.AddDriver(d)
	}

	trucks := make(map[string]int64, len(f.Trucks))
	for _, ts := range f.Trucks {
		t, err := ts.toDomain()
		if err != nil {
			return err
		}
		if ts.Driver != "" {
			t.Driver = &domain.Driver{ID: drivers[ts.Driver]}
		}
		id := m.AddTruck(t)
		trucks[ts.Key] = id

		if ts.Driver != "" {
			m.mu.Lock()
			d := m.driver(drivers[ts.Driver])
			d.TruckID = &id
			d.Status = domain.DriverAssigned
			m.mu.Unlock()
		}
	}

	locations := make(map[string]*domain.Location, len(f.Locations))
	for _, ls := range f.Locations {
		loc, err := ls.toDomain()
		if err != nil {
			return err
		}
		m.mu.Lock()
		loc.ID = m.id(0)
		m.mu.Unlock()
		locations[ls.Key] = loc
	}

	items := make(map[string]domain.Item, len(f.Items))
	for _, is := range f.Items {
		m.mu.Lock()
		id := m.id(0)
		m.mu.Unlock()
		items[is.Key] = is.toDomain(id)
	}

	for _, js := range f.Jobs {
		j, err := js.toDomain()
		if err != nil {
			return err
		}
		j.Location = locations[js.Location]
		for _, k := range js.Items {
			j.Items = append(j.Items, items[k])
		}
		if js.Truck != "" {
			tid := trucks[js.Truck]
			j.AssignedTruckID = &tid
			m.mu.Lock()
			if t := m.truck(tid); t != nil && t.Driver != nil {
				did := t.Driver.ID
				j.AssignedDriverID = &did
			}
			m.mu.Unlock()
		}
		m.AddJob(j)
	}

	return nil
}
