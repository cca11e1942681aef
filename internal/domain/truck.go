package domain

// MaxOpenJobs is the upper bound on assigned-but-incomplete jobs per truck.
const MaxOpenJobs = 3

type TruckStatus string

const (
	TruckAvailable   TruckStatus = "AVAILABLE"
	TruckInTransit   TruckStatus = "IN_TRANSIT"
	TruckMaintenance TruckStatus = "MAINTENANCE"
	TruckOffline     TruckStatus = "OFFLINE"
)

// Truck is a dispatchable vehicle. LastKnown and Driver are optional.
type Truck struct {
	ID           int64
	Name         string
	CapacityCuFt float64
	MaxWeightLbs float64
	SizeClass    SizeClass
	IsActive     bool
	Status       TruckStatus
	LastKnown    *Coordinates
	Driver       *Driver
}

// DriverName returns the assigned driver's name or "Unassigned".
func (t *Truck) DriverName() string {
	if t.Driver == nil || t.Driver.Name == "" {
		return "Unassigned"
	}
	return t.Driver.Name
}

// AttachDriver mirrors a committed driver pairing on the in-memory truck.
func (t *Truck) AttachDriver(d *Driver) {
	t.Driver = d
	t.Status = TruckInTransit
	d.Status = DriverAssigned
	id := t.ID
	d.TruckID = &id
}
