package domain

type DriverStatus string

const (
	DriverAvailable DriverStatus = "AVAILABLE"
	DriverAssigned  DriverStatus = "ASSIGNED"
	DriverOffDuty   DriverStatus = "OFF_DUTY"
)

// Driver operates at most one truck. SizeClass is the driver's affinity.
type Driver struct {
	ID        int64
	Name      string
	Status    DriverStatus
	SizeClass SizeClass
	TruckID   *int64
}
