package domain

// Location is a job site. Address fields are informational only.
type Location struct {
	ID          int64
	Name        string
	Address     string
	City        string
	State       string
	Country     string
	PostalCode  string
	Coordinates Coordinates
}

// Job is a delivery or pickup awaiting (or holding) a truck.
//
// RequiredSizeClass is optional; nil means any truck class qualifies.
// An unassigned job has both AssignedTruckID and AssignedDriverID nil.
type Job struct {
	ID                int64
	Title             string
	Priority          int
	RequiredSizeClass *SizeClass
	LargeTruckOnly    bool
	Location          *Location
	Items             []Item
	IsCompleted       bool
	AssignedTruckID   *int64
	AssignedDriverID  *int64
}

// Position returns the job's coordinates, if it has a location.
func (j *Job) Position() (Coordinates, bool) {
	if j.Location == nil {
		return Coordinates{}, false
	}
	return j.Location.Coordinates, true
}

// IsOpen reports whether the job is assigned to a truck but not completed.
func (j *Job) IsOpen() bool {
	return j.AssignedTruckID != nil && !j.IsCompleted
}
