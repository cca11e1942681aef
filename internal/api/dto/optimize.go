package dto

type AssignmentResponse struct {
	JobID      int64   `json:"jobId"`
	Title      string  `json:"title"`
	TruckID    int64   `json:"truckId"`
	TruckName  string  `json:"truckName"`
	DriverName string  `json:"driverName"`
	Score      float64 `json:"score"`
}

type SkipResponse struct {
	JobID   int64  `json:"jobId"`
	TruckID int64  `json:"truckId,omitempty"`
	Reason  string `json:"reason"`
}

type OptimizeResponse struct {
	Success     bool                 `json:"success"`
	TotalJobs   int                  `json:"totalJobs"`
	Assigned    int                  `json:"assigned"`
	Assignments []AssignmentResponse `json:"assignments"`
	Skipped     []SkipResponse       `json:"skipped"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
