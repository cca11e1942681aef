package domain

// RouteStop is one job on a truck's planned route.
// Coordinates is nil for jobs without a location; such stops are listed
// but not routed.
type RouteStop struct {
	JobID       int64
	Title       string
	Coordinates *Coordinates
}

// RouteSource tells whether a route summary came from the routing service
// or from the great-circle estimate.
type RouteSource string

const (
	SourceRoutingService RouteSource = "routing_service"
	SourceGreatCircle    RouteSource = "great_circle"
)

// RouteSummary aggregates distance and duration over a waypoint chain.
// Duration and Polyline are only known when the routing service answered.
type RouteSummary struct {
	DistanceKm  float64
	DurationMin *float64
	Polyline    *string
	Path        []Coordinates
	Source      RouteSource
}

// RouteDescriptor is the shareable plan for a single truck.
type RouteDescriptor struct {
	TruckID    int64
	TruckName  string
	DriverName string
	SizeClass  SizeClass
	Status     TruckStatus
	Stops      []RouteStop
	Summary    RouteSummary
	MapURL     string
}
