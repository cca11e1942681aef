package dto

import "truck-dispatch-service/internal/domain"

type RoutesRequest struct {
	DecodePolyline bool `json:"decodePolyline"`
}

type CoordinateResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type StopResponse struct {
	JobID       int64               `json:"jobId"`
	Title       string              `json:"title"`
	Coordinates *CoordinateResponse `json:"coordinates"`
}

type RouteSummaryResponse struct {
	DistanceKm  float64              `json:"distanceKm"`
	DurationMin *float64             `json:"durationMin"`
	Polyline    *string              `json:"polyline"`
	DecodedPath []CoordinateResponse `json:"decodedPath,omitempty"`
	Source      string               `json:"source"`
}

type RouteResponse struct {
	TruckID    int64                `json:"truckId"`
	TruckName  string               `json:"truckName"`
	DriverName string               `json:"driverName"`
	SizeClass  string               `json:"sizeClass"`
	Status     string               `json:"status"`
	Stops      []StopResponse       `json:"stops"`
	Route      RouteSummaryResponse `json:"route"`
	MapURL     string               `json:"mapUrl"`
}

type RoutesResponse struct {
	Success     bool            `json:"success"`
	TotalTrucks int             `json:"totalTrucks"`
	Routes      []RouteResponse `json:"routes"`
}

func NewCoordinateResponse(c domain.Coordinates) CoordinateResponse {
	return CoordinateResponse{Lat: c.Lat, Lng: c.Lon}
}

// NewRouteResponse maps a planned route to its wire shape. The HTTP handler
// and the dbtool CLI both print this shape.
func NewRouteResponse(rd domain.RouteDescriptor) RouteResponse {
	stops := make([]StopResponse, 0, len(rd.Stops))
	for _, s := range rd.Stops {
		stop := StopResponse{JobID: s.JobID, Title: s.Title}
		if s.Coordinates != nil {
			c := NewCoordinateResponse(*s.Coordinates)
			stop.Coordinates = &c
		}
		stops = append(stops, stop)
	}

	var path []CoordinateResponse
	for _, p := range rd.Summary.Path {
		path = append(path, NewCoordinateResponse(p))
	}

	return RouteResponse{
		TruckID:    rd.TruckID,
		TruckName:  rd.TruckName,
		DriverName: rd.DriverName,
		SizeClass:  string(rd.SizeClass),
		Status:     string(rd.Status),
		Stops:      stops,
		Route: RouteSummaryResponse{
			DistanceKm:  rd.Summary.DistanceKm,
			DurationMin: rd.Summary.DurationMin,
			Polyline:    rd.Summary.Polyline,
			DecodedPath: path,
			Source:      string(rd.Summary.Source),
		},
		MapURL: rd.MapURL,
	}
}

// NewRouteResponses never returns nil, so an empty plan encodes as [].
func NewRouteResponses(routes []domain.RouteDescriptor) []RouteResponse {
	out := make([]RouteResponse, 0, len(routes))
	for _, rd := range routes {
		out = append(out, NewRouteResponse(rd))
	}
	return out
}
