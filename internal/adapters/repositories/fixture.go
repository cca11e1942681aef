package repositories

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

// Fixture is the YAML seed format. Entities reference each other by Key.
type Fixture struct {
	Drivers   []DriverSeed   `yaml:"drivers"`
	Trucks    []TruckSeed    `yaml:"trucks"`
	Locations []LocationSeed `yaml:"locations"`
	Items     []ItemSeed     `yaml:"items"`
	Jobs      []JobSeed      `yaml:"jobs"`
}

type DriverSeed struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	LicenseNo string `yaml:"license_no"`
	Phone     string `yaml:"phone"`
	SizeClass string `yaml:"size_class"`
	Status    string `yaml:"status"`
}

type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

type TruckSeed struct {
	Key          string  `yaml:"key"`
	Name         string  `yaml:"name"`
	CapacityCuFt float64 `yaml:"capacity_cu_ft"`
	MaxWeightLbs float64 `yaml:"max_weight_lbs"`
	SizeClass    string  `yaml:"size_class"`
	Status       string  `yaml:"status"`
	Inactive     bool    `yaml:"inactive"`
	LastKnown    *LatLng `yaml:"last_known"`
	Driver       string  `yaml:"driver"`
}

type LocationSeed struct {
	Key        string  `yaml:"key"`
	Name       string  `yaml:"name"`
	Address    string  `yaml:"address"`
	City       string  `yaml:"city"`
	State      string  `yaml:"state"`
	Country    string  `yaml:"country"`
	PostalCode string  `yaml:"postal_code"`
	Position   *LatLng `yaml:"position"`
}

type ItemSeed struct {
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	WeightLbs *float64 `yaml:"weight_lbs"`
	LengthIn  *float64 `yaml:"length_in"`
	WidthIn   *float64 `yaml:"width_in"`
	HeightIn  *float64 `yaml:"height_in"`
}

type JobSeed struct {
	Title             string   `yaml:"title"`
	Priority          *int     `yaml:"priority"`
	RequiredSizeClass string   `yaml:"required_size_class"`
	LargeTruckOnly    bool     `yaml:"large_truck_only"`
	Location          string   `yaml:"location"`
	Items             []string `yaml:"items"`
	Truck             string   `yaml:"truck"`
	Completed         bool     `yaml:"completed"`
}

// LoadFixture reads and validates a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture: read %q: %w", path, err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes and validates fixture YAML.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("load fixture: parse yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func checkSizeClass(where, s string, optional bool) error {
	if s == "" && optional {
		return nil
	}
	if _, err := domain.ParseSizeClass(s); err != nil {
		return fmt.Errorf("fixture: %s: %w", where, err)
	}
	return nil
}

func uniqueKeys(kind string, keys []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(keys))
	for i, k := range keys {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("fixture: %s #%d: key must not be empty", kind, i+1)
		}
		if _, dup := set[k]; dup {
			return nil, fmt.Errorf("fixture: %s: duplicate key %q", kind, k)
		}
		set[k] = struct{}{}
	}
	return set, nil
}

// Validate checks keys, references and enumerations.
func (f *Fixture) Validate() error {
	driverKeys := make([]string, 0, len(f.Drivers))
	for i, d := range f.Drivers {
		driverKeys = append(driverKeys, d.Key)
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("fixture: driver #%d: name must not be empty", i+1)
		}
		if err := checkSizeClass(fmt.Sprintf("driver %q", d.Key), d.SizeClass, true); err != nil {
			return err
		}
		if _, err := driverStatus(d.Status); err != nil {
			return fmt.Errorf("fixture: driver %q: %w", d.Key, err)
		}
	}
	drivers, err := uniqueKeys("drivers", driverKeys)
	if err != nil {
		return err
	}

	truckKeys := make([]string, 0, len(f.Trucks))
	pairedDrivers := map[string]string{}
	for i, t := range f.Trucks {
		truckKeys = append(truckKeys, t.Key)
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("fixture: truck #%d: name must not be empty", i+1)
		}
		if t.CapacityCuFt < 0 || t.MaxWeightLbs < 0 {
			return fmt.Errorf("fixture: truck %q: capacity must not be negative", t.Key)
		}
		if err := checkSizeClass(fmt.Sprintf("truck %q", t.Key), t.SizeClass, false); err != nil {
			return err
		}
		if _, err := truckStatus(t.Status); err != nil {
			return fmt.Errorf("fixture: truck %q: %w", t.Key, err)
		}
		if t.Driver != "" {
			if _, ok := drivers[t.Driver]; !ok {
				return fmt.Errorf("fixture: truck %q: unknown driver %q", t.Key, t.Driver)
			}
			if other, taken := pairedDrivers[t.Driver]; taken {
				return fmt.Errorf("fixture: driver %q paired with both %q and %q", t.Driver, other, t.Key)
			}
			pairedDrivers[t.Driver] = t.Key
		}
	}
	trucks, err := uniqueKeys("trucks", truckKeys)
	if err != nil {
		return err
	}

	locKeys := make([]string, 0, len(f.Locations))
	for _, l := range f.Locations {
		locKeys = append(locKeys, l.Key)
		if l.Position == nil && strings.TrimSpace(l.Address) == "" {
			return fmt.Errorf("fixture: location %q: needs a position or an address", l.Key)
		}
		if l.Position != nil {
			c := domain.Coordinates{Lat: l.Position.Lat, Lon: l.Position.Lng}
			if !c.Valid() {
				return fmt.Errorf("fixture: location %q: invalid position", l.Key)
			}
		}
	}
	locations, err := uniqueKeys("locations", locKeys)
	if err != nil {
		return err
	}

	itemKeys := make([]string, 0, len(f.Items))
	for _, it := range f.Items {
		itemKeys = append(itemKeys, it.Key)
	}
	items, err := uniqueKeys("items", itemKeys)
	if err != nil {
		return err
	}

	for i, j := range f.Jobs {
		where := fmt.Sprintf("job #%d (%q)", i+1, j.Title)
		if strings.TrimSpace(j.Title) == "" {
			return fmt.Errorf("fixture: job #%d: title must not be empty", i+1)
		}
		if err := checkSizeClass(where, j.RequiredSizeClass, true); err != nil {
			return err
		}
		if j.Location != "" {
			if _, ok := locations[j.Location]; !ok {
				return fmt.Errorf("fixture: %s: unknown location %q", where, j.Location)
			}
		}
		if j.Truck != "" {
			if _, ok := trucks[j.Truck]; !ok {
				return fmt.Errorf("fixture: %s: unknown truck %q", where, j.Truck)
			}
		}
		for _, k := range j.Items {
			if _, ok := items[k]; !ok {
				return fmt.Errorf("fixture: %s: unknown item %q", where, k)
			}
		}
	}

	return nil
}

// ResolvePositions geocodes locations that have an address but no position.
// A nil geocoder leaves them unresolved, which is an error.
func (f *Fixture) ResolvePositions(ctx context.Context, geocoder ports.Geocoder) error {
	for i := range f.Locations {
		l := &f.Locations[i]
		if l.Position != nil {
			continue
		}
		if geocoder == nil {
			return fmt.Errorf("fixture: location %q has no position and no geocoder is configured", l.Key)
		}

		c, err := geocoder.Geocode(ctx, fullAddress(*l))
		if err != nil {
			return fmt.Errorf("fixture: geocode location %q: %w", l.Key, err)
		}
		l.Position = &LatLng{Lat: c.Lat, Lng: c.Lon}
	}
	return nil
}

func fullAddress(l LocationSeed) string {
	parts := []string{l.Address, l.City, l.State, l.PostalCode, l.Country}
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func jobPriority(j JobSeed) int {
	if j.Priority == nil {
		return 1
	}
	return *j.Priority
}

func truckStatus(s string) (domain.TruckStatus, error) {
	if s == "" {
		return domain.TruckAvailable, nil
	}
	st := domain.TruckStatus(strings.ToUpper(s))
	switch st {
	case domain.TruckAvailable, domain.TruckInTransit, domain.TruckMaintenance, domain.TruckOffline:
		return st, nil
	}
	return "", fmt.Errorf("unknown truck status %q", s)
}

func driverStatus(s string) (domain.DriverStatus, error) {
	if s == "" {
		return domain.DriverAvailable, nil
	}
	st := domain.DriverStatus(strings.ToUpper(s))
	switch st {
	case domain.DriverAvailable, domain.DriverAssigned, domain.DriverOffDuty:
		return st, nil
	}
	return "", fmt.Errorf("unknown driver status %q", s)
}

func (d DriverSeed) toDomain() (domain.Driver, error) {
	class := domain.SizeMedium
	if d.SizeClass != "" {
		c, err := domain.ParseSizeClass(d.SizeClass)
		if err != nil {
			return domain.Driver{}, fmt.Errorf("driver %q: %w", d.Key, err)
		}
		class = c
	}
	st, err := driverStatus(d.Status)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("driver %q: %w", d.Key, err)
	}
	return domain.Driver{Name: d.Name, Status: st, SizeClass: class}, nil
}

func (t TruckSeed) toDomain() (domain.Truck, error) {
	class, err := domain.ParseSizeClass(t.SizeClass)
	if err != nil {
		return domain.Truck{}, fmt.Errorf("truck %q: %w", t.Key, err)
	}
	st, err := truckStatus(t.Status)
	if err != nil {
		return domain.Truck{}, fmt.Errorf("truck %q: %w", t.Key, err)
	}

	out := domain.Truck{
		Name:         t.Name,
		CapacityCuFt: t.CapacityCuFt,
		MaxWeightLbs: t.MaxWeightLbs,
		SizeClass:    class,
		IsActive:     !t.Inactive,
		Status:       st,
	}
	if t.LastKnown != nil {
		out.LastKnown = &domain.Coordinates{Lat: t.LastKnown.Lat, Lon: t.LastKnown.Lng}
	}
	return out, nil
}

func (l LocationSeed) toDomain() (*domain.Location, error) {
	if l.Position == nil {
		return nil, fmt.Errorf("location %q: position unresolved", l.Key)
	}
	return &domain.Location{
		Name:        l.Name,
		Address:     l.Address,
		City:        l.City,
		State:       l.State,
		Country:     l.Country,
		PostalCode:  l.PostalCode,
		Coordinates: domain.Coordinates{Lat: l.Position.Lat, Lon: l.Position.Lng},
	}, nil
}

func (it ItemSeed) toDomain(id int64) domain.Item {
	return domain.Item{
		ID:        id,
		Name:      it.Name,
		WeightLbs: it.WeightLbs,
		LengthIn:  it.LengthIn,
		WidthIn:   it.WidthIn,
		HeightIn:  it.HeightIn,
	}
}

func (j JobSeed) toDomain() (domain.Job, error) {
	out := domain.Job{
		Title:          j.Title,
		Priority:       jobPriority(j),
		LargeTruckOnly: j.LargeTruckOnly,
		IsCompleted:    j.Completed,
	}
	if j.RequiredSizeClass != "" {
		c, err := domain.ParseSizeClass(j.RequiredSizeClass)
		if err != nil {
			return domain.Job{}, fmt.Errorf("job %q: %w", j.Title, err)
		}
		out.RequiredSizeClass = &c
	}
	return out, nil
}
