package models

import "net/url"

// Targeting keys accepted by the placement service.
const (
	TargetFuelType = "fuelType"
	TargetBodyType = "bodyType"
	TargetMake     = "make"
	TargetLocation = "location"
)

// TargetingContext holds the attributes of the surrounding page that the
// embedding page supplies to narrow content selection (e.g. a listing page for
// diesel estates from one brand in one region). It is only ever sent as
// request parameters; it carries no lifecycle of its own.
type TargetingContext struct {
	FuelType string `json:"fuelType,omitempty"`
	BodyType string `json:"bodyType,omitempty"`
	Make     string `json:"make,omitempty"`
	Location string `json:"location,omitempty"`
}

// IsZero reports whether no attribute is set.
func (t *TargetingContext) IsZero() bool {
	return t == nil || (t.FuelType == "" && t.BodyType == "" && t.Make == "" && t.Location == "")
}

// Query encodes the non-empty attributes as URL query parameters.
func (t *TargetingContext) Query() url.Values {
	q := url.Values{}
	if t == nil {
		return q
	}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set(TargetFuelType, t.FuelType)
	set(TargetBodyType, t.BodyType)
	set(TargetMake, t.Make)
	set(TargetLocation, t.Location)
	return q
}

// TargetingFromQuery reads the targeting attributes out of URL query values.
// Unknown keys are ignored.
func TargetingFromQuery(q url.Values) TargetingContext {
	return TargetingContext{
		FuelType: q.Get(TargetFuelType),
		BodyType: q.Get(TargetBodyType),
		Make:     q.Get(TargetMake),
		Location: q.Get(TargetLocation),
	}
}
