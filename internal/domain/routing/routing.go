// Package routing describes road routes between two points as returned by an
// external routing service.
package routing

import (
	"context"
	"fmt"

	"github.com/logtower/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProfileDrivingCar is the routing profile used for CT-e routes
const ProfileDrivingCar = "driving-car"

// Coordinate is a WGS84 point
type Coordinate struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

// LonLat returns the point in the longitude, latitude order routing services expect
func (c Coordinate) LonLat() [2]float64 {
	return [2]float64{c.Longitude, c.Latitude}
}

// Validate checks the coordinate ranges
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return shared.NewDomainError("INVALID_LATITUDE", fmt.Sprintf("Latitude out of range: %v", c.Latitude))
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return shared.NewDomainError("INVALID_LONGITUDE", fmt.Sprintf("Longitude out of range: %v", c.Longitude))
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Route is the summary of a computed route
type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Kilometers returns the distance in km rounded to two places
func (r Route) Kilometers() decimal.Decimal {
	return decimal.NewFromFloat(r.DistanceMeters).Div(decimal.NewFromInt(1000)).Round(2)
}

// Minutes returns the duration in minutes rounded to two places
func (r Route) Minutes() decimal.Decimal {
	return decimal.NewFromFloat(r.DurationSeconds).Div(decimal.NewFromInt(60)).Round(2)
}

// Router computes routes between two coordinates
type Router interface {
	Route(ctx context.Context, origin, destination Coordinate) (Route, error)
}

// RouterFunc adapts a function to Router
type RouterFunc func(ctx context.Context, origin, destination Coordinate) (Route, error)

// Route calls f
func (f RouterFunc) Route(ctx context.Context, origin, destination Coordinate) (Route, error) {
	return f(ctx, origin, destination)
}

// Cache stores computed routes between coordinate pairs
type Cache interface {
	// Get returns the cached route and whether it was found
	Get(ctx context.Context, key string) (Route, bool, error)
	// Set stores a route
	Set(ctx context.Context, key string, route Route) error
}

// CacheKey identifies a route by profile and both endpoints rounded to six
// decimals (about 10 cm)
func CacheKey(profile string, origin, destination Coordinate) string {
	return profile + "|" + origin.String() + "|" + destination.String()
}
