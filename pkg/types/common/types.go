package common

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────────────────────
// Identity
// ─────────────────────────────────────────────────────────────────────────────

// ID is a string alias for UUID v4.
type ID string

// Validate checks that the ID is a well-formed UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid ID format: %w", err)
	}
	return nil
}

// NewID generates a new UUID v4.
func NewID() ID {
	return ID(uuid.New().String())
}

// GenerateID generates a unique ID with an optional prefix.
func GenerateID(prefix string) string {
	if prefix == "" {
		return uuid.New().String()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}

// EntityKind names one of the three map entity collections.
type EntityKind string

const (
	KindTracker  EntityKind = "tracker"
	KindFacility EntityKind = "facility"
	KindAlert    EntityKind = "alert"
)

// Kinds lists every entity kind in render order.
var Kinds = []EntityKind{KindFacility, KindTracker, KindAlert}

// ParseEntityKind accepts singular or plural kind names, case-insensitively.
func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tracker", "trackers", "asset", "assets", "kit", "kits":
		return KindTracker, nil
	case "facility", "facilities":
		return KindFacility, nil
	case "alert", "alerts":
		return KindAlert, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// ─────────────────────────────────────────────────────────────────────────────
// Geography
// ─────────────────────────────────────────────────────────────────────────────

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the coordinate lies within WGS84 ranges.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// IsZero reports whether the coordinate is the zero value.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Bounds is a latitude/longitude rectangle.  West may exceed East when the
// box crosses the antimeridian.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Validate checks the latitude ordering and coordinate ranges.  NaN and
// infinite edges are rejected.
func (b Bounds) Validate() error {
	for _, v := range [...]float64{b.South, b.West, b.North, b.East} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounds %v contain a non-finite edge", b)
		}
	}
	if b.South > b.North {
		return fmt.Errorf("south %v is above north %v", b.South, b.North)
	}
	if b.South < -90 || b.North > 90 {
		return fmt.Errorf("latitude range [%v, %v] out of bounds", b.South, b.North)
	}
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return fmt.Errorf("longitude range [%v, %v] out of bounds", b.West, b.East)
	}
	return nil
}

// Contains reports whether c lies inside the rectangle.
func (b Bounds) Contains(c Coordinate) bool {
	if c.Lat < b.South || c.Lat > b.North {
		return false
	}
	if b.West <= b.East {
		return c.Lng >= b.West && c.Lng <= b.East
	}
	return c.Lng >= b.West || c.Lng <= b.East
}

// World covers the full Web Mercator extent.
var World = Bounds{South: -85.05112878, West: -180, North: 85.05112878, East: 180}

// ─────────────────────────────────────────────────────────────────────────────
// Time
// ─────────────────────────────────────────────────────────────────────────────

// Clock abstracts time so expiry and overdue rules can be tested.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer used by Clock consumers.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// ─────────────────────────────────────────────────────────────────────────────
// API envelopes
// ─────────────────────────────────────────────────────────────────────────────

// ErrorDetail provides structured error information for API responses.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIResponse is the generic wrapper for all API responses.
type APIResponse[T any] struct {
	Success   bool         `json:"success"`
	Data      T            `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewSuccessResponse creates a successful APIResponse.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorResponse creates an error APIResponse.
func NewErrorResponse(code string, message string) APIResponse[any] {
	return APIResponse[any]{
		Success:   false,
		Error:     &ErrorDetail{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	}
}

// HealthStatus indicates the health of a component or service.
type HealthStatus string

const (
	HealthUp       HealthStatus = "up"
	HealthDown     HealthStatus = "down"
	HealthDegraded HealthStatus = "degraded"
)

// ComponentHealth provides health information for a specific component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// ContextKey is the type of request-scoped context keys.
type ContextKey string

const (
	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeySessionID is the context key for the map/chat session ID.
	ContextKeySessionID ContextKey = "session_id"
)

//Personal.AI order the ending
