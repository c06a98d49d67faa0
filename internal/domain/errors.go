package domain

import "errors"

// Failure classes of the analysis pipeline. Handlers map these onto HTTP
// status codes; everything else is treated as a provider error.
var (
	// ErrInvalidInput covers empty or malformed user input. It never
	// reaches a provider.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLocationNotFound means geocoding produced no match. The session
	// aborts; there is no automatic retry.
	ErrLocationNotFound = errors.New("location not found")

	// ErrNoRouteFound means the routing provider returned zero candidates.
	ErrNoRouteFound = errors.New("no route found")

	// ErrSuperseded means a newer session displaced this one mid-flight.
	// Not user-visible as an error; its results are silently discarded.
	ErrSuperseded = errors.New("analysis superseded")

	// ErrMissingLocation rejects a report submission with no resolved
	// location before any network call is made.
	ErrMissingLocation = errors.New("report location is required")
)
