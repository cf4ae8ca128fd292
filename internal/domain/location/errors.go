package location

import "errors"

var (
	ErrLocationNotFound      = errors.New("organization location not found")
	ErrNoLocationsConfigured = errors.New("no organization location is configured")
)
