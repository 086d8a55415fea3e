package domain

import "errors"

// Run-level and unit-level failure kinds. Callers wrap these with context
// and test for them with errors.Is.
var (
	// ErrResolution means the place name could not be turned into a boundary.
	ErrResolution = errors.New("location could not be resolved to a boundary")

	// ErrInvalidDate means a date string is not strict YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRange means the start date is after the end date.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrFetchRetryExhausted means a FIRMS table could not be fetched within
	// the configured attempts. Non-fatal: the date is skipped.
	ErrFetchRetryExhausted = errors.New("fetch retries exhausted")

	// ErrNoData means no usable detections were found for the whole run.
	ErrNoData = errors.New("no FIRMS data found for this location")

	// ErrTimestampParse means acq_date/acq_time did not form a valid instant.
	ErrTimestampParse = errors.New("timestamp parse failed")

	// ErrNoFeatures means the map-feature provider had no data for a box.
	// Non-fatal: the box is skipped.
	ErrNoFeatures = errors.New("no map features in bounding box")

	// ErrNoMatches means no bounding box produced any event-feature match.
	ErrNoMatches = errors.New("no map features matched any fire event")

	// ErrDirectory means the output directory could not be created.
	ErrDirectory = errors.New("output directory unavailable")

	// ErrPersistence means output files could not be written.
	ErrPersistence = errors.New("failed to save output")
)
