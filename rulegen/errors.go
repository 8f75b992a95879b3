package rulegen

import "errors"

// Sentinel errors. Input problems are fatal at startup; everything that can
// happen mid-run is recovered per row or per stage instead.
var (
	// ErrMissingColumn means the input table lacks a required column.
	ErrMissingColumn = errors.New("rulegen: required column missing")

	// ErrEmptyInput means the input table has a header but no rows.
	ErrEmptyInput = errors.New("rulegen: input table has no rows")

	// ErrNoGenerator means the service was built without a text generator.
	ErrNoGenerator = errors.New("rulegen: text generator not configured")
)
