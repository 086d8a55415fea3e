// Package domain models NASA FIRMS fire detections and the OpenStreetMap
// features they are cross-referenced against.
//
// # Data Source
//
// Detections come from the FIRMS area API, one CSV per sensor per day:
//
//	https://firms.modaps.eosdis.nasa.gov/api/area/csv/<MAP_KEY>/<SENSOR>/world/1/<YYYY-MM-DD>
//
// Four sensors are requested per day, in this order: MODIS_SP,
// VIIRS_NOAA20_NRT, VIIRS_NOAA21_NRT, VIIRS_SNPP_SP. MODIS and VIIRS rows
// share latitude, longitude, acq_date and acq_time; the remaining columns
// (brightness vs bright_ti4, bright_t31 vs bright_ti5, ...) differ by family
// and are carried through untouched in [Detection.Attributes].
//
// # FIRMS Data Conventions
//
// Time format:
//
//	acq_date is "YYYY-MM-DD", acq_time is HHMM in UTC without leading zeros,
//	e.g. "5" = 00:05, "936" = 09:36. acq_time is zero-padded to four digits
//	before being combined with acq_date into captured_at.
//
// Coordinates:
//
//	WGS-84 decimal degrees. Geometries are built as (longitude, latitude),
//	longitude first, matching orb.Point and GeoJSON ordering.
//
// # Identifiers
//
// Event IDs are sequential per run ("EVENT_0001", ...) in fetch order:
// date-major, then sensor-major within a date. Grid cells are numbered in
// first-seen order ("bbox_00000", ...). Neither is stable across runs with
// different inputs; both are stable for identical inputs.
//
// # Grid
//
// Cells use the constant approximation 1 km = 1/111 degree for both axes,
// so cells are wider than nominal in longitude away from the equator.
//
// # OSM Features
//
// Only "way" elements take part in the join. Points and lines are buffered
// (25 m by default, in EPSG:3857) into a working polygon; the geometry
// written to output is always the original.
package domain
