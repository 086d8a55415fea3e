package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDetection converts one FIRMS CSV record into a Detection.
// header and record must be aligned; missing trailing fields are treated
// as empty. Latitude and longitude must parse as floats.
func ParseDetection(source string, header, record []string) (Detection, error) {
	attrs := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(record) {
			attrs[col] = strings.TrimSpace(record[i])
		} else {
			attrs[col] = ""
		}
	}

	lat, err := parseCoordinate(attrs[ColLatitude], 90)
	if err != nil {
		return Detection{}, fmt.Errorf("parse %s: %w", ColLatitude, err)
	}
	lon, err := parseCoordinate(attrs[ColLongitude], 180)
	if err != nil {
		return Detection{}, fmt.Errorf("parse %s: %w", ColLongitude, err)
	}

	return Detection{
		Source:     source,
		Lat:        lat,
		Lon:        lon,
		AcqDate:    attrs[ColAcqDate],
		AcqTime:    attrs[ColAcqTime],
		Columns:    header,
		Attributes: attrs,
	}, nil
}

// MissingColumns returns the required FIRMS columns absent from header.
func MissingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// parseCoordinate parses a decimal degree value and checks |v| <= limit.
func parseCoordinate(s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("value %g out of range", v)
	}
	return v, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
