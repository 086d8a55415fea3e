package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CapturedAtLayout combines acq_date and a zero-padded acq_time.
const CapturedAtLayout = "2006-01-02 1504"

// Sequence hands out event numbers for a single run, starting at 1.
type Sequence struct {
	next int
}

// NewSequence returns a sequence whose first value is 1.
func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

// Next returns the next event ID, e.g. "EVENT_0001". Numbers wider than
// four digits are printed in full.
func (s *Sequence) Next() string {
	if s.next < 1 {
		s.next = 1
	}
	id := fmt.Sprintf("EVENT_%04d", s.next)
	s.next++
	return id
}

// AssignIdentities stamps each detection with the next sequence ID and its
// parsed capture time. Input order is preserved. A row whose timestamp does
// not parse fails the whole call.
func AssignIdentities(rows []Detection, seq *Sequence) ([]FireEvent, error) {
	events := make([]FireEvent, 0, len(rows))
	for _, d := range rows {
		id := seq.Next()
		acqTime := PadAcqTime(d.AcqTime)
		capturedAt, err := ParseCapturedAt(d.AcqDate, acqTime)
		if err != nil {
			return nil, fmt.Errorf("event %s (%s): %w", id, d.Source, err)
		}

		attrs := make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			attrs[k] = v
		}
		attrs[ColAcqTime] = acqTime

		events = append(events, FireEvent{
			ID:         id,
			Lat:        d.Lat,
			Lon:        d.Lon,
			CapturedAt: capturedAt,
			Source:     d.Source,
			AcqDate:    d.AcqDate,
			AcqTime:    acqTime,
			Columns:    d.Columns,
			Attributes: attrs,
		})
	}
	return events, nil
}

// PadAcqTime left-pads an HHMM value with zeros to four characters,
// e.g. "5" -> "0005", "936" -> "0936". Longer values are left alone and an
// empty value stays empty so that it fails to parse.
func PadAcqTime(hhmm string) string {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return ""
	}
	// Some exports carry acq_time as a float ("936.0").
	if i := strings.IndexByte(hhmm, '.'); i > 0 && strings.Trim(hhmm[i+1:], "0") == "" {
		hhmm = hhmm[:i]
	}
	if len(hhmm) >= 4 {
		return hhmm
	}
	return strings.Repeat("0", 4-len(hhmm)) + hhmm
}

// ParseCapturedAt parses acq_date + " " + acq_time under CapturedAtLayout
// in UTC. acq_time must already be padded and purely numeric.
func ParseCapturedAt(acqDate, acqTime string) (time.Time, error) {
	if _, err := strconv.Atoi(acqTime); err != nil || len(acqTime) != 4 {
		return time.Time{}, fmt.Errorf("%w: acq_time %q is not HHMM", ErrTimestampParse, acqTime)
	}
	t, err := time.Parse(CapturedAtLayout, acqDate+" "+acqTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrTimestampParse, acqDate+" "+acqTime, err)
	}
	return t, nil
}
