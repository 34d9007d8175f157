package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pennywise-hq/budgetd/pkg/period"
)

// ErrMalformedEntry is returned when a stored entry does not have the
// expected shape.
var ErrMalformedEntry = errors.New("malformed budget cache entry")

// Entry is the cached aggregate for one budget period.
type Entry struct {
	Total      float64      `json:"total"`
	Count      int64        `json:"count"`
	StartDate  time.Time    `json:"startDate"`
	EndDate    time.Time    `json:"endDate"`
	ResetCycle period.Cycle `json:"resetCycle"`
}

// rawEntry detects missing or non-numeric fields during decoding.
type rawEntry struct {
	Total      *float64     `json:"total"`
	Count      *int64       `json:"count"`
	StartDate  time.Time    `json:"startDate"`
	EndDate    time.Time    `json:"endDate"`
	ResetCycle period.Cycle `json:"resetCycle"`
}

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(b []byte) (Entry, error) {
	var raw rawEntry
	if err := json.Unmarshal(b, &raw); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if raw.Total == nil || raw.Count == nil {
		return Entry{}, fmt.Errorf("%w: missing total or count", ErrMalformedEntry)
	}
	return Entry{
		Total:      *raw.Total,
		Count:      *raw.Count,
		StartDate:  raw.StartDate,
		EndDate:    raw.EndDate,
		ResetCycle: raw.ResetCycle,
	}, nil
}
