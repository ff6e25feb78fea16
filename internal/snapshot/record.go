// Package snapshot defines the data model shared by the statusboard internals.
//
// A [Record] is the last observed state of one monitored network endpoint as
// reported by the backend's /status resource. A [Snapshot] is the ordered set
// of records returned by one successful fetch; it always replaces the previous
// snapshot wholesale.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// zonelessLayout is accepted for timestamps written without a zone offset
// (e.g. a TIMESTAMP column serialized as-is). Such values are read as UTC.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// Record is one monitored endpoint's address, latency, and last-success time.
type Record struct {
	// Address identifies the endpoint and is unique within a snapshot.
	Address string

	// LatencyMs is the round-trip time of the most recent ping in milliseconds.
	LatencyMs float64

	// LastSuccessAt is the time of the last successful ping.
	// Zero when the backend sent null or an empty string.
	LastSuccessAt time.Time

	// RawLastSuccess holds the original text when it could not be parsed
	// as a timestamp. Empty when LastSuccessAt is valid.
	RawLastSuccess string
}

// wireRecord mirrors the backend's JSON field names.
type wireRecord struct {
	IP          string          `json:"ip"`
	PingTime    float64         `json:"ping_time"`
	LastSuccess json.RawMessage `json:"last_success"`
}

// UnmarshalJSON decodes a record from the backend wire format.
//
// A null element or a record without an ip fails decoding: the address is
// the row key. An unparseable last_success string does not fail decoding;
// it is kept in RawLastSuccess so the renderer can show it as an invalid
// date.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("record must be an object, got null")
	}

	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if strings.TrimSpace(w.IP) == "" {
		return errors.New("record has no ip")
	}

	rec := Record{Address: w.IP, LatencyMs: w.PingTime}

	raw := bytes.TrimSpace(w.LastSuccess)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("last_success must be a string: %w", err)
		}
		if s != "" {
			t, err := ParseTimestamp(s)
			if err != nil {
				rec.RawLastSuccess = s
			} else {
				rec.LastSuccessAt = t
			}
		}
	}

	*r = rec
	return nil
}

// MarshalJSON encodes a record using the backend wire field names.
func (r Record) MarshalJSON() ([]byte, error) {
	var last any
	switch {
	case r.RawLastSuccess != "":
		last = r.RawLastSuccess
	case r.LastSuccessAt.IsZero():
		last = nil
	default:
		last = r.LastSuccessAt.Format(time.RFC3339Nano)
	}

	return json.Marshal(struct {
		IP          string  `json:"ip"`
		PingTime    float64 `json:"ping_time"`
		LastSuccess any     `json:"last_success"`
	}{r.Address, r.LatencyMs, last})
}

// ParseTimestamp parses an ISO-8601 timestamp. RFC 3339 with a zone is tried
// first, then the zone-less form, which is interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(zonelessLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}

// Decode parses a backend /status body into records.
//
// A JSON null body is an empty result: the backend encodes an empty table
// that way.
func Decode(body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Snapshot is the full set of records returned by one successful fetch.
type Snapshot struct {
	// Records are the records in backend order.
	Records []Record

	// FetchedAt is when the fetch that produced this snapshot completed.
	// Zero if no fetch has succeeded yet.
	FetchedAt time.Time

	// Seq increases by one with every replacement. Zero means empty initial state.
	Seq uint64
}

// Clone returns a copy whose Records slice is not shared with s.
func (s Snapshot) Clone() Snapshot {
	cp := s
	if s.Records != nil {
		cp.Records = append([]Record(nil), s.Records...)
	}
	return cp
}

// MarshalJSON encodes the snapshot for the dashboard API.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	records := s.Records
	if records == nil {
		records = []Record{}
	}
	var fetched *time.Time
	if !s.FetchedAt.IsZero() {
		fetched = &s.FetchedAt
	}
	return json.Marshal(struct {
		Seq       uint64     `json:"seq"`
		FetchedAt *time.Time `json:"fetched_at"`
		Records   []Record   `json:"records"`
	}{s.Seq, fetched, records})
}
