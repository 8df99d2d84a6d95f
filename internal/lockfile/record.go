package lockfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Decode errors. Callers treat any decode failure as a corrupt lock file.
var (
	ErrMalformed    = errors.New("malformed lock record")
	ErrMissingField = errors.New("lock record missing required field")
)

// Record is the ownership metadata stored as the entire contents of a
// lock file. The JSON field names match the on-disk format written by
// the agent workers, so locks survive a mixed-version fleet.
type Record struct {
	RoomName   string    `json:"room_name"`
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Encode serializes a record to pretty-printed JSON. The indentation is
// cosmetic, for operators inspecting lock files by hand.
func Encode(rec Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

// Decode parses lock file contents into a Record. It returns an error
// wrapping ErrMalformed if the bytes are not valid JSON, or
// ErrMissingField if a required field is absent.
func Decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case rec.RoomName == "":
		return Record{}, fmt.Errorf("%w: room_name", ErrMissingField)
	case rec.JobID == "":
		return Record{}, fmt.Errorf("%w: job_id", ErrMissingField)
	case rec.UserID == "":
		return Record{}, fmt.Errorf("%w: user_id", ErrMissingField)
	case rec.PID == 0:
		return Record{}, fmt.Errorf("%w: pid", ErrMissingField)
	case rec.AcquiredAt.IsZero():
		return Record{}, fmt.Errorf("%w: acquired_at", ErrMissingField)
	case rec.ExpiresAt.IsZero():
		return Record{}, fmt.Errorf("%w: expires_at", ErrMissingField)
	}

	return rec, nil
}

// Status classifies a stored lock record. Only StatusValid means the
// lock is live; everything else is stale state that should be removed.
type Status int

const (
	StatusValid Status = iota
	StatusEmpty
	StatusCorrupt
	StatusExpired
	StatusOrphaned
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusEmpty:
		return "empty"
	case StatusCorrupt:
		return "corrupt"
	case StatusExpired:
		return "expired"
	case StatusOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// Classify decides whether a decoded record still represents a live
// lock at the given instant. Validity is always re-derived from the
// record; the holder can crash at any time, so results must not be
// cached beyond a single check.
func Classify(rec Record, now time.Time, alive func(pid int) bool) Status {
	if !now.Before(rec.ExpiresAt) {
		return StatusExpired
	}
	if !alive(rec.PID) {
		return StatusOrphaned
	}
	return StatusValid
}

// ClassifyBytes classifies raw lock file contents, handling the empty
// and corrupt cases before field-level checks apply. A record decoded
// successfully is passed through Classify.
func ClassifyBytes(data []byte, now time.Time, alive func(pid int) bool) (Record, Status) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, StatusEmpty
	}
	rec, err := Decode(data)
	if err != nil {
		return Record{}, StatusCorrupt
	}
	return rec, Classify(rec, now, alive)
}
