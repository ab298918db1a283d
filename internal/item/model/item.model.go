package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Record is one stored item: arbitrary JSON fields plus the store-owned "id"
// and the required "name".
type Record map[string]any

// Collection is the ordered set of records and the unit of persistence.
type Collection []Record

const (
	FieldID   = "id"
	FieldName = "name"
)

// ID returns the record's identifier when it holds an integral number.
func (r Record) ID() (int64, bool) {
	return asInt64(r[FieldID])
}

// Name returns the record's name when it is a non-empty string.
func (r Record) Name() (string, bool) {
	name, ok := r[FieldName].(string)
	return name, ok && name != ""
}

// Clone returns a shallow copy; nested values are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Clone copies the slice and every record in it.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, r := range c {
		out[i] = r.Clone()
	}
	return out
}

// IndexOf returns the position of the record with the given id, or -1.
func (c Collection) IndexOf(id int64) int {
	for i, r := range c {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

// DecodeRecord parses a request body into a record. An empty body is treated
// as an empty object. Numbers are kept as json.Number.
func DecodeRecord(body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Record{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedInput)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, ErrNotAnObject)
	}
	return Record(obj), nil
}

// NormalizeID rewrites the "id" field as an int64 so that records loaded from
// storage compare equal to records built by the store.
func (r Record) NormalizeID() bool {
	id, ok := r.ID()
	if ok {
		r[FieldID] = id
	}
	return ok
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case float64:
		return floatToInt64(n)
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// Operation names reported in a Dispatch.
const (
	OpList      = "list"
	OpGet       = "get"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpUnmatched = "unmatched"
)

// Dispatch describes one routed request after its response was written.
type Dispatch struct {
	Op       string
	Method   string
	Path     string
	ItemID   int64
	Status   int
	Record   Record
	Err      error
	Duration time.Duration
}

// Committed reports whether the dispatch changed the persisted collection.
func (d Dispatch) Committed() bool {
	if d.Err != nil {
		return false
	}
	switch d.Op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}
