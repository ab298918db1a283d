package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"itemstore/internal/item/model"
)

// decodeCollection parses a persisted document. Every element must be an
// object with an integral id, and ids must be unique.
func decodeCollection(data []byte) (model.Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCorruptStore, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", model.ErrCorruptStore)
	}
	// Only the literal null decodes into a nil slice; [] yields an empty one.
	if raw == nil {
		return nil, fmt.Errorf("%w: document is null, want array", model.ErrCorruptStore)
	}

	items := make(model.Collection, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for i, el := range raw {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", model.ErrCorruptStore, i)
		}
		rec := model.Record(obj)
		if !rec.NormalizeID() {
			return nil, fmt.Errorf("%w: element %d has no integer id", model.ErrCorruptStore, i)
		}
		id, _ := rec.ID()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", model.ErrCorruptStore, id)
		}
		seen[id] = struct{}{}
		items = append(items, rec)
	}
	return items, nil
}

// EncodeCollection renders the collection as an indented JSON array, the
// persisted document layout. A nil collection is written as [] rather than
// null.
func EncodeCollection(items model.Collection) ([]byte, error) {
	if items == nil {
		items = model.Collection{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode collection: %v", model.ErrPersistenceFailure, err)
	}
	return append(b, '\n'), nil
}
