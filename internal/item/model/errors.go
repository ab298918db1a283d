package model

import "errors"

var (
	// ErrMalformedInput: the request body is not a JSON object.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotAnObject refines ErrMalformedInput for valid JSON that is not an object.
	ErrNotAnObject = errors.New("body is not a JSON object")
	// ErrValidation: the record lacks a non-empty string name.
	ErrValidation = errors.New("name is required")
	// ErrNotFound: no record carries the requested id.
	ErrNotFound = errors.New("item not found")
	// ErrRouteNotFound: no route matches the method and path.
	ErrRouteNotFound = errors.New("route not found")
	// ErrCorruptStore: the persisted document exists but cannot be parsed as a collection.
	ErrCorruptStore = errors.New("corrupt store")
	// ErrIDExhausted: the largest stored id is already the maximum int64.
	ErrIDExhausted = errors.New("item id space exhausted")
	// ErrPersistenceFailure: the collection could not be written.
	ErrPersistenceFailure = errors.New("persistence failure")
)
