package rag

import "errors"

var (
	// ErrNotBuilt is returned when a query runs before the engine was built
	ErrNotBuilt = errors.New("rag: not built")

	// ErrEmptyCorpus is returned when a build produced nothing to index
	ErrEmptyCorpus = errors.New("rag: empty corpus")

	// ErrEntityNotFound is returned when a graph entity cannot be resolved by name
	ErrEntityNotFound = errors.New("rag: entity not found")

	// ErrNoPath is returned when two resolved graph entities are disconnected
	ErrNoPath = errors.New("rag: no path")

	// ErrInvalidArgument is returned for out-of-range query parameters
	ErrInvalidArgument = errors.New("rag: invalid argument")

	// ErrInvalidConfig is returned when an engine is constructed with bad settings
	ErrInvalidConfig = errors.New("rag: invalid config")
)
