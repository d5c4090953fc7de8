package storage

import "time"

// CollectionRecord represents a named vector collection.
type CollectionRecord struct {
	Name       string
	VectorSize int
	CreatedAt  time.Time
}

// VectorRecord is one stored vector with its metadata.
type VectorRecord struct {
	Collection string
	ID         string
	Vector     []float32
	Metadata   map[string]any
	UpdatedAt  time.Time
}
