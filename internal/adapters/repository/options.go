package repository

import "github.com/google/uuid"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithIDGenerator sets the function used to assign ids to records saved
// without one.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func newID() string { return uuid.NewString() }
