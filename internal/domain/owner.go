package domain

import "time"

// Owner is the holder of accounts. Owners are created once and never mutated;
// accounts reference them by id only.
type Owner struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
