package events

import "time"

// StorageStart is emitted before a backend storage call.
type StorageStart struct {
	Op    string // fetch, query, scan, update, put
	Kind  string // entity kind
	Table string // backend table, when known
}

// StorageFinish is emitted after a backend storage call completes.
type StorageFinish struct {
	Op       string
	Kind     string
	Table    string
	Err      error
	Duration time.Duration
}
