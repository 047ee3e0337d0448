package events

import "time"

// ChangeKind classifies a session change notification.
type ChangeKind string

const (
	// KindParams: coordinates, twilight or time were replaced.
	KindParams ChangeKind = "params"
	// KindFetchStarted: a fetch cycle was issued and loading became true.
	KindFetchStarted ChangeKind = "fetch_started"
	// KindFetchSucceeded: the latest cycle stored new visibility data.
	KindFetchSucceeded ChangeKind = "fetch_succeeded"
	// KindFetchFailed: the latest cycle failed and error was set.
	KindFetchFailed ChangeKind = "fetch_failed"
	// KindFetchAbandoned: the latest cycle was torn down without replacement.
	KindFetchAbandoned ChangeKind = "fetch_abandoned"
	// KindError: the error field was overridden directly.
	KindError        ChangeKind = "error"
	KindFavorites    ChangeKind = "favorites"
	KindObserved     ChangeKind = "observed"
	KindDraft        ChangeKind = "draft"
	KindConfigReload ChangeKind = "config_reload"
)

// Change notifies subscribers that part of the session changed. Subscribers
// re-read the session to obtain the new values.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	Generation uint64     `json:"generation"`
	At         time.Time  `json:"at"`
}

// ConfigReloaded is emitted when the configuration file changed on disk.
type ConfigReloaded struct {
	Path       string
	DetectedAt time.Time
}
