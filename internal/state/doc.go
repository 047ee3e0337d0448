// Package state provides the session domain models and their persistence.
//
// Key components:
//   - Coordinates, Twilight and Favorite value types
//   - Adapter: tolerant load/save of each logical key over a storage.Backend
//   - Favorites: ordered registry of saved observation views
//   - Observed: set of constellation identifiers marked as seen
//
// Loading never fails: missing, unreadable or malformed values fall back to
// defaults field by field. Saving is best effort; failures are logged and
// counted but the in-memory value stays authoritative.
package state
