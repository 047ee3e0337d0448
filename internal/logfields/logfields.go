package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyLat             = "lat"
	KeyLon             = "lon"
	KeyElev            = "elev"
	KeyTwilight        = "twilight"
	KeyTimeISO         = "time_iso"
	KeyGeneration      = "generation"
	KeyStorageKey      = "storage_key"
	KeyBackend         = "backend"
	KeyFavoriteID      = "favorite_id"
	KeyConstellationID = "constellation_id"
	KeyDurationMS      = "duration_ms"
	KeyAttempt         = "attempt"
	KeyError           = "error"
	KeyMethod          = "method"
	KeyPath            = "path"
	KeyStatus          = "status"
	KeyRemoteAddr      = "remote_addr"
	KeyRequestID       = "request_id"
	KeyConfigPath      = "config_path"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Lat(v float64) slog.Attr             { return slog.Float64(KeyLat, v) }
func Lon(v float64) slog.Attr             { return slog.Float64(KeyLon, v) }
func Elev(v float64) slog.Attr            { return slog.Float64(KeyElev, v) }
func Twilight(t string) slog.Attr         { return slog.String(KeyTwilight, t) }
func TimeISO(s string) slog.Attr          { return slog.String(KeyTimeISO, s) }
func Generation(g uint64) slog.Attr       { return slog.Uint64(KeyGeneration, g) }
func StorageKey(k string) slog.Attr       { return slog.String(KeyStorageKey, k) }
func Backend(name string) slog.Attr       { return slog.String(KeyBackend, name) }
func FavoriteID(id string) slog.Attr      { return slog.String(KeyFavoriteID, id) }
func ConstellationID(id string) slog.Attr { return slog.String(KeyConstellationID, id) }
func Attempt(n int) slog.Attr             { return slog.Int(KeyAttempt, n) }
func Method(m string) slog.Attr           { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr             { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr           { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr       { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr       { return slog.String(KeyRequestID, id) }
func ConfigPath(p string) slog.Attr       { return slog.String(KeyConfigPath, p) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
