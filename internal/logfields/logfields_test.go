package logfields

import (
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Twilight", KeyTwilight, "civil", Twilight("civil")},
		{"TimeISO", KeyTimeISO, "2025-11-05T23:30:00Z", TimeISO("2025-11-05T23:30:00Z")},
		{"StorageKey", KeyStorageKey, "stargazer:coords", StorageKey("stargazer:coords")},
		{"Backend", KeyBackend, "sqlite", Backend("sqlite")},
		{"FavoriteID", KeyFavoriteID, "f1", FavoriteID("f1")},
		{"ConstellationID", KeyConstellationID, "ori", ConstellationID("ori")},
		{"Method", KeyMethod, "PUT", Method("PUT")},
		{"Path", KeyPath, "/session/twilight", Path("/session/twilight")},
		{"RemoteAddr", KeyRemoteAddr, "127.0.0.1:5555", RemoteAddr("127.0.0.1:5555")},
		{"RequestID", KeyRequestID, "abc", RequestID("abc")},
		{"ConfigPath", KeyConfigPath, "stargazer.yaml", ConfigPath("stargazer.yaml")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Lat(35.2271); v.Key != KeyLat || v.Value.Float64() != 35.2271 {
		t.Fatalf("Lat mismatch: %v", v)
	}
	if v := Generation(7); v.Key != KeyGeneration || v.Value.Uint64() != 7 {
		t.Fatalf("Generation mismatch: %v", v)
	}
	if v := Duration(1500 * time.Microsecond); v.Key != KeyDurationMS || v.Value.Float64() != 1.5 {
		t.Fatalf("Duration mismatch: %v", v)
	}
	if v := Attempt(2); v.Key != KeyAttempt {
		t.Fatalf("Attempt key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError || attr.Value.String() != "" {
		t.Fatalf("unexpected nil error attr: %v", attr)
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
