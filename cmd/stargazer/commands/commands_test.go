package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/session"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

type cliEnv struct {
	dir        string
	configPath string

	mu       sync.Mutex
	requests []string
}

func (env *cliEnv) fetches() []string {
	env.mu.Lock()
	defer env.mu.Unlock()
	return append([]string(nil), env.requests...)
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{dir: t.TempDir()}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.requests = append(env.requests, r.URL.RawQuery)
		env.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"when_utc":"2025-01-01T00:00:00Z","twilight":%q,"visible_planets":[{"name":"saturn","altitude_deg":31.5,"azimuth_deg":201}],"moon":{"altitude_deg":12,"azimuth_deg":90,"illumination_fraction":0.42},"constellations":[{"id":"ori","name":"Orion","abbreviation":"Ori","magnitude":0.5,"altitude_deg":44,"azimuth_deg":170}]}`,
			r.URL.Query().Get("twilight"))
	}))
	t.Cleanup(api.Close)

	env.configPath = filepath.Join(env.dir, "stargazer.yaml")
	cfg := fmt.Sprintf("api:\n  base_url: %s\n  timeout: 2s\nstorage:\n  backend: file\n  path: %s\n", api.URL, filepath.Join(env.dir, "data"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))
	return env
}

func (env *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	var out bytes.Buffer
	g := &Global{Out: &out}
	parser, err := kong.New(&cli,
		kong.Name("stargazer"),
		kong.Bind(g),
		kong.Vars{"version": "test"},
		kong.Exit(func(code int) { t.Fatalf("unexpected exit %d", code) }))
	require.NoError(t, err)
	ctx, err := parser.Parse(append([]string{"--config", env.configPath}, args...))
	require.NoError(t, err)
	err = ctx.Run(&cli)
	return out.String(), err
}

func TestInitRefusesOverwrite(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.Remove(env.configPath))

	out, err := env.run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")
	assert.FileExists(t, env.configPath)

	_, err = env.run(t, "init")
	require.Error(t, err)

	_, err = env.run(t, "init", "--force")
	require.NoError(t, err)
}

func TestShowPrintsReport(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "show")
	require.NoError(t, err)

	assert.Contains(t, out, "Twilight:  Astronomical")
	assert.Contains(t, out, "Status:    ok")
	assert.Contains(t, out, "Saturn")
	assert.Contains(t, out, "42% illuminated")
	assert.Contains(t, out, "Orion (Ori)")
	require.Len(t, env.fetches(), 1, "exactly one fetch")
}

func TestSetTwilightPersistsAndFetches(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "set", "twilight", "Nautical", "--json")
	require.NoError(t, err)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, state.TwilightNautical, snap.Twilight)
	require.NotNil(t, snap.VisibleData)
	assert.Equal(t, "nautical", snap.VisibleData.Twilight)
	require.Len(t, env.fetches(), 1)

	out, err = env.run(t, "show", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, state.TwilightNautical, snap.Twilight, "persisted across runs")
}

func TestSetRejectsInvalidInput(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "set", "twilight", "dusk")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = env.run(t, "set", "location", "--lat=120", "--lon=0")
	require.Error(t, err)

	_, err = env.run(t, "set", "time", "soon")
	require.Error(t, err)
	assert.Empty(t, env.fetches())
}

func TestFavoritesAndObserved(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "favorites", "save")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved Lat 35.23, Lon -80.84 • astronomical twilight")

	_, err = env.run(t, "favorites", "add", "Dark site", "--lat=36.1", "--lon=-81.5", "--twilight=civil")
	require.NoError(t, err)

	out, err = env.run(t, "favorites", "list", "--json")
	require.NoError(t, err)
	var favs []state.Favorite
	require.NoError(t, json.Unmarshal([]byte(out), &favs))
	require.Len(t, favs, 2)
	assert.Equal(t, "Dark site", favs[1].Name)

	out, err = env.run(t, "favorites", "apply", favs[1].ID, "--json")
	require.NoError(t, err)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, state.Coordinates{Lat: 36.1, Lon: -81.5}, snap.Coordinates)
	assert.Equal(t, state.TwilightCivil, snap.Twilight)

	_, err = env.run(t, "favorites", "apply", "missing")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	_, err = env.run(t, "observed", "mark", "ori", "cas")
	require.NoError(t, err)
	out, err = env.run(t, "observed")
	require.NoError(t, err)
	assert.Equal(t, "ori\ncas\n", out)

	out, err = env.run(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ observed")
}

func TestUnavailableStorageFallsBackToDefaults(t *testing.T) {
	env := newCLIEnv(t)
	blocker := filepath.Join(env.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	raw, err := os.ReadFile(env.configPath)
	require.NoError(t, err)
	cfg := strings.Replace(string(raw), filepath.Join(env.dir, "data"), filepath.Join(blocker, "data"), 1)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))

	out, err := env.run(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Location:  35.2271, -80.8431 (0 m)")
	assert.Contains(t, out, "Status:    ok")

	out, err = env.run(t, "set", "twilight", "civil", "--json")
	require.NoError(t, err)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, state.TwilightCivil, snap.Twilight)

	_, err = env.run(t, "show", "--json")
	require.NoError(t, err)
	assert.Len(t, env.fetches(), 3)
}
