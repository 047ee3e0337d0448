package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/stargazer/internal/foundation"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/session"
	"git.home.luguber.info/inful/stargazer/internal/state"
)

type coordinatesBody struct {
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Elev *float64 `json:"elev"`
}

func (b coordinatesBody) coordinates() (state.Coordinates, error) {
	if b.Lat == nil || b.Lon == nil {
		return state.Coordinates{}, errors.ValidationError("lat and lon are required").Build()
	}
	c := state.Coordinates{Lat: *b.Lat, Lon: *b.Lon, Elev: foundation.FromPointer(b.Elev).UnwrapOr(0)}
	if err := c.Validate(); err != nil {
		return state.Coordinates{}, err
	}
	return c, nil
}

func readCoordinates(r *http.Request) (state.Coordinates, error) {
	var body coordinatesBody
	if err := decodeBody(r, &body); err != nil {
		return state.Coordinates{}, err
	}
	return body.coordinates()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSetCoordinates(w http.ResponseWriter, r *http.Request) {
	c, err := readCoordinates(r)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	if err := s.store.SetCoordinates(persistCtx(r), c); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.store.Snapshot())
}

func (s *Server) handleSetTwilight(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Twilight string `json:"twilight"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	t, err := state.NormalizeTwilight(body.Twilight)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	if err := s.store.SetTwilight(persistCtx(r), t); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.store.Snapshot())
}

func (s *Server) handleSetTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TimeISO *string `json:"timeIso"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	var t string
	if body.TimeISO != nil {
		t = strings.TrimSpace(*body.TimeISO)
	}
	if t != "" {
		if _, ok := session.ParseTimeISO(t); !ok {
			s.errs.WriteErrorResponse(w, r, errors.ValidationError("timeIso must be an ISO-8601 date-time").
				WithContext("timeIso", t).Build())
			return
		}
	}
	s.store.SetTimeISO(persistCtx(r), t)
	writeJSON(w, http.StatusAccepted, s.store.Snapshot())
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, errors.HTTPErrorResponse{
			Error:     "too many refetch requests",
			Code:      string(errors.CategoryRuntime),
			Retryable: true,
		})
		return
	}
	gen := s.store.Refetch()
	writeJSON(w, http.StatusAccepted, map[string]uint64{"generation": gen})
}

func (s *Server) handleClearError(w http.ResponseWriter, _ *http.Request) {
	s.store.SetError("")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Favorites()))
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var d state.FavoriteDraft
	if err := decodeBody(r, &d); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	if d.Twilight != "" {
		t, err := state.NormalizeTwilight(string(d.Twilight))
		if err != nil {
			s.errs.WriteErrorResponse(w, r, err)
			return
		}
		d.Twilight = t
	}
	if d.TimeISO != "" {
		if _, ok := session.ParseTimeISO(d.TimeISO); !ok {
			s.errs.WriteErrorResponse(w, r, errors.ValidationError("timeIso must be an ISO-8601 date-time").Build())
			return
		}
	}
	fav, err := s.store.AddFavorite(persistCtx(r), d)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (s *Server) handleSaveCurrentView(w http.ResponseWriter, r *http.Request) {
	fav, err := s.store.SaveCurrentView(persistCtx(r))
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.store.RemoveFavorite(persistCtx(r), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApplyFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := s.store.ApplyFavorite(persistCtx(r), chi.URLParam(r, "id"))
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, fav)
}

func (s *Server) handleListObserved(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.store.Observed()))
}

func (s *Server) handleMarkObserved(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		s.errs.WriteErrorResponse(w, r, errors.ValidationError("constellation id is required").Build())
		return
	}
	s.store.MarkObserved(persistCtx(r), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnmarkObserved(w http.ResponseWriter, r *http.Request) {
	s.store.UnmarkObserved(persistCtx(r), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.draft.State())
}

func (s *Server) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	c, err := readCoordinates(r)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	if err := s.draft.CenterChanged(c); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.draft.State())
}

func (s *Server) handleApplyDraft(w http.ResponseWriter, r *http.Request) {
	applied, err := s.draft.Apply(persistCtx(r))
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (s *Server) handleResetDraft(w http.ResponseWriter, _ *http.Request) {
	s.draft.Reset()
	w.WriteHeader(http.StatusNoContent)
}
