package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/riichi/internal/domain/model"
)

type sessionPatch struct {
	ScheduledTime *time.Time `json:"scheduledTime"`
}

// handlePatchSession handles PATCH /sessions/{sessionID}. A body without
// scheduledTime changes nothing and answers 304.
func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_session"
	var req sessionPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, err))
		return
	}
	if req.ScheduledTime == nil {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	sess, err := s.svc.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), *req.ScheduledTime)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handlePatchTeam handles PATCH /teams/{teamID}. A body with neither image
// nor anthem answers 304.
func (s *Server) handlePatchTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_team"
	var patch model.TeamPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, err))
		return
	}
	if patch.Empty() {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if err := s.validate.Struct(patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, err))
		return
	}

	team, err := s.svc.UpdateTeam(r.Context(), chi.URLParam(r, "teamID"), patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}
