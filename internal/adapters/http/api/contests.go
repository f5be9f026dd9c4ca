package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/riichi/internal/domain/model"
	"github.com/okian/riichi/internal/domain/standings"
)

// handleContests handles GET /contests.
func (s *Server) handleContests(w http.ResponseWriter, r *http.Request) {
	contests, err := s.svc.Contests(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if contests == nil {
		contests = []model.Contest{}
	}
	writeJSON(w, http.StatusOK, contests)
}

// handleContest handles GET /contests/{contestID}. The id may be a friendly id.
func (s *Server) handleContest(w http.ResponseWriter, r *http.Request) {
	contest, err := s.svc.Contest(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contest)
}

// handleSessions handles GET /contests/{contestID}/sessions and returns the
// whole standings timeline.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	recs, err := standings.Collect(s.svc.Standings(r.Context(), chi.URLParam(r, "contestID")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if recs == nil {
		recs = []model.StandingsRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handlePlayers handles GET /contests/{contestID}/players.
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Leaderboard(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.ContestPlayerRanking{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleOverview handles GET /contests/{contestID}/overview.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.svc.Overview(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// handlePlayerGames handles GET /contests/{contestID}/players/{playerID}/games.
func (s *Server) handlePlayerGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.svc.PlayerGames(r.Context(), chi.URLParam(r, "contestID"), chi.URLParam(r, "playerID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if games == nil {
		games = []model.GameResult{}
	}
	writeJSON(w, http.StatusOK, games)
}
