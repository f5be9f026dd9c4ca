package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/internal/domain/model"
)

const maxLast = 1000

// handleGames handles GET /games?contests=a b&sessions=x y&last=N. List
// parameters are space separated.
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_games"
	q := r.URL.Query()

	query := service.GamesQuery{
		Contests: strings.Fields(q.Get("contests")),
		Sessions: strings.Fields(q.Get("sessions")),
	}
	if raw := q.Get("last"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLast {
			writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, errors.New("last must be between 1 and 1000")))
			return
		}
		query.Last = n
	}

	games, err := s.svc.Games(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if games == nil {
		games = []model.GameResult{}
	}
	writeJSON(w, http.StatusOK, games)
}

type playerRequest struct {
	ID string `json:"_id" validate:"required"`
}

type scoreRequest struct {
	Score int64 `json:"score"`
	Uma   int64 `json:"uma"`
}

// gameRequest mirrors the OpenAPI schema for POST /games.
type gameRequest struct {
	MajsoulID        string          `json:"majsoulId" validate:"required"`
	ContestID        string          `json:"contestId"`
	ContestMajsoulID int64           `json:"contestMajsoulId" validate:"required_without=ContestID"`
	StartTime        string          `json:"start_time" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime          string          `json:"end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Players          []playerRequest `json:"players" validate:"len=4,dive"`
	FinalScore       []scoreRequest  `json:"finalScore" validate:"len=4"`
}

func (g gameRequest) model() model.GameResult {
	out := model.GameResult{
		MajsoulID:        g.MajsoulID,
		ContestID:        g.ContestID,
		ContestMajsoulID: g.ContestMajsoulID,
	}
	out.StartTime, _ = time.Parse(time.RFC3339, g.StartTime)
	out.EndTime, _ = time.Parse(time.RFC3339, g.EndTime)
	for _, p := range g.Players {
		out.Players = append(out.Players, model.PlayerRef{ID: p.ID})
	}
	for _, fs := range g.FinalScore {
		out.FinalScore = append(out.FinalScore, model.FinalScore{Score: fs.Score, Uma: fs.Uma})
	}
	return out
}

// handleSubmitGame handles POST /games.
func (s *Server) handleSubmitGame(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_game"
	var req gameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", badRequest(op, err))
		return
	}

	outcome, err := s.svc.SubmitGame(r.Context(), req.model())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if outcome == service.SubmissionDuplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: outcome, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: outcome})
}
