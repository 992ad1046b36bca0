// internal/httpserver/routes_session.go
//
// HTTP routes for game sessions. Exposes under /session:
//   - POST   /session/new          → create a session (phase "intro")
//   - GET    /session/{id}         → render the current view
//   - POST   /session/{id}/start   → start (or restart) a run
//   - POST   /session/{id}/decide  → approve/reject the current listing
//   - DELETE /session/{id}         → abandon the session
//
// A session belongs to the caller that created it: the logged-in user, or
// the guest identified by the anonymous cookie. Other callers get 404.
// Finished runs are recorded in the results ledger.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/sitepick/internal/game"
	"github.com/robalobadob/sitepick/internal/results"
)

// mountSessions registers all /session routes.
func (s *Server) mountSessions(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Post("/new", s.handleNewSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Post("/start", s.handleStart)
			r.Post("/decide", s.handleDecide)
			r.Delete("/", s.handleDelete)
		})
	})
}

// ownerKeys returns the owner keys the caller may act as.
func ownerKeys(r *http.Request) []string {
	var keys []string
	if me := currentUser(r); me != nil {
		keys = append(keys, "user:"+me.ID)
	}
	if anon := anonID(r); anon != "" {
		keys = append(keys, "anon:"+anon)
	}
	return keys
}

// handleNewSession creates an in-memory session owned by the caller.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var userID, anon, owner string
	if me := currentUser(r); me != nil {
		userID, owner = me.ID, "user:"+me.ID
	} else {
		anon = s.ensureAnonID(w, r)
		owner = "anon:" + anon
	}

	timing := s.timing
	sess, err := game.NewSession(s.listings, game.Options{
		Owner:     owner,
		Timing:    &timing,
		Scheduler: s.sched,
		OnFinish:  s.recordRun(userID, anon),
	})
	if err != nil {
		log.Error().Err(err).Msg("new session")
		writeError(w, http.StatusInternalServerError, "session_failed")
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	log.Debug().Str("session", sess.ID).Str("owner", owner).Msg("session created")
	writeJSON(w, http.StatusCreated, sess.View())
}

// loadSession fetches the {id} session if the caller owns it.
// On failure it writes a 404 and returns nil.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *game.Session {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil {
		for _, k := range ownerKeys(r) {
			if k == sess.Owner {
				return sess
			}
		}
	}
	writeError(w, http.StatusNotFound, "not_found")
	return nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	sess.Touch()
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	sess.Start()
	writeJSON(w, http.StatusOK, sess.View())
}

// decideReq is the request payload for /session/{id}/decide.
type decideReq struct {
	Approved *bool `json:"approved"`
}

// decideRes is the response payload for /session/{id}/decide.
type decideRes struct {
	Verdict game.Verdict `json:"verdict"`
	View    game.View    `json:"view"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	var req decideReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Approved == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	v, err := sess.Decide(*req.Approved)
	switch {
	case errors.Is(err, game.ErrNotPlaying):
		writeError(w, http.StatusConflict, "not_playing")
		return
	case errors.Is(err, game.ErrDecisionPending):
		writeError(w, http.StatusConflict, "decision_pending")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "decide_failed")
		return
	}
	writeJSON(w, http.StatusOK, decideRes{Verdict: v, View: sess.View()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordRun returns the finish hook that persists a run for its owner.
// It runs on a timer goroutine, so it uses its own bounded context.
func (s *Server) recordRun(userID, anon string) func(game.Summary) {
	return func(sum game.Summary) {
		if s.results == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.results.Record(ctx, results.Result{
			RunID:       sum.RunID,
			SessionID:   sum.SessionID,
			UserID:      userID,
			AnonymousID: anon,
			Outcome:     string(sum.Phase),
			Score:       sum.Stats.Score,
			Correct:     sum.Stats.CorrectDecisions,
			Total:       sum.Stats.TotalDecisions,
			FailReason:  sum.FailReason,
			ListingID:   sum.ListingID,
			FinishedAt:  sum.FinishedAt,
		})
		if err != nil {
			log.Warn().Err(err).Str("session", sum.SessionID).Str("run", sum.RunID).Msg("record run")
		}
	}
}
