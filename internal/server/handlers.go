package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "marketpipe",
	})
}

// handleLatestRun returns the stored summary of the most recent pipeline
// run verbatim.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.gateway.Runs.LatestSummary()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load latest run summary")
		s.writeError(w, http.StatusInternalServerError, "failed to load run summary")
		return
	}
	if summary == "" {
		s.writeError(w, http.StatusNotFound, "no pipeline run recorded yet")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(summary)); err != nil {
		s.log.Error().Err(err).Msg("Failed to write run summary")
	}
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.gateway.Scores.AllCurrent()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load scores")
		s.writeError(w, http.StatusInternalServerError, "failed to load scores")
		return
	}
	s.writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	score, err := s.gateway.Scores.Current(ticker)
	if err != nil {
		s.log.Error().Str("ticker", ticker).Err(err).Msg("Failed to load score")
		s.writeError(w, http.StatusInternalServerError, "failed to load score")
		return
	}
	if score == nil {
		s.writeError(w, http.StatusNotFound, "no score for ticker")
		return
	}

	// Side tables are best effort; a score with no ratio or analyst row is
	// still a valid answer.
	ratioRow, _ := s.gateway.Ratios.Latest(ticker)
	consensus, _ := s.gateway.Analyst.Latest(ticker)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"score":   score,
		"ratios":  ratioRow,
		"analyst": consensus,
	})
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.gateway.Instruments.GetAllActive()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load instruments")
		s.writeError(w, http.StatusInternalServerError, "failed to load instruments")
		return
	}
	s.writeJSON(w, http.StatusOK, instruments)
}

// handleTriggerRun kicks off a pipeline run outside the schedule.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.triggerRun == nil {
		s.writeError(w, http.StatusServiceUnavailable, "manual runs disabled")
		return
	}
	if err := s.triggerRun(); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
