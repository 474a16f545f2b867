package server

import (
	"net/http"
	"strconv"
)

type configRequest struct {
	Setting string `json:"setting"`
	Value   string `json:"value"`
}

type defendRequest struct {
	Active bool `json:"active"`
}

func (a *api) getConfig(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	cfg, err := a.commands.ShowConfig(r.Context(), inv)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) updateConfig(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	var req configRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg, err := a.commands.UpdateConfig(r.Context(), inv, req.Setting, req.Value)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) setDefending(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	var req defendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg, err := a.commands.SetDefending(r.Context(), inv, req.Active)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) getHistory(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "days must be a number", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	report, err := a.commands.History(r.Context(), inv, r.URL.Query().Get("domain"), days)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) getStats(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	stats, err := a.commands.Stats(r.Context(), inv)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *api) reportDomain(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	var req domainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := a.commands.Report(r.Context(), inv, req.Domain, req.Reason)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	status := http.StatusCreated
	if !outcome.Saved {
		status = http.StatusAccepted
		if !outcome.Notified {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, outcome)
}

func (a *api) refreshFeed(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	outcome, err := a.commands.RefreshFeed(r.Context(), inv)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *api) getHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
