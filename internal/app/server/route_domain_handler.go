package server

import (
	"net/http"
)

type domainRequest struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
	Global bool   `json:"global"`
}

func (a *api) checkDomain(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	var req domainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	report, err := a.commands.Check(r.Context(), inv, req.Domain)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) listBlacklist(w http.ResponseWriter, r *http.Request) {
	rows, err := a.commands.BlacklistList(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *api) addBlacklist(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	var req domainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	change, err := a.commands.BlacklistAdd(r.Context(), inv, req.Domain, req.Reason)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	status := http.StatusOK
	if change.Changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, change)
}

func (a *api) removeBlacklist(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	change, err := a.commands.BlacklistRemove(r.Context(), inv, r.PathValue("domain"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if !change.Changed {
		writeJSON(w, http.StatusNotFound, change)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (a *api) listWhitelist(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	rows, err := a.commands.WhitelistList(r.Context(), inv)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *api) addWhitelist(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	var req domainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	change, err := a.commands.WhitelistAdd(r.Context(), inv, req.Domain, req.Reason, req.Global)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	status := http.StatusOK
	if change.Changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, change)
}

func (a *api) removeWhitelist(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	global := r.URL.Query().Get("global") == "true"
	change, err := a.commands.WhitelistRemove(r.Context(), inv, r.PathValue("domain"), global)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	if !change.Changed {
		writeJSON(w, http.StatusNotFound, change)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (a *api) revealToken(w http.ResponseWriter, r *http.Request) {
	findings, err := a.commands.Reveal(r.Context(), r.PathValue("token"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}
