package server

import (
	"net/http"

	"nophish/internal/config"
)

func (a *api) getRuntimeSettings(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}

	cfg, err := a.commands.RuntimeSettings(inv)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) updateRuntimeSettings(w http.ResponseWriter, r *http.Request) {
	inv, ok := invoker(w, r)
	if !ok {
		return
	}
	next := config.GetConfig()
	if !decodeBody(w, r, &next) {
		return
	}

	cfg, err := a.commands.UpdateRuntimeSettings(inv, next)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
