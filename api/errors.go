package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/keywrap"
	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keywrap.ErrInvalidMasterPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, vault.ErrVaultLocked):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, vault.ErrSessionClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrAccountExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, crypto.ErrWeakParameters):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, envelope.ErrAuthenticationFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
