package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyfold/keyfold/crypto"
	"github.com/keyfold/keyfold/keywrap"
	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

const (
	maxAuthBodySize  = 4 << 10
	maxEntryBodySize = 256 << 10
)

func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return v, false
	}
	return v, true
}

func sessionResponse(s *vault.Session) SessionResponse {
	resp := SessionResponse{State: s.State().String()}
	if at := s.UnlockedAt(); !at.IsZero() {
		resp.UnlockedAt = at.UTC().Format(time.RFC3339)
	}
	return resp
}

// CreateAccount handles POST /accounts.
// Generates a fresh user key, wraps it under the master password, and
// stores the keyslot. The password and the unwrapped key never leave this
// handler.
func (a *API) CreateAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateAccountRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	accountID := req.AccountID
	if accountID == "" {
		accountID = uuid.NewString()
	}

	params, err := crypto.DefaultKdfParams()
	if err != nil {
		mapError(w, err)
		return
	}

	master, err := crypto.DeriveMasterKey(req.Password, params)
	if err != nil {
		mapError(w, err)
		return
	}
	defer master.Destroy()

	userKey, err := keywrap.NewUserKey(a.envelopeType)
	if err != nil {
		mapError(w, err)
		return
	}
	defer userKey.Destroy()

	wrapped, err := keywrap.WrapUserKey(userKey, master, a.envelopeType)
	if err != nil {
		mapError(w, err)
		return
	}

	keyslot := &storage.Keyslot{
		AccountID: accountID,
		Params:    params,
		Wrapped:   *wrapped,
	}
	if err := a.repo.CreateKeyslot(keyslot); err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditAccountCreated, r, accountID)
	writeJSON(w, http.StatusCreated, CreateAccountResponse{AccountID: accountID})
}

// Unlock handles POST /accounts/{accountID}/unlock.
func (a *API) Unlock(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	req, ok := decodeJSON[UnlockRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := s.Unlock(r.Context(), req.Password); err != nil {
		a.audit.logFailure(AuditUnlockFailure, r, accountID, "invalid master password")
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditUnlockSuccess, r, accountID)
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// Lock handles POST /accounts/{accountID}/lock.
func (a *API) Lock(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}
	s.Lock()

	a.audit.logEvent(AuditLock, r, accountID)
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// SessionStatus handles GET /accounts/{accountID}/session.
func (a *API) SessionStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// RotateMasterPassword handles POST /accounts/{accountID}/rotate.
// The keyslot is replaced in a single write: until it lands, the old
// password stays valid; after it lands, only the new one does. The user
// key itself never changes, so stored records stay decryptable.
func (a *API) RotateMasterPassword(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	req, ok := decodeJSON[RotateRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old and new passwords are required")
		return
	}

	keyslot, err := a.repo.GetKeyslot(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	newParams, err := crypto.DefaultKdfParams()
	if err != nil {
		mapError(w, err)
		return
	}

	rotated, err := keywrap.RotateMasterPassword(req.OldPassword, req.NewPassword, keyslot.Params, newParams, &keyslot.Wrapped)
	if err != nil {
		a.audit.logFailure(AuditRotateFailure, r, accountID, "rotation failed")
		mapError(w, err)
		return
	}

	keyslot.Params = newParams
	keyslot.Wrapped = *rotated
	if err := a.repo.PutKeyslot(keyslot); err != nil {
		mapError(w, err)
		return
	}

	// The live session still holds the superseded keyslot; drop it so the
	// next unlock reads the rotated one.
	a.dropSession(accountID)

	a.audit.logEvent(AuditPasswordRotated, r, accountID)
	writeJSON(w, http.StatusOK, SessionResponse{State: vault.StateLocked.String()})
}

func entryFromRequest(req EntryRequest, id string) vault.PlaintextEntry {
	return vault.PlaintextEntry{
		ID:       id,
		FolderID: req.FolderID,
		Favorite: req.Favorite,
		Name:     req.Name,
		Data:     req.Data,
		Notes:    req.Notes,
	}
}

// CreateEntry handles POST /accounts/{accountID}/entries.
func (a *API) CreateEntry(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	req, ok := decodeJSON[EntryRequest](w, r, maxEntryBodySize)
	if !ok {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "entry name is required")
		return
	}

	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	entry := entryFromRequest(req, "")
	record, err := s.EncryptEntry(r.Context(), entry)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.repo.PutRecord(accountID, record); err != nil {
		mapError(w, err)
		return
	}

	entry.ID = record.ID
	a.audit.logEvent(AuditEntryCreated, r, accountID)
	writeJSON(w, http.StatusCreated, entry)
}

// ListEntries handles GET /accounts/{accountID}/entries.
// Records that fail to decrypt are reported alongside the ones that
// succeed, never instead of them.
func (a *API) ListEntries(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	records, err := a.repo.ListRecords(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	result, err := s.DecryptMany(r.Context(), records, 0)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := ListEntriesResponse{Entries: result.Entries}
	for _, failure := range result.Failures {
		resp.Failures = append(resp.Failures, EntryFailure{
			ID:    failure.ID,
			Error: failure.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntry handles GET /accounts/{accountID}/entries/{entryID}.
func (a *API) GetEntry(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	entryID := chi.URLParam(r, "entryID")

	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	record, err := a.repo.GetRecord(accountID, entryID)
	if err != nil {
		mapError(w, err)
		return
	}

	entry, err := s.DecryptEntry(r.Context(), record)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// UpdateEntry handles PUT /accounts/{accountID}/entries/{entryID}.
// Re-encrypting produces fresh nonces for every field envelope.
func (a *API) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	entryID := chi.URLParam(r, "entryID")
	req, ok := decodeJSON[EntryRequest](w, r, maxEntryBodySize)
	if !ok {
		return
	}

	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	if _, err := a.repo.GetRecord(accountID, entryID); err != nil {
		mapError(w, err)
		return
	}

	entry := entryFromRequest(req, entryID)
	record, err := s.EncryptEntry(r.Context(), entry)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.repo.PutRecord(accountID, record); err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditEntryUpdated, r, accountID)
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /accounts/{accountID}/entries/{entryID}.
func (a *API) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	entryID := chi.URLParam(r, "entryID")

	if err := a.repo.DeleteRecord(accountID, entryID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditEntryDeleted, r, accountID)
	w.WriteHeader(http.StatusNoContent)
}

// CreateFolder handles POST /accounts/{accountID}/folders.
func (a *API) CreateFolder(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	req, ok := decodeJSON[FolderRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "folder name is required")
		return
	}

	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	enc, err := s.EncryptFolderName(r.Context(), vault.Folder{Name: req.Name})
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.repo.PutFolder(accountID, enc); err != nil {
		mapError(w, err)
		return
	}

	a.audit.logEvent(AuditFolderCreated, r, accountID)
	writeJSON(w, http.StatusCreated, vault.Folder{ID: enc.ID, Name: req.Name})
}

// ListFolders handles GET /accounts/{accountID}/folders.
func (a *API) ListFolders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	s, err := a.session(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	encrypted, err := a.repo.ListFolders(accountID)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := ListFoldersResponse{Folders: make([]vault.Folder, 0, len(encrypted))}
	for i := range encrypted {
		folder, err := s.DecryptFolderName(r.Context(), &encrypted[i])
		if err != nil {
			if errors.Is(err, vault.ErrVaultLocked) || errors.Is(err, vault.ErrSessionClosed) {
				mapError(w, err)
				return
			}
			resp.Failures = append(resp.Failures, EntryFailure{
				ID:    encrypted[i].ID,
				Error: err.Error(),
			})
			continue
		}
		resp.Folders = append(resp.Folders, folder)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteFolder handles DELETE /accounts/{accountID}/folders/{folderID}.
func (a *API) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	folderID := chi.URLParam(r, "folderID")

	if err := a.repo.DeleteFolder(accountID, folderID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditFolderDeleted, r, accountID)
	w.WriteHeader(http.StatusNoContent)
}
