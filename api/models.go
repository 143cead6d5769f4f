package api

import "github.com/keyfold/keyfold/vault"

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateAccountRequest is the JSON body for POST /accounts.
type CreateAccountRequest struct {
	AccountID string `json:"account_id,omitempty"`
	Password  string `json:"password"`
}

// CreateAccountResponse is returned from POST /accounts.
type CreateAccountResponse struct {
	AccountID string `json:"account_id"`
}

// UnlockRequest is the JSON body for POST /accounts/{accountID}/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// SessionResponse describes the state of an account's session.
type SessionResponse struct {
	State      string `json:"state"`
	UnlockedAt string `json:"unlocked_at,omitempty"`
}

// RotateRequest is the JSON body for POST /accounts/{accountID}/rotate.
type RotateRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// EntryRequest is the JSON body for creating or updating an entry.
type EntryRequest struct {
	FolderID string          `json:"folderId,omitempty"`
	Favorite bool            `json:"favorite"`
	Name     string          `json:"name"`
	Data     vault.EntryData `json:"data"`
	Notes    string          `json:"notes,omitempty"`
}

// EntryFailure reports one stored record that could not be decrypted.
type EntryFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ListEntriesResponse is returned from GET /accounts/{accountID}/entries.
// Failures lists records that failed to decrypt; they never suppress the
// entries that did.
type ListEntriesResponse struct {
	Entries  []vault.PlaintextEntry `json:"entries"`
	Failures []EntryFailure         `json:"failures,omitempty"`
}

// FolderRequest is the JSON body for creating a folder.
type FolderRequest struct {
	Name string `json:"name"`
}

// ListFoldersResponse is returned from GET /accounts/{accountID}/folders.
type ListFoldersResponse struct {
	Folders  []vault.Folder `json:"folders"`
	Failures []EntryFailure `json:"failures,omitempty"`
}
