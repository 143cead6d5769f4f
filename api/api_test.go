package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/api"
	"github.com/keyfold/keyfold/storage/memory"
	"github.com/keyfold/keyfold/vault"
)

const testPassword = "correct-horse"

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := memory.NewRepository()
	a := api.New(repo)
	t.Cleanup(a.Close)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createAccount(t *testing.T, baseURL string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/v1/accounts", map[string]string{
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[api.CreateAccountResponse](t, resp)
	require.NotEmpty(t, created.AccountID)
	return created.AccountID
}

func unlock(t *testing.T, baseURL, accountID, password string) *http.Response {
	t.Helper()
	return doJSON(t, http.MethodPost, baseURL+"/api/v1/accounts/"+accountID+"/unlock", map[string]string{
		"password": password,
	})
}

func TestCreateAccountAndUnlock(t *testing.T) {
	srv := setupServer(t)
	accountID := createAccount(t, srv.URL)

	resp := unlock(t, srv.URL, accountID, testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeBody[api.SessionResponse](t, resp)
	assert.Equal(t, vault.StateUnlocked.String(), session.State)
	assert.NotEmpty(t, session.UnlockedAt)
}

func TestUnlockWrongPassword(t *testing.T) {
	srv := setupServer(t)
	accountID := createAccount(t, srv.URL)

	resp := unlock(t, srv.URL, accountID, "battery-staple")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnlockUnknownAccount(t *testing.T) {
	srv := setupServer(t)

	resp := unlock(t, srv.URL, "nobody", testPassword)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAccount_MissingPassword(t *testing.T) {
	srv := setupServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/accounts", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	srv := setupServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/accounts", map[string]string{
		"account_id": "alice",
		"password":   testPassword,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/accounts", map[string]string{
		"account_id": "alice",
		"password":   testPassword,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEntryLifecycle(t *testing.T) {
	srv := setupServer(t)
	accountID := createAccount(t, srv.URL)
	base := srv.URL + "/api/v1/accounts/" + accountID

	// Locked session fails closed.
	resp := doJSON(t, http.MethodPost, base+"/entries", api.EntryRequest{Name: "GitHub"})
	resp.Body.Close()
	require.Equal(t, http.StatusLocked, resp.StatusCode)

	resp = unlock(t, srv.URL, accountID, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Create.
	resp = doJSON(t, http.MethodPost, base+"/entries", api.EntryRequest{
		Name: "GitHub",
		Data: vault.EntryData{Username: "me", Secret: "s3cr3t"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[vault.PlaintextEntry](t, resp)
	require.NotEmpty(t, created.ID)

	// Read back.
	resp = doJSON(t, http.MethodGet, base+"/entries/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[vault.PlaintextEntry](t, resp)
	assert.Equal(t, "GitHub", got.Name)
	assert.Equal(t, "s3cr3t", got.Data.Secret)

	// Update.
	resp = doJSON(t, http.MethodPut, base+"/entries/"+created.ID, api.EntryRequest{
		Name: "GitHub",
		Data: vault.EntryData{Username: "me", Secret: "rotated"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// List.
	resp = doJSON(t, http.MethodGet, base+"/entries", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[api.ListEntriesResponse](t, resp)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "rotated", list.Entries[0].Data.Secret)
	assert.Empty(t, list.Failures)

	// Delete.
	resp = doJSON(t, http.MethodDelete, base+"/entries/"+created.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/entries/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLockBlocksReads(t *testing.T) {
	srv := setupServer(t)
	accountID := createAccount(t, srv.URL)
	base := srv.URL + "/api/v1/accounts/" + accountID

	resp := unlock(t, srv.URL, accountID, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/entries", api.EntryRequest{Name: "GitHub"})
	created := decodeBody[vault.PlaintextEntry](t, resp)

	resp = doJSON(t, http.MethodPost, base+"/lock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeBody[api.SessionResponse](t, resp)
	assert.Equal(t, vault.StateLocked.String(), session.State)

	resp = doJSON(t, http.MethodGet, base+"/entries/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
}

func TestRotateMasterPassword(t *testing.T) {
	srv := setupServer(t)
	accountID := createAccount(t, srv.URL)
	base := srv.URL + "/api/v1/accounts/" + accountID

	resp := unlock(t, srv.URL, accountID, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/entries", api.EntryRequest{
		Name: "GitHub",
		Data: vault.EntryData{Secret: "s3cr3t"},
	})
	created := decodeBody[vault.PlaintextEntry](t, resp)

	// Wrong old password is rejected.
	resp = doJSON(t, http.MethodPost, base+"/rotate", api.RotateRequest{
		OldPassword: "battery-staple",
		NewPassword: "new-password",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/rotate", api.RotateRequest{
		OldPassword: testPassword,
		NewPassword: "new-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decodeBody[api.SessionResponse](t, resp)
	assert.Equal(t, vault.StateLocked.String(), session.State)

	// The old password no longer unlocks.
	resp = unlock(t, srv.URL, accountID, testPassword)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The new one does, and old entries still decrypt.
	resp = unlock(t, srv.URL, accountID, "new-password")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, base+"/entries/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[vault.PlaintextEntry](t, resp)
	assert.Equal(t, "s3cr3t", got.Data.Secret)
}

func TestFolders(t *testing.T) {
	srv := setupServer(t)
	accountID := createAccount(t, srv.URL)
	base := srv.URL + "/api/v1/accounts/" + accountID

	resp := unlock(t, srv.URL, accountID, testPassword)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/folders", api.FolderRequest{Name: "Work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	folder := decodeBody[vault.Folder](t, resp)
	require.NotEmpty(t, folder.ID)

	resp = doJSON(t, http.MethodGet, base+"/folders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[api.ListFoldersResponse](t, resp)
	require.Len(t, list.Folders, 1)
	assert.Equal(t, "Work", list.Folders[0].Name)

	resp = doJSON(t, http.MethodDelete, base+"/folders/"+folder.ID, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))
}
