// Package api exposes the vault over REST. Handlers only ever move
// ciphertext in and out of storage; plaintext exists in responses alone,
// for the account's own unlocked session.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/keyfold/keyfold/envelope"
	"github.com/keyfold/keyfold/storage"
	"github.com/keyfold/keyfold/vault"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo  storage.Repository
	audit *auditLogger

	mu       sync.Mutex
	sessions map[string]*vault.Session

	idleTimeout  time.Duration
	envelopeType envelope.Type
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithIdleTimeout sets the idle timeout applied to every account session.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *API) {
		a.idleTimeout = d
	}
}

// WithEnvelopeType sets the cipher variant used for new accounts and new
// seals. Default: XChaCha20-Poly1305.
func WithEnvelopeType(typ envelope.Type) Option {
	return func(a *API) {
		a.envelopeType = typ
	}
}

// New creates a new API instance.
func New(repo storage.Repository, opts ...Option) *API {
	a := &API{
		repo:         repo,
		sessions:     make(map[string]*vault.Session),
		idleTimeout:  vault.DefaultIdleTimeout,
		envelopeType: envelope.XChaCha20Poly1305,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Close locks and closes every live session.
func (a *API) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, s := range a.sessions {
		s.Close()
		delete(a.sessions, id)
	}
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/accounts", a.CreateAccount)

	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Post("/unlock", a.Unlock)
		r.Post("/lock", a.Lock)
		r.Get("/session", a.SessionStatus)
		r.Post("/rotate", a.RotateMasterPassword)

		r.Route("/entries", func(r chi.Router) {
			r.Post("/", a.CreateEntry)
			r.Get("/", a.ListEntries)
			r.Get("/{entryID}", a.GetEntry)
			r.Put("/{entryID}", a.UpdateEntry)
			r.Delete("/{entryID}", a.DeleteEntry)
		})

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", a.CreateFolder)
			r.Get("/", a.ListFolders)
			r.Delete("/{folderID}", a.DeleteFolder)
		})
	})

	return r
}

// session returns the live session for an account, creating a locked one
// from the stored keyslot on first use.
func (a *API) session(accountID string) (*vault.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[accountID]; ok {
		return s, nil
	}
	keyslot, err := a.repo.GetKeyslot(accountID)
	if err != nil {
		return nil, err
	}
	s := vault.NewSession(&keyslot.Wrapped, keyslot.Params,
		vault.WithIdleTimeout(a.idleTimeout),
		vault.WithEnvelopeType(a.envelopeType),
	)
	a.sessions[accountID] = s
	return s, nil
}

// dropSession closes an account's live session so the next request builds
// a fresh one from the stored keyslot. Used after rotation.
func (a *API) dropSession(accountID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[accountID]; ok {
		s.Close()
		delete(a.sessions, accountID)
	}
}
