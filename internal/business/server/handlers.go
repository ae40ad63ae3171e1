package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gateway/internal/flow"
	"github.com/openkcm/auth-gateway/internal/identity"
	"github.com/openkcm/auth-gateway/internal/notice"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

// GatewayServer carries the handlers of the public authentication
// endpoints.
type GatewayServer struct {
	tokens     *flow.StateToken
	pending    *flow.PendingAuthorization
	gate       *flow.RedirectGate
	processor  *flow.Processor
	clients    flow.ClientResolver
	notices    *notice.SessionQueue
	identities *identity.Service
}

func NewGatewayServer(
	tokens *flow.StateToken,
	pending *flow.PendingAuthorization,
	gate *flow.RedirectGate,
	processor *flow.Processor,
	clients flow.ClientResolver,
	notices *notice.SessionQueue,
	identities *identity.Service,
) *GatewayServer {
	return &GatewayServer{
		tokens:     tokens,
		pending:    pending,
		gate:       gate,
		processor:  processor,
		clients:    clients,
		notices:    notices,
		identities: identities,
	}
}

// StartLogin begins a login flow against the named client: it issues the
// state token, saves the pending context and redirects to the authorization
// server.
func (s *GatewayServer) StartLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDFromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract session id", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s.startFlow(w, r, flow.Pending{
		ClientName:  chi.URLParam(r, "client"),
		Operation:   flow.OperationLogin,
		Destination: destinationFromForm(r),
	}, sessionID)
}

// StartConnect begins an account-link flow for the authenticated user.
func (s *GatewayServer) StartConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDFromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract session id", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID, err := s.identities.CurrentUserID(ctx, sessionID)
	if err != nil {
		slogctx.Error(ctx, "Failed to load session user", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if userID == "" {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	destination := destinationFromForm(r)
	if destination.IsZero() {
		destination = flow.Destination{Path: "user/settings"}
	}

	s.startFlow(w, r, flow.Pending{
		ClientName:    chi.URLParam(r, "client"),
		Operation:     flow.OperationConnect,
		ConnectUserID: userID,
		Destination:   destination,
	}, sessionID)
}

func (s *GatewayServer) startFlow(w http.ResponseWriter, r *http.Request, pending flow.Pending, sessionID string) {
	ctx := r.Context()

	cl, err := s.clients.Resolve(ctx, pending.ClientName)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			http.NotFound(w, r)
			return
		}

		slogctx.Error(ctx, "Failed to resolve client", "client", pending.ClientName, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state, err := s.tokens.Issue(ctx, sessionID)
	if err != nil {
		slogctx.Error(ctx, "Failed to issue state token", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := s.pending.Save(ctx, sessionID, pending); err != nil {
		slogctx.Error(ctx, "Failed to save pending authorization", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	authURL, err := cl.AuthorizationURL(ctx, state)
	if err != nil {
		slogctx.Error(ctx, "Failed to build authorization URL", "client", pending.ClientName, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slogctx.Debug(ctx, "Starting authorization flow",
		"client", pending.ClientName,
		"operation", string(pending.Operation),
	)

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback terminates the authorization flow. The state gate runs, and
// must allow, before anything else; a rejected state is a hard denial.
func (s *GatewayServer) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDFromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract session id", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()

	allowed, err := s.gate.Access(ctx, sessionID, query.Get("state"))
	if err != nil {
		slogctx.Error(ctx, "Failed to confirm state token", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if !allowed {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	userID, err := s.identities.CurrentUserID(ctx, sessionID)
	if err != nil {
		slogctx.Warn(ctx, "Failed to load session user, continuing anonymously", "error", err)
		userID = ""
	}

	result, err := s.processor.Process(ctx, flow.CallbackInput{
		SessionID:        sessionID,
		CurrentUserID:    userID,
		Code:             query.Get("code"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	})
	if err != nil {
		if errors.Is(err, serviceerr.ErrFlowNotRecognised) {
			http.NotFound(w, r)
			return
		}

		slogctx.Error(ctx, "Failed to process callback", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slogctx.Debug(ctx, "Callback processed",
		"outcome", string(result.Outcome.Kind),
		"redirect", result.RedirectURL,
	)

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Notices drains the session's queued notices for the UI to present.
func (s *GatewayServer) Notices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := sessionIDFromContext(ctx)
	if err != nil {
		slogctx.Error(ctx, "Failed to extract session id", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	notices, err := s.notices.Drain(ctx, sessionID)
	if err != nil {
		slogctx.Error(ctx, "Failed to drain notices", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if notices == nil {
		notices = []notice.Notice{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(notices); err != nil {
		slogctx.Error(ctx, "Failed to encode notices", "error", err)
	}
}

// destinationFromForm reads the optional post-flow destination, an internal
// path with optional query options, from the start request.
func destinationFromForm(r *http.Request) flow.Destination {
	value := r.FormValue("destination")
	if value == "" {
		return flow.Destination{}
	}

	u, err := url.Parse(value)
	if err != nil || u.IsAbs() || u.Host != "" {
		// off-site destinations are not honored
		return flow.Destination{}
	}

	destination := flow.Destination{Path: u.Path}
	if q := u.Query(); len(q) > 0 {
		destination.Query = q
	}

	return destination
}
