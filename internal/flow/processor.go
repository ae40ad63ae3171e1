package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gateway/internal/client"
	"github.com/openkcm/auth-gateway/internal/notice"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

// userDeclinedErrors are the authorization-server error codes meaning the
// user did not grant authorization for the requested claims. They produce a
// neutral notice, not an error.
var userDeclinedErrors = []string{
	"interaction_required",
	"login_required",
	"account_selection_required",
	"consent_required",
}

// ClientResolver resolves a named client configuration into an instance.
type ClientResolver interface {
	Resolve(ctx context.Context, name string) (client.Client, error)
}

// LoginCompleter finishes a login operation with the retrieved tokens:
// mapping the external identity to a local account and authenticating the
// session. Failures are result values, never errors.
type LoginCompleter interface {
	CompleteLogin(ctx context.Context, sessionID string, cl client.Client, tokens *client.TokenSet, destination Destination) Result
}

// LinkCompleter associates the external identity with an existing local
// account.
type LinkCompleter interface {
	CompleteLink(ctx context.Context, userID string, cl client.Client, tokens *client.TokenSet) Result
}

// CallbackInput carries everything the processor needs from the callback
// request: the authorization server's query parameters and the session
// context the gate already admitted.
type CallbackInput struct {
	SessionID string

	// CurrentUserID is the authenticated user of the session at callback
	// time, empty for anonymous. Connect flows are only completed when it
	// matches the user the flow was started for.
	CurrentUserID string

	Code             string
	Error            string
	ErrorDescription string
}

type CallbackResult struct {
	Outcome     Outcome
	RedirectURL string
}

// Processor is the callback state machine. It turns an authorization-server
// response into exactly one outcome, queues the matching notice, and
// computes the post-flow redirect.
type Processor struct {
	clients ClientResolver
	pending *PendingAuthorization
	notices notice.Sink
	login   LoginCompleter
	link    LinkCompleter
	baseURL *url.URL
}

func NewProcessor(
	clients ClientResolver,
	pending *PendingAuthorization,
	notices notice.Sink,
	login LoginCompleter,
	link LinkCompleter,
	baseURL *url.URL,
) *Processor {
	return &Processor{
		clients: clients,
		pending: pending,
		notices: notices,
		login:   login,
		link:    link,
		baseURL: baseURL,
	}
}

// Process consumes the pending authorization context and classifies the
// callback. The only error it returns is serviceerr.ErrFlowNotRecognised
// (plus storage failures); authorization-server errors and collaborator
// failures are absorbed into notices, and the flow still ends in a
// redirect.
func (p *Processor) Process(ctx context.Context, in CallbackInput) (CallbackResult, error) {
	// Tear the pending context down first, before any branching, so a
	// failure below cannot leak it into the next flow.
	pending, err := p.pending.LoadAndClear(ctx, in.SessionID)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("clearing pending authorization: %w", err)
	}

	cl, err := p.clients.Resolve(ctx, pending.ClientName)
	if err != nil {
		// Any resolution failure means the flow is not recognised.
		if !errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Failed to resolve client", "client", pending.ClientName, "error", err)
		}
		cl = nil
	}

	if in.Error == "" && (cl == nil || in.Code == "") {
		// No error, but the client could not be loaded or no code was
		// handed over: the endpoint is being visited outside of a login
		// flow.
		return CallbackResult{}, serviceerr.ErrFlowNotRecognised
	}

	var outcome Outcome
	switch {
	case in.Error != "":
		outcome = p.processError(ctx, in, pending)
	default:
		outcome = p.processTokens(ctx, in, pending, cl)
	}

	return CallbackResult{
		Outcome:     outcome,
		RedirectURL: p.destinationURL(pending.Destination),
	}, nil
}

func (p *Processor) processError(ctx context.Context, in CallbackInput, pending Pending) Outcome {
	if slices.Contains(userDeclinedErrors, in.Error) {
		// The user has not granted the authorization for the claims.
		p.queueNotice(ctx, in.SessionID, notice.SeverityWarning, "Logging in has been canceled.")

		return Outcome{Kind: OutcomeUserCancelled}
	}

	// Any other error should be logged. E.g. invalid scope.
	description := in.ErrorDescription
	if description == "" {
		description = "Unknown error."
	}

	slogctx.Error(ctx, "Authorization failed",
		"client", pending.ClientName,
		"error", in.Error,
		"details", description,
	)
	p.queueNotice(ctx, in.SessionID, notice.SeverityError, "Could not authenticate.")

	return Outcome{
		Kind:             OutcomeAuthorizationError,
		ErrorCode:        in.Error,
		ErrorDescription: description,
	}
}

func (p *Processor) processTokens(ctx context.Context, in CallbackInput, pending Pending, cl client.Client) Outcome {
	tokens, err := cl.RetrieveTokens(ctx, in.Code)
	if err != nil {
		slogctx.Debug(ctx, "Token retrieval failed", "client", cl.Name(), "error", err)
		tokens = nil
	}

	if tokens == nil || (tokens.AccessToken == "" && tokens.IDToken == "") {
		return Outcome{Kind: OutcomeNotApplicable}
	}

	switch pending.Operation {
	case OperationLogin:
		result := p.login.CompleteLogin(ctx, in.SessionID, cl, tokens, pending.Destination)
		if !result.OK {
			slogctx.Debug(ctx, "Login completion failed", "client", cl.Name(), "reason", result.Reason)
			p.queueNotice(ctx, in.SessionID, notice.SeverityError,
				fmt.Sprintf("Logging in with %s could not be completed due to an error. The provider may not have released your email address.", cl.DisplayName()))
		}

		return Outcome{Kind: OutcomeLoginCompleted, OK: result.OK}
	case OperationConnect:
		if pending.ConnectUserID == "" || pending.ConnectUserID != in.CurrentUserID {
			// A connect flow started under a different identity is not
			// completed, and not reported either.
			return Outcome{Kind: OutcomeNotApplicable}
		}

		result := p.link.CompleteLink(ctx, in.CurrentUserID, cl, tokens)
		if result.OK {
			p.queueNotice(ctx, in.SessionID, notice.SeverityStatus,
				fmt.Sprintf("Account successfully connected with %s.", cl.DisplayName()))
		} else {
			slogctx.Debug(ctx, "Link completion failed", "client", cl.Name(), "reason", result.Reason)
			p.queueNotice(ctx, in.SessionID, notice.SeverityError,
				fmt.Sprintf("Connecting with %s could not be completed due to an error.", cl.DisplayName()))
		}

		return Outcome{Kind: OutcomeLinkCompleted, OK: result.OK}
	default:
		return Outcome{Kind: OutcomeNotApplicable}
	}
}

func (p *Processor) destinationURL(destination Destination) string {
	u := p.baseURL.JoinPath(strings.TrimLeft(destination.Path, "/"))
	if len(destination.Query) > 0 {
		u.RawQuery = destination.Query.Encode()
	}

	return u.String()
}

func (p *Processor) queueNotice(ctx context.Context, sessionID string, severity notice.Severity, text string) {
	if err := p.notices.Queue(ctx, sessionID, severity, text); err != nil {
		slogctx.Warn(ctx, "Failed to queue notice", "error", err)
	}
}
