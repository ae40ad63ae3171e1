package flow_test

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gateway/internal/client"
	"github.com/openkcm/auth-gateway/internal/flow"
	"github.com/openkcm/auth-gateway/internal/notice"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
	"github.com/openkcm/auth-gateway/internal/sessionstore/memstore"
)

type fakeClient struct {
	name   string
	tokens *client.TokenSet
	err    error

	retrieveCalls int
}

func (c *fakeClient) Name() string        { return c.name }
func (c *fakeClient) DisplayName() string { return "Acme ID" }

func (c *fakeClient) AuthorizationURL(context.Context, string) (string, error) {
	return "https://id.acme.example/authorize", nil
}

func (c *fakeClient) RetrieveTokens(context.Context, string) (*client.TokenSet, error) {
	c.retrieveCalls++
	return c.tokens, c.err
}

type fakeResolver struct {
	clients map[string]client.Client
}

func (r *fakeResolver) Resolve(_ context.Context, name string) (client.Client, error) {
	if cl, ok := r.clients[name]; ok {
		return cl, nil
	}

	return nil, serviceerr.ErrNotFound
}

type fakeLoginCompleter struct {
	result flow.Result

	calls      int
	gotTokens  *client.TokenSet
	gotDest    flow.Destination
	gotClient  client.Client
	gotSession string
}

func (f *fakeLoginCompleter) CompleteLogin(_ context.Context, sessionID string, cl client.Client, tokens *client.TokenSet, destination flow.Destination) flow.Result {
	f.calls++
	f.gotSession = sessionID
	f.gotClient = cl
	f.gotTokens = tokens
	f.gotDest = destination

	return f.result
}

type fakeLinkCompleter struct {
	result flow.Result

	calls     int
	gotUserID string
	gotTokens *client.TokenSet
}

func (f *fakeLinkCompleter) CompleteLink(_ context.Context, userID string, _ client.Client, tokens *client.TokenSet) flow.Result {
	f.calls++
	f.gotUserID = userID
	f.gotTokens = tokens

	return f.result
}

// recordingHandler captures slog records so tests can assert on severity.
type recordingHandler struct {
	mu      *sync.Mutex
	records *[]slog.Record
}

func newRecordingHandler() recordingHandler {
	return recordingHandler{
		mu:      &sync.Mutex{},
		records: &[]slog.Record{},
	}
}

func (h recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, r)

	return nil
}

func (h recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h recordingHandler) errorRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []slog.Record
	for _, r := range *h.records {
		if r.Level >= slog.LevelError {
			out = append(out, r)
		}
	}

	return out
}

type processorFixture struct {
	processor *flow.Processor
	pending   *flow.PendingAuthorization
	notices   *notice.SessionQueue
	login     *fakeLoginCompleter
	link      *fakeLinkCompleter
	handler   recordingHandler
	ctx       context.Context
}

func newProcessorFixture(t *testing.T, cl client.Client, loginResult, linkResult flow.Result) *processorFixture {
	t.Helper()

	sessions := memstore.New()
	pending := flow.NewPendingAuthorization(sessions)
	notices := notice.NewSessionQueue(sessions)
	login := &fakeLoginCompleter{result: loginResult}
	link := &fakeLinkCompleter{result: linkResult}

	resolver := &fakeResolver{clients: map[string]client.Client{}}
	if cl != nil {
		resolver.clients[cl.Name()] = cl
	}

	baseURL, err := url.Parse("http://gw.example.com")
	require.NoError(t, err)

	handler := newRecordingHandler()

	return &processorFixture{
		processor: flow.NewProcessor(resolver, pending, notices, login, link, baseURL),
		pending:   pending,
		notices:   notices,
		login:     login,
		link:      link,
		handler:   handler,
		ctx:       slogctx.NewCtx(t.Context(), slog.New(handler)),
	}
}

func (f *processorFixture) drainNotices(t *testing.T) []notice.Notice {
	t.Helper()

	drained, err := f.notices.Drain(f.ctx, "sid")
	require.NoError(t, err)

	return drained
}

func validTokens() *client.TokenSet {
	return &client.TokenSet{
		AccessToken: "access-token",
		IDToken:     "id-token",
		TokenType:   "Bearer",
	}
}

func TestProcessor_FlowNotRecognised(t *testing.T) {
	tests := []struct {
		name    string
		cl      client.Client
		pending *flow.Pending
		input   flow.CallbackInput
	}{
		{
			name:  "should reject a callback without a pending flow",
			cl:    &fakeClient{name: "acme", tokens: validTokens()},
			input: flow.CallbackInput{SessionID: "sid", Code: "abc123"},
		},
		{
			name:    "should reject when the client cannot be resolved",
			cl:      nil,
			pending: &flow.Pending{ClientName: "acme"},
			input:   flow.CallbackInput{SessionID: "sid", Code: "abc123"},
		},
		{
			name:    "should reject when the code parameter is missing",
			cl:      &fakeClient{name: "acme", tokens: validTokens()},
			pending: &flow.Pending{ClientName: "acme"},
			input:   flow.CallbackInput{SessionID: "sid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProcessorFixture(t, tt.cl, flow.Result{OK: true}, flow.Result{OK: true})

			if tt.pending != nil {
				require.NoError(t, f.pending.Save(f.ctx, "sid", *tt.pending))
			}

			_, err := f.processor.Process(f.ctx, tt.input)
			assert.ErrorIs(t, err, serviceerr.ErrFlowNotRecognised)
		})
	}
}

func TestProcessor_UserCancelled(t *testing.T) {
	for _, code := range []string{
		"interaction_required",
		"login_required",
		"account_selection_required",
		"consent_required",
	} {
		t.Run(code, func(t *testing.T) {
			cl := &fakeClient{name: "acme", tokens: validTokens()}
			f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
			require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{ClientName: "acme"}))

			got, err := f.processor.Process(f.ctx, flow.CallbackInput{SessionID: "sid", Error: code})
			require.NoError(t, err)

			assert.Equal(t, flow.OutcomeUserCancelled, got.Outcome.Kind)
			assert.Equal(t, "http://gw.example.com/user", got.RedirectURL)
			assert.Zero(t, cl.retrieveCalls, "no token exchange may be attempted")
			assert.Empty(t, f.handler.errorRecords(), "a cancellation is not an error")

			notices := f.drainNotices(t)
			require.Len(t, notices, 1)
			assert.Equal(t, notice.SeverityWarning, notices[0].Severity)
		})
	}
}

func TestProcessor_AuthorizationError(t *testing.T) {
	tests := []struct {
		name            string
		errParam        string
		errDescription  string
		wantDescription string
	}{
		{
			name:            "should log code and description",
			errParam:        "invalid_scope",
			errDescription:  "bad scope",
			wantDescription: "bad scope",
		},
		{
			name:            "should default a missing description",
			errParam:        "server_error",
			wantDescription: "Unknown error.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := &fakeClient{name: "acme", tokens: validTokens()}
			f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
			require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{ClientName: "acme"}))

			got, err := f.processor.Process(f.ctx, flow.CallbackInput{
				SessionID:        "sid",
				Error:            tt.errParam,
				ErrorDescription: tt.errDescription,
			})
			require.NoError(t, err)

			assert.Equal(t, flow.Outcome{
				Kind:             flow.OutcomeAuthorizationError,
				ErrorCode:        tt.errParam,
				ErrorDescription: tt.wantDescription,
			}, got.Outcome)
			assert.Equal(t, "http://gw.example.com/user", got.RedirectURL)
			assert.Zero(t, cl.retrieveCalls, "no token exchange may be attempted")

			errorRecords := f.handler.errorRecords()
			require.Len(t, errorRecords, 1, "exactly one error entry is expected")

			attrs := map[string]string{}
			errorRecords[0].Attrs(func(a slog.Attr) bool {
				attrs[a.Key] = a.Value.String()
				return true
			})
			assert.Equal(t, tt.errParam, attrs["error"])
			assert.Equal(t, tt.wantDescription, attrs["details"])
			assert.Equal(t, "acme", attrs["client"])

			notices := f.drainNotices(t)
			require.Len(t, notices, 1)
			assert.Equal(t, notice.SeverityError, notices[0].Severity)
		})
	}
}

func TestProcessor_Login(t *testing.T) {
	t.Run("should complete a login and redirect to the saved destination", func(t *testing.T) {
		cl := &fakeClient{name: "acme", tokens: validTokens()}
		f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{
			ClientName:  "acme",
			Operation:   flow.OperationLogin,
			Destination: flow.Destination{Path: "node/5", Query: url.Values{"x": {"1"}}},
		}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{SessionID: "sid", Code: "abc123"})
		require.NoError(t, err)

		assert.Equal(t, flow.Outcome{Kind: flow.OutcomeLoginCompleted, OK: true}, got.Outcome)
		assert.Equal(t, "http://gw.example.com/node/5?x=1", got.RedirectURL)

		assert.Equal(t, 1, f.login.calls)
		assert.Equal(t, "sid", f.login.gotSession)
		assert.Equal(t, validTokens(), f.login.gotTokens)
		assert.Equal(t, flow.Destination{Path: "node/5", Query: url.Values{"x": {"1"}}}, f.login.gotDest)

		assert.Empty(t, f.drainNotices(t))
	})

	t.Run("should queue an error notice on completion failure", func(t *testing.T) {
		cl := &fakeClient{name: "acme", tokens: validTokens()}
		f := newProcessorFixture(t, cl, flow.Result{Reason: "email claim not released by the provider"}, flow.Result{OK: true})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{ClientName: "acme"}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{SessionID: "sid", Code: "abc123"})
		require.NoError(t, err)

		assert.Equal(t, flow.Outcome{Kind: flow.OutcomeLoginCompleted, OK: false}, got.Outcome)
		assert.Equal(t, "http://gw.example.com/user", got.RedirectURL, "a failed completion still redirects")

		notices := f.drainNotices(t)
		require.Len(t, notices, 1)
		assert.Equal(t, notice.SeverityError, notices[0].Severity)
		assert.Contains(t, notices[0].Text, "email address")
	})

	t.Run("should silently no-op on an unusable token set", func(t *testing.T) {
		cl := &fakeClient{name: "acme", tokens: &client.TokenSet{TokenType: "Bearer"}}
		f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{ClientName: "acme"}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{SessionID: "sid", Code: "abc123"})
		require.NoError(t, err)

		assert.Equal(t, flow.OutcomeNotApplicable, got.Outcome.Kind)
		assert.Equal(t, "http://gw.example.com/user", got.RedirectURL)
		assert.Zero(t, f.login.calls)
		assert.Empty(t, f.drainNotices(t))
		assert.Empty(t, f.handler.errorRecords())
	})

	t.Run("should treat a failed exchange like an empty token set", func(t *testing.T) {
		cl := &fakeClient{name: "acme", err: errors.New("exchange failed")}
		f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{ClientName: "acme"}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{SessionID: "sid", Code: "abc123"})
		require.NoError(t, err)

		assert.Equal(t, flow.OutcomeNotApplicable, got.Outcome.Kind)
		assert.Zero(t, f.login.calls)
		assert.Empty(t, f.handler.errorRecords())
	})
}

func TestProcessor_Connect(t *testing.T) {
	t.Run("should link the account when the flow owner is current", func(t *testing.T) {
		cl := &fakeClient{name: "acme", tokens: validTokens()}
		f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{
			ClientName:    "acme",
			Operation:     flow.OperationConnect,
			ConnectUserID: "user-1",
		}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{
			SessionID:     "sid",
			CurrentUserID: "user-1",
			Code:          "abc123",
		})
		require.NoError(t, err)

		assert.Equal(t, flow.Outcome{Kind: flow.OutcomeLinkCompleted, OK: true}, got.Outcome)
		assert.Equal(t, 1, f.link.calls)
		assert.Equal(t, "user-1", f.link.gotUserID)

		notices := f.drainNotices(t)
		require.Len(t, notices, 1)
		assert.Equal(t, notice.SeverityStatus, notices[0].Severity)
	})

	t.Run("should silently skip a flow started under a different identity", func(t *testing.T) {
		cl := &fakeClient{name: "acme", tokens: validTokens()}
		f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{
			ClientName:    "acme",
			Operation:     flow.OperationConnect,
			ConnectUserID: "user-1",
		}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{
			SessionID:     "sid",
			CurrentUserID: "user-2",
			Code:          "abc123",
		})
		require.NoError(t, err)

		assert.Equal(t, flow.OutcomeNotApplicable, got.Outcome.Kind)
		assert.Equal(t, "http://gw.example.com/user", got.RedirectURL, "the mismatch still redirects")
		assert.Zero(t, f.link.calls, "no link may be attempted")
		assert.Empty(t, f.drainNotices(t), "no notice is surfaced")
	})

	t.Run("should queue an error notice when linking fails", func(t *testing.T) {
		cl := &fakeClient{name: "acme", tokens: validTokens()}
		f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{Reason: "already linked"})
		require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{
			ClientName:    "acme",
			Operation:     flow.OperationConnect,
			ConnectUserID: "user-1",
		}))

		got, err := f.processor.Process(f.ctx, flow.CallbackInput{
			SessionID:     "sid",
			CurrentUserID: "user-1",
			Code:          "abc123",
		})
		require.NoError(t, err)

		assert.Equal(t, flow.Outcome{Kind: flow.OutcomeLinkCompleted, OK: false}, got.Outcome)

		notices := f.drainNotices(t)
		require.Len(t, notices, 1)
		assert.Equal(t, notice.SeverityError, notices[0].Severity)
	})
}

func TestProcessor_ClearsPendingBeforeBranching(t *testing.T) {
	cl := &fakeClient{name: "acme", tokens: validTokens()}
	f := newProcessorFixture(t, cl, flow.Result{OK: true}, flow.Result{OK: true})
	require.NoError(t, f.pending.Save(f.ctx, "sid", flow.Pending{
		ClientName:  "acme",
		Destination: flow.Destination{Path: "node/5"},
	}))

	_, err := f.processor.Process(f.ctx, flow.CallbackInput{SessionID: "sid", Error: "consent_required"})
	require.NoError(t, err)

	// Even though the error branch never touched the destination, the whole
	// context is gone.
	got, err := f.pending.LoadAndClear(f.ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got.ClientName)
	assert.Equal(t, flow.Destination{Path: "user"}, got.Destination)
}
