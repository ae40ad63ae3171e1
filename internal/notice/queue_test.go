package notice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/auth-gateway/internal/notice"
	"github.com/openkcm/auth-gateway/internal/sessionstore/memstore"
)

func TestSessionQueue(t *testing.T) {
	t.Run("should drain queued notices in order, once", func(t *testing.T) {
		q := notice.NewSessionQueue(memstore.New())
		ctx := t.Context()

		require.NoError(t, q.Queue(ctx, "sid", notice.SeverityWarning, "Logging in has been canceled."))
		require.NoError(t, q.Queue(ctx, "sid", notice.SeverityError, "Could not authenticate."))

		got, err := q.Drain(ctx, "sid")
		require.NoError(t, err)
		assert.Equal(t, []notice.Notice{
			{Severity: notice.SeverityWarning, Text: "Logging in has been canceled."},
			{Severity: notice.SeverityError, Text: "Could not authenticate."},
		}, got)

		got, err = q.Drain(ctx, "sid")
		require.NoError(t, err)
		assert.Empty(t, got, "a second drain must come back empty")
	})

	t.Run("should keep sessions apart", func(t *testing.T) {
		q := notice.NewSessionQueue(memstore.New())
		ctx := t.Context()

		require.NoError(t, q.Queue(ctx, "sid-a", notice.SeverityStatus, "Account successfully connected."))

		got, err := q.Drain(ctx, "sid-b")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
