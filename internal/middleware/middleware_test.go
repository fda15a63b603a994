package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyMsg struct{}

func TestIdentity(t *testing.T) {
	var got string
	next := func(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
		got = GetUserID(ctx)
		return nil, nil
	}
	handler := Identity()(next)

	req := connect.NewRequest(&emptyMsg{})
	req.Header().Set(UserIDHeader, " alice ")
	_, err := handler(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	_, err = handler(context.Background(), connect.NewRequest(&emptyMsg{}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

type fakeObserver struct {
	codes []string
}

func (f *fakeObserver) ObserveRPC(_, code string, _ time.Duration) {
	f.codes = append(f.codes, code)
}

func TestMetricsInterceptor(t *testing.T) {
	obs := &fakeObserver{}
	fail := connect.NewError(connect.CodeAborted, errors.New("busy"))

	ok := MetricsInterceptor(obs)(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, nil
	})
	bad := MetricsInterceptor(obs)(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, fail
	})

	_, err := ok(context.Background(), connect.NewRequest(&emptyMsg{}))
	require.NoError(t, err)
	_, err = bad(context.Background(), connect.NewRequest(&emptyMsg{}))
	assert.ErrorIs(t, err, fail)

	assert.Equal(t, []string{"ok", "aborted"}, obs.codes)
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	plain := errors.New("disk on fire")
	handler := LoggingInterceptor()(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, plain
	})

	_, err := handler(WithUserID(context.Background(), "bob"), connect.NewRequest(&emptyMsg{}))
	assert.ErrorIs(t, err, plain)
}
