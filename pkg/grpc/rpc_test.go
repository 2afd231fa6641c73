package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Text string `json:"text"`
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer()
	s.Register("Echo.Say", func(_ context.Context, raw json.RawMessage) (any, error) {
		var p echoParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return echoParams{Text: "echo " + p.Text}, nil
	})
	s.Register("Echo.Fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	})
	go func() { _ = s.Serve("127.0.0.1:0") }()
	t.Cleanup(s.Stop)
	return s
}

func TestCallRoundTrip(t *testing.T) {
	s := startServer(t)
	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	var out echoParams
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "hi"}, &out))
	assert.Equal(t, "echo hi", out.Text)
	assert.Equal(t, 2, s.MethodCount())
}

func TestCallErrors(t *testing.T) {
	s := startServer(t)
	c, err := Dial(s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "Echo.Fail", echoParams{}, nil)
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "nope")

	err = c.Call(context.Background(), "Echo.Missing", echoParams{}, nil)
	assert.ErrorIs(t, err, ErrRemote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Call(ctx, "Echo.Say", echoParams{}, nil), context.Canceled)
}
