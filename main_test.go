package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/p3exporter/fritzbox_exporter/internal/fritzhome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRefusingBox answers every login with an empty session id.
func newRefusingBox(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, `<SessionInfo><SID>0000000000000000</SID><Challenge>1234567z</Challenge><BlockTime>0</BlockTime></SessionInfo>`)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLoginFailureIsFatal(t *testing.T) {
	host := newRefusingBox(t)
	conns := []ConnectionConfig{
		{Name: "home", Hostname: host, Username: "admin", Password: "wrong", SSLVerify: true},
		{Name: "office", Hostname: host, Username: "other", Password: "wrong", SSLVerify: true},
	}

	connections, _, err := login(context.Background(), conns, time.Second, log.NewNopLogger())
	require.Error(t, err)
	assert.Nil(t, connections)

	var loginErr *fritzhome.LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "admin", loginErr.Account)
}

func TestLoginWithoutConnections(t *testing.T) {
	connections, sessions, err := login(context.Background(), nil, time.Second, log.NewNopLogger())
	require.NoError(t, err)
	assert.Empty(t, connections)
	assert.Empty(t, sessions)
}
