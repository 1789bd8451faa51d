package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wechange-eg/conference-hub/config"
)

func TestClientReLoginOnTokenRejection(t *testing.T) {
	logins := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			logins++
			json.NewEncoder(w).Encode(map[string]string{"token": fmt.Sprintf("token-%d", logins)})
			return
		}
		// the first issued token is treated as expired
		if r.Header.Get("Authorization") != "Bearer token-2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "st-1"})
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.StreamingConfig.ApiUrl = server.URL
	cfg.StreamingConfig.Username = "hub"
	cfg.StreamingConfig.Password = "pw"
	c := NewClient(cfg)

	id, err := c.CreateStreamer("event", "rtmp://example.com/live", "key")
	require.NoError(t, err)
	assert.Equal(t, "st-1", id)
	assert.Equal(t, 2, logins)
}

func TestClientLoginFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.StreamingConfig.ApiUrl = server.URL
	c := NewClient(cfg)

	_, err := c.CreateStreamer("event", "rtmp://example.com/live", "key")
	assert.Error(t, err)
}

func TestAllowedDefaultsToPremium(t *testing.T) {
	assert.False(t, Allowed("", nil, nil))
}
