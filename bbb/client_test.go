package bbb

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wechange-eg/conference-hub/config"
)

func newTestClient(apiUrl, secret, algo string) *Client {
	cfg := &config.Config{}
	cfg.BBBConfig.ApiUrl = apiUrl
	cfg.BBBConfig.Secret = secret
	cfg.BBBConfig.ChecksumAlgo = algo
	cfg.BBBConfig.GuestNameSuffix = " (guest)"
	return NewClient(cfg)
}

func TestChecksum(t *testing.T) {
	c := newTestClient("http://example.com/api/", "secret", "sha1")
	sum := sha1.Sum([]byte("create" + "meetingID=abc" + "secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), c.Checksum("create", "meetingID=abc"))

	c = newTestClient("http://example.com/api/", "secret", "sha256")
	sum256 := sha256.Sum256([]byte("join" + "meetingID=abc" + "secret"))
	assert.Equal(t, hex.EncodeToString(sum256[:]), c.Checksum("join", "meetingID=abc"))
}

// checkRequest verifies the checksum of an incoming API call the way a BBB
// server does.
func checkRequest(t *testing.T, r *http.Request, callName, secret string) url.Values {
	t.Helper()
	values := r.URL.Query()
	sum := values.Get("checksum")
	require.NotEmpty(t, sum)
	values.Del("checksum")
	rawQuery := values.Encode()
	expected := sha1.Sum([]byte(callName + rawQuery + secret))
	assert.Equal(t, hex.EncodeToString(expected[:]), sum)
	return values
}

func TestCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/create"))
		values := checkRequest(t, r, "create", "s3cret")
		assert.Equal(t, "meeting-1", values.Get("meetingID"))
		assert.Equal(t, "Weekly", values.Get("name"))
		assert.Equal(t, "12345", values.Get("voiceBridge"))
		fmt.Fprint(w, `<response>
			<returncode>SUCCESS</returncode>
			<meetingID>meeting-1</meetingID>
			<attendeePW>ap</attendeePW>
			<moderatorPW>mp</moderatorPW>
		</response>`)
	}))
	defer server.Close()

	c := newTestClient(server.URL+"/", "s3cret", "sha1")
	meeting, err := c.Create(CreateRequest{
		MeetingID:   "meeting-1",
		Name:        "Weekly",
		VoiceBridge: "12345",
	})
	require.NoError(t, err)
	assert.Equal(t, "meeting-1", meeting.MeetingID)
	assert.Equal(t, "ap", meeting.AttendeePW)
	assert.Equal(t, "mp", meeting.ModeratorPW)
}

func TestCreateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<response>
			<returncode>FAILED</returncode>
			<messageKey>idNotUnique</messageKey>
			<message>A meeting already exists with that meeting ID.</message>
		</response>`)
	}))
	defer server.Close()

	c := newTestClient(server.URL+"/", "s3cret", "sha1")
	_, err := c.Create(CreateRequest{MeetingID: "meeting-1", Name: "Weekly"})
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "idNotUnique", apiErr.MessageKey)
}

func TestEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values := checkRequest(t, r, "end", "s3cret")
		assert.Equal(t, "meeting-1", values.Get("meetingID"))
		assert.Equal(t, "mp", values.Get("password"))
		fmt.Fprint(w, `<response><returncode>SUCCESS</returncode></response>`)
	}))
	defer server.Close()

	c := newTestClient(server.URL+"/", "s3cret", "sha1")
	assert.NoError(t, c.End("meeting-1", "mp"))
}

func TestJoinURL(t *testing.T) {
	c := newTestClient("http://example.com/api/", "s3cret", "sha1")
	u := c.JoinURL("meeting-1", "Ada", "ap", map[string]string{"userdata-bbb_mirror_own_webcam": "true"})
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	values := parsed.Query()
	assert.Equal(t, "meeting-1", values.Get("meetingID"))
	assert.Equal(t, "Ada", values.Get("fullName"))
	assert.Equal(t, "ap", values.Get("password"))
	assert.Equal(t, "true", values.Get("userdata-bbb_mirror_own_webcam"))

	sum := values.Get("checksum")
	values.Del("checksum")
	expected := sha1.Sum([]byte("join" + values.Encode() + "s3cret"))
	assert.Equal(t, hex.EncodeToString(expected[:]), sum)
}

func TestGuestName(t *testing.T) {
	c := newTestClient("http://example.com/api/", "s3cret", "sha1")
	name := c.GuestName()
	assert.True(t, strings.HasSuffix(name, " (guest)"))
	assert.Greater(t, len(name), len(" (guest)"))
}

func TestDecodeCreateOptions(t *testing.T) {
	opts, err := DecodeCreateOptions(map[string]string{
		"welcome":            "hello",
		"maxParticipants":    "25",
		"record":             "true",
		"muteOnStart":        "false",
		"guestPolicy":        "ASK_MODERATOR",
		"meta_custom":        "x",
		"autoStartRecording": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", opts.Welcome)
	assert.Equal(t, 25, opts.MaxParticipants)
	assert.True(t, opts.Record)
	assert.False(t, opts.MuteOnStart)
	assert.Equal(t, "ASK_MODERATOR", opts.GuestPolicy)
	assert.Equal(t, "x", opts.Extra["meta_custom"])

	wire := opts.Wire()
	assert.Equal(t, "true", wire["record"])
	assert.Equal(t, "true", wire["autoStartRecording"])
	assert.Equal(t, "ASK_MODERATOR", wire["guestPolicy"])
	assert.Equal(t, "x", wire["meta_custom"])
	assert.NotContains(t, wire, "muteOnStart")
}

func TestDecodeCreateOptionsEmpty(t *testing.T) {
	opts, err := DecodeCreateOptions(nil)
	require.NoError(t, err)
	assert.Empty(t, opts.Welcome)
	assert.Empty(t, opts.Wire())
}
