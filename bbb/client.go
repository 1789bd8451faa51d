package bbb

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/folkengine/goname"
	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/globals"
)

const (
	callCreate           = "create"
	callJoin             = "join"
	callEnd              = "end"
	callIsMeetingRunning = "isMeetingRunning"
	callGetMeetingInfo   = "getMeetingInfo"

	returnCodeSuccess = "SUCCESS"
)

// APIError is a non-SUCCESS returncode from the BBB API.
type APIError struct {
	Call       string
	MessageKey string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bbb %s: %s (%s)", e.Call, e.Message, e.MessageKey)
}

// Client talks to a BigBlueButton-compatible HTTP API. Every call is
// authenticated by appending a shared-secret checksum over the call name and
// the raw query string (SHA1 or SHA256, selectable via configuration).
type Client struct {
	apiUrl      string
	secret      string
	sumAlgo     string
	guestSuffix string
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiUrl:      cfg.BBBConfig.ApiUrl,
		secret:      cfg.BBBConfig.Secret,
		sumAlgo:     cfg.BBBConfig.ChecksumAlgo,
		guestSuffix: cfg.BBBConfig.GuestNameSuffix,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Checksum computes hex(H(callName + rawQuery + secret)).
func (c *Client) Checksum(callName, rawQuery string) string {
	payload := []byte(callName + rawQuery + c.secret)
	if c.sumAlgo == "sha256" {
		sum := sha256.Sum256(payload)
		return hex.EncodeToString(sum[:])
	}
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// BuildURL returns the fully signed API URL for a call.
func (c *Client) BuildURL(callName string, values url.Values) string {
	rawQuery := values.Encode()
	sum := c.Checksum(callName, rawQuery)
	if rawQuery == "" {
		return c.apiUrl + callName + "?checksum=" + sum
	}
	return c.apiUrl + callName + "?" + rawQuery + "&checksum=" + sum
}

type apiResponse struct {
	XMLName              xml.Name `xml:"response"`
	ReturnCode           string   `xml:"returncode"`
	MessageKey           string   `xml:"messageKey"`
	Message              string   `xml:"message"`
	MeetingID            string   `xml:"meetingID"`
	AttendeePW           string   `xml:"attendeePW"`
	ModeratorPW          string   `xml:"moderatorPW"`
	Running              string   `xml:"running"`
	HasBeenForciblyEnded string   `xml:"hasBeenForciblyEnded"`
	ParticipantCount     int      `xml:"participantCount"`
	ModeratorCount       int      `xml:"moderatorCount"`
}

func (c *Client) call(callName string, values url.Values) (*apiResponse, error) {
	u := c.BuildURL(callName, values)
	resp, err := c.httpClient.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	apiResp := apiResponse{}
	if err := xml.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("bbb %s: could not parse response: %w", callName, err)
	}
	if apiResp.ReturnCode != returnCodeSuccess {
		return nil, &APIError{Call: callName, MessageKey: apiResp.MessageKey, Message: apiResp.Message}
	}
	return &apiResp, nil
}

// Meeting is the remote-side result of a create call.
type Meeting struct {
	MeetingID   string
	AttendeePW  string
	ModeratorPW string
}

// CreateRequest carries the parameters of a create call. Params holds the
// finalized "create" section of the resolved settings and is passed through
// verbatim (explicit fields win on collision).
type CreateRequest struct {
	MeetingID       string
	Name            string
	AttendeePW      string
	ModeratorPW     string
	Welcome         string
	MaxParticipants int
	DialNumber      string
	VoiceBridge     string // the dial-in PIN
	PresentationURL string
	Params          map[string]string
}

// Create issues the remote create call and returns the meeting metadata. A
// create for an already existing meeting id is idempotent on the BBB side, so
// it doubles as restart.
func (c *Client) Create(req CreateRequest) (*Meeting, error) {
	values := url.Values{}
	for k, v := range req.Params {
		values.Set(k, v)
	}
	values.Set("meetingID", req.MeetingID)
	values.Set("name", req.Name)
	if req.AttendeePW != "" {
		values.Set("attendeePW", req.AttendeePW)
	}
	if req.ModeratorPW != "" {
		values.Set("moderatorPW", req.ModeratorPW)
	}
	if req.Welcome != "" {
		values.Set("welcome", req.Welcome)
	}
	if req.MaxParticipants > 0 {
		values.Set("maxParticipants", strconv.Itoa(req.MaxParticipants))
	}
	if req.DialNumber != "" {
		values.Set("dialNumber", req.DialNumber)
	}
	if req.VoiceBridge != "" {
		values.Set("voiceBridge", req.VoiceBridge)
	}
	if req.PresentationURL != "" {
		values.Set("presentation", req.PresentationURL)
	}
	resp, err := c.call(callCreate, values)
	if err != nil {
		return nil, err
	}
	globals.AppLogger.Info("created bbb meeting", "meetingID", resp.MeetingID)
	return &Meeting{
		MeetingID:   resp.MeetingID,
		AttendeePW:  resp.AttendeePW,
		ModeratorPW: resp.ModeratorPW,
	}, nil
}

// JoinURL builds the signed join URL for a user. No HTTP call is made, the
// URL is opened by the user's browser.
func (c *Client) JoinURL(meetingID, fullName, password string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("meetingID", meetingID)
	values.Set("fullName", fullName)
	values.Set("password", password)
	return c.BuildURL(callJoin, values)
}

// GuestName generates a throwaway display name for a join without a known
// user.
func (c *Client) GuestName() string {
	return goname.New(goname.FantasyMap).FirstLast() + c.guestSuffix
}

// End ends the remote meeting. An ended meeting is never resurrected.
func (c *Client) End(meetingID, moderatorPW string) error {
	values := url.Values{}
	values.Set("meetingID", meetingID)
	values.Set("password", moderatorPW)
	_, err := c.call(callEnd, values)
	return err
}

// IsMeetingRunning reports whether the remote meeting is currently running.
func (c *Client) IsMeetingRunning(meetingID string) (bool, error) {
	values := url.Values{}
	values.Set("meetingID", meetingID)
	resp, err := c.call(callIsMeetingRunning, values)
	if err != nil {
		return false, err
	}
	return resp.Running == "true", nil
}

// MeetingInfo is the remote meeting state.
type MeetingInfo struct {
	MeetingID        string
	Running          bool
	ParticipantCount int
	ModeratorCount   int
	ForciblyEnded    bool
}

func (c *Client) GetMeetingInfo(meetingID, moderatorPW string) (*MeetingInfo, error) {
	values := url.Values{}
	values.Set("meetingID", meetingID)
	values.Set("password", moderatorPW)
	resp, err := c.call(callGetMeetingInfo, values)
	if err != nil {
		return nil, err
	}
	return &MeetingInfo{
		MeetingID:        resp.MeetingID,
		Running:          resp.Running == "true",
		ParticipantCount: resp.ParticipantCount,
		ModeratorCount:   resp.ModeratorCount,
		ForciblyEnded:    resp.HasBeenForciblyEnded == "true",
	}, nil
}
