package streaming

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/wechange-eg/conference-hub/config"
	"github.com/wechange-eg/conference-hub/globals"
)

// Client talks to the external streaming-control API. Authentication is a
// short-lived bearer token obtained through a login call and cached; any call
// answered with 401/403 triggers exactly one re-login and retry.
type Client struct {
	apiUrl   string
	username string
	password string

	httpClient *http.Client

	mu    sync.Mutex
	token string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiUrl:     cfg.StreamingConfig.ApiUrl,
		username:   cfg.StreamingConfig.Username,
		password:   cfg.StreamingConfig.Password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) login() error {
	ba, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Post(c.apiUrl+"/auth/login", "application/json", bytes.NewReader(ba))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("streaming login: unexpected status %d", resp.StatusCode)
	}
	lr := loginResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = lr.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// do performs one authenticated call; on a 401/403 (expired or invalidated
// token) it re-logs-in once and retries.
func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	if c.currentToken() == "" {
		if err := c.login(); err != nil {
			return err
		}
	}
	status, err := c.doOnce(method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		globals.AppLogger.Debug("streaming token rejected, re-login", "path", path)
		if err := c.login(); err != nil {
			return err
		}
		status, err = c.doOnce(method, path, body, out)
		if err != nil {
			return err
		}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("streaming %s %s: unexpected status %d", method, path, status)
	}
	return nil
}

func (c *Client) doOnce(method, path string, body interface{}, out interface{}) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		ba, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(ba)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.apiUrl+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	ba, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := json.Unmarshal(ba, out); err != nil {
			return 0, err
		}
	}
	return resp.StatusCode, nil
}

type createStreamerRequest struct {
	Name      string `json:"name"`
	StreamURL string `json:"stream_url"`
	StreamKey string `json:"stream_key"`
}

type createStreamerResponse struct {
	Id string `json:"id"`
}

// CreateStreamer allocates a streamer resource and returns its identifier.
func (c *Client) CreateStreamer(name, streamURL, streamKey string) (string, error) {
	out := createStreamerResponse{}
	err := c.do(http.MethodPost, "/streamers", createStreamerRequest{
		Name:      name,
		StreamURL: streamURL,
		StreamKey: streamKey,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Id, nil
}

func (c *Client) StartStreamer(id string) error {
	return c.do(http.MethodPost, "/streamers/"+id+"/start", nil, nil)
}

func (c *Client) StopStreamer(id string) error {
	return c.do(http.MethodPost, "/streamers/"+id+"/stop", nil, nil)
}

func (c *Client) DeleteStreamer(id string) error {
	return c.do(http.MethodDelete, "/streamers/"+id, nil, nil)
}
