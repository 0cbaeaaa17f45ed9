package mtec

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

const (
	DefaultBaseURL     = "https://energybutler.mtec-portal.com/api/"
	DefaultDemoAccount = "demo@mtec-portal.com"
	DefaultIncome      = "0.32"

	loginPath     = "login/manager"
	demoLoginPath = "login/demoManager"

	codeSuccess = "1000000"
)

// tokenExpiredCodes are the envelope codes the portal answers with once a
// session token is no longer accepted.
var tokenExpiredCodes = map[string]bool{
	"1000003": true,
	"1000004": true,
	"1100002": true,
}

var (
	// ErrTokenExpired is returned when a request still reports an expired
	// token after logging in again.
	ErrTokenExpired = errors.New("mtec token expired")
	// ErrUnknownStation is returned for station ids missing from the topology.
	ErrUnknownStation = errors.New("unknown station")
	// ErrUnknownDevice is returned for device ids missing from the topology.
	ErrUnknownDevice = errors.New("unknown device")
)

// APIError is a non-successful response from the portal.
type APIError struct {
	Endpoint string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("mtec %s: status %d", e.Endpoint, e.Status)
	}
	if e.Message == "" {
		return fmt.Sprintf("mtec %s: code %s", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("mtec %s: code %s: %s", e.Endpoint, e.Code, e.Message)
}

// Is makes errors.Is(err, ErrTokenExpired) match expiry responses.
func (e *APIError) Is(target error) bool {
	return target == ErrTokenExpired && e.expired()
}

func (e *APIError) expired() bool {
	return e.Status == http.StatusUnauthorized || tokenExpiredCodes[e.Code]
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Email and Password are the portal credentials. With an empty Email the
	// client logs in with DemoAccount instead.
	Email       string
	Password    string
	DemoAccount string
	Timeout     time.Duration
	// Income is passed through to the overview endpoint, the portal uses it
	// to compute earnings.
	Income string
}

// Client talks to the M-TEC Energybutler portal API. It keeps the session
// token and the station/device topology in memory. All methods are safe for
// concurrent use but requests are serialized.
type Client struct {
	client      *http.Client
	baseURL     string
	email       string
	password    string
	demoAccount string
	income      string

	mu       sync.Mutex
	token    string
	topology types.Topology
}

// New creates a Client with the given options. It does not log in.
func New(opts Options) *Client {
	c := &Client{}
	c.apply(opts)
	return c
}

func (c *Client) apply(opts Options) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Income == "" {
		opts.Income = DefaultIncome
	}
	if opts.DemoAccount == "" {
		opts.DemoAccount = DefaultDemoAccount
	}
	c.baseURL = opts.BaseURL
	c.email = opts.Email
	c.password = opts.Password
	c.demoAccount = opts.DemoAccount
	c.income = opts.Income
	c.client = common.HTTPClientWithHeaders(opts.Timeout, portalHeaders(opts.BaseURL))
}

// portalHeaders are the headers the web portal sends with every call. The API
// rejects requests that don't look like they come from the portal.
func portalHeaders(baseURL string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	h.Set("Accept-Language", "de-DE")
	h.Set("DNT", "1")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-GPC", "1")
	h.Set("ver", "pc")
	h.Set("X-Requested-With", "XMLHttpRequest")
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		origin := u.Scheme + "://" + u.Host
		h.Set("Origin", origin)
		h.Set("Referer", origin+"/login")
	}
	return h
}

// Login drops any stored token and logs in again.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

type loginResult struct {
	Token string `json:"token"`
}

// hashPassword returns the salt and the password value the portal expects:
// the hex md5 of the password and its base64 encoding.
func hashPassword(password string) (salt, encoded string) {
	sum := md5.Sum([]byte(password))
	salt = hex.EncodeToString(sum[:])
	return salt, base64.StdEncoding.EncodeToString([]byte(salt))
}

func (c *Client) login(ctx context.Context) error {
	c.token = ""

	var endpoint string
	var payload map[string]interface{}
	if c.email == "" {
		log.Ctx(ctx).InfoContext(ctx, "logging in with demo account", slog.String("account", c.demoAccount))
		endpoint = demoLoginPath
		payload = map[string]interface{}{
			"channel": 1,
			"email":   c.demoAccount,
		}
	} else {
		if c.password == "" {
			return errors.New("missing password")
		}
		salt, encoded := hashPassword(c.password)
		endpoint = loginPath
		payload = map[string]interface{}{
			"channel":  1,
			"email":    c.email,
			"password": encoded,
			"salt":     salt,
		}
	}

	var res loginResult
	if err := c.do(ctx, http.MethodPost, endpoint, nil, payload, &res); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "mtec login failed", slog.Any("error", err))
		return fmt.Errorf("login failed: %w", err)
	}
	if res.Token == "" {
		return errors.New("login failed: empty token")
	}
	c.token = res.Token
	log.Ctx(ctx).DebugContext(ctx, "mtec login success")
	return nil
}

// ensureLogin will not login again if we already have a token
func (c *Client) ensureLogin(ctx context.Context) error {
	if c.token != "" {
		return nil
	}
	return c.login(ctx)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, params url.Values, payload interface{}) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	return req, nil
}

type envelope struct {
	Code    flexString      `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// do performs the call and decodes the envelope's data into dest. The request
// is rebuilt for every attempt so POST bodies can be replayed.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload, dest interface{}) error {
	isLogin := endpoint == loginPath || endpoint == demoLoginPath

	// we try up to 2 times because we might have an expired token
	for i := 0; i < 2; i++ {
		req, err := c.newRequest(ctx, method, endpoint, params, payload)
		if err != nil {
			return err
		}
		sentToken := c.token
		if !isLogin {
			req.Header.Set("Authorization", sentToken)
			req.Header.Set("Cookie", "token="+sentToken)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("mtec %s: %w", endpoint, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("mtec %s: reading body: %w", endpoint, err)
		}

		var apiErr *APIError
		if resp.StatusCode != http.StatusOK {
			apiErr = &APIError{Endpoint: endpoint, Status: resp.StatusCode}
		} else {
			var env envelope
			if err := json.Unmarshal(body, &env); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to decode mtec response", slog.Any("error", err), slog.String("body", string(body)))
				return fmt.Errorf("mtec %s: decoding response: %w", endpoint, err)
			}
			if string(env.Code) != codeSuccess {
				apiErr = &APIError{
					Endpoint: endpoint,
					Status:   resp.StatusCode,
					Code:     string(env.Code),
					Message:  env.Message,
				}
			} else {
				if dest == nil || len(env.Data) == 0 || string(env.Data) == "null" {
					return nil
				}
				if err := json.Unmarshal(env.Data, dest); err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to decode mtec data", slog.String("endpoint", endpoint), slog.Any("error", err))
					return fmt.Errorf("mtec %s: decoding data: %w", endpoint, err)
				}
				return nil
			}
		}

		// if the token expired, it wasn't a login, and we sent a token then
		// we need to get another token and try once more
		if i == 0 && apiErr.expired() && !isLogin && sentToken != "" {
			log.Ctx(ctx).DebugContext(ctx, "mtec token expired", slog.String("endpoint", endpoint), slog.String("code", apiErr.Code))
			if err := c.login(ctx); err != nil {
				return err
			}
			continue
		}
		log.Ctx(ctx).ErrorContext(ctx, "mtec api error", slog.String("endpoint", endpoint), slog.Int("status", apiErr.Status), slog.String("code", apiErr.Code), slog.String("message", apiErr.Message))
		return apiErr
	}
	return ErrTokenExpired
}

// get is an authenticated GET. Must be called with c.mu held.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, endpoint, params, nil, dest)
}
