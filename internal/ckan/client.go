package ckan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"import_panel/internal/logger"
	"import_panel/internal/metrics"
	"import_panel/internal/models"

	"github.com/sony/gobreaker"
)

// Action names used by the panel.
const (
	ActionWSToken           = "cudc_import_ws_token"
	ActionImportConfigShow  = "cudc_import_config_show"
	ActionImportConfigList  = "cudc_import_config_list"
	actionPathPrefix        = "/api/3/action/"
	maxResponseBytes        = 8 << 20 // 8 MB
	breakerMinRequests      = 3
	breakerFailureRatio     = 0.6
	breakerOpenTimeout      = 30 * time.Second
	breakerCountingInterval = 60 * time.Second
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("ckan: circuit breaker is open")

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Languages  []string
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        *logger.Logger
}

// Client calls CKAN action endpoints and unwraps the response envelope.
type Client struct {
	baseURL   string
	apiKey    string
	languages []string
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
	log       *logger.Logger
}

// NewClient builds a Client; the breaker trips after repeated transport failures.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	log := logger.OrNop(opts.Log)
	settings := gobreaker.Settings{
		Name:        "ckan-action",
		MaxRequests: 1,
		Interval:    breakerCountingInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && ratio >= breakerFailureRatio
		},
		// Server-reported errors mean CKAN is reachable; only transport failures count.
		IsSuccessful: func(err error) bool {
			var te *TransportError
			return err == nil || !errors.As(err, &te)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("ckan_breaker_state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		languages: opts.Languages,
		http:      hc,
		cb:        gobreaker.NewCircuitBreaker(settings),
		log:       log,
	}
}

// GetWSToken exchanges the API key for a short-lived event channel token.
func (c *Client) GetWSToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	raw, err := c.call(ctx, http.MethodPost, ActionWSToken, nil, struct{}{})
	if err != nil {
		return "", err
	}
	// The action has returned both a bare string and {"token": ...}.
	if err := json.Unmarshal(raw, &out.Token); err != nil {
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", &PayloadError{Action: ActionWSToken, Err: err}
		}
	}
	if out.Token == "" {
		return "", &PayloadError{Action: ActionWSToken, Field: "token", Err: errors.New("empty token")}
	}
	return out.Token, nil
}

// ShowImportConfig fetches one import config and checks its other_config JSON.
func (c *Client) ShowImportConfig(ctx context.Context, id string) (models.ImportConfig, error) {
	raw, err := c.call(ctx, http.MethodGet, ActionImportConfigShow, url.Values{"id": {id}}, nil)
	if err != nil {
		return models.ImportConfig{}, err
	}
	cfg, err := decodeImportConfig(ActionImportConfigShow, raw)
	if err != nil {
		return models.ImportConfig{}, err
	}
	return cfg, nil
}

// ListImportConfigs returns every import config visible to the API key.
func (c *Client) ListImportConfigs(ctx context.Context) ([]models.ImportConfig, error) {
	raw, err := c.call(ctx, http.MethodGet, ActionImportConfigList, nil, nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &PayloadError{Action: ActionImportConfigList, Err: err}
	}
	out := make([]models.ImportConfig, 0, len(items))
	for _, item := range items {
		cfg, err := decodeImportConfig(ActionImportConfigList, item)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// decodeImportConfig accepts other_config either as an embedded object or as
// a JSON-encoded string (the form the admin forms save).
func decodeImportConfig(action string, raw json.RawMessage) (models.ImportConfig, error) {
	var cfg models.ImportConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.ImportConfig{}, &PayloadError{Action: action, Err: err}
	}
	oc := bytes.TrimSpace(cfg.OtherConfig)
	if len(oc) == 0 || bytes.Equal(oc, []byte("null")) {
		cfg.OtherConfig = nil
		return cfg, nil
	}
	if oc[0] == '"' {
		var s string
		if err := json.Unmarshal(oc, &s); err != nil {
			return models.ImportConfig{}, &PayloadError{Action: action, Field: "other_config", Err: err}
		}
		if strings.TrimSpace(s) == "" {
			cfg.OtherConfig = nil
			return cfg, nil
		}
		oc = []byte(s)
	}
	if !json.Valid(oc) {
		return models.ImportConfig{}, &PayloadError{Action: action, Field: "other_config", Err: errors.New("invalid JSON")}
	}
	cfg.OtherConfig = json.RawMessage(oc)
	return cfg, nil
}

// call performs one action request through the breaker and returns the
// envelope's result.
func (c *Client) call(ctx context.Context, method, action string, query url.Values, body any) (json.RawMessage, error) {
	start := time.Now()
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.do(ctx, method, action, query, body)
	})
	metrics.ObserveAction(action, Kind(err), time.Since(start))
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Action: action, Err: ErrCircuitOpen}
		}
		c.log.Debugw("ckan_action_failed", "action", action, "err", err)
		return nil, err
	}
	return res.(json.RawMessage), nil
}

func (c *Client) do(ctx context.Context, method, action string, query url.Values, body any) (json.RawMessage, error) {
	u := c.baseURL + actionPathPrefix + action
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", action, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	if len(c.languages) > 0 {
		req.Header.Set("Accept-Language", strings.Join(c.languages, ","))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Action: action, Status: resp.StatusCode, Err: err}
	}
	return parseEnvelope(action, resp.StatusCode, data)
}

// parseEnvelope turns a response body into a result or a typed error.
func parseEnvelope(action string, status int, data []byte) (json.RawMessage, error) {
	var env struct {
		Success bool            `json:"success"`
		Result  json.RawMessage `json:"result"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		if status < 200 || status > 299 {
			return nil, &TransportError{Action: action, Status: status, Err: errors.New(http.StatusText(status))}
		}
		return nil, &PayloadError{Action: action, Err: err}
	}
	if env.Success && status >= 200 && status <= 299 {
		return env.Result, nil
	}
	return nil, decodeActionError(action, status, env.Error)
}

func decodeActionError(action string, status int, raw json.RawMessage) *ActionError {
	ae := &ActionError{Action: action, Status: status}
	if len(raw) == 0 {
		ae.Message = http.StatusText(status)
		return ae
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Some handlers return a bare string.
		var s string
		if json.Unmarshal(raw, &s) == nil {
			ae.Message = s
		}
		return ae
	}
	for k, v := range fields {
		switch k {
		case "__type":
			_ = json.Unmarshal(v, &ae.Type)
		case "message":
			_ = json.Unmarshal(v, &ae.Message)
		default:
			var list []string
			if json.Unmarshal(v, &list) == nil {
				if ae.Fields == nil {
					ae.Fields = map[string][]string{}
				}
				ae.Fields[k] = list
			}
		}
	}
	if ae.Message == "" && len(ae.Fields) == 0 {
		ae.Message = http.StatusText(status)
	}
	return ae
}
