package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Writer applies field updates to one CRM record. Implementations must be
// idempotent per identifier.
type Writer interface {
	Update(ctx context.Context, identifier string, fields map[string]any) error
}

// StatusError is a non-2xx reply from the CRM.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm returned %d: %s", e.StatusCode, e.Body)
}

// HTTPWriter PATCHes {base}/contacts({id}). If-Match: * keeps the request an
// update so a stale identifier never creates a new contact.
type HTTPWriter struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPWriter authenticates with client credentials when cfg.ClientID is set
// and with the static cfg.Token otherwise.
func NewHTTPWriter(ctx context.Context, cfg config.CRMConfig, logger zerolog.Logger) (*HTTPWriter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("crm base_url is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultCRMTimeoutSeconds) * time.Second
	}

	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var client *http.Client
	switch {
	case cfg.ClientID != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(ctx)
	case cfg.Token != "":
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	default:
		client = base
	}
	client.Timeout = timeout

	return &HTTPWriter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger,
	}, nil
}

func (w *HTTPWriter) Update(ctx context.Context, identifier string, fields map[string]any) error {
	if identifier == "" {
		return fmt.Errorf("crm identifier is required")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/contacts(%s)", w.baseURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("If-Match", "*")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("crm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	w.logger.Info().Str("contact", identifier).Int("fields", len(fields)).Msg("crm contact updated")
	return nil
}

// Update is one recorded DryRunWriter call.
type Update struct {
	Identifier string
	Fields     map[string]any
}

// DryRunWriter logs updates instead of sending them.
type DryRunWriter struct {
	logger zerolog.Logger

	mu      sync.Mutex
	updates []Update
}

func NewDryRunWriter(logger zerolog.Logger) *DryRunWriter {
	return &DryRunWriter{logger: logger}
}

func (w *DryRunWriter) Update(ctx context.Context, identifier string, fields map[string]any) error {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	w.mu.Lock()
	w.updates = append(w.updates, Update{Identifier: identifier, Fields: copied})
	w.mu.Unlock()

	w.logger.Info().Str("contact", identifier).Interface("fields", fields).Msg("dry run: crm update skipped")
	return nil
}

func (w *DryRunWriter) Updates() []Update {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Update(nil), w.updates...)
}

// New returns the writer selected by cfg.
func New(ctx context.Context, cfg config.CRMConfig, logger zerolog.Logger) (Writer, error) {
	if cfg.DryRun || cfg.BaseURL == "" {
		return NewDryRunWriter(logger), nil
	}
	return NewHTTPWriter(ctx, cfg, logger)
}
