package client

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

	"github.com/boddenberg/finance-tracker-bfa/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

const serviceName = "ledger"

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// LedgerClient talks to the remote ledger REST API. Reads are retried with
// backoff; writes are attempted once so a transport failure is left for the
// caller to retry. Every call passes through the circuit breaker and a
// bulkhead that caps concurrent requests.
type LedgerClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	currency   domain.Currency
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewLedgerClient creates a new LedgerClient. token is sent as a bearer
// credential when non-empty.
func NewLedgerClient(httpClient *http.Client, baseURL, token string, currency domain.Currency, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *LedgerClient {
	return &LedgerClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		currency:   currency,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

type request struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	resource string
	id       string
}

// apiMessage is the error body shape of the ledger API.
type apiMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// statusError is a non-domain HTTP failure; it is retryable.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger API returned status %d", e.status)
}

func (c *LedgerClient) do(ctx context.Context, req request, out any) error {
	ctx, span := tracer.Start(ctx, "LedgerClient."+req.op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("ledger.path", req.path),
	)

	err := c.execute(ctx, req, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *LedgerClient) execute(ctx context.Context, req request, out any) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrTransport{Service: serviceName, Op: req.op, Err: err}
	}
	defer c.bulkhead.Release()

	var body []byte
	if req.body != nil {
		var err error
		if body, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("encode %s request: %w", req.op, err)
		}
	}

	// One key per logical write, reused across attempts.
	idempotencyKey := ""
	if req.method == http.MethodPost {
		idempotencyKey = uuid.NewString()
	}

	_, err := c.cb.Execute(func() (any, error) {
		attempt := func() error {
			return c.roundTrip(ctx, req, body, idempotencyKey, out)
		}
		if req.method != http.MethodGet {
			return nil, attempt()
		}
		return nil, resilience.RetryIf(ctx, c.cfg, retryable, attempt)
	})
	if err == nil {
		return nil
	}
	if domain.IsDomain(err) {
		return err
	}
	return &domain.ErrTransport{Service: serviceName, Op: req.op, Err: err}
}

func retryable(err error) bool {
	return !domain.IsDomain(err) && !errors.Is(err, context.Canceled)
}

func (c *LedgerClient) roundTrip(ctx context.Context, req request, body []byte, idempotencyKey string, out any) error {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %v", req.op, err)
		}
		return nil
	}

	msg := readMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.ErrValidation{Message: msg}
	case http.StatusNotFound:
		return &domain.ErrNotFound{Resource: req.resource, ID: req.id}
	case http.StatusConflict:
		return &domain.ErrConflict{Resource: req.resource, Message: msg}
	default:
		return &statusError{status: resp.StatusCode}
	}
}

func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "rejected by ledger API"
	}
	var m apiMessage
	if json.Unmarshal(raw, &m) == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
