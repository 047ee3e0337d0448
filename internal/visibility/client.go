package visibility

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"git.home.luguber.info/inful/stargazer/internal/config"
	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
	"git.home.luguber.info/inful/stargazer/internal/logfields"
	"git.home.luguber.info/inful/stargazer/internal/metrics"
	"git.home.luguber.info/inful/stargazer/internal/retry"
)

const (
	tracerName      = "git.home.luguber.info/inful/stargazer/internal/visibility"
	maxResponseBody = 4 << 20
)

// Fetcher obtains visibility data for a request. Implementations must
// abort promptly when ctx is canceled and report it so that
// errors.IsCanceled is true.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Client is the HTTP Fetcher for GET {base}/visible.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	timeout  time.Duration
	policy   retry.Policy
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder reports breaker state changes.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock sets the clock retry backoff waits on.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.policy = c.policy.WithClock(clock)
		}
	}
}

// NewClient builds a client from the api config section.
func NewClient(cfg config.APIConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.ConfigError("invalid visibility service URL").
			WithContext("base_url", cfg.BaseURL).
			WithCause(err).
			Build()
	}

	c := &Client{
		endpoint: base.JoinPath("visible"),
		http:     &http.Client{},
		timeout:  cfg.Timeout,
		policy:   retry.FromConfig(cfg.Retry),
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = config.DefaultBreakerFailing
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "visibility",
		MaxRequests: 1,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				slog.String("component", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			c.recorder.SetBreakerState(to.String())
		},
	})
	c.recorder.SetBreakerState(gobreaker.StateClosed.String())

	return c, nil
}

// Fetch performs the request, retrying transient failures per policy.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "visibility.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Float64("stargazer.lat", req.Coordinates.Lat),
			attribute.Float64("stargazer.lon", req.Coordinates.Lon),
			attribute.Float64("stargazer.elev", req.Coordinates.Elev),
			attribute.String("stargazer.twilight", string(req.Twilight)),
			attribute.String("stargazer.time_iso", req.TimeISO),
		))
	defer span.End()

	var resp *Response
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		span.SetAttributes(attribute.Int("stargazer.attempts", attempt+1))
		if attempt > 0 {
			c.logger.Debug("Retrying visibility request", logfields.Attempt(attempt))
		}
		out, err := c.breaker.Execute(func() (any, error) {
			return c.do(ctx, req)
		})
		if err != nil {
			return c.classifyBreaker(err)
		}
		resp = out.(*Response)
		return nil
	})

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.IsCanceled(err):
		span.SetAttributes(attribute.Bool("stargazer.canceled", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.UserMessage(err))
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := *c.endpoint
	u.RawQuery = Query(req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to build visibility request").Build()
	}
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(parent, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, transportError(parent, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, statusError(res.StatusCode, body)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "Malformed response from visibility service").Build()
	}
	if out.VisiblePlanets == nil {
		return nil, errors.NewError(errors.CategoryNetwork, "Malformed response from visibility service").
			WithContext("missing", "visible_planets").
			Build()
	}
	return &out, nil
}

// Query encodes req as the service's query parameters.
func Query(req Request) url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(req.Coordinates.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(req.Coordinates.Lon, 'f', -1, 64))
	q.Set("elev", strconv.FormatFloat(req.Coordinates.Elev, 'f', -1, 64))
	twilight := req.Twilight
	if twilight == "" {
		twilight = "astronomical"
	}
	q.Set("twilight", string(twilight))
	if req.TimeISO != "" {
		q.Set("time", req.TimeISO)
	}
	return q
}

// transportError separates caller cancellation from a genuine failure,
// including the per-request timeout firing.
func transportError(parent context.Context, err error) error {
	if parent.Err() != nil && stderrors.Is(parent.Err(), context.Canceled) {
		return errors.WrapError(context.Canceled, errors.CategoryCanceled, "visibility request canceled").
			WithSeverity(errors.SeverityInfo).
			Build()
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapError(err, errors.CategoryNetwork, "Visibility service timed out").Retryable().Build()
	}
	return errors.WrapError(err, errors.CategoryNetwork, "Could not reach visibility service").Retryable().Build()
}

func statusError(status int, body []byte) error {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		msg = strings.TrimSpace(eb.Error)
	}
	if msg == "" {
		msg = fmt.Sprintf("Visibility service returned %d %s", status, http.StatusText(status))
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.NetworkError(msg).WithContext("status", status).Build()
	default:
		return errors.NewError(errors.CategoryValidation, msg).WithContext("status", status).Build()
	}
}

func (c *Client) classifyBreaker(err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.WrapError(err, errors.CategoryNetwork, "Visibility service temporarily unavailable").
			WithRetry(errors.RetryNever).
			Build()
	}
	return err
}

// countsAsHealthy keeps cancellations and rejected parameters from
// tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil || errors.IsCanceled(err) {
		return true
	}
	return errors.HasCategory(err, errors.CategoryValidation)
}
