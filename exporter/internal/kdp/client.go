package kdp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/soap"
)

// Caller performs one SOAP call. *soap.Transport implements it.
type Caller interface {
	Call(ctx context.Context, method string, params []soap.Param) (*soap.Node, error)
}

// Observer receives one notification per gateway call.
type Observer interface {
	ObserveRPC(op, outcome string, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each call. Expiry is an ordinary call failure.
	// Zero disables the per-call deadline.
	Timeout time.Duration

	// RateLimit caps outbound calls per minute. Zero means unlimited.
	RateLimit int

	Logger   *slog.Logger
	Observer Observer
}

// rateBurst lets one full scrape sequence through without waiting.
const rateBurst = 10

// Client is the RPC gateway to the KDP API. Every operation signs its
// request, performs the call and returns an Outcome; failures are logged
// here and never propagate as panics or aborted sequences.
//
// Client is safe for concurrent use.
type Client struct {
	caller  Caller
	signer  *Signer
	creds   Credentials
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
	obs     Observer
	now     func() time.Time
}

// NewClient returns a gateway calling through caller with creds.
func NewClient(caller Caller, creds Credentials, opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, rateBurst)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RateLimit)/60.0), rateBurst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Client{
		caller:  caller,
		signer:  NewSigner(creds),
		creds:   creds,
		limiter: limiter,
		timeout: opts.Timeout,
		logger:  logger.With("component", "kdp"),
		obs:     obs,
		now:     time.Now,
	}
}

type nopObserver struct{}

func (nopObserver) ObserveRPC(string, string, time.Duration) {}

type loggerKey struct{}

// WithLogger returns a context whose gateway log lines go through l, so a
// scrape can attach its id and resource name to every call it makes.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func (c *Client) loggerFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l.With("component", "kdp")
	}
	return c.logger
}

// scalarArgs returns the signable arguments of params in declaration order.
func scalarArgs(params []soap.Param) []any {
	args := make([]any, 0, len(params))
	for _, p := range params {
		if _, nested := p.Value.([]soap.Param); nested {
			continue
		}
		args = append(args, p.Value)
	}
	return args
}

// call is a single gateway invocation. When signArgs is nil the request is
// not authenticated.
func call[T any](ctx context.Context, c *Client, op string, params []soap.Param, signArgs []any,
	decode func(*soap.Node) (T, error)) Outcome[T] {
	logger := c.loggerFor(ctx)
	logger.InfoContext(ctx, "rpc started", "operation", op)

	start := c.now()
	out := Outcome[T]{Op: op}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		// Wait refuses up front when the deadline would pass first.
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		out.Err = fmt.Errorf("%s: rate limit wait: %w", op, err)
	} else {
		if signArgs != nil {
			token := c.signer.Sign(op, signArgs...)
			params = append([]soap.Param{token.Param()}, params...)
		}
		ret, err := c.caller.Call(ctx, op, params)
		if err == nil {
			out.Value, err = decode(ret)
		}
		out.Err = err
	}

	out.Elapsed = c.now().Sub(start)
	kind := Kind(out.Err)
	if out.Err != nil {
		logger.ErrorContext(ctx, "rpc failed", "operation", op, "kind", kind, "err", out.Err)
	} else {
		logger.DebugContext(ctx, "rpc succeeded", "operation", op, "elapsed", out.Elapsed)
	}
	c.obs.ObserveRPC(op, kind, out.Elapsed)
	return out
}

func authed[T any](ctx context.Context, c *Client, op string, params []soap.Param,
	decode func(*soap.Node) (T, error)) Outcome[T] {
	return call(ctx, c, op, params, scalarArgs(params), decode)
}

// Ping checks transport availability. It is not authenticated.
func (c *Client) Ping(ctx context.Context) Outcome[bool] {
	return call(ctx, c, "ping", nil, nil, decodePing)
}

// APIVersion returns the server version and mode.
func (c *Client) APIVersion(ctx context.Context) Outcome[APIVersion] {
	// The service signs get_api_version over one absent argument.
	return call(ctx, c, "get_api_version", nil, []any{nil}, decodeAPIVersion)
}

// ResourceList lists every resource of the client (no group filter).
func (c *Client) ResourceList(ctx context.Context, locale uint32) Outcome[[]Resource] {
	return authed(ctx, c, "client_resource_list", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "locale_id", Value: locale},
		{Name: "group_id", Value: nil},
	}, decodeResources)
}

// ProtocolRatio returns the per-minute protocol split of clean traffic.
func (c *Client) ProtocolRatio(ctx context.Context, locale, resourceID uint32, w Window) Outcome[[]ProtocolPoint] {
	return authed(ctx, c, "get_protocol_ratio", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "locale_id", Value: locale},
		{Name: "resource_id", Value: resourceID},
		{Name: "start", Value: w.StartString()},
		{Name: "end", Value: w.EndString()},
	}, decodeProtocolRatio)
}

// GeoRatio returns the geographic split of incoming traffic.
func (c *Client) GeoRatio(ctx context.Context, locale, resourceID uint32) Outcome[[]GeoRatio] {
	return authed(ctx, c, "get_resource_geo_ratio", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "locale_id", Value: locale},
		{Name: "resource_id", Value: resourceID},
	}, decodeGeoRatio)
}

// NewIPBlocks returns per-minute counts of newly blocked IPs.
func (c *Client) NewIPBlocks(ctx context.Context, resourceID uint32, w Window) Outcome[[]IPBlockCount] {
	return authed(ctx, c, "get_resource_new_ip_blocks", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "resource_id", Value: resourceID},
		{Name: "start_time", Value: w.StartString()},
		{Name: "end_time", Value: w.EndString()},
	}, decodeIPBlocks)
}

// MeasuredParameterList returns the measured parameters visible for the resource.
func (c *Client) MeasuredParameterList(ctx context.Context, locale, resourceID uint32) Outcome[[]ParameterDefinition] {
	return authed(ctx, c, "get_measured_parameter_list", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "locale_id", Value: locale},
		{Name: "resource_id", Value: resourceID},
	}, decodeParameterList)
}

// MeasuredParameterData returns every measured parameter data point in w.
func (c *Client) MeasuredParameterData(ctx context.Context, resourceID uint32, w Window) Outcome[[]DataPoint] {
	return authed(ctx, c, "get_measured_parameter_data", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "resource_id", Value: resourceID},
		{Name: "start_time", Value: w.StartString()},
		{Name: "end_time", Value: w.EndString()},
	}, decodeParameterData)
}

// AnomalyList returns anomalies of the resource's measured parameters in w.
func (c *Client) AnomalyList(ctx context.Context, locale, resourceID uint32, w Window, limit, offset int) Outcome[[]Anomaly] {
	return authed(ctx, c, "get_resource_anomaly_list", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "locale_id", Value: locale},
		{Name: "resource_id", Value: resourceID},
		{Name: "start", Value: w.StartString()},
		{Name: "end", Value: w.EndString()},
		{Name: "limit", Value: limit},
		{Name: "offset", Value: offset},
	}, decodeAnomalies)
}

// ActiveAttacks lists active attacks on every resource of the client.
func (c *Client) ActiveAttacks(ctx context.Context, locale uint32) Outcome[[]Attack] {
	return authed(ctx, c, "attack_active_list", []soap.Param{
		{Name: "client_id", Value: c.creds.ClientID},
		{Name: "locale_id", Value: locale},
	}, decodeAttacks)
}
