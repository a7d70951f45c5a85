package soap

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 30 * time.Second

// TransportError wraps network, HTTP and envelope decoding failures.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("soap %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Options configures a Transport.
type Options struct {
	// WSDLURL is fetched once to discover the endpoint and namespace when
	// either of them is empty.
	WSDLURL string

	// Endpoint is the SOAP address requests are POSTed to.
	Endpoint string

	// Namespace is the target namespace of the service operations.
	Namespace string

	// Timeout bounds each HTTP exchange. Defaults to 30s.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Transport sends SOAP requests over HTTP. It is safe for concurrent use.
type Transport struct {
	client  *resty.Client
	wsdlURL string
	logger  *slog.Logger

	mu        sync.Mutex
	endpoint  string
	namespace string
}

// NewTransport builds a Transport. No network I/O happens until the first Call.
func NewTransport(opts Options, logger *slog.Logger) *Transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}) //nolint:gosec // user-configured

	return &Transport{
		client:    client,
		wsdlURL:   opts.WSDLURL,
		endpoint:  opts.Endpoint,
		namespace: opts.Namespace,
		logger:    logger.With("component", "soap"),
	}
}

// Call invokes method with params and returns the decoded return value.
//
// Errors are *Fault for remote faults, ErrEmptyResult for empty answers and
// *TransportError for everything else.
func (t *Transport) Call(ctx context.Context, method string, params []Param) (*Node, error) {
	endpoint, ns, err := t.target(ctx)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}

	body, err := Encode(ns, method, params)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	t.logger.DebugContext(ctx, "soap request", "method", method, "endpoint", endpoint, "body", string(body))

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetHeader("SOAPAction", ns+"#"+method).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	raw := resp.Body()
	t.logger.DebugContext(ctx, "soap response", "method", method, "status", resp.StatusCode(), "body", string(raw))

	// Faults arrive with HTTP 500, so the body is inspected before the status.
	if len(raw) > 0 {
		ret, err := Decode(raw)
		var fault *Fault
		switch {
		case errors.As(err, &fault), errors.Is(err, ErrEmptyResult):
			return nil, err
		case err == nil && resp.StatusCode() == http.StatusOK:
			return ret, nil
		case err != nil && resp.StatusCode() == http.StatusOK:
			return nil, &TransportError{Method: method, Err: err}
		}
	}
	return nil, &TransportError{Method: method, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
}

// target returns the endpoint and namespace, discovering them from the WSDL
// on first use. A failed discovery is retried by the next call.
func (t *Transport) target(ctx context.Context) (string, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.endpoint != "" && t.namespace != "" {
		return t.endpoint, t.namespace, nil
	}
	if t.wsdlURL == "" {
		return "", "", errors.New("no endpoint configured and no wsdl url to discover it")
	}

	endpoint, ns, err := t.discover(ctx)
	if err != nil {
		return "", "", err
	}
	if t.endpoint == "" {
		t.endpoint = endpoint
	}
	if t.namespace == "" {
		t.namespace = ns
	}
	t.logger.InfoContext(ctx, "soap: discovered service", "endpoint", t.endpoint, "namespace", t.namespace)
	return t.endpoint, t.namespace, nil
}

type wsdlDefinitions struct {
	TargetNamespace string `xml:"targetNamespace,attr"`
	Services        []struct {
		Ports []struct {
			Address struct {
				Location string `xml:"location,attr"`
			} `xml:"address"`
		} `xml:"port"`
	} `xml:"service"`
}

func (t *Transport) discover(ctx context.Context) (string, string, error) {
	resp, err := t.client.R().SetContext(ctx).Get(t.wsdlURL)
	if err != nil {
		return "", "", fmt.Errorf("fetch wsdl: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", "", fmt.Errorf("fetch wsdl: unexpected status %d", resp.StatusCode())
	}
	return parseWSDL(resp.Body())
}

// parseWSDL extracts the first service address and the target namespace.
func parseWSDL(data []byte) (string, string, error) {
	var defs wsdlDefinitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return "", "", fmt.Errorf("parse wsdl: %w", err)
	}
	for _, svc := range defs.Services {
		for _, port := range svc.Ports {
			if port.Address.Location != "" {
				return port.Address.Location, defs.TargetNamespace, nil
			}
		}
	}
	return "", "", errors.New("parse wsdl: no service address found")
}
