// Package client sends peek API calls to search cluster nodes over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/net/publicsuffix"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/logging"
	"github.com/sambeau/peek/pkg/peek/vm"
)

// DefaultHost is used when no hosts are given.
const DefaultHost = "localhost:9200"

// Options describes one connection.
type Options struct {
	Name        string
	Hosts       []string
	Username    string
	Password    string
	APIKey      string // "id:key"
	UseSSL      bool
	Timeout     time.Duration
	Compression bool
	Cookies     bool
	Headers     map[string]string
}

// Client performs requests against the hosts of one connection. A host
// that cannot be reached is skipped in favour of the next one.
type Client struct {
	opts   Options
	hosts  []string
	http   *http.Client
	logger logging.Logger
}

// New creates a client. Hosts without a scheme get http:// or https://
// depending on UseSSL.
func New(opts Options, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NullLogger()
	}
	if len(opts.Hosts) == 0 {
		opts.Hosts = []string{DefaultHost}
	}
	if opts.APIKey != "" && !strings.Contains(opts.APIKey, ":") {
		return nil, perrors.New("TYPE-0002", map[string]any{
			"Function": "connect",
			"Expected": "id:key",
			"Arg":      "api_key",
			"Got":      "a value without ':'",
		})
	}

	c := &Client{opts: opts, logger: logger}
	for _, h := range opts.Hosts {
		c.hosts = append(c.hosts, normalizeHost(h, opts.UseSSL))
	}

	var transport http.RoundTripper = http.DefaultTransport
	if opts.Compression {
		transport = gzhttp.Transport(transport)
	}
	c.http = &http.Client{Transport: transport, Timeout: opts.Timeout}

	if opts.Cookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

func normalizeHost(host string, useSSL bool) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if useSSL {
		return "https://" + host
	}
	return "http://" + host
}

// SplitHosts splits a comma separated host list.
func SplitHosts(hosts string) []string {
	var out []string
	for _, h := range strings.Split(hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func (c *Client) Name() string { return c.opts.Name }

func (c *Client) SetName(name string) { c.opts.Name = name }

func (c *Client) Options() Options { return c.opts }

// Hosts returns the base URLs requests are sent to.
func (c *Client) Hosts() []string { return append([]string(nil), c.hosts...) }

// String describes the connection as "user @ hosts".
func (c *Client) String() string {
	user := c.opts.Username
	if c.opts.APIKey != "" {
		user, _, _ = strings.Cut(c.opts.APIKey, ":")
	}
	s := fmt.Sprintf("%s @ %s", user, strings.Join(c.hosts, ","))
	if c.opts.Name != "" {
		s += " (" + c.opts.Name + ")"
	}
	return s
}

// ndjsonEndpoints take newline-delimited JSON bodies.
var ndjsonEndpoints = []string{"_bulk", "_msearch", "_msearch/template", "_monitoring/bulk"}

func contentType(path string) string {
	p, _, _ := strings.Cut(path, "?")
	for _, ep := range ndjsonEndpoints {
		if strings.HasSuffix(strings.TrimRight(p, "/"), ep) {
			return "application/x-ndjson"
		}
	}
	return "application/json"
}

// Execute sends req to the first reachable host and decodes the response.
func (c *Client) Execute(ctx context.Context, req *vm.Request) (any, error) {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var lastErr error
	for _, host := range c.hosts {
		url := host + path
		c.logger.Debugf("performing request: %s %s (%d bytes)", req.Method, url, len(req.Body))

		result, err := c.do(ctx, req, url)
		if err == nil {
			return result, nil
		}
		if _, ok := err.(*ResponseError); ok {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warnf("%s unreachable: %v", host, err)
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, req *vm.Request, url string) (any, error) {
	var body io.Reader
	if req.Body != "" {
		body = bytes.NewBufferString(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, perrors.New("NET-0001", map[string]any{"Method": req.Method, "URL": url, "GoError": err.Error()})
	}
	if req.Body != "" {
		httpReq.Header.Set("Content-Type", contentType(req.Path))
	}
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)
	for k, v := range c.opts.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, perrors.New("NET-0001", map[string]any{"Method": req.Method, "URL": url, "GoError": err.Error()})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.New("NET-0001", map[string]any{"Method": req.Method, "URL": url, "GoError": err.Error()})
	}

	result := decodeBody(resp, data)
	if resp.StatusCode >= 400 {
		return nil, &ResponseError{Method: req.Method, URL: url, Status: resp.StatusCode, Body: result}
	}
	return result, nil
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.opts.APIKey != "":
		req.Header.Set("Authorization", "ApiKey "+base64.StdEncoding.EncodeToString([]byte(c.opts.APIKey)))
	case c.opts.Username != "":
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}
}

// decodeBody turns a response body into a value: decoded JSON when the
// server says so, the status line when the body is empty, text otherwise.
func decodeBody(resp *http.Response, data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.Status
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		if v, err := vm.DecodeJSON(data); err == nil {
			return v
		}
	}
	return strings.TrimRight(string(data), "\n")
}

// ResponseError is a response with an error status. Its Info is the
// decoded response body.
type ResponseError struct {
	Method string
	URL    string
	Status int
	Body   any
}

func (e *ResponseError) Error() string {
	return perrors.New("NET-0002", map[string]any{
		"Method": e.Method,
		"URL":    e.URL,
		"Status": e.Status,
	}).Message
}

func (e *ResponseError) Info() any {
	return e.Body
}
