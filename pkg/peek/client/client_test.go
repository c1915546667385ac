package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	perrors "github.com/sambeau/peek/pkg/peek/errors"
	"github.com/sambeau/peek/pkg/peek/vm"
)

type captured struct {
	method      string
	path        string
	body        string
	contentType string
	auth        string
	runAs       string
	custom      string
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.RequestURI()
		got.body = string(body)
		got.contentType = r.Header.Get("Content-Type")
		got.auth = r.Header.Get("Authorization")
		got.runAs = r.Header.Get(vm.RunAsHeader)
		got.custom = r.Header.Get("X-Custom")
		if response != "" {
			w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		}
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestExecute(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"errors":false,"took":7,"items":[]}`)
	c, err := New(Options{
		Hosts:    []string{srv.URL},
		Username: "elastic",
		Password: "changeme",
		Headers:  map[string]string{"X-Custom": "yes"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := c.Execute(context.Background(), &vm.Request{
		Method:  "POST",
		Path:    "_bulk?refresh=true",
		Body:    "{\"index\":{}}\n{\"a\":1}\n",
		Headers: map[string]string{vm.RunAsHeader: "bob"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := captured{
		method:      "POST",
		path:        "/_bulk?refresh=true",
		body:        "{\"index\":{}}\n{\"a\":1}\n",
		contentType: "application/x-ndjson",
		auth:        "Basic ZWxhc3RpYzpjaGFuZ2VtZQ==",
		runAs:       "bob",
		custom:      "yes",
	}
	if diff := cmp.Diff(want, *got, cmp.AllowUnexported(captured{})); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	d, ok := result.(*vm.Dict)
	if !ok {
		t.Fatalf("result = %T, want *vm.Dict", result)
	}
	if s := d.String(); s != `{"errors":false,"took":7,"items":[]}` {
		t.Errorf("result = %s", s)
	}
}

func TestExecuteAPIKey(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{}`)
	c, err := New(Options{Hosts: []string{srv.URL}, APIKey: "id:key"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Execute(context.Background(), &vm.Request{Method: "GET", Path: "/"}); err != nil {
		t.Fatal(err)
	}
	if got.auth != "ApiKey aWQ6a2V5" {
		t.Errorf("Authorization = %q", got.auth)
	}
	if got.contentType != "" {
		t.Errorf("Content-Type = %q for a request without body", got.contentType)
	}

	if _, err := New(Options{APIKey: "nocolon"}, nil); err == nil {
		t.Error("expected an error for an api key without ':'")
	}
}

func TestExecuteErrorStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, `{"error":{"type":"index_not_found_exception"},"status":404}`)
	c, _ := New(Options{Hosts: []string{srv.URL}}, nil)

	_, err := c.Execute(context.Background(), &vm.Request{Method: "GET", Path: "/missing/_search"})
	re, ok := err.(*ResponseError)
	if !ok {
		t.Fatalf("err = %T %v, want *ResponseError", err, err)
	}
	if re.Status != http.StatusNotFound {
		t.Errorf("Status = %d", re.Status)
	}
	if s := re.Info().(*vm.Dict).String(); !strings.Contains(s, "index_not_found_exception") {
		t.Errorf("Info() = %s", s)
	}
	if !strings.Contains(re.Error(), "returned status 404") {
		t.Errorf("Error() = %q", re.Error())
	}

	var se vm.StructuredError = re
	_ = se
}

func TestExecuteEmptyBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "")
	c, _ := New(Options{Hosts: []string{srv.URL}}, nil)

	result, err := c.Execute(context.Background(), &vm.Request{Method: "HEAD", Path: "/index"})
	if err != nil {
		t.Fatal(err)
	}
	if result != "200 OK" {
		t.Errorf("result = %#v, want \"200 OK\"", result)
	}
}

func TestExecuteFailover(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"ok":true}`)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	c, _ := New(Options{Hosts: []string{deadURL, srv.URL}}, nil)
	if _, err := c.Execute(context.Background(), &vm.Request{Method: "GET", Path: "/"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.method != "GET" {
		t.Error("request did not reach the second host")
	}

	only, _ := New(Options{Hosts: []string{deadURL}}, nil)
	_, err := only.Execute(context.Background(), &vm.Request{Method: "GET", Path: "/"})
	if pe, ok := err.(*perrors.PeekError); !ok || pe.Code != "NET-0001" {
		t.Errorf("err = %v, want NET-0001", err)
	}
}

func TestClientString(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{Options{}, " @ http://localhost:9200"},
		{Options{Hosts: SplitHosts("a:9200, b:9200"), Username: "elastic", UseSSL: true}, "elastic @ https://a:9200,https://b:9200"},
		{Options{Hosts: []string{"http://x:9200/"}, APIKey: "key-id:secret", Name: "prod"}, "key-id @ http://x:9200 (prod)"},
	}
	for _, tt := range tests {
		c, err := New(tt.opts, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
