package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type echoInput struct {
	Str string `json:"str"`
}

type echoOutput struct {
	Str string `json:"str"`
}

func echo(_ context.Context, _ *Request, in echoInput) (echoOutput, error) {
	if in.Str == "logic error test" {
		return echoOutput{}, InvalidProtectedKey
	}
	return echoOutput{Str: in.Str}, nil
}

type keyedInput struct {
	Key   *string `json:"key,omitempty"`
	Value int     `json:"value"`
}

type keyedHandler struct{ calls int }

func (h *keyedHandler) Process(_ context.Context, _ *Request, in keyedInput) (map[string]int, error) {
	h.calls++
	return map[string]int{"value": in.Value}, nil
}

func (h *keyedHandler) ReadKey(in keyedInput) (string, bool) {
	if in.Key == nil {
		return "", false
	}
	return *in.Key, true
}

type recordingObserver struct {
	method string
	verb   string
	status int
}

func (o *recordingObserver) ObserveRequest(method, verb string, status int, _ time.Duration) {
	o.method, o.verb, o.status = method, verb, status
}

func newTestRegistry(t *testing.T) (*Registry, *keyedHandler) {
	t.Helper()
	reg := NewRegistry(64)

	reg.Register(NewRequestHandler("echo").
		Post(JSON[echoInput, echoOutput](JSONFunc[echoInput, echoOutput](echo))))

	kh := &keyedHandler{}
	reg.Register(NewRequestHandler("keyed").
		Get(JSON[keyedInput, map[string]int](kh, WithProtectedKey("correct"))).
		Post(JSON[keyedInput, map[string]int](kh, WithProtectedKey("correct"))))

	reg.Register(NewRequestHandler("panics").
		Post(MethodHandlerFunc(func(context.Context, *Request) (*Response, error) {
			panic("boom")
		})))

	return reg, kh
}

func do(reg http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	reg.ServeHTTP(rec, req)
	return rec
}

func TestRegistry_Scenarios(t *testing.T) {
	reg, _ := newTestRegistry(t)
	key := `"correct"`

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "echo round trip",
			method:     http.MethodPost,
			target:     "/echo",
			body:       `{"str":"hi"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"str":"hi"}`,
		},
		{
			name:       "logic error from handler",
			method:     http.MethodPost,
			target:     "/echo",
			body:       `{"str":"logic error test"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"code":1}`,
		},
		{
			name:       "server method header overrides path",
			method:     http.MethodPost,
			target:     "/does-not-exist",
			body:       `{"str":"x"}`,
			header:     map[string]string{HeaderServerMethod: "echo"},
			wantStatus: http.StatusOK,
			wantBody:   `{"str":"x"}`,
		},
		{
			name:       "unknown method",
			method:     http.MethodPost,
			target:     "/nope",
			body:       `{}`,
			wantStatus: http.StatusNotFound,
			wantBody:   "Not found",
		},
		{
			name:       "unknown method ignores oversized body",
			method:     http.MethodPost,
			target:     "/nope",
			body:       strings.Repeat("x", 1000),
			wantStatus: http.StatusNotFound,
			wantBody:   "Not found",
		},
		{
			name:       "unbound verb",
			method:     http.MethodGet,
			target:     "/echo",
			wantStatus: http.StatusNotFound,
			wantBody:   "Not found",
		},
		{
			name:       "verb without slot",
			method:     http.MethodPatch,
			target:     "/echo",
			body:       `{"str":"x"}`,
			wantStatus: http.StatusNotFound,
			wantBody:   "Not found",
		},
		{
			name:       "nested path is not a method",
			method:     http.MethodPost,
			target:     "/echo/extra",
			body:       `{"str":"x"}`,
			wantStatus: http.StatusNotFound,
			wantBody:   "Not found",
		},
		{
			name:       "malformed JSON",
			method:     http.MethodPost,
			target:     "/echo",
			body:       `{"str":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid JSON",
		},
		{
			name:       "missing required field",
			method:     http.MethodPost,
			target:     "/echo",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid JSON",
		},
		{
			name:       "wrong type",
			method:     http.MethodPost,
			target:     "/echo",
			body:       `{"str":5}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid JSON",
		},
		{
			name:       "protected with wrong key",
			method:     http.MethodPost,
			target:     "/keyed",
			body:       `{"key":"wrong","value":1}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"code":1}`,
		},
		{
			name:       "protected without key",
			method:     http.MethodPost,
			target:     "/keyed",
			body:       `{"value":1}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"code":1}`,
		},
		{
			name:       "protected with key in payload",
			method:     http.MethodPost,
			target:     "/keyed",
			body:       `{"key":` + key + `,"value":7}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"value":7}`,
		},
		{
			name:       "protected with key in header",
			method:     http.MethodPost,
			target:     "/keyed",
			body:       `{"value":3}`,
			header:     map[string]string{HeaderProtectedKey: "correct"},
			wantStatus: http.StatusOK,
			wantBody:   `{"value":3}`,
		},
		{
			name:       "payload key wins over header",
			method:     http.MethodPost,
			target:     "/keyed",
			body:       `{"key":"wrong","value":3}`,
			header:     map[string]string{HeaderProtectedKey: "correct"},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"code":1}`,
		},
		{
			name:       "malformed payload fails before authorization",
			method:     http.MethodPost,
			target:     "/keyed",
			body:       `{"key":"wrong","value":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid JSON",
		},
		{
			name:       "GET input from query",
			method:     http.MethodGet,
			target:     "/keyed?key=correct&value=9",
			wantStatus: http.StatusOK,
			wantBody:   `{"value":9}`,
		},
		{
			name:       "GET query with bad literal",
			method:     http.MethodGet,
			target:     "/keyed?key=correct&value=nine",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid JSON",
		},
		{
			name:       "handler panic",
			method:     http.MethodPost,
			target:     "/panics",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal server error",
		},
		{
			name:       "body over limit",
			method:     http.MethodPost,
			target:     "/echo",
			body:       `{"str":"` + strings.Repeat("a", 100) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   "Request too large",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := do(reg, tt.method, tt.target, tt.body, tt.header)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.wantBody, rec.Body.String()); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if got := rec.Header().Get("Content-Length"); got == "" {
				t.Error("Content-Length not set")
			}
		})
	}
}

func TestRegistry_SuccessContentType(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rec := do(reg, http.MethodPost, "/echo", `{"str":"hi"}`, nil)

	if got := rec.Header().Get("Content-Type"); got != ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", got, ContentTypeJSON)
	}
	if got := rec.Header().Get("Content-Length"); got != "12" {
		t.Errorf("Content-Length = %q, want 12", got)
	}
}

func TestRegistry_RejectedKeyNeverReachesHandler(t *testing.T) {
	reg, kh := newTestRegistry(t)

	do(reg, http.MethodPost, "/keyed", `{"key":"wrong","value":1}`, nil)
	do(reg, http.MethodPost, "/keyed", `{"value":"bad"}`, nil)

	if kh.calls != 0 {
		t.Errorf("handler called %d times, want 0", kh.calls)
	}
}

func TestRegistry_InvisibleServerMethodHeader(t *testing.T) {
	reg, _ := newTestRegistry(t)
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"str":"x"}`))
	req.Header[HeaderServerMethod] = []string{"ech\x80o"}
	rec := httptest.NewRecorder()

	reg.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRegistry_InvisibleProtectedKeyHeader(t *testing.T) {
	reg, _ := newTestRegistry(t)
	req := httptest.NewRequest(http.MethodPost, "/keyed", strings.NewReader(`{"value":1}`))
	req.Header[HeaderProtectedKey] = []string{"corr\xffect"}
	rec := httptest.NewRecorder()

	reg.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || rec.Body.String() != "Invalid header" {
		t.Errorf("got %d %q, want 400 Invalid header", rec.Code, rec.Body.String())
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry(0)
	first := MethodHandlerFunc(func(context.Context, *Request) (*Response, error) {
		return &Response{Status: http.StatusOK, Body: []byte("first")}, nil
	})
	second := MethodHandlerFunc(func(context.Context, *Request) (*Response, error) {
		return &Response{Status: http.StatusOK, Body: []byte("second")}, nil
	})

	reg.Register(NewRequestHandler("m").Post(first))
	reg.Register(NewRequestHandler("m").Post(second))

	rec := do(reg, http.MethodPost, "/m", "", nil)
	if rec.Body.String() != "second" {
		t.Errorf("body = %q, want second", rec.Body.String())
	}
	if diff := cmp.Diff([]string{"m"}, reg.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_Observer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	obs := &recordingObserver{}
	reg.SetObserver(obs)

	do(reg, http.MethodPost, "/echo", `{"str":"hi"}`, nil)
	if obs.method != "echo" || obs.verb != http.MethodPost || obs.status != http.StatusOK {
		t.Errorf("observed %+v, want echo POST 200", *obs)
	}

	do(reg, http.MethodPost, "/random-name", `{}`, nil)
	if obs.method != UnknownMethod || obs.status != http.StatusNotFound {
		t.Errorf("observed %+v, want unknown 404", *obs)
	}
}

func TestRequestHandler_Verbs(t *testing.T) {
	h := NewRequestHandler("x").
		Get(MethodHandlerFunc(nil)).
		Delete(MethodHandlerFunc(nil))

	if diff := cmp.Diff([]Verb{VerbGet, VerbDelete}, h.Verbs()); diff != "" {
		t.Errorf("Verbs() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.Handler(VerbPost); ok {
		t.Error("Handler(VerbPost) ok = true, want false")
	}
}

func TestRequest_RemoteIP(t *testing.T) {
	tests := map[string]string{
		"192.168.1.5:4000": "192.168.1.5",
		"[::1]:80":         "::1",
		"pipe":             "pipe",
	}
	for addr, want := range tests {
		r := &Request{RemoteAddr: addr}
		if got := r.RemoteIP(); got != want {
			t.Errorf("RemoteIP(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestJSON_EmptyBodyDecodesAsObject(t *testing.T) {
	type opt struct {
		Note *string `json:"note,omitempty"`
	}
	h := JSON[opt, string](JSONFunc[opt, string](func(_ context.Context, _ *Request, in opt) (string, error) {
		if in.Note != nil {
			return *in.Note, nil
		}
		return "none", nil
	}))

	resp, err := h.Process(context.Background(), &Request{Verb: VerbPost})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if string(resp.Body) != `"none"` {
		t.Errorf("body = %s, want \"none\"", resp.Body)
	}
}

func TestJSON_HandlerErrorPassesThrough(t *testing.T) {
	want := errors.New("device offline")
	h := JSON[echoInput, echoOutput](JSONFunc[echoInput, echoOutput](func(context.Context, *Request, echoInput) (echoOutput, error) {
		return echoOutput{}, want
	}))

	_, err := h.Process(context.Background(), &Request{Verb: VerbPost, Body: []byte(`{"str":"a"}`)})
	if !errors.Is(err, want) {
		t.Errorf("Process() error = %v, want %v", err, want)
	}
}

type slot struct {
	Enabled     bool  `json:"enabled"`
	Temperature int32 `json:"temperature"`
}

type nestedInput struct {
	Name  string  `json:"name"`
	Slots []slot  `json:"slots"`
	Extra *slot   `json:"extra,omitempty"`
	Note  *string `json:"note,omitempty"`
}

func TestJSON_RequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "complete", body: `{"name":"a","slots":[{"enabled":true,"temperature":20}]}`},
		{name: "optional null", body: `{"name":"a","slots":[],"note":null,"extra":null}`},
		{name: "missing top level", body: `{"slots":[]}`, wantField: "name"},
		{name: "null string", body: `{"name":null,"slots":[]}`, wantField: "name"},
		{name: "null slice", body: `{"name":"a","slots":null}`, wantField: "slots"},
		{name: "null body", body: `null`, wantField: "name"},
		{name: "missing nested field", body: `{"name":"a","slots":[{"enabled":true}]}`, wantField: "slots[0].temperature"},
		{name: "null nested field", body: `{"name":"a","slots":[{"enabled":true,"temperature":20},{"enabled":null,"temperature":1}]}`, wantField: "slots[1].enabled"},
		{name: "null element", body: `{"name":"a","slots":[null]}`, wantField: "slots[0]"},
		{name: "optional struct checked when present", body: `{"name":"a","slots":[],"extra":{"enabled":true}}`, wantField: "extra.temperature"},
		{name: "case insensitive keys", body: `{"NAME":"a","Slots":[{"Enabled":false,"TEMPERATURE":1}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := JSON[nestedInput, string](JSONFunc[nestedInput, string](func(context.Context, *Request, nestedInput) (string, error) {
				called = true
				return "ok", nil
			}))

			_, err := h.Process(context.Background(), &Request{Verb: VerbPost, Body: []byte(tt.body)})
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Process() error = %v, want nil", err)
				}
				return
			}

			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("Process() error = %v, want MissingFieldError", err)
			}
			if missing.Field != tt.wantField {
				t.Errorf("missing field = %q, want %q", missing.Field, tt.wantField)
			}
			if got := Classify(err).Kind; got != KindJSON {
				t.Errorf("Classify().Kind = %v, want %v", got, KindJSON)
			}
			if called {
				t.Error("handler ran despite missing field")
			}
		})
	}
}

func TestRegistry_NullRequiredFieldIsInvalidJSON(t *testing.T) {
	reg, _ := newTestRegistry(t)

	rec := do(reg, http.MethodPost, "/echo", `{"str":null}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := rec.Body.String(); got != "Invalid JSON" {
		t.Errorf("body = %q, want %q", got, "Invalid JSON")
	}
}
