package dispatch

import (
	"context"
	"net"
	"net/http"
	"net/url"
)

// Verb is a request verb with a handler slot.
type Verb int

// Bindable verbs. Other HTTP methods never match a handler.
const (
	VerbGet Verb = iota
	VerbPost
	VerbPut
	VerbDelete

	verbCount
)

// ParseVerb maps an HTTP method to a Verb.
func ParseVerb(method string) (Verb, bool) {
	switch method {
	case http.MethodGet:
		return VerbGet, true
	case http.MethodPost:
		return VerbPost, true
	case http.MethodPut:
		return VerbPut, true
	case http.MethodDelete:
		return VerbDelete, true
	default:
		return 0, false
	}
}

func (v Verb) String() string {
	switch v {
	case VerbGet:
		return http.MethodGet
	case VerbPost:
		return http.MethodPost
	case VerbPut:
		return http.MethodPut
	case VerbDelete:
		return http.MethodDelete
	default:
		return "UNKNOWN"
	}
}

// Request is the transport envelope handed to a MethodHandler.
// Body holds the complete request payload.
type Request struct {
	Method     string
	Verb       Verb
	URL        *url.URL
	Header     http.Header
	RemoteAddr string
	Body       []byte
}

// RemoteIP returns the host part of RemoteAddr, or RemoteAddr itself
// when it has no port.
func (r *Request) RemoteIP() string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Response is a rendered handler result.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// MethodHandler processes one request for a bound method and verb.
type MethodHandler interface {
	Process(ctx context.Context, req *Request) (*Response, error)
}

// MethodHandlerFunc adapts a function to MethodHandler.
type MethodHandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Process calls f.
func (f MethodHandlerFunc) Process(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// RequestHandler binds a method name to at most one handler per verb.
type RequestHandler struct {
	name     string
	handlers [verbCount]MethodHandler
}

// NewRequestHandler returns a RequestHandler for name with no verbs bound.
func NewRequestHandler(name string) *RequestHandler {
	return &RequestHandler{name: name}
}

// Name returns the method name.
func (h *RequestHandler) Name() string {
	return h.name
}

// Get binds the GET handler.
func (h *RequestHandler) Get(m MethodHandler) *RequestHandler {
	return h.bind(VerbGet, m)
}

// Post binds the POST handler.
func (h *RequestHandler) Post(m MethodHandler) *RequestHandler {
	return h.bind(VerbPost, m)
}

// Put binds the PUT handler.
func (h *RequestHandler) Put(m MethodHandler) *RequestHandler {
	return h.bind(VerbPut, m)
}

// Delete binds the DELETE handler.
func (h *RequestHandler) Delete(m MethodHandler) *RequestHandler {
	return h.bind(VerbDelete, m)
}

func (h *RequestHandler) bind(v Verb, m MethodHandler) *RequestHandler {
	h.handlers[v] = m
	return h
}

// Handler returns the handler bound to v.
func (h *RequestHandler) Handler(v Verb) (MethodHandler, bool) {
	if v < 0 || v >= verbCount {
		return nil, false
	}
	m := h.handlers[v]
	return m, m != nil
}

// Verbs lists the bound verbs in slot order.
func (h *RequestHandler) Verbs() []Verb {
	var out []Verb
	for v := Verb(0); v < verbCount; v++ {
		if h.handlers[v] != nil {
			out = append(out, v)
		}
	}
	return out
}
