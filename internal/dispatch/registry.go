package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// UnknownMethod labels requests whose method name was not resolved or
// not registered.
const UnknownMethod = "unknown"

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives the outcome of every dispatched request.
type Observer interface {
	ObserveRequest(method, verb string, status int, duration time.Duration)
}

var errHandlerPanic = errors.New("handler panicked")

// Registry maps method names to request handlers and serves them over HTTP.
//
// Handlers are registered at boot. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*RequestHandler

	maxBody  int64
	logger   Logger
	observer Observer
}

// NewRegistry creates an empty registry. A non-positive maxBody selects
// DefaultMaxBodyBytes.
func NewRegistry(maxBody int64) *Registry {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Registry{
		handlers: make(map[string]*RequestHandler),
		maxBody:  maxBody,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetObserver sets the request observer.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// Register adds h under its name. A later registration for the same
// name replaces the earlier one.
func (r *Registry) Register(h *RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Name()]; exists {
		r.logger.Warn("replacing registered method", "method", h.Name())
	}
	r.handlers[h.Name()] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (*RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP resolves the method, reads the body and runs the bound handler.
// It never lets a handler panic escape.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	label := UnknownMethod
	status := http.StatusNotFound
	defer func() {
		if r.observer != nil {
			verb := "OTHER"
			if v, ok := ParseVerb(req.Method); ok {
				verb = v.String()
			}
			r.observer.ObserveRequest(label, verb, status, time.Since(start))
		}
	}()

	name, ok := methodName(req)
	if !ok {
		status = writeText(w, http.StatusNotFound, "Not found")
		return
	}

	rh, found := r.Lookup(name)
	if !found {
		status = writeText(w, http.StatusNotFound, "Not found")
		return
	}
	label = name

	verb, known := ParseVerb(req.Method)
	var mh MethodHandler
	if known {
		mh, known = rh.Handler(verb)
	}
	if !known {
		status = writeText(w, http.StatusNotFound, "Not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.logger.Info("request body too large", "method", name, "limit", r.maxBody)
			status = writeText(w, http.StatusRequestEntityTooLarge, "Request too large")
			return
		}
		r.logger.Warn("reading request body", "method", name, "error", err)
		status = writeText(w, http.StatusBadRequest, "Cannot read request")
		return
	}

	dreq := &Request{
		Method:     name,
		Verb:       verb,
		URL:        req.URL,
		Header:     req.Header,
		RemoteAddr: req.RemoteAddr,
		Body:       body,
	}

	resp, err := r.invoke(req.Context(), mh, dreq)
	if err != nil {
		status = r.writeError(w, name, err)
		return
	}
	status = writeResponse(w, resp)
}

// invoke runs h, converting a panic into an internal error.
func (r *Registry) invoke(ctx context.Context, h MethodHandler, req *Request) (resp *Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panic recovered",
				"method", req.Method,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			resp = nil
			err = &Error{Kind: KindInternal, Err: errHandlerPanic}
		}
	}()
	return h.Process(ctx, req)
}

// methodName resolves the method from the Server-Method header or the path.
// ok is false when the header is present but unreadable.
func methodName(req *http.Request) (string, bool) {
	name, present, err := headerString(req.Header, HeaderServerMethod)
	if err != nil {
		return "", false
	}
	if present {
		return name, true
	}
	return strings.TrimPrefix(req.URL.Path, "/"), true
}

func (r *Registry) writeError(w http.ResponseWriter, method string, err error) int {
	de := Classify(err)

	if de.Kind == KindLogic {
		r.logger.Info("request rejected", "method", method, "code", de.Logic.Code(), "reason", de.Logic.Error())
		body, merr := json.Marshal(struct {
			Code int32 `json:"code"`
		}{Code: de.Logic.Code()})
		if merr != nil {
			return writeText(w, http.StatusInternalServerError, "Internal server error")
		}
		return writeBody(w, http.StatusBadRequest, ContentTypeJSON, body)
	}

	status, text := errorStatus(de.Kind)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "method", method, "kind", de.Kind.String(), "error", de.Err)
	} else {
		r.logger.Info("request rejected", "method", method, "kind", de.Kind.String(), "error", de.Err)
	}
	return writeText(w, status, text)
}

func writeResponse(w http.ResponseWriter, resp *Response) int {
	if resp == nil {
		return writeText(w, http.StatusInternalServerError, "Internal server error")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	return writeBody(w, status, resp.ContentType, resp.Body)
}

func writeText(w http.ResponseWriter, status int, text string) int {
	return writeBody(w, status, "text/plain; charset=utf-8", []byte(text))
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) int {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return status
}
