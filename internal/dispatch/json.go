package dispatch

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
)

// ContentTypeJSON is the content type of every JSON handler response.
const ContentTypeJSON = "application/json"

// JSONHandler processes a decoded input and returns an output to encode.
type JSONHandler[I, O any] interface {
	Process(ctx context.Context, req *Request, in I) (O, error)
}

// JSONFunc adapts a function to JSONHandler.
type JSONFunc[I, O any] func(ctx context.Context, req *Request, in I) (O, error)

// Process calls f.
func (f JSONFunc[I, O]) Process(ctx context.Context, req *Request, in I) (O, error) {
	return f(ctx, req, in)
}

// KeyReader is implemented by handlers whose input carries the protected key.
// ok is false when the input holds no key; the Protected-Key header is
// consulted instead.
type KeyReader[I any] interface {
	ReadKey(in I) (key string, ok bool)
}

// Option configures a JSON handler.
type Option func(*jsonOptions)

type jsonOptions struct {
	protectedKey string
	protected    bool
}

// WithProtectedKey requires callers to present key.
func WithProtectedKey(key string) Option {
	return func(o *jsonOptions) {
		o.protectedKey = key
		o.protected = true
	}
}

// JSON wraps h as a MethodHandler.
//
// The input is decoded and validated before the protected key is checked,
// so a malformed payload fails as a JSON error even without a valid key.
func JSON[I, O any](h JSONHandler[I, O], opts ...Option) MethodHandler {
	a := &jsonAdapter[I, O]{inner: h}
	for _, opt := range opts {
		opt(&a.opts)
	}
	return a
}

type jsonAdapter[I, O any] struct {
	inner JSONHandler[I, O]
	opts  jsonOptions
}

func (a *jsonAdapter[I, O]) Process(ctx context.Context, req *Request) (*Response, error) {
	in, err := decodeInput[I](req)
	if err != nil {
		return nil, err
	}

	if a.opts.protected {
		if err := a.authorize(req, in); err != nil {
			return nil, err
		}
	}

	out, err := a.inner.Process(ctx, req, in)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}

	return &Response{
		Status:      http.StatusOK,
		ContentType: ContentTypeJSON,
		Body:        body,
	}, nil
}

func (a *jsonAdapter[I, O]) authorize(req *Request, in I) error {
	key, ok := "", false
	if kr, isReader := a.inner.(KeyReader[I]); isReader {
		key, ok = kr.ReadKey(in)
	}
	if !ok {
		var err error
		key, ok, err = headerString(req.Header, HeaderProtectedKey)
		if err != nil {
			return HeaderError(fmt.Errorf("%s: %w", HeaderProtectedKey, err))
		}
	}

	if !ok || subtle.ConstantTimeCompare([]byte(key), []byte(a.opts.protectedKey)) != 1 {
		return InvalidProtectedKey
	}
	return nil
}
