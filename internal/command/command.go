// Package command sends one request to a peer over the framed command
// protocol and decodes its reply.
//
// Request frame (all integers int32 little-endian):
//
//	method id | payload length | content type | payload
//
// Response frame:
//
//	payload length | content type | payload
//
// Every exchange opens a fresh TCP connection, bounded by a timeout, and
// closes it afterwards.
package command

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/rpihome-core/internal/dispatch"
)

// ContentType identifies the payload encoding of a frame.
type ContentType int32

// Supported content types.
const (
	ContentTypeJSON ContentType = 1
	ContentTypeCBOR ContentType = 2
)

// Defaults applied by New.
const (
	DefaultTimeout          = 2 * time.Second
	DefaultMaxResponseBytes = 1 << 20
)

// ErrResponseTooLarge is returned when a peer announces a payload above the limit.
var ErrResponseTooLarge = errors.New("command: response exceeds size limit")

// Command is a single request to a peer. Build it with New, MethodID and
// Input, then call Execute once.
type Command struct {
	addr        *net.TCPAddr
	methodID    *int32
	input       []byte
	contentType ContentType
	timeout     time.Duration
	maxResponse int64
}

// Option configures a Command.
type Option func(*Command)

// WithTimeout bounds dial, write and read together.
func WithTimeout(d time.Duration) Option {
	return func(c *Command) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResponseBytes caps the response payload.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Command) {
		if n > 0 {
			c.maxResponse = n
		}
	}
}

// WithContentType selects the request encoding. JSON is the default.
func WithContentType(ct ContentType) Option {
	return func(c *Command) {
		c.contentType = ct
	}
}

// New resolves addr (host:port). An address that cannot be resolved
// fails with dispatch.CommandSocketAddressNotFound.
func New(addr string, opts ...Option) (*Command, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w (%v)", addr, dispatch.CommandSocketAddressNotFound, err)
	}

	c := &Command{
		addr:        tcpAddr,
		contentType: ContentTypeJSON,
		timeout:     DefaultTimeout,
		maxResponse: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MethodID sets the peer method to call.
func (c *Command) MethodID(id int32) *Command {
	c.methodID = &id
	return c
}

// Input encodes v as the request payload.
func (c *Command) Input(v any) (*Command, error) {
	payload, err := encode(c.contentType, v)
	if err != nil {
		return nil, fmt.Errorf("encoding command input: %w", err)
	}
	c.input = payload
	return c, nil
}

// Execute sends the request and decodes the response payload into out.
// A nil out discards the payload.
func (c *Command) Execute(ctx context.Context, out any) error {
	if c.input == nil {
		return dispatch.CommandInputNotSet
	}
	if c.methodID == nil {
		return dispatch.CommandMethodIDNotSet
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.addr.String())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("setting deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := writeRequest(conn, *c.methodID, c.contentType, c.input); err != nil {
		return fmt.Errorf("writing command to %s: %w", c.addr, err)
	}

	ct, payload, err := readResponse(conn, c.maxResponse)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", c.addr, err)
	}

	if out == nil {
		return nil
	}
	if err := decode(ct, payload, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func writeRequest(w io.Writer, methodID int32, ct ContentType, payload []byte) error {
	frame := make([]byte, 12+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(methodID))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[8:12], uint32(ct))
	copy(frame[12:], payload)
	_, err := w.Write(frame)
	return err
}

func readResponse(r io.Reader, limit int64) (ContentType, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	size := int32(binary.LittleEndian.Uint32(header[0:4]))
	ct := ContentType(int32(binary.LittleEndian.Uint32(header[4:8])))

	if ct != ContentTypeJSON && ct != ContentTypeCBOR {
		return 0, nil, dispatch.CommandUnsupportedContentType
	}
	if size < 0 || int64(size) > limit {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return ct, payload, nil
}

func encode(ct ContentType, v any) ([]byte, error) {
	switch ct {
	case ContentTypeJSON:
		return json.Marshal(v)
	case ContentTypeCBOR:
		return cbor.Marshal(v)
	default:
		return nil, dispatch.CommandUnsupportedContentType
	}
}

func decode(ct ContentType, data []byte, out any) error {
	switch ct {
	case ContentTypeJSON:
		return json.Unmarshal(data, out)
	case ContentTypeCBOR:
		return cbor.Unmarshal(data, out)
	default:
		return dispatch.CommandUnsupportedContentType
	}
}
