package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	encodingZstd = "zstd"
	encodingGzip = "gzip"
)

var (
	gzipPool sync.Pool
	zstdPool sync.Pool
)

func getZstdWriter(w io.Writer) *zstd.Encoder {
	if v := zstdPool.Get(); v != nil {
		zw := v.(*zstd.Encoder) //nolint:forcetypeassert // pool holds only encoders
		zw.Reset(w)
		return zw
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err) // options are static
	}
	return zw
}

func getGzipWriter(w io.Writer) *gzip.Writer {
	if v := gzipPool.Get(); v != nil {
		gw := v.(*gzip.Writer) //nolint:forcetypeassert // pool holds only gzip writers
		gw.Reset(w)
		return gw
	}
	gw, _ := gzip.NewWriterLevel(w, gzip.DefaultCompression) //nolint:errcheck // level is valid
	return gw
}

// negotiateEncoding picks zstd over gzip from an Accept-Encoding value.
// Codings listed with q=0 are refused.
func negotiateEncoding(header string) string {
	var zstdOK, gzipOK bool
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				continue
			}
		}
		switch coding {
		case encodingZstd:
			zstdOK = true
		case encodingGzip, "x-gzip":
			gzipOK = true
		}
	}
	switch {
	case zstdOK:
		return encodingZstd
	case gzipOK:
		return encodingGzip
	default:
		return ""
	}
}

// compressWriter streams the body through an encoder. Responses that
// cannot carry a body are passed through untouched.
type compressWriter struct {
	http.ResponseWriter
	enc      io.Writer
	encoding string
	decided  bool
	disabled bool
}

func (cw *compressWriter) WriteHeader(status int) {
	if !cw.decided {
		cw.decided = true
		h := cw.Header()
		if noBodyStatus(status) || h.Get("Content-Encoding") != "" {
			cw.disabled = true
		} else {
			h.Del("Content-Length")
			h.Set("Content-Encoding", cw.encoding)
			h.Add("Vary", "Accept-Encoding")
		}
	}
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if !cw.decided {
		if cw.Header().Get("Content-Type") == "" {
			cw.Header().Set("Content-Type", http.DetectContentType(b))
		}
		cw.WriteHeader(http.StatusOK)
	}
	if cw.disabled {
		return cw.ResponseWriter.Write(b)
	}
	return cw.enc.Write(b)
}

func (cw *compressWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// used reports whether the encoder produced output that must be closed.
func (cw *compressWriter) used() bool {
	return cw.decided && !cw.disabled
}

func noBodyStatus(code int) bool {
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// compression encodes response bodies with zstd or gzip as the client
// accepts.
func compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		switch encoding {
		case encodingZstd:
			zw := getZstdWriter(w)
			cw.enc = zw
			defer func() {
				if !cw.used() {
					zw.Reset(io.Discard)
				}
				_ = zw.Close() //nolint:errcheck // client may have gone
				zstdPool.Put(zw)
			}()
		case encodingGzip:
			gw := getGzipWriter(w)
			cw.enc = gw
			defer func() {
				if !cw.used() {
					gw.Reset(io.Discard)
				}
				_ = gw.Close() //nolint:errcheck // client may have gone
				gzipPool.Put(gw)
			}()
		}

		next.ServeHTTP(cw, r)
	})
}
