package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// BodyLimit caps request payload size before any handler decodes it.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 for oversized bodies. Content-Length is checked
// first to reject cheaply; the body is then read through a limited reader
// because clients can lie about, or omit, the declared length. The consumed
// body is replayed for the downstream handler.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength != -1 && r.ContentLength > b.Max {
			http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
			return
		}

		body, tooLarge, err := readCapped(r.Body, b.Max)
		switch {
		case err != nil:
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		case tooLarge:
			http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
			return
		}

		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// readCapped consumes at most max+1 bytes; the extra byte distinguishes an
// exactly-max body from an oversized one.
func readCapped(rc io.Reader, max int64) (body []byte, tooLarge bool, err error) {
	body, err = io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	if int64(len(body)) > max {
		return nil, true, nil
	}
	return body, false, nil
}
