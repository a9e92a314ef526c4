package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDecode reports image bytes that could not be turned into a bitmap.
	ErrDecode = errors.New("fetch: cannot decode image")

	// ErrClosed is returned for requests made to, or pending in, a closed worker.
	ErrClosed = errors.New("fetch: worker closed")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// IsAbsent reports whether err means the resource legitimately does not
// exist (404 or 403). Absence is a definitive answer, not a failure.
func IsAbsent(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusNotFound || se.Code == http.StatusForbidden
}
