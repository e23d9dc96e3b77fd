package httpclient

import (
	"fmt"
	"io"
	"net/http"

	"github.com/jbytow/coffeetica/pkg/httputil"
)

// StatusError describes a non-2xx response. Code, Message and Fields are
// filled from the standard error envelope when the body carries one.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// ParseResponseError consumes and closes the body of a non-2xx response.
func ParseResponseError(resp *http.Response) *StatusError {
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxBodyBytes))
	se := &StatusError{Status: resp.StatusCode, Body: string(body)}
	if env := httputil.DecodeError(body); env != nil {
		se.Code = env.Code
		se.Message = env.Message
		se.Fields = env.Fields
	}
	return se
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
