package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches every 401 ResponseError.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuthorization matches every 403 ResponseError.
	ErrAuthorization = errors.New("forbidden")
)

// ResponseError is a non-2xx response. The body has already been read.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
	// AccessTokenExpired mirrors the flag every 401 body carries.
	AccessTokenExpired bool
	Body               []byte
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ResponseError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrAuthorization
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AccessTokenExpired bool `json:"accessTokenExpired"`
}

func newResponseError(req *http.Request, status int, body []byte) *ResponseError {
	e := &ResponseError{
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: status,
		Body:       body,
	}
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		e.Code = env.Error.Code
		e.Message = env.Error.Message
		e.AccessTokenExpired = env.AccessTokenExpired
	}
	return e
}
