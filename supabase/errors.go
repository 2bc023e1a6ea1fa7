package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// APIError is a non-success response from PostgREST or GoTrue. StatusCode is
// zero when the response status was not reported.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	status := "supabase request failed"
	if e.StatusCode != 0 {
		status = fmt.Sprintf("supabase request failed with status %d", e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", status, e.Message)
}

var (
	// postgrest-go reports a PostgREST error body as "(code) message"
	restErrorPattern = regexp.MustCompile(`(?s)^\(([^)]*)\) (.*)$`)
	// gotrue-go reports "response status code 422: {body}"
	authErrorPattern = regexp.MustCompile(`(?s)^response status code (\d+)(?::\s*(.*))?$`)
)

// restError maps a postgrest-go error to an APIError. Transport errors are
// wrapped with action instead.
func restError(err error, action string) error {
	match := restErrorPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return errors.Wrap(err, action)
	}
	return &APIError{Code: match[1], Message: match[2]}
}

// authError maps a gotrue-go error to an APIError
func authError(err error, action string) error {
	match := authErrorPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return errors.Wrap(err, action)
	}
	status, _ := strconv.Atoi(match[1])
	return parseErrorBody(status, []byte(match[2]))
}

// errorBody covers both the PostgREST and the GoTrue error shapes
type errorBody struct {
	Code      json.RawMessage `json:"code"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	Msg       string          `json:"msg"`
	Error     string          `json:"error"`
	Details   string          `json:"details"`
	Hint      string          `json:"hint"`
}

func parseErrorBody(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = string(raw)
		return apiErr
	}

	apiErr.Code = body.ErrorCode
	if apiErr.Code == "" && len(body.Code) > 0 {
		var code string
		if json.Unmarshal(body.Code, &code) == nil {
			apiErr.Code = code
		} else {
			apiErr.Code = string(body.Code)
		}
	}

	switch {
	case body.Message != "":
		apiErr.Message = body.Message
	case body.Msg != "":
		apiErr.Message = body.Msg
	case body.Error != "":
		apiErr.Message = body.Error
	default:
		apiErr.Message = http.StatusText(status)
	}

	apiErr.Details = strings.TrimSpace(body.Details + " " + body.Hint)
	return apiErr
}
