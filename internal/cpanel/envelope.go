package cpanel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotConfigured is reported when the panel user or token is missing.
	ErrNotConfigured = errors.New("cpanel not configured")
	// ErrAuthFailed is reported when the panel rejects the credentials.
	ErrAuthFailed = errors.New("cpanel authentication failed")
)

// APIError is a failed panel call. Message is the first error the panel (or
// the transport) reported.
type APIError struct {
	Status  int
	Message string
	cause   error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.cause }

// Envelope is the normalized shape of every panel response.
type Envelope struct {
	Status   int             `json:"status"`
	Data     json.RawMessage `json:"data,omitempty"`
	Errors   []string        `json:"errors"`
	Messages []string        `json:"messages"`

	cause error
}

// OK reports a 2xx status with an empty error list.
func (e *Envelope) OK() bool {
	return e.Status >= 200 && e.Status < 300 && len(e.Errors) == 0
}

// Err returns nil for a successful call and an *APIError otherwise.
func (e *Envelope) Err() error {
	return e.ErrOr(fmt.Sprintf("cpanel request failed with status %d", e.Status))
}

// ErrOr is Err with a caller-chosen message for failures that carry no error text.
func (e *Envelope) ErrOr(fallback string) error {
	if e.OK() {
		return nil
	}
	msg := fallback
	if len(e.Errors) > 0 && e.Errors[0] != "" {
		msg = e.Errors[0]
	}
	return &APIError{Status: e.Status, Message: msg, cause: e.cause}
}

// HasData reports whether the response carried a non-null data member.
func (e *Envelope) HasData() bool {
	if len(e.Data) == 0 {
		return false
	}
	r := gjson.ParseBytes(e.Data)
	return r.Type != gjson.Null
}

func failure(status int, cause error, msg string) *Envelope {
	return &Envelope{Status: status, Errors: []string{msg}, Messages: []string{}, cause: cause}
}

func transportFailure(err error) *Envelope {
	return failure(http.StatusInternalServerError, nil, err.Error())
}

// Normalize folds the panel's three response shapes into one Envelope:
//
//	{"result": {"data": ..., "errors": [...], "messages": [...]}}
//	{"data": ..., "errors": [...], "messages": [...]}
//	anything else, passed through as data
func Normalize(status int, body []byte) *Envelope {
	root := gjson.ParseBytes(body)
	env := &Envelope{Status: status}

	if result := root.Get("result"); result.IsObject() {
		env.Data = rawMember(result.Get("data"))
		env.Errors = stringList(result.Get("errors"))
		env.Messages = stringList(result.Get("messages"))
		return env
	}

	if data := root.Get("data"); data.Exists() {
		env.Data = rawMember(data)
		env.Errors = stringList(root.Get("errors"))
		env.Messages = stringList(root.Get("messages"))
		return env
	}

	env.Data = json.RawMessage(root.Raw)
	env.Errors = stringList(root.Get("errors"))
	env.Messages = stringList(root.Get("messages"))
	return env
}

func rawMember(r gjson.Result) json.RawMessage {
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}

// stringList accepts an array of strings, a single string, or null.
func stringList(r gjson.Result) []string {
	out := []string{}
	switch {
	case r.IsArray():
		r.ForEach(func(_, item gjson.Result) bool {
			if s := item.String(); s != "" {
				out = append(out, s)
			}
			return true
		})
	case r.Type == gjson.String:
		if s := r.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
