// Package solarapi implements the Fronius Solar API (V0 and V1): version
// negotiation, request dialects, response envelopes and normalization of
// power flow data into data points.
package solarapi

import (
	"bytes"
	"encoding/json"
)

// Status is the decorated Head.Status of a response. Text and Description
// are resolved through the catalog; the raw document is never modified.
type Status struct {
	Code        int    `json:"Code"`
	Reason      string `json:"Reason,omitempty"`
	UserMessage string `json:"UserMessage,omitempty"`
	Text        string `json:"Status_Text"`
	Description string `json:"Status_Descr"`
}

// Head is the response envelope metadata.
type Head struct {
	RequestArguments map[string]interface{} `json:"RequestArguments,omitempty"`
	Status           Status                 `json:"Status"`
	Timestamp        string                 `json:"Timestamp,omitempty"`
}

// Response is a validated Solar API envelope.
type Response struct {
	Endpoint string          `json:"-"`
	Head     Head            `json:"Head"`
	Body     json.RawMessage `json:"Body"`

	raw json.RawMessage
}

type rawEnvelope struct {
	Head *struct {
		RequestArguments map[string]interface{} `json:"RequestArguments"`
		Status           *struct {
			Code        *int   `json:"Code"`
			Reason      string `json:"Reason"`
			UserMessage string `json:"UserMessage"`
		} `json:"Status"`
		Timestamp string `json:"Timestamp"`
	} `json:"Head"`
	Body json.RawMessage `json:"Body"`
}

// NewResponse validates raw against the Head/Status/Body envelope.
// An absent document, whether empty or a bare JSON null, means the
// transport produced nothing and yields a TransportError. Structural
// problems yield an EnvelopeError.
func NewResponse(endpoint string, raw json.RawMessage) (*Response, error) {
	if isNull(raw) {
		return nil, &TransportError{Endpoint: endpoint, Err: errEmptyDocument}
	}

	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &EnvelopeError{Endpoint: endpoint, Reason: err.Error(), Raw: raw}
	}

	switch {
	case env.Head == nil:
		return nil, &EnvelopeError{Endpoint: endpoint, Reason: "missing Head", Raw: raw}
	case env.Head.Status == nil:
		return nil, &EnvelopeError{Endpoint: endpoint, Reason: "missing Head.Status", Raw: raw}
	case env.Head.Status.Code == nil:
		return nil, &EnvelopeError{Endpoint: endpoint, Reason: "missing Head.Status.Code", Raw: raw}
	case isNull(env.Body):
		return nil, &EnvelopeError{Endpoint: endpoint, Reason: "missing Body", Raw: raw}
	}

	code := *env.Head.Status.Code
	return &Response{
		Endpoint: endpoint,
		Head: Head{
			RequestArguments: env.Head.RequestArguments,
			Status: Status{
				Code:        code,
				Reason:      env.Head.Status.Reason,
				UserMessage: env.Head.Status.UserMessage,
				Text:        StatusText(code),
				Description: StatusDescription(code),
			},
			Timestamp: env.Head.Timestamp,
		},
		Body: env.Body,
		raw:  raw,
	}, nil
}

// OK reports whether the status code is in the catalog's success set.
func (r *Response) OK() bool {
	return StatusOK(r.Head.Status.Code)
}

// Status returns the decorated status.
func (r *Response) Status() Status {
	return r.Head.Status
}

// Err returns a StatusError when the response is not OK.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{Endpoint: r.Endpoint, Status: r.Head.Status, Body: r.Body}
}

// Raw returns the document the response was built from.
func (r *Response) Raw() json.RawMessage {
	return r.raw
}

// Data returns Body.Data.
func (r *Response) Data() (json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, &EnvelopeError{Endpoint: r.Endpoint, Reason: "Body is not an object: " + err.Error(), Raw: r.raw}
	}

	data, ok := body["Data"]
	if !ok || isNull(data) {
		return nil, &EnvelopeError{Endpoint: r.Endpoint, Reason: "missing Body.Data", Raw: r.raw}
	}
	return data, nil
}

// DecodeData unmarshals Body.Data into v.
func (r *Response) DecodeData(v interface{}) error {
	data, err := r.Data()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &EnvelopeError{Endpoint: r.Endpoint, Reason: "undecodable Body.Data: " + err.Error(), Raw: r.raw}
	}
	return nil
}

// BodyObject decodes Body into a generic map, for republishing.
func (r *Response) BodyObject() (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, &EnvelopeError{Endpoint: r.Endpoint, Reason: "Body is not an object: " + err.Error(), Raw: r.raw}
	}
	return body, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
