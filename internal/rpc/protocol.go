// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rpc is a thin JSON envelope around the kernel's next/applyEvent
// reducer (§6 "external interfaces"): a polling agent sends a request
// naming one of the two methods, and gets back either a result or a
// structured error keyed by the taxonomy's Code().
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	kerrors "github.com/tombee/stepkernel/pkg/errors"
	"github.com/tombee/stepkernel/pkg/kernel"
)

const ProtocolVersion = "1.0"

var (
	// ErrInvalidMessage is returned when a message cannot be parsed.
	ErrInvalidMessage = errors.New("rpc: invalid message format")

	// ErrMissingCorrelationID is returned when a message lacks a correlation ID.
	ErrMissingCorrelationID = errors.New("rpc: missing correlation ID")

	// ErrMethodNotFound describes a request naming a method that doesn't
	// exist. Handler.Dispatch does not return it; it answers that case
	// with an error message whose code is "MethodNotFound".
	ErrMethodNotFound = errors.New("rpc: method not found")
)

// MessageType identifies the type of RPC message. The kernel's
// interface is request/response only — no streaming, no handshake —
// since next/applyEvent are both single synchronous calls (§6).
type MessageType string

const (
	MessageTypeRequest  MessageType = "request"
	MessageTypeResponse MessageType = "response"
	MessageTypeError    MessageType = "error"
)

// Message is the envelope for every RPC exchange.
type Message struct {
	Type          MessageType     `json:"type"`
	CorrelationID string          `json:"correlationId"`
	Method        string          `json:"method,omitempty"`
	Params        json.RawMessage `json:"params,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         *ErrorResponse  `json:"error,omitempty"`
}

// ErrorResponse is structured error information keyed by the kernel's
// error-taxonomy Code(), so a caller can branch on it instead of
// string-matching the message.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewRequest creates a request message with a fresh correlation id.
func NewRequest(method string, params interface{}) (*Message, error) {
	paramsJSON, err := marshalOrNil(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling params: %w", err)
	}
	return &Message{
		Type:          MessageTypeRequest,
		CorrelationID: uuid.New().String(),
		Method:        method,
		Params:        paramsJSON,
	}, nil
}

// NewResponse creates a response message for correlationID.
func NewResponse(correlationID string, result interface{}) (*Message, error) {
	resultJSON, err := marshalOrNil(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Message{
		Type:          MessageTypeResponse,
		CorrelationID: correlationID,
		Result:        resultJSON,
	}, nil
}

// NewErrorResponse creates an error response message keyed by code.
func NewErrorResponse(correlationID, code, message string, details map[string]interface{}) *Message {
	return &Message{
		Type:          MessageTypeError,
		CorrelationID: correlationID,
		Error:         &ErrorResponse{Code: code, Message: message, Details: details},
	}
}

// Validate checks that m is well-formed for its declared type.
func (m *Message) Validate() error {
	if m.CorrelationID == "" {
		return ErrMissingCorrelationID
	}
	switch m.Type {
	case MessageTypeRequest:
		if m.Method == "" {
			return fmt.Errorf("%w: missing method", ErrInvalidMessage)
		}
	case MessageTypeResponse, MessageTypeError:
		// no further required fields
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}

func marshalOrNil(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// codeForError maps an error to its taxonomy code via the Coded
// interface; anything else (including a nil error, which callers must
// not pass here) is reported as an opaque internal error.
func codeForError(err error) string {
	var coded kerrors.Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "Internal"
}
