package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/tombee/stepkernel/pkg/errors"
)

func TestNewRequest_AssignsCorrelationIDAndMarshalsParams(t *testing.T) {
	msg, err := NewRequest(MethodNext, map[string]string{"foo": "bar"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRequest, msg.Type)
	assert.NotEmpty(t, msg.CorrelationID)
	assert.Equal(t, MethodNext, msg.Method)
	assert.JSONEq(t, `{"foo":"bar"}`, string(msg.Params))
}

func TestNewResponse_CarriesCorrelationID(t *testing.T) {
	msg, err := NewResponse("corr-1", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeResponse, msg.Type)
	assert.Equal(t, "corr-1", msg.CorrelationID)
}

func TestNewErrorResponse(t *testing.T) {
	msg := NewErrorResponse("corr-1", "StepNotFound", "nope", map[string]interface{}{"stepId": "x"})
	assert.Equal(t, MessageTypeError, msg.Type)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "StepNotFound", msg.Error.Code)
}

func TestMessage_Validate(t *testing.T) {
	cases := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"missing correlation id", Message{Type: MessageTypeRequest, Method: "x"}, true},
		{"request missing method", Message{Type: MessageTypeRequest, CorrelationID: "c"}, true},
		{"valid request", Message{Type: MessageTypeRequest, CorrelationID: "c", Method: "x"}, false},
		{"valid response", Message{Type: MessageTypeResponse, CorrelationID: "c"}, false},
		{"unknown type", Message{Type: "bogus", CorrelationID: "c"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCodeForError_MapsCodedError(t *testing.T) {
	err := &kerrors.StepNotFoundError{StepID: "x"}
	assert.Equal(t, "StepNotFound", codeForError(err))
}

func TestCodeForError_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, "Internal", codeForError(assertPlainError{}))
}

type assertPlainError struct{}

func (assertPlainError) Error() string { return "plain" }
