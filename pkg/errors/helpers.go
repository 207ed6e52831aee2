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

// Package errors supplies the typed error taxonomy used across the
// interpreter, the workflow compiler, and the RPC boundary. Errors are
// values: every exported function here returns or wraps a value, never
// panics or raises.
package errors

import (
	"errors"
	"fmt"
)

// Wrap attaches additional context to err. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is is a convenience re-export of errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience re-export of errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap is a convenience re-export of errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New is a convenience re-export of errors.New.
func New(message string) error {
	return errors.New(message)
}

// Coded is implemented by every error in the taxonomy below. The RPC
// boundary uses Code() to populate the machine-readable error code
// without string-matching Error() text.
type Coded interface {
	error
	Code() string
}
