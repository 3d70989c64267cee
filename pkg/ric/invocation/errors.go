/*
Copyright 2023 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package invocation

import (
	"fmt"
)

// Error lets a capability fail with an explicit error kind (e.g. ValueError),
// which is reported as the errorType of the failure
type Error struct {
	kind    string
	message string
}

// NewError creates an error of a given kind
func NewError(kind string, message string) error {
	return &Error{
		kind:    kind,
		message: message,
	}
}

// NewErrorf creates an error of a given kind with a formatted message
func NewErrorf(kind string, format string, args ...interface{}) error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	return e.message
}

// ErrorType returns the kind of the error
func (e *Error) ErrorType() string {
	return e.kind
}
