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

package handler

import (
	"fmt"
)

const LoadErrorType = "HandlerLoadError"

// LoadErrorReason tells which part of loading failed
type LoadErrorReason string

const (
	InvalidReferenceReason LoadErrorReason = "InvalidReference"
	ModuleLoadReason       LoadErrorReason = "ModuleLoadFailed"
	FunctionNotFoundReason LoadErrorReason = "FunctionNotFound"
	NotInvocableReason     LoadErrorReason = "NotInvocable"
)

// LoadError is returned when a handler can't be resolved. It is fatal at startup
type LoadError struct {
	HandlerRef string
	Reason     LoadErrorReason
	message    string
	cause      error
}

func newLoadError(handlerRef string, reason LoadErrorReason, cause error, format string, args ...interface{}) *LoadError {
	return &LoadError{
		HandlerRef: handlerRef,
		Reason:     reason,
		message:    fmt.Sprintf(format, args...),
		cause:      cause,
	}
}

func (le *LoadError) Error() string {
	message := fmt.Sprintf("Failed to load handler %q (%s): %s", le.HandlerRef, le.Reason, le.message)
	if le.cause != nil {
		message += ": " + le.cause.Error()
	}

	return message
}

// ErrorType returns the kind of the error
func (le *LoadError) ErrorType() string {
	return LoadErrorType
}

func (le *LoadError) Unwrap() error {
	return le.cause
}
