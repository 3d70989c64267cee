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

package transport

import (
	"fmt"
)

const (
	NetworkErrorType = "TransportNetworkError"
	DecodeErrorType  = "ProtocolDecodeError"
)

// NetworkError is a failure talking to the control plane. Each transport has
// its own recovery policy for it
type NetworkError struct {
	Operation string
	cause     error
}

func NewNetworkError(operation string, cause error) *NetworkError {
	return &NetworkError{
		Operation: operation,
		cause:     cause,
	}
}

func (ne *NetworkError) Error() string {
	if ne.cause == nil {
		return fmt.Sprintf("%s failed", ne.Operation)
	}

	return fmt.Sprintf("%s failed: %s", ne.Operation, ne.cause.Error())
}

func (ne *NetworkError) ErrorType() string {
	return NetworkErrorType
}

func (ne *NetworkError) Unwrap() error {
	return ne.cause
}

// DecodeError is a malformed frame or body. The offending message is skipped
type DecodeError struct {
	Data  string
	cause error
}

func NewDecodeError(data []byte, cause error) *DecodeError {
	const maxDataLength = 256

	if len(data) > maxDataLength {
		data = data[:maxDataLength]
	}

	return &DecodeError{
		Data:  string(data),
		cause: cause,
	}
}

func (de *DecodeError) Error() string {
	return fmt.Sprintf("Failed to decode message: %s", de.cause)
}

func (de *DecodeError) ErrorType() string {
	return DecodeErrorType
}

func (de *DecodeError) Unwrap() error {
	return de.cause
}
