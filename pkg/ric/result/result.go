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

package result

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/nuclio/errors"
)

// Shape is how a successful value is put on the wire
type Shape int

const (
	ShapeJSON Shape = iota
	ShapeBinary
	ShapeBase64
)

func (s Shape) String() string {
	switch s {
	case ShapeBinary:
		return "binary"
	case ShapeBase64:
		return "base64"
	default:
		return "json"
	}
}

// Base64Body is the wire form of binary results
type Base64Body struct {
	Base64 bool   `json:"base64"`
	Data   string `json:"data"`
}

// Failure is a captured handler error, serialized identically by all transports
type Failure struct {
	ErrorType    string   `json:"errorType"`
	ErrorMessage string   `json:"errorMessage"`
	StackTrace   []string `json:"stackTrace,omitempty"`
}

// Result is the outcome of a single dispatch. Exactly one of Value / Failure is meaningful
type Result struct {
	Value    interface{}
	Shape    Shape
	Failure  *Failure
	Duration time.Duration

	encodedBody []byte
}

// NewSuccess creates a successful result, classifying the value
func NewSuccess(value interface{}) *Result {
	return &Result{
		Value: value,
		Shape: Classify(value),
	}
}

// NewFailure creates a failed result
func NewFailure(failure *Failure) *Result {
	return &Result{
		Failure: failure,
	}
}

// IsFailure returns true if the handler failed
func (r *Result) IsFailure() bool {
	return r.Failure != nil
}

// Body returns what should be serialized for this result: the failure, the
// base64 envelope of a binary value, or the value itself
func (r *Result) Body() interface{} {
	if r.IsFailure() {
		return r.Failure
	}

	if r.Shape == ShapeBinary {
		return EncodeBase64(r.Value.([]byte))
	}

	return r.Value
}

// Settle encodes the body ahead of reporting it. A value that cannot be
// serialized yields a failed result carrying the encoding error instead, so
// every transport reports it the same way
func (r *Result) Settle() *Result {
	encodedBody, err := r.MarshalBody()
	if err != nil {
		failureResult := NewFailure(FailureFromError(err))
		failureResult.Duration = r.Duration

		return failureResult
	}

	r.encodedBody = encodedBody

	return r
}

// EncodedBody returns the body encoded by Settle, or nil if the result was not settled
func (r *Result) EncodedBody() []byte {
	return r.encodedBody
}

// MarshalBody serializes Body() as JSON
func (r *Result) MarshalBody() ([]byte, error) {
	if r.encodedBody != nil {
		return r.encodedBody, nil
	}

	encodedBody, err := json.Marshal(r.Body())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to encode result")
	}

	return encodedBody, nil
}

// Classify determines the shape of a value returned by a handler
func Classify(value interface{}) Shape {
	switch typedValue := value.(type) {
	case []byte:
		return ShapeBinary
	case Base64Body, *Base64Body:
		return ShapeBase64
	case map[string]interface{}:
		if isBase64, ok := typedValue["base64"].(bool); ok && isBase64 {
			return ShapeBase64
		}
	}

	return ShapeJSON
}

// EncodeBase64 wraps raw bytes in the base64 envelope
func EncodeBase64(data []byte) *Base64Body {
	return &Base64Body{
		Base64: true,
		Data:   base64.StdEncoding.EncodeToString(data),
	}
}

// DecodeBase64 extracts the raw bytes from a base64-tagged value, either in its
// typed form or as decoded from JSON
func DecodeBase64(value interface{}) ([]byte, error) {
	var encodedData string

	switch typedValue := value.(type) {
	case *Base64Body:
		encodedData = typedValue.Data
	case Base64Body:
		encodedData = typedValue.Data
	case map[string]interface{}:
		if Classify(typedValue) != ShapeBase64 {
			return nil, errors.New("Value is not marked as base64")
		}

		data, ok := typedValue["data"].(string)
		if !ok {
			return nil, errors.New("Base64 value has no data")
		}

		encodedData = data
	default:
		return nil, errors.Errorf("Can't decode base64 from %T", value)
	}

	decodedData, err := base64.StdEncoding.DecodeString(encodedData)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to decode base64 data")
	}

	return decodedData, nil
}
