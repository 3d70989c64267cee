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
	"bytes"
	"encoding/json"
	"io"

	"github.com/nuclio/errors"
)

// DecodePayload decodes a JSON payload. Numbers are kept as json.Number so they
// are echoed back exactly. An empty body decodes to nil
func DecodePayload(body []byte) (interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload interface{}
	if err := decoder.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "Failed to decode payload")
	}

	// a single JSON value is expected
	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("Unexpected data after payload")
	}

	return payload, nil
}
