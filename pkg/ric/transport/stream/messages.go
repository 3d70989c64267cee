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

package stream

import (
	"encoding/json"
)

const (
	MessageTypeRegister      = "register"
	MessageTypeInvocation    = "invocation"
	MessageTypeResponse      = "response"
	MessageTypeError         = "error"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeErrorResponse = "error_response"
)

type registerMessage struct {
	Type         string `json:"type"`
	FunctionName string `json:"function_name"`
	Runtime      string `json:"runtime"`
	Version      string `json:"version"`
	InstanceID   string `json:"instance_id"`
}

// inboundMessage covers every message the runtime API sends, keyed by type
type inboundMessage struct {
	Type               string          `json:"type"`
	RequestID          string          `json:"request_id"`
	Payload            json.RawMessage `json:"payload"`
	DeadlineMs         json.RawMessage `json:"deadline_ms"`
	InvokedFunctionArn string          `json:"invoked_function_arn"`
	TraceID            string          `json:"trace_id"`
	Message            string          `json:"message"`
}

type responseMessage struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id"`
	Payload   json.RawMessage   `json:"payload"`
	Headers   map[string]string `json:"headers"`
}

type errorMessage struct {
	Type         string            `json:"type"`
	RequestID    string            `json:"request_id"`
	ErrorMessage string            `json:"error_message"`
	ErrorType    string            `json:"error_type"`
	StackTrace   []string          `json:"stack_trace"`
	Headers      map[string]string `json:"headers"`
}

type pongMessage struct {
	Type string `json:"type"`
}
