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

package headers

import "strings"

// Runtime API headers
const (
	RuntimeHeaderPrefix = "Lambda-Runtime-"

	RequestID          = "Lambda-Runtime-Aws-Request-Id"
	DeadlineMs         = "Lambda-Runtime-Deadline-Ms"
	InvokedFunctionArn = "Lambda-Runtime-Invoked-Function-Arn"
	TraceID            = "Lambda-Runtime-Trace-Id"

	InstanceID = "X-LambdaH-Instance-Id"
	UserAgent  = "User-Agent"

	// Stream response headers
	ExecutedVersion = "X-Amz-Executed-Version"
	FunctionError   = "X-Amz-Function-Error"
)

// Local invoke server headers
const (
	InvokeDeadlineMs = "X-Deadline-Ms"
	InvokeRequestID  = "X-Request-Id"
)

// Others
const (
	ContentType         = "Content-Type"
	ApplicationJSON     = "application/json"
	RuntimeClientAgent  = "lambda-runtime-interface-client"
	UnhandledErrorValue = "Unhandled"
)

func IsRuntimeHeader(headerName string) bool {
	return strings.HasPrefix(strings.ToLower(headerName), strings.ToLower(RuntimeHeaderPrefix))
}
