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
	"time"

	"github.com/nuclio/logger"
)

// Invocation is a single unit of work received by a transport. It is consumed
// exactly once by the dispatcher
type Invocation struct {
	RequestID          string
	Payload            interface{}
	InvokedFunctionArn string
	TraceID            string

	// absolute deadline as delivered by the runtime API, 0 if absent
	DeadlineEpochMs int64

	// how many milliseconds the deadline left when the invocation was received.
	// 0 means there's no deadline
	DeadlineBudgetMs int64

	// when the transport received the invocation (carries a monotonic reading)
	ReceivedAt time.Time
}

// Identity is the static identity of the function, read once from the environment
type Identity struct {
	FunctionName    string
	FunctionVersion string
	MemoryLimitInMB string
	LogGroupName    string
	LogStreamName   string
	InstanceID      string
}

// Context is the read-only view of an invocation handed to a capability. It is
// passed by value
type Context struct {
	Logger logger.Logger

	RequestID          string
	FunctionName       string
	FunctionVersion    string
	MemoryLimitInMB    string
	LogGroupName       string
	LogStreamName      string
	InstanceID         string
	InvokedFunctionArn string
	TraceID            string
	DeadlineEpochMs    int64
	RemainingTimeMs    int64
}

// Deadline returns the absolute deadline, if the runtime API supplied one
func (c Context) Deadline() (time.Time, bool) {
	if c.DeadlineEpochMs <= 0 {
		return time.Time{}, false
	}

	return time.UnixMilli(c.DeadlineEpochMs), true
}
