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

// NewWithBudget creates an invocation whose deadline is a relative budget in
// milliseconds, as the local invoke server receives it. A budget of 0 means no deadline
func NewWithBudget(requestID string, payload interface{}, deadlineBudgetMs int64, receivedAt time.Time) *Invocation {
	if deadlineBudgetMs < 0 {
		deadlineBudgetMs = 0
	}

	return &Invocation{
		RequestID:        requestID,
		Payload:          payload,
		DeadlineBudgetMs: deadlineBudgetMs,
		ReceivedAt:       receivedAt,
	}
}

// SetEpochDeadline records an absolute deadline and derives the budget it leaves
// at receive time. A deadline already in the past leaves no budget
func (i *Invocation) SetEpochDeadline(deadlineEpochMs int64) {
	i.DeadlineEpochMs = deadlineEpochMs
	i.DeadlineBudgetMs = 0

	if deadlineEpochMs <= 0 {
		return
	}

	if budget := deadlineEpochMs - i.ReceivedAt.UnixMilli(); budget > 0 {
		i.DeadlineBudgetMs = budget
	}
}

// NewContext builds the context for an invocation, computing the remaining time now
func NewContext(identity *Identity, invocationInstance *Invocation, functionLogger logger.Logger) Context {
	return NewContextAt(identity, invocationInstance, functionLogger, time.Now())
}

// NewContextAt builds the context for an invocation as of the given time
func NewContextAt(identity *Identity,
	invocationInstance *Invocation,
	functionLogger logger.Logger,
	now time.Time) Context {

	return Context{
		Logger:             functionLogger,
		RequestID:          invocationInstance.RequestID,
		FunctionName:       identity.FunctionName,
		FunctionVersion:    identity.FunctionVersion,
		MemoryLimitInMB:    identity.MemoryLimitInMB,
		LogGroupName:       identity.LogGroupName,
		LogStreamName:      identity.LogStreamName,
		InstanceID:         identity.InstanceID,
		InvokedFunctionArn: invocationInstance.InvokedFunctionArn,
		TraceID:            invocationInstance.TraceID,
		DeadlineEpochMs:    invocationInstance.DeadlineEpochMs,
		RemainingTimeMs:    RemainingTimeMs(invocationInstance.DeadlineBudgetMs, now.Sub(invocationInstance.ReceivedAt)),
	}
}

// RemainingTimeMs returns deadlineBudgetMs - elapsed when there's a deadline, 0 otherwise
func RemainingTimeMs(deadlineBudgetMs int64, elapsed time.Duration) int64 {
	if deadlineBudgetMs <= 0 {
		return 0
	}

	return deadlineBudgetMs - elapsed.Milliseconds()
}
