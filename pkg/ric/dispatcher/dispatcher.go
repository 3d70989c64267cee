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

package dispatcher

import (
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/lambdahome/ric/pkg/ric/handler"
	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/result"

	"github.com/nuclio/logger"
)

// Dispatcher calls a capability for a single invocation and normalizes whatever
// happens into a result. It is safe for concurrent use
type Dispatcher struct {
	logger     logger.Logger
	statistics Statistics
}

func NewDispatcher(parentLogger logger.Logger) *Dispatcher {
	return &Dispatcher{
		logger: parentLogger.GetChild("dispatcher"),
	}
}

// Dispatch invokes the capability. It never panics and never returns nil
func (d *Dispatcher) Dispatch(capability handler.Capability,
	invocationInstance *invocation.Invocation,
	context invocation.Context) *result.Result {

	d.logger.InfoWith("Function execution started",
		"requestId", invocationInstance.RequestID,
		"remainingTimeMs", context.RemainingTimeMs)

	startTime := time.Now()

	dispatchResult := d.callCapability(capability, invocationInstance.Payload, context)

	dispatchResult.Duration = time.Since(startTime)
	executionTimeMs := dispatchResult.Duration.Milliseconds()

	atomic.AddUint64(&d.statistics.DurationMilliSecondsSum, uint64(executionTimeMs))
	atomic.AddUint64(&d.statistics.DurationMilliSecondsCount, 1)

	if dispatchResult.IsFailure() {
		atomic.AddUint64(&d.statistics.FailureCount, 1)

		d.logger.ErrorWith("Function execution failed",
			"requestId", invocationInstance.RequestID,
			"executionTimeMs", executionTimeMs,
			"errorType", dispatchResult.Failure.ErrorType,
			"errorMessage", dispatchResult.Failure.ErrorMessage,
			"stackTrace", dispatchResult.Failure.StackTrace)

		return dispatchResult
	}

	atomic.AddUint64(&d.statistics.SuccessCount, 1)

	d.logger.InfoWith("Function execution completed successfully",
		"requestId", invocationInstance.RequestID,
		"executionTimeMs", executionTimeMs,
		"shape", dispatchResult.Shape.String())

	return dispatchResult
}

// GetStatistics returns the live statistics of the dispatcher
func (d *Dispatcher) GetStatistics() *Statistics {
	return &d.statistics
}

func (d *Dispatcher) callCapability(capability handler.Capability,
	payload interface{},
	context invocation.Context) (dispatchResult *result.Result) {

	defer func() {
		if recovered := recover(); recovered != nil {
			callStack := debug.Stack()

			atomic.AddUint64(&d.statistics.PanicCount, 1)

			d.logger.WarnWith("Panic caught in handler",
				"requestId", context.RequestID,
				"err", recovered)

			dispatchResult = result.NewFailure(result.FailureFromPanic(recovered, callStack))
		}
	}()

	response, err := capability(payload, context)
	if err != nil {
		return result.NewFailure(result.FailureFromError(err))
	}

	return result.NewSuccess(response)
}
