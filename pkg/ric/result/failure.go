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
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

const (
	PanicErrorType = "Panic"

	// heads the stack of errors that carry no origin of their own
	ReportedAtStackHeader = "error origin unknown, stack where it was reported:"

	maxStackDepth = 32
)

type errorTyper interface {
	ErrorType() string
}

type unwrapper interface {
	Unwrap() error
}

// FailureFromError captures an error returned by a handler. The stack trace
// comes from the locations recorded along a nuclio error chain. Other errors
// record no location, so the stack of FailureFromError's caller is used
// instead, headed by ReportedAtStackHeader. Those frames show where the error
// was reported (e.g. the dispatcher), not where the handler created it
func FailureFromError(err error) *Failure {
	stackTrace := errorStackTrace(err)
	if len(stackTrace) == 0 {

		// skip runtime.Callers, callerStackTrace and us
		stackTrace = append([]string{ReportedAtStackHeader}, callerStackTrace(3)...)
	}

	return &Failure{
		ErrorType:    ErrorTypeOf(err),
		ErrorMessage: err.Error(),
		StackTrace:   stackTrace,
	}
}

// FailureFromPanic captures a value recovered from a handler panic, along with
// the stack as returned by debug.Stack()
func FailureFromPanic(recovered interface{}, stack []byte) *Failure {
	failure := &Failure{
		StackTrace: panicStackTrace(stack),
	}

	if err, ok := recovered.(error); ok {
		failure.ErrorType = ErrorTypeOf(err)
		failure.ErrorMessage = err.Error()
	} else {
		failure.ErrorType = PanicErrorType
		failure.ErrorMessage = fmt.Sprint(recovered)
	}

	if len(failure.StackTrace) == 0 {
		failure.StackTrace = []string{fmt.Sprintf("panic: %s", failure.ErrorMessage)}
	}

	return failure
}

// ErrorTypeOf returns the kind of an error. The first error in the chain that
// declares its kind wins, otherwise the type name of the root cause is used
func ErrorTypeOf(err error) string {
	rootErr := err

	for currentErr := err; currentErr != nil; currentErr = unwrap(currentErr) {
		if typedErr, ok := currentErr.(errorTyper); ok && typedErr.ErrorType() != "" {
			return typedErr.ErrorType()
		}

		rootErr = currentErr
	}

	return typeName(rootErr)
}

func unwrap(err error) error {
	if _, ok := err.(*errors.Error); ok {

		// Cause returns the error itself at the end of the chain
		if cause := errors.Cause(err); cause != err {
			return cause
		}

		return nil
	}

	if unwrappableErr, ok := err.(unwrapper); ok {
		return unwrappableErr.Unwrap()
	}

	return nil
}

func typeName(value interface{}) string {
	valueType := reflect.TypeOf(value)
	if valueType == nil {
		return PanicErrorType
	}

	for valueType.Kind() == reflect.Ptr {
		valueType = valueType.Elem()
	}

	if valueType.Name() != "" {
		return valueType.Name()
	}

	return valueType.String()
}

// errorStackTrace returns the locations recorded along a wrapped error chain,
// oldest first
func errorStackTrace(err error) []string {
	var stackTrace []string

	for _, stackErr := range errors.GetErrorStack(err, -1) {
		errWithLineInfo, ok := stackErr.(*errors.Error)
		if !ok {
			continue
		}

		fileName, lineNumber := errWithLineInfo.LineInfo()
		if lineNumber == 0 {
			continue
		}

		stackTrace = append(stackTrace, fmt.Sprintf("%s:%d: %s", fileName, lineNumber, stackErr.Error()))
	}

	return stackTrace
}

func callerStackTrace(skip int) []string {
	programCounters := make([]uintptr, maxStackDepth)
	numFrames := runtime.Callers(skip, programCounters)

	var stackTrace []string
	frames := runtime.CallersFrames(programCounters[:numFrames])

	for {
		frame, more := frames.Next()
		stackTrace = append(stackTrace, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))

		if !more {
			break
		}
	}

	return stackTrace
}

func panicStackTrace(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")

	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		trimmedLine := strings.TrimSpace(line)
		return trimmedLine, trimmedLine != ""
	})
}
