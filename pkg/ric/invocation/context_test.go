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
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ContextTestSuite struct {
	suite.Suite
	identity *Identity
}

func (suite *ContextTestSuite) SetupTest() {
	suite.identity = &Identity{
		FunctionName:    "echo",
		FunctionVersion: "3",
		MemoryLimitInMB: "128",
		LogGroupName:    "/aws/lambda/echo",
		LogStreamName:   "stream",
		InstanceID:      "instance-1",
	}
}

func (suite *ContextTestSuite) TestRemainingTime() {
	for _, testCase := range []struct {
		name            string
		budgetMs        int64
		elapsed         time.Duration
		expectedRemains int64
	}{
		{name: "noDeadline", budgetMs: 0, elapsed: 500 * time.Millisecond, expectedRemains: 0},
		{name: "noElapsed", budgetMs: 3000, elapsed: 0, expectedRemains: 3000},
		{name: "someElapsed", budgetMs: 3000, elapsed: 1250 * time.Millisecond, expectedRemains: 1750},
		{name: "subMillisecond", budgetMs: 10, elapsed: 900 * time.Microsecond, expectedRemains: 10},
		{name: "overrun", budgetMs: 100, elapsed: 150 * time.Millisecond, expectedRemains: -50},
	} {
		suite.Run(testCase.name, func() {
			suite.Equal(testCase.expectedRemains, RemainingTimeMs(testCase.budgetMs, testCase.elapsed))
		})
	}
}

func (suite *ContextTestSuite) TestNewContextWithBudget() {
	receivedAt := time.Now()
	invocationInstance := NewWithBudget("req-1", map[string]interface{}{"a": 1}, 5000, receivedAt)

	context := NewContextAt(suite.identity, invocationInstance, nil, receivedAt.Add(2*time.Second))

	suite.Equal("req-1", context.RequestID)
	suite.Equal("echo", context.FunctionName)
	suite.Equal("3", context.FunctionVersion)
	suite.Equal("128", context.MemoryLimitInMB)
	suite.Equal("/aws/lambda/echo", context.LogGroupName)
	suite.Equal("stream", context.LogStreamName)
	suite.Equal("instance-1", context.InstanceID)
	suite.Equal(int64(3000), context.RemainingTimeMs)

	_, hasDeadline := context.Deadline()
	suite.False(hasDeadline)
}

func (suite *ContextTestSuite) TestNewContextWithoutDeadline() {
	invocationInstance := NewWithBudget("req-2", nil, 0, time.Now())

	context := NewContext(suite.identity, invocationInstance, nil)
	suite.Equal(int64(0), context.RemainingTimeMs)
}

func (suite *ContextTestSuite) TestNegativeBudgetMeansNoDeadline() {
	invocationInstance := NewWithBudget("req-3", nil, -20, time.Now())
	suite.Equal(int64(0), invocationInstance.DeadlineBudgetMs)
}

func (suite *ContextTestSuite) TestEpochDeadline() {
	receivedAt := time.Now()
	deadline := receivedAt.Add(4 * time.Second).UnixMilli()

	invocationInstance := &Invocation{
		RequestID:          "req-4",
		InvokedFunctionArn: "arn:aws:lambda:us-east-1:123456789012:function:echo",
		TraceID:            "Root=1-5759e988-bd862e3fe1be46a994272793",
		ReceivedAt:         receivedAt,
	}
	invocationInstance.SetEpochDeadline(deadline)

	suite.Equal(deadline, invocationInstance.DeadlineEpochMs)
	suite.InDelta(4000, invocationInstance.DeadlineBudgetMs, 1)

	context := NewContextAt(suite.identity, invocationInstance, nil, receivedAt.Add(time.Second))
	suite.InDelta(3000, context.RemainingTimeMs, 1)
	suite.Equal(invocationInstance.InvokedFunctionArn, context.InvokedFunctionArn)
	suite.Equal(invocationInstance.TraceID, context.TraceID)

	contextDeadline, hasDeadline := context.Deadline()
	suite.True(hasDeadline)
	suite.Equal(deadline, contextDeadline.UnixMilli())
}

func (suite *ContextTestSuite) TestEpochDeadlineInThePast() {
	receivedAt := time.Now()

	invocationInstance := &Invocation{ReceivedAt: receivedAt}
	invocationInstance.SetEpochDeadline(receivedAt.Add(-time.Second).UnixMilli())

	suite.Equal(int64(0), invocationInstance.DeadlineBudgetMs)
	suite.Equal(int64(0), NewContext(suite.identity, invocationInstance, nil).RemainingTimeMs)
}

func (suite *ContextTestSuite) TestTypedError() {
	err := NewError("ValueError", "Test error")
	suite.Equal("Test error", err.Error())

	typedErr, ok := err.(*Error)
	suite.Require().True(ok)
	suite.Equal("ValueError", typedErr.ErrorType())

	suite.Equal("bad 7", NewErrorf("TypeError", "bad %d", 7).Error())
}

func TestContextTestSuite(t *testing.T) {
	suite.Run(t, new(ContextTestSuite))
}
