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
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lambdahome/ric/pkg/common/headers"
	"github.com/lambdahome/ric/pkg/ric/config"
	"github.com/lambdahome/ric/pkg/ric/dispatcher"
	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/shutdown"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/gorilla/websocket"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type fakeTransport struct {
	started atomic.Bool
}

func (ft *fakeTransport) Start(ctx context.Context) error {
	ft.started.Store(true)
	return nil
}

func (ft *fakeTransport) GetKind() string {
	return "fake"
}

type StreamTestSuite struct {
	suite.Suite
	logger       logger.Logger
	shutdownFlag *shutdown.Flag
	server       *httptest.Server
	upgrader     websocket.Upgrader
	fallback     *fakeTransport
}

func (suite *StreamTestSuite) SetupTest() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.shutdownFlag = shutdown.NewFlag()
	suite.fallback = &fakeTransport{}
}

func (suite *StreamTestSuite) TearDownTest() {
	if suite.server != nil {
		suite.server.Close()
		suite.server = nil
	}
}

func (suite *StreamTestSuite) TestRegistered() {
	suite.True(transport.RegistrySingleton.Has(config.TransportKindStream))
}

func (suite *StreamTestSuite) TestReconnectDelays() {
	reconnectBackOff := NewReconnectBackOff(DefaultInitialReconnectDelay, DefaultMaxReconnectDelay)

	var delays []time.Duration
	for i := 0; i < 8; i++ {
		delays = append(delays, reconnectBackOff.NextBackOff())
	}

	suite.Equal([]time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, delays)

	reconnectBackOff.Reset()
	suite.Equal(time.Second, reconnectBackOff.NextBackOff())
}

func (suite *StreamTestSuite) TestFallBackAfterMaxReconnectAttempts() {
	var handshakes atomic.Int32

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handshakes.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	streamTransport := suite.createTransport(echoCapability)

	suite.Require().NoError(suite.runUntilStopped(streamTransport))

	// the initial attempt and 10 reconnects
	suite.Equal(int32(DefaultMaxReconnectAttempts+1), handshakes.Load())
	suite.True(suite.fallback.started.Load())
	suite.Equal(transport.FallenBack, streamTransport.GetState())
}

func (suite *StreamTestSuite) TestSuccessfulHandshakeResetsAttempts() {
	var connections atomic.Int32

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := suite.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		// drop every connection right after it is established
		conn.Close() // nolint: errcheck

		if connections.Add(1) == 5 {
			suite.shutdownFlag.Set()
		}
	}))

	streamTransport := suite.createTransport(echoCapability)
	streamTransport.maxReconnectAttempts = 2

	suite.Require().NoError(suite.runUntilStopped(streamTransport))

	suite.GreaterOrEqual(connections.Load(), int32(5))
	suite.False(suite.fallback.started.Load())
	suite.Equal(transport.Disconnected, streamTransport.GetState())
}

func (suite *StreamTestSuite) TestMessageExchange() {
	var instanceIDHeader atomic.Value
	receivedMessages := make(chan map[string]interface{}, 10)
	deadline := time.Now().Add(5 * time.Second).UnixMilli()

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		instanceIDHeader.Store(r.Header.Get(headers.InstanceID))

		conn, err := suite.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer conn.Close() // nolint: errcheck

		readMessage := func() {
			message := map[string]interface{}{}
			if err := conn.ReadJSON(&message); err == nil {
				receivedMessages <- message
			}
		}

		// register
		readMessage()

		conn.WriteJSON(map[string]interface{}{"type": "ping"}) // nolint: errcheck
		readMessage()

		// neither of these gets a reply nor drops the connection
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))                        // nolint: errcheck
		conn.WriteJSON(map[string]interface{}{"type": "mystery"})                           // nolint: errcheck
		conn.WriteJSON(map[string]interface{}{"type": "error_response", "message": "oops"}) // nolint: errcheck

		conn.WriteJSON(map[string]interface{}{ // nolint: errcheck
			"type":                 "invocation",
			"request_id":           "req-1",
			"payload":              map[string]interface{}{"hello": "world"},
			"deadline_ms":          deadline,
			"invoked_function_arn": "arn:aws:lambda:us-east-1:123:function:test",
			"trace_id":             "Root=1-abc",
		})
		readMessage()

		conn.WriteJSON(map[string]interface{}{ // nolint: errcheck
			"type":       "invocation",
			"request_id": "req-2",
			"payload":    map[string]interface{}{"fail": true},
		})
		readMessage()

		suite.shutdownFlag.Set()

		// until the client closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	var receivedContext invocation.Context
	streamTransport := suite.createTransport(func(payload interface{}, context invocation.Context) (interface{}, error) {
		if _, shouldFail := payload.(map[string]interface{})["fail"]; shouldFail {
			return nil, invocation.NewError("ValueError", "Test error")
		}

		receivedContext = context
		return payload, nil
	})

	suite.Require().NoError(suite.runUntilStopped(streamTransport))
	suite.Require().Len(receivedMessages, 4)

	suite.Equal("instance-1", instanceIDHeader.Load())

	suite.Equal(map[string]interface{}{
		"type":          "register",
		"function_name": "test",
		"runtime":       "go",
		"version":       "3",
		"instance_id":   "instance-1",
	}, <-receivedMessages)

	suite.Equal(map[string]interface{}{"type": "pong"}, <-receivedMessages)

	suite.Equal(map[string]interface{}{
		"type":       "response",
		"request_id": "req-1",
		"payload":    map[string]interface{}{"hello": "world"},
		"headers":    map[string]interface{}{headers.ExecutedVersion: "3"},
	}, <-receivedMessages)

	errorMessage := <-receivedMessages
	suite.Equal("error", errorMessage["type"])
	suite.Equal("req-2", errorMessage["request_id"])
	suite.Equal("ValueError", errorMessage["error_type"])
	suite.Equal("Test error", errorMessage["error_message"])
	suite.NotEmpty(errorMessage["stack_trace"])
	suite.Equal(map[string]interface{}{headers.FunctionError: headers.UnhandledErrorValue}, errorMessage["headers"])

	suite.Equal("req-1", receivedContext.RequestID)
	suite.Equal("arn:aws:lambda:us-east-1:123:function:test", receivedContext.InvokedFunctionArn)
	suite.Equal("Root=1-abc", receivedContext.TraceID)
	suite.Equal(deadline, receivedContext.DeadlineEpochMs)
	suite.Greater(receivedContext.RemainingTimeMs, int64(0))
	suite.LessOrEqual(receivedContext.RemainingTimeMs, int64(5000))

	suite.False(suite.fallback.started.Load())
	suite.Equal(transport.Disconnected, streamTransport.GetState())
}

func (suite *StreamTestSuite) TestShutdownUnblocksRead() {
	connected := make(chan struct{})

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := suite.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer conn.Close() // nolint: errcheck

		close(connected)

		// never send anything
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	streamTransport := suite.createTransport(echoCapability)

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- streamTransport.Start(context.Background())
	}()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		suite.Require().FailNow("Stream transport did not connect")
	}

	suite.Eventually(func() bool {
		return streamTransport.GetState() == transport.Connected
	}, 5*time.Second, 10*time.Millisecond)

	suite.shutdownFlag.Set()

	select {
	case err := <-doneChan:
		suite.Require().NoError(err)
	case <-time.After(5 * time.Second):
		suite.Require().FailNow("Stream transport did not stop")
	}

	suite.False(suite.fallback.started.Load())
}

func (suite *StreamTestSuite) TestShutdownDuringInvocationStillReplies() {
	reply := suite.invokeOnce(func(payload interface{}, context invocation.Context) (interface{}, error) {

		// termination is requested while the handler runs
		suite.shutdownFlag.Set()
		time.Sleep(100 * time.Millisecond)

		return payload, nil
	}, map[string]interface{}{
		"type":       "invocation",
		"request_id": "req-1",
		"payload":    map[string]interface{}{"hello": "world"},
	})

	suite.Equal("response", reply["type"])
	suite.Equal("req-1", reply["request_id"])
	suite.Equal(map[string]interface{}{"hello": "world"}, reply["payload"])
	suite.False(suite.fallback.started.Load())
}

func (suite *StreamTestSuite) TestBinaryResult() {
	reply := suite.invokeOnce(func(payload interface{}, context invocation.Context) (interface{}, error) {
		return []byte{0xde, 0xad, 0xbe, 0xef}, nil
	}, map[string]interface{}{
		"type":       "invocation",
		"request_id": "req-1",
		"payload":    map[string]interface{}{},
	})

	suite.Equal("response", reply["type"])
	suite.Equal(map[string]interface{}{"base64": true, "data": "3q2+7w=="}, reply["payload"])
}

func (suite *StreamTestSuite) TestUnserializableResult() {
	reply := suite.invokeOnce(func(payload interface{}, context invocation.Context) (interface{}, error) {
		return map[string]interface{}{"value": math.NaN()}, nil
	}, map[string]interface{}{
		"type":       "invocation",
		"request_id": "req-1",
		"payload":    map[string]interface{}{},
	})

	suite.Equal("error", reply["type"])
	suite.Equal("req-1", reply["request_id"])
	suite.Equal("UnsupportedValueError", reply["error_type"])
	suite.Equal("Failed to encode result", reply["error_message"])
	suite.Equal(map[string]interface{}{headers.FunctionError: headers.UnhandledErrorValue}, reply["headers"])
}

func (suite *StreamTestSuite) TestInvalidDeadlineIsIgnored() {
	var receivedContext invocation.Context

	reply := suite.invokeOnce(func(payload interface{}, context invocation.Context) (interface{}, error) {
		receivedContext = context
		return "ok", nil
	}, map[string]interface{}{
		"type":        "invocation",
		"request_id":  "req-1",
		"payload":     map[string]interface{}{},
		"deadline_ms": "soon",
	})

	suite.Equal("response", reply["type"])
	suite.Equal("ok", reply["payload"])
	suite.Equal("req-1", receivedContext.RequestID)
	suite.Equal(int64(0), receivedContext.DeadlineEpochMs)
	suite.Equal(int64(0), receivedContext.RemainingTimeMs)
}

// invokeOnce serves a single invocation and returns the reply the runtime API got
func (suite *StreamTestSuite) invokeOnce(capability func(interface{}, invocation.Context) (interface{}, error),
	invocationMessage map[string]interface{}) map[string]interface{} {

	replies := make(chan map[string]interface{}, 10)

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := suite.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer conn.Close() // nolint: errcheck

		// register
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		conn.WriteJSON(invocationMessage) // nolint: errcheck

		reply := map[string]interface{}{}
		if err := conn.ReadJSON(&reply); err == nil {
			replies <- reply
		}

		suite.shutdownFlag.Set()

		// until the client closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	suite.Require().NoError(suite.runUntilStopped(suite.createTransport(capability)))
	suite.Require().Len(replies, 1)

	return <-replies
}

func (suite *StreamTestSuite) runUntilStopped(streamTransport *stream) error {
	doneChan := make(chan error, 1)
	go func() {
		doneChan <- streamTransport.Start(context.Background())
	}()

	select {
	case err := <-doneChan:
		return err
	case <-time.After(10 * time.Second):
		suite.Require().FailNow("Stream transport did not stop")
	}

	return nil
}

func (suite *StreamTestSuite) createTransport(capability func(interface{}, invocation.Context) (interface{}, error)) *stream {
	streamTransport, err := newTransport(suite.logger, &transport.Configuration{
		Configuration: &config.Configuration{
			RuntimeAPI:    strings.TrimPrefix(suite.server.URL, "http://"),
			TransportKind: config.TransportKindStream,
			RuntimeName:   "go",
			Identity: invocation.Identity{
				FunctionName:    "test",
				FunctionVersion: "3",
				InstanceID:      "instance-1",
			},
		},
		Capability:   capability,
		Dispatcher:   dispatcher.NewDispatcher(suite.logger),
		ShutdownFlag: suite.shutdownFlag,
	})
	suite.Require().NoError(err)

	streamTransport.backOff = NewReconnectBackOff(time.Millisecond, 5*time.Millisecond)
	streamTransport.createFallback = func() (transport.Transport, error) {
		return suite.fallback, nil
	}

	return streamTransport
}

func echoCapability(payload interface{}, context invocation.Context) (interface{}, error) {
	return payload, nil
}

func TestStreamTestSuite(t *testing.T) {
	suite.Run(t, new(StreamTestSuite))
}
