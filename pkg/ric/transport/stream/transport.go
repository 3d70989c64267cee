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
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/lambdahome/ric/pkg/common/headers"
	"github.com/lambdahome/ric/pkg/ric/config"
	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/runtimeapi"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

const (
	DefaultMaxReconnectAttempts  = 10
	DefaultInitialReconnectDelay = time.Second
	DefaultMaxReconnectDelay     = 30 * time.Second

	handshakeTimeout = 10 * time.Second
)

type fallbackCreator func() (transport.Transport, error)

type stream struct {
	*transport.AbstractTransport
	url                  string
	dialer               *websocket.Dialer
	state                transport.AtomicConnectionState
	backOff              *backoff.ExponentialBackOff
	maxReconnectAttempts int
	createFallback       fallbackCreator

	connLock sync.Mutex
	conn     *websocket.Conn
	handling bool
}

func newTransport(parentLogger logger.Logger, configuration *transport.Configuration) (*stream, error) {
	abstractTransport, err := transport.NewAbstractTransport(parentLogger, "stream", configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create abstract transport")
	}

	newStream := &stream{
		AbstractTransport: abstractTransport,
		url:               runtimeapi.StreamURL(configuration.RuntimeAPI, configuration.Identity.FunctionName),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		backOff:              NewReconnectBackOff(DefaultInitialReconnectDelay, DefaultMaxReconnectDelay),
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
	}

	// the fallback is the poll transport, over the same configuration
	newStream.createFallback = func() (transport.Transport, error) {
		return transport.RegistrySingleton.NewTransport(parentLogger, config.TransportKindPoll, configuration)
	}

	return newStream, nil
}

// NewReconnectBackOff returns the reconnect delay sequence: initial, doubling
// each time, capped at max, never giving up
func NewReconnectBackOff(initialDelay time.Duration, maxDelay time.Duration) *backoff.ExponentialBackOff {
	reconnectBackOff := backoff.NewExponentialBackOff()
	reconnectBackOff.InitialInterval = initialDelay
	reconnectBackOff.RandomizationFactor = 0
	reconnectBackOff.Multiplier = 2
	reconnectBackOff.MaxInterval = maxDelay
	reconnectBackOff.MaxElapsedTime = 0
	reconnectBackOff.Reset()

	return reconnectBackOff
}

// GetState returns the current connection state
func (s *stream) GetState() transport.ConnectionState {
	return s.state.Load()
}

// Start keeps a connection to the runtime API open, reconnecting with backoff.
// Once reconnection attempts are exhausted, it hands off to the poll transport
// for good
func (s *stream) Start(ctx context.Context) error {
	s.Logger.InfoWith("Starting",
		"url", s.url,
		"maxReconnectAttempts", s.maxReconnectAttempts)

	watcherCtx, cancelWatcher := context.WithCancel(ctx)
	defer cancelWatcher()

	go s.closeOnShutdown(watcherCtx)

	reconnectAttempts := 0
	s.state.Store(transport.Disconnected)

	for {
		if s.isStopping(ctx) {
			return s.stop()
		}

		connectionID := xid.New().String()

		if err := s.connectAndServe(ctx, connectionID); err != nil {
			s.Logger.WarnWith("Connection ended",
				"connectionId", connectionID,
				"err", err.Error())
		} else {

			// a successful handshake resets the reconnection policy
			reconnectAttempts = 0
			s.backOff.Reset()
		}

		s.state.Store(transport.Disconnected)

		if s.isStopping(ctx) {
			return s.stop()
		}

		if reconnectAttempts >= s.maxReconnectAttempts {
			return s.fallBack(ctx)
		}

		reconnectAttempts++
		delay := s.backOff.NextBackOff()

		s.state.Store(transport.Reconnecting)
		s.Logger.InfoWith("Reconnecting",
			"attempt", reconnectAttempts,
			"maxReconnectAttempts", s.maxReconnectAttempts,
			"delay", delay.String())

		s.waitBeforeReconnect(ctx, delay)
	}
}

// connectAndServe dials, registers and serves messages until the connection
// ends. A nil error means the handshake succeeded, whatever ended the connection
func (s *stream) connectAndServe(ctx context.Context, connectionID string) error {
	s.state.Store(transport.Connecting)

	requestHeaders := http.Header{}
	requestHeaders.Set(headers.UserAgent, headers.RuntimeClientAgent)

	if s.Configuration.Identity.InstanceID != "" {
		requestHeaders.Set(headers.InstanceID, s.Configuration.Identity.InstanceID)
	}

	conn, response, err := s.dialer.DialContext(ctx, s.url, requestHeaders)
	if err != nil {
		if response != nil {
			return transport.NewNetworkError("Dial", errors.Wrapf(err, "Handshake failed with status %d", response.StatusCode))
		}

		return transport.NewNetworkError("Dial", err)
	}

	s.setConn(conn)
	defer s.closeConn()

	// shutdown may have been requested while dialing
	if s.isStopping(ctx) {
		return nil
	}

	s.state.Store(transport.Connected)
	s.Logger.InfoWith("Connected", "connectionId", connectionID)

	if err := s.register(conn); err != nil {
		s.Logger.WarnWith("Failed to register", "connectionId", connectionID, "err", err.Error())
		return nil
	}

	if err := s.serve(ctx, conn, connectionID); err != nil && !s.isStopping(ctx) {
		s.Logger.WarnWith("Connection lost", "connectionId", connectionID, "err", err.Error())
	}

	return nil
}

func (s *stream) register(conn *websocket.Conn) error {
	return s.send(conn, &registerMessage{
		Type:         MessageTypeRegister,
		FunctionName: s.Configuration.Identity.FunctionName,
		Runtime:      s.Configuration.RuntimeName,
		Version:      s.Configuration.Identity.FunctionVersion,
		InstanceID:   s.Configuration.Identity.InstanceID,
	})
}

// serve handles messages one at a time, until reading or writing fails
func (s *stream) serve(ctx context.Context, conn *websocket.Conn, connectionID string) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return transport.NewNetworkError("Read", err)
		}

		message := inboundMessage{}
		if err := json.Unmarshal(frame, &message); err != nil {
			s.Logger.WarnWith("Skipping undecodable message",
				"connectionId", connectionID,
				"err", transport.NewDecodeError(frame, err).Error())

			continue
		}

		// once closed for shutdown, the message can't be answered
		if !s.beginHandling() {
			return nil
		}

		err = s.handleMessage(conn, connectionID, &message)
		s.endHandling()

		if err != nil {
			return err
		}

		if s.isStopping(ctx) {
			return nil
		}
	}
}

func (s *stream) handleMessage(conn *websocket.Conn, connectionID string, message *inboundMessage) error {
	switch message.Type {
	case MessageTypeInvocation:
		return s.handleInvocation(conn, connectionID, message)

	case MessageTypePing:
		return s.send(conn, &pongMessage{Type: MessageTypePong})

	case MessageTypeErrorResponse:
		s.Logger.WarnWith("Runtime API reported an error",
			"connectionId", connectionID,
			"message", message.Message)

	default:
		s.Logger.WarnWith("Ignoring message of unknown type",
			"connectionId", connectionID,
			"type", message.Type)
	}

	return nil
}

func (s *stream) handleInvocation(conn *websocket.Conn, connectionID string, message *inboundMessage) error {
	invocationInstance := &invocation.Invocation{
		RequestID:          message.RequestID,
		InvokedFunctionArn: message.InvokedFunctionArn,
		TraceID:            message.TraceID,
		ReceivedAt:         time.Now(),
	}

	if len(message.DeadlineMs) != 0 && string(message.DeadlineMs) != "null" {
		deadlineEpochMs, err := parseDeadline(message.DeadlineMs)
		if err != nil {
			s.Logger.WarnWith("Ignoring invalid deadline",
				"requestId", message.RequestID,
				"deadline", string(message.DeadlineMs))
		} else {
			invocationInstance.SetEpochDeadline(deadlineEpochMs)
		}
	}

	payload, err := invocation.DecodePayload(message.Payload)
	if err != nil {
		s.Logger.WarnWith("Skipping invocation with undecodable payload",
			"connectionId", connectionID,
			"requestId", message.RequestID,
			"err", transport.NewDecodeError(message.Payload, err).Error())

		return nil
	}

	invocationInstance.Payload = payload

	s.Logger.DebugWith("Received invocation",
		"connectionId", connectionID,
		"requestId", message.RequestID)

	// a value that can't be encoded is reported as an error
	dispatchResult := s.Invoke(invocationInstance).Settle()

	if dispatchResult.IsFailure() {
		return s.sendResult(conn, message.RequestID, &errorMessage{
			Type:         MessageTypeError,
			RequestID:    message.RequestID,
			ErrorMessage: dispatchResult.Failure.ErrorMessage,
			ErrorType:    dispatchResult.Failure.ErrorType,
			StackTrace:   dispatchResult.Failure.StackTrace,
			Headers: map[string]string{
				headers.FunctionError: headers.UnhandledErrorValue,
			},
		})
	}

	return s.sendResult(conn, message.RequestID, &responseMessage{
		Type:      MessageTypeResponse,
		RequestID: message.RequestID,
		Payload:   dispatchResult.EncodedBody(),
		Headers: map[string]string{
			headers.ExecutedVersion: s.Configuration.Identity.FunctionVersion,
		},
	})
}

func (s *stream) sendResult(conn *websocket.Conn, requestID string, message interface{}) error {
	if err := s.send(conn, message); err != nil {
		s.Logger.WarnWith("Failed to send result",
			"requestId", requestID,
			"err", err.Error())

		return err
	}

	return nil
}

func (s *stream) send(conn *websocket.Conn, message interface{}) error {
	encodedMessage, err := json.Marshal(message)
	if err != nil {
		s.Logger.WarnWith("Failed to encode message, dropping it", "err", err.Error())
		return nil
	}

	if err := conn.WriteMessage(websocket.TextMessage, encodedMessage); err != nil {
		return transport.NewNetworkError("Write", err)
	}

	return nil
}

func (s *stream) fallBack(ctx context.Context) error {
	s.state.Store(transport.FallenBack)
	s.Logger.WarnWith("Max reconnection attempts reached, falling back to poll",
		"maxReconnectAttempts", s.maxReconnectAttempts)

	fallbackTransport, err := s.createFallback()
	if err != nil {
		return errors.Wrap(err, "Failed to create fallback transport")
	}

	return fallbackTransport.Start(ctx)
}

func (s *stream) stop() error {
	s.state.Store(transport.Disconnected)
	s.Logger.Info("Shutdown requested, stopping")

	return nil
}

func (s *stream) isStopping(ctx context.Context) bool {
	return s.IsShuttingDown() || ctx.Err() != nil
}

func (s *stream) waitBeforeReconnect(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-s.Configuration.ShutdownFlag.Done():
	}
}

// closeOnShutdown closes the current connection once termination is requested,
// unblocking a pending read. A connection handling a message is left open, serve
// returns once the reply is sent
func (s *stream) closeOnShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.Configuration.ShutdownFlag.Done():
	}

	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.handling {
		return
	}

	s.closeConnLocked()
}

func (s *stream) beginHandling() bool {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.conn == nil {
		return false
	}

	s.handling = true

	return true
}

func (s *stream) endHandling() {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	s.handling = false
}

func (s *stream) setConn(conn *websocket.Conn) {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	s.conn = conn
}

func (s *stream) closeConn() {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	s.closeConnLocked()
}

func (s *stream) closeConnLocked() {
	if s.conn == nil {
		return
	}

	s.conn.Close() // nolint: errcheck
	s.conn = nil
}

func parseDeadline(encodedDeadline json.RawMessage) (int64, error) {
	var deadlineEpochMs json.Number
	if err := json.Unmarshal(encodedDeadline, &deadlineEpochMs); err != nil {
		return 0, err
	}

	return deadlineEpochMs.Int64()
}
