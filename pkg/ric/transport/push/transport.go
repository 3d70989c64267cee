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

package push

import (
	"context"
	"encoding/json"
	"net"
	net_http "net/http"
	"strconv"
	"time"

	"github.com/lambdahome/ric/pkg/common/headers"
	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/result"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/valyala/fasthttp"
)

const (
	HealthPath = "/health"
	InvokePath = "/invoke"

	DefaultRequestID = "unknown"

	ServiceUnavailableErrorType = "ServiceUnavailable"
	BadRequestErrorType         = "BadRequest"
)

// Envelope wraps every response of the local invoke server
type Envelope struct {
	StatusCode int           `json:"status_code"`
	Body       interface{}   `json:"body"`
	Logs       []interface{} `json:"logs"`
}

type push struct {
	*transport.AbstractTransport
	server   *fasthttp.Server
	listener net.Listener
}

func newTransport(parentLogger logger.Logger, configuration *transport.Configuration) (*push, error) {
	abstractTransport, err := transport.NewAbstractTransport(parentLogger, "push", configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create abstract transport")
	}

	newPush := &push{
		AbstractTransport: abstractTransport,
	}

	newPush.server = &fasthttp.Server{
		Handler: newPush.requestHandler,
		Name:    headers.RuntimeClientAgent,
	}

	return newPush, nil
}

// Start serves the local invoke endpoints until the context is done, then shuts
// the server down gracefully
func (p *push) Start(ctx context.Context) error {
	listener := p.listener
	if listener == nil {
		var err error

		listener, err = net.Listen("tcp4", p.Configuration.ListenAddress)
		if err != nil {
			return errors.Wrapf(err, "Failed to listen on %s", p.Configuration.ListenAddress)
		}
	}

	p.Logger.InfoWith("Starting", "listenAddress", listener.Addr().String())

	serveErrorChan := make(chan error, 1)
	go func() {
		serveErrorChan <- p.server.Serve(listener)
	}()

	select {
	case err := <-serveErrorChan:
		if err != nil {
			return errors.Wrap(err, "Server stopped unexpectedly")
		}

		return nil

	case <-ctx.Done():
		p.Logger.Info("Context done, shutting down server")

		if err := p.server.Shutdown(); err != nil {
			return errors.Wrap(err, "Failed to shut down server")
		}

		return nil
	}
}

func (p *push) requestHandler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case HealthPath:
		if !ctx.IsGet() {
			p.writeMethodNotAllowed(ctx)
			return
		}

		p.writeEnvelope(ctx, net_http.StatusOK, map[string]string{"status": "ok"})

	case InvokePath:
		if !ctx.IsPost() {
			p.writeMethodNotAllowed(ctx)
			return
		}

		p.handleInvoke(ctx)

	default:
		p.writeEnvelope(ctx, net_http.StatusNotFound, &result.Failure{
			ErrorType:    "NotFound",
			ErrorMessage: "Path not found: " + string(ctx.Path()),
		})
	}
}

func (p *push) handleInvoke(ctx *fasthttp.RequestCtx) {
	receivedAt := time.Now()

	// shutting down, the dispatcher is never touched
	if p.IsShuttingDown() {
		p.writeEnvelope(ctx, net_http.StatusServiceUnavailable, &result.Failure{
			ErrorType:    ServiceUnavailableErrorType,
			ErrorMessage: "Service is shutting down",
		})

		return
	}

	requestID := string(ctx.Request.Header.Peek(headers.InvokeRequestID))
	if requestID == "" {
		requestID = DefaultRequestID
	}

	deadlineBudgetMs := parseDeadline(ctx.Request.Header.Peek(headers.InvokeDeadlineMs))

	payload, err := invocation.DecodePayload(ctx.PostBody())
	if err != nil {
		p.Logger.WarnWith("Failed to decode invocation body",
			"requestId", requestID,
			"err", transport.NewDecodeError(ctx.PostBody(), err).Error())

		p.writeEnvelope(ctx, net_http.StatusInternalServerError, &result.Failure{
			ErrorType:    BadRequestErrorType,
			ErrorMessage: "Invalid JSON body: " + err.Error(),
		})

		return
	}

	// a value that can't be encoded is reported as an error
	dispatchResult := p.Invoke(invocation.NewWithBudget(requestID, payload, deadlineBudgetMs, receivedAt)).Settle()

	if dispatchResult.IsFailure() {
		p.writeEnvelope(ctx, net_http.StatusInternalServerError, dispatchResult.Failure)
		return
	}

	p.writeEnvelope(ctx, net_http.StatusOK, json.RawMessage(dispatchResult.EncodedBody()))
}

func (p *push) writeMethodNotAllowed(ctx *fasthttp.RequestCtx) {
	p.writeEnvelope(ctx, net_http.StatusMethodNotAllowed, &result.Failure{
		ErrorType:    "MethodNotAllowed",
		ErrorMessage: "Method not allowed: " + string(ctx.Method()),
	})
}

func (p *push) writeEnvelope(ctx *fasthttp.RequestCtx, statusCode int, body interface{}) {
	encodedEnvelope, err := json.Marshal(&Envelope{
		StatusCode: statusCode,
		Body:       body,
		Logs:       []interface{}{},
	})

	if err != nil {
		p.Logger.WarnWith("Failed to encode response", "err", err.Error())

		statusCode = net_http.StatusInternalServerError
		encodedEnvelope, _ = json.Marshal(&Envelope{
			StatusCode: statusCode,
			Body:       result.FailureFromError(errors.Wrap(err, "Failed to encode response")),
			Logs:       []interface{}{},
		})
	}

	ctx.Response.SetStatusCode(statusCode)
	ctx.SetContentType(headers.ApplicationJSON)
	ctx.Response.SetBody(encodedEnvelope)
}

func parseDeadline(value []byte) int64 {
	if len(value) == 0 {
		return 0
	}

	deadlineBudgetMs, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0
	}

	return deadlineBudgetMs
}
