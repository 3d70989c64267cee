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

package runtimeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lambdahome/ric/pkg/common/headers"
	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/result"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

const (
	APIVersion = "2018-06-01"

	nextInvocationPathTemplate = "/" + APIVersion + "/runtime/invocation/next"
	responsePathTemplate       = "/" + APIVersion + "/runtime/invocation/%s/response"
	errorPathTemplate          = "/" + APIVersion + "/runtime/invocation/%s/error"
	streamPath                 = "/" + APIVersion + "/runtime/websocket"
)

// Client talks to the runtime API over HTTP
type Client struct {
	logger       logger.Logger
	httpClient   *http.Client
	baseURL      string
	functionName string
	instanceID   string
}

func NewClient(parentLogger logger.Logger,
	httpClient *http.Client,
	runtimeAPI string,
	functionName string,
	instanceID string) *Client {

	if httpClient == nil {

		// long poll, no client side timeout
		httpClient = &http.Client{}
	}

	return &Client{
		logger:       parentLogger.GetChild("runtimeapi"),
		httpClient:   httpClient,
		baseURL:      "http://" + runtimeAPI,
		functionName: functionName,
		instanceID:   instanceID,
	}
}

// StreamURL returns the URL of the duplex stream endpoint
func StreamURL(runtimeAPI string, functionName string) string {
	return fmt.Sprintf("ws://%s%s?%s", runtimeAPI, streamPath, url.Values{"fn": {functionName}}.Encode())
}

// Next blocks until the runtime API hands out the next invocation. Any failure
// is a *transport.NetworkError
func (c *Client) Next(ctx context.Context) (*invocation.Invocation, error) {
	nextURL := fmt.Sprintf("%s%s?%s",
		c.baseURL,
		nextInvocationPathTemplate,
		url.Values{"fn": {c.functionName}}.Encode())

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, nextURL, nil)
	if err != nil {
		return nil, transport.NewNetworkError("Create next invocation request", err)
	}

	c.setCommonHeaders(request)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, transport.NewNetworkError("Get next invocation", err)
	}

	defer response.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, transport.NewNetworkError("Read next invocation", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, transport.NewNetworkError("Get next invocation",
			errors.Errorf("Unexpected status code %d: %s", response.StatusCode, string(body)))
	}

	c.logger.DebugWith("Got next invocation",
		"headers", lo.PickBy(response.Header, func(name string, _ []string) bool {
			return headers.IsRuntimeHeader(name)
		}),
		"bodyLength", len(body))

	invocationInstance := &invocation.Invocation{
		RequestID:          response.Header.Get(headers.RequestID),
		InvokedFunctionArn: response.Header.Get(headers.InvokedFunctionArn),
		TraceID:            response.Header.Get(headers.TraceID),
		ReceivedAt:         time.Now(),
	}

	if invocationInstance.RequestID == "" {
		return nil, transport.NewNetworkError("Get next invocation", errors.New("Response has no request ID"))
	}

	if deadlineHeader := response.Header.Get(headers.DeadlineMs); deadlineHeader != "" {
		deadlineEpochMs, err := strconv.ParseInt(deadlineHeader, 10, 64)
		if err != nil {
			c.logger.WarnWith("Ignoring invalid deadline",
				"requestId", invocationInstance.RequestID,
				"deadline", deadlineHeader)
		} else {
			invocationInstance.SetEpochDeadline(deadlineEpochMs)
		}
	}

	invocationInstance.Payload, err = invocation.DecodePayload(body)
	if err != nil {
		return nil, transport.NewNetworkError("Decode next invocation", transport.NewDecodeError(body, err))
	}

	return invocationInstance, nil
}

// PostResponse reports a successful result
func (c *Client) PostResponse(ctx context.Context, requestID string, dispatchResult *result.Result) error {
	encodedBody, err := dispatchResult.MarshalBody()
	if err != nil {
		return errors.Wrap(err, "Failed to encode response")
	}

	return c.post(ctx, "Post response", fmt.Sprintf(responsePathTemplate, url.PathEscape(requestID)), encodedBody)
}

// PostError reports a failed result
func (c *Client) PostError(ctx context.Context, requestID string, failure *result.Failure) error {
	encodedBody, err := json.Marshal(failure)
	if err != nil {
		return errors.Wrap(err, "Failed to encode error")
	}

	return c.post(ctx, "Post error", fmt.Sprintf(errorPathTemplate, url.PathEscape(requestID)), encodedBody)
}

func (c *Client) post(ctx context.Context, operation string, path string, body []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return transport.NewNetworkError(operation, err)
	}

	c.setCommonHeaders(request)
	request.Header.Set(headers.ContentType, headers.ApplicationJSON)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return transport.NewNetworkError(operation, err)
	}

	defer response.Body.Close() // nolint: errcheck

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(response.Body)

		return transport.NewNetworkError(operation,
			errors.Errorf("Unexpected status code %d: %s", response.StatusCode, string(responseBody)))
	}

	return nil
}

func (c *Client) setCommonHeaders(request *http.Request) {
	request.Header.Set(headers.UserAgent, headers.RuntimeClientAgent)

	if c.instanceID != "" {
		request.Header.Set(headers.InstanceID, c.instanceID)
	}
}
