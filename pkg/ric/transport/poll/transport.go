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

package poll

import (
	"context"
	"time"

	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/runtimeapi"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const DefaultRetryInterval = time.Second

type poll struct {
	*transport.AbstractTransport
	client        *runtimeapi.Client
	retryInterval time.Duration
}

func newTransport(parentLogger logger.Logger, configuration *transport.Configuration) (*poll, error) {
	abstractTransport, err := transport.NewAbstractTransport(parentLogger, "poll", configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create abstract transport")
	}

	return &poll{
		AbstractTransport: abstractTransport,
		client: runtimeapi.NewClient(abstractTransport.Logger,
			configuration.HTTPClient,
			configuration.RuntimeAPI,
			configuration.Identity.FunctionName,
			configuration.Identity.InstanceID),
		retryInterval: DefaultRetryInterval,
	}, nil
}

// Start fetches, dispatches and posts invocations one at a time until
// termination is requested
func (p *poll) Start(ctx context.Context) error {
	p.Logger.InfoWith("Starting",
		"runtimeApi", p.Configuration.RuntimeAPI,
		"functionName", p.Configuration.Identity.FunctionName)

	for {
		if p.IsShuttingDown() {
			p.Logger.Info("Shutdown requested, stopping")
			return nil
		}

		if ctx.Err() != nil {
			p.Logger.Debug("Context done, stopping")
			return nil
		}

		invocationInstance, err := p.client.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			p.Logger.WarnWith("Failed to get next invocation, retrying",
				"err", err.Error(),
				"retryInterval", p.retryInterval.String())

			p.waitBeforeRetry(ctx)
			continue
		}

		p.handleInvocation(ctx, invocationInstance)
	}
}

func (p *poll) handleInvocation(ctx context.Context, invocationInstance *invocation.Invocation) {
	p.Logger.DebugWith("Received invocation", "requestId", invocationInstance.RequestID)

	// a value that can't be encoded is reported as an error
	dispatchResult := p.Invoke(invocationInstance).Settle()

	// the result is reported even if we were asked to terminate while the handler ran
	postCtx := context.WithoutCancel(ctx)

	var err error
	if dispatchResult.IsFailure() {
		err = p.client.PostError(postCtx, invocationInstance.RequestID, dispatchResult.Failure)
	} else {
		err = p.client.PostResponse(postCtx, invocationInstance.RequestID, dispatchResult)
	}

	if err != nil {
		p.Logger.WarnWith("Failed to post result",
			"requestId", invocationInstance.RequestID,
			"failure", dispatchResult.IsFailure(),
			"err", err.Error())

		return
	}

	p.Logger.DebugWith("Posted result",
		"requestId", invocationInstance.RequestID,
		"failure", dispatchResult.IsFailure())
}

// waitBeforeRetry sleeps for the retry interval, waking up early on termination
func (p *poll) waitBeforeRetry(ctx context.Context) {
	timer := time.NewTimer(p.retryInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-p.Configuration.ShutdownFlag.Done():
	}
}
