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

package transport

import (
	"github.com/lambdahome/ric/pkg/ric/invocation"
	"github.com/lambdahome/ric/pkg/ric/result"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// AbstractTransport holds what all transports share
type AbstractTransport struct {
	Logger         logger.Logger
	FunctionLogger logger.Logger
	Configuration  *Configuration
	kind           string
}

func NewAbstractTransport(parentLogger logger.Logger,
	kind string,
	configuration *Configuration) (*AbstractTransport, error) {

	if configuration.Capability == nil {
		return nil, errors.New("Capability must be set")
	}

	if configuration.Dispatcher == nil {
		return nil, errors.New("Dispatcher must be set")
	}

	if configuration.ShutdownFlag == nil {
		return nil, errors.New("Shutdown flag must be set")
	}

	return &AbstractTransport{
		Logger:         parentLogger.GetChild(kind),
		FunctionLogger: parentLogger.GetChild("function"),
		Configuration:  configuration,
		kind:           kind,
	}, nil
}

// GetKind returns the kind of the transport
func (at *AbstractTransport) GetKind() string {
	return at.kind
}

// IsShuttingDown returns whether termination was requested
func (at *AbstractTransport) IsShuttingDown() bool {
	return at.Configuration.ShutdownFlag.IsSet()
}

// Invoke builds the context of an invocation and dispatches it
func (at *AbstractTransport) Invoke(invocationInstance *invocation.Invocation) *result.Result {
	context := invocation.NewContext(&at.Configuration.Identity,
		invocationInstance,
		at.FunctionLogger)

	return at.Configuration.Dispatcher.Dispatch(at.Configuration.Capability, invocationInstance, context)
}
