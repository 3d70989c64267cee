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
	"context"
	"net/http"

	"github.com/lambdahome/ric/pkg/ric/config"
	"github.com/lambdahome/ric/pkg/ric/dispatcher"
	"github.com/lambdahome/ric/pkg/ric/handler"
	"github.com/lambdahome/ric/pkg/ric/shutdown"
)

// Transport obtains invocations, drives the dispatcher and returns results on
// its own wire protocol
type Transport interface {

	// Start runs the transport until the context is done or the shutdown flag
	// is observed. Returns only on termination or a fatal error
	Start(ctx context.Context) error

	// GetKind returns the kind of the transport
	GetKind() string
}

// StateProvider is implemented by transports that hold a connection state
type StateProvider interface {
	GetState() ConnectionState
}

// Configuration is what every transport is created with
type Configuration struct {
	*config.Configuration

	Capability   handler.Capability
	Dispatcher   *dispatcher.Dispatcher
	ShutdownFlag *shutdown.Flag

	// optional, used by transports talking to the runtime API over HTTP
	HTTPClient *http.Client
}
