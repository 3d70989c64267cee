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

package app

import (
	"context"

	"github.com/lambdahome/ric/pkg/ric/config"
	"github.com/lambdahome/ric/pkg/ric/dispatcher"
	"github.com/lambdahome/ric/pkg/ric/handler"
	"github.com/lambdahome/ric/pkg/ric/healthcheck"
	"github.com/lambdahome/ric/pkg/ric/metricsink"
	"github.com/lambdahome/ric/pkg/ric/result"
	"github.com/lambdahome/ric/pkg/ric/shutdown"
	"github.com/lambdahome/ric/pkg/ric/transport"

	// load all transports
	_ "github.com/lambdahome/ric/pkg/ric/transport/poll"
	_ "github.com/lambdahome/ric/pkg/ric/transport/push"
	_ "github.com/lambdahome/ric/pkg/ric/transport/stream"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

// RIC wires a loaded handler to a transport for the lifetime of the process
type RIC struct {
	logger        logger.Logger
	configuration *config.Configuration
	shutdownFlag  *shutdown.Flag
	dispatcher    *dispatcher.Dispatcher
	transport     transport.Transport
	metricSink    *metricsink.MetricSink
	adminServer   *healthcheck.Server
}

// NewRIC loads the handler and creates the transport. Failing to load the
// handler is fatal
func NewRIC(parentLogger logger.Logger, configuration *config.Configuration) (*RIC, error) {
	newRIC := &RIC{
		logger:        parentLogger,
		configuration: configuration,
		shutdownFlag:  shutdown.NewFlag(),
		dispatcher:    dispatcher.NewDispatcher(parentLogger),
	}

	capability, err := handler.NewLoader(parentLogger, configuration.TaskRoot).Resolve(configuration.Handler)
	if err != nil {
		failure := result.FailureFromError(err)

		newRIC.logger.ErrorWith("Failed to load handler",
			"handler", configuration.Handler,
			"errorType", failure.ErrorType,
			"errorMessage", failure.ErrorMessage,
			"stackTrace", failure.StackTrace)

		return nil, errors.Wrap(err, "Failed to load handler")
	}

	newRIC.transport, err = transport.RegistrySingleton.NewTransport(parentLogger,
		configuration.TransportKind,
		&transport.Configuration{
			Configuration: configuration,
			Capability:    capability,
			Dispatcher:    newRIC.dispatcher,
			ShutdownFlag:  newRIC.shutdownFlag,
		})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create transport")
	}

	if configuration.AdminListenAddress != "" {
		newRIC.metricSink, err = metricsink.NewMetricSink(parentLogger,
			configuration.Identity.FunctionName,
			newRIC.transport,
			newRIC.dispatcher)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create metric sink")
		}

		newRIC.adminServer, err = healthcheck.NewServer(parentLogger,
			configuration.AdminListenAddress,
			newRIC.shutdownFlag,
			newRIC.transport,
			newRIC.metricSink)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create admin server")
		}
	}

	return newRIC, nil
}

// Start runs the transport (and the admin server, if enabled) until the
// transport stops
func (r *RIC) Start(ctx context.Context) error {
	watcher := shutdown.NewWatcher(r.logger, r.shutdownFlag)
	runCtx := watcher.Start(ctx)
	defer watcher.Stop()

	r.logger.InfoWith("Starting",
		"transport", r.transport.GetKind(),
		"functionName", r.configuration.Identity.FunctionName,
		"functionVersion", r.configuration.Identity.FunctionVersion,
		"adminListenAddress", r.configuration.AdminListenAddress)

	errGroup, groupCtx := errgroup.WithContext(runCtx)

	// the admin server lives as long as the transport
	adminCtx, cancelAdmin := context.WithCancel(groupCtx)
	defer cancelAdmin()

	errGroup.Go(func() error {
		defer cancelAdmin()

		if err := r.transport.Start(groupCtx); err != nil {
			return errors.Wrapf(err, "Failed to run %s transport", r.transport.GetKind())
		}

		return nil
	})

	if r.adminServer != nil {
		errGroup.Go(func() error {
			if err := r.adminServer.Start(adminCtx); err != nil {
				return errors.Wrap(err, "Failed to run admin server")
			}

			return nil
		})
	}

	if err := errGroup.Wait(); err != nil {
		return err
	}

	r.logger.Info("Stopped")

	return nil
}

// GetShutdownFlag returns the flag set on the first termination signal
func (r *RIC) GetShutdownFlag() *shutdown.Flag {
	return r.shutdownFlag
}
