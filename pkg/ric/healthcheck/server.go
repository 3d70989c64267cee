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

package healthcheck

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/lambdahome/ric/pkg/ric/metricsink"
	"github.com/lambdahome/ric/pkg/ric/shutdown"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const (
	LivePath    = "/live"
	ReadyPath   = "/ready"
	MetricsPath = "/metrics"

	maxGoroutines   = 10000
	shutdownTimeout = 5 * time.Second
)

// Server is the admin server: liveness, readiness and metrics
type Server struct {
	Logger        logger.Logger
	ListenAddress string
	Handler       healthcheck.Handler
	router        chi.Router
	listener      net.Listener
}

func NewServer(parentLogger logger.Logger,
	listenAddress string,
	shutdownFlag *shutdown.Flag,
	transportInstance transport.Transport,
	metricSink *metricsink.MetricSink) (*Server, error) {

	if listenAddress == "" {
		return nil, errors.New("Listen address must be set")
	}

	newServer := &Server{
		Logger:        parentLogger.GetChild("healthcheck"),
		ListenAddress: listenAddress,
		Handler:       healthcheck.NewHandler(),
	}

	newServer.Handler.AddLivenessCheck("goroutine_threshold", healthcheck.GoroutineCountCheck(maxGoroutines))

	// not ready once termination was requested
	newServer.Handler.AddReadinessCheck("shutdown", func() error {
		if shutdownFlag.IsSet() {
			return errors.New("Shutting down")
		}

		return nil
	})

	if stateProvider, isStateProvider := transportInstance.(transport.StateProvider); isStateProvider {
		newServer.Handler.AddReadinessCheck("transport_connection", func() error {
			if state := stateProvider.GetState(); state == transport.FallenBack {
				return errors.Errorf("Transport is %s", state.String())
			}

			return nil
		})
	}

	newServer.router = chi.NewRouter()
	newServer.router.Use(middleware.Recoverer)
	newServer.router.Use(middleware.StripSlashes)

	newServer.router.Get(LivePath, newServer.Handler.LiveEndpoint)
	newServer.router.Get(ReadyPath, newServer.Handler.ReadyEndpoint)

	if metricSink != nil {
		newServer.router.Method(http.MethodGet, MetricsPath, metricSink.Handler())
	}

	return newServer, nil
}

// Start serves until the context is done
func (s *Server) Start(ctx context.Context) error {
	listener := s.listener
	if listener == nil {
		var err error

		listener, err = net.Listen("tcp", s.ListenAddress)
		if err != nil {
			return errors.Wrapf(err, "Failed to listen on %s", s.ListenAddress)
		}
	}

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: shutdownTimeout,
	}

	serveErrorChan := make(chan error, 1)
	go func() {
		serveErrorChan <- httpServer.Serve(listener)
	}()

	s.Logger.InfoWith("Listening", "listenAddress", listener.Addr().String())

	select {
	case err := <-serveErrorChan:
		return errors.Wrap(err, "Server stopped unexpectedly")

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "Failed to shut down server")
		}

		s.Logger.Debug("Stopped")

		return nil
	}
}

// GetRouter returns the root router
func (s *Server) GetRouter() http.Handler {
	return s.router
}
