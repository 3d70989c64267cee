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

package metricsink

import (
	"net/http"
	"sync"

	"github.com/lambdahome/ric/pkg/ric/dispatcher"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricSink is a pull sink: metrics are gathered whenever they are scraped
type MetricSink struct {
	logger         logger.Logger
	metricRegistry *prometheus.Registry
	gatherers      []Gatherer
	gatherLock     sync.Mutex
}

func NewMetricSink(parentLogger logger.Logger,
	functionName string,
	transportInstance transport.Transport,
	dispatcherInstance *dispatcher.Dispatcher) (*MetricSink, error) {

	newMetricSink := &MetricSink{
		logger:         parentLogger.GetChild("metricsink"),
		metricRegistry: prometheus.NewRegistry(),
	}

	labels := prometheus.Labels{
		"function":  functionName,
		"transport": transportInstance.GetKind(),
	}

	dispatcherGatherer, err := NewDispatcherGatherer(labels, dispatcherInstance, newMetricSink.metricRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create dispatcher gatherer")
	}

	newMetricSink.gatherers = append(newMetricSink.gatherers, dispatcherGatherer)

	// only some transports track a connection
	if stateProvider, isStateProvider := transportInstance.(transport.StateProvider); isStateProvider {
		connectionStateGatherer, err := NewConnectionStateGatherer(labels, stateProvider, newMetricSink.metricRegistry)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create connection state gatherer")
		}

		newMetricSink.gatherers = append(newMetricSink.gatherers, connectionStateGatherer)
	}

	newMetricSink.logger.DebugWith("Created", "labels", labels, "numGatherers", len(newMetricSink.gatherers))

	return newMetricSink, nil
}

// Gather runs all gatherers
func (ms *MetricSink) Gather() error {
	ms.gatherLock.Lock()
	defer ms.gatherLock.Unlock()

	for _, gatherer := range ms.gatherers {
		if err := gatherer.Gather(); err != nil {
			return errors.Wrap(err, "Failed to gather")
		}
	}

	return nil
}

// GetRegistry returns the registry holding the sink's metrics
func (ms *MetricSink) GetRegistry() *prometheus.Registry {
	return ms.metricRegistry
}

// Handler serves the metrics in the prometheus exposition format, gathering first
func (ms *MetricSink) Handler() http.Handler {
	metricsHandler := promhttp.HandlerFor(ms.metricRegistry, promhttp.HandlerOpts{})

	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if err := ms.Gather(); err != nil {
			ms.logger.WarnWith("Failed to gather metrics", "err", err.Error())
			http.Error(responseWriter, err.Error(), http.StatusInternalServerError)

			return
		}

		metricsHandler.ServeHTTP(responseWriter, request)
	})
}
