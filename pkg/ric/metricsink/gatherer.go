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
	"github.com/lambdahome/ric/pkg/ric/dispatcher"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/nuclio/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type Gatherer interface {

	// Gather moves whatever accumulated since the last call into prometheus metrics
	Gather() error
}

type DispatcherGatherer struct {
	dispatcher                           *dispatcher.Dispatcher
	prevStatistics                       dispatcher.Statistics
	invocationsSuccessTotal              prometheus.Counter
	invocationsFailureTotal              prometheus.Counter
	invocationsPanicTotal                prometheus.Counter
	invocationsDurationMillisecondsSum   prometheus.Counter
	invocationsDurationMillisecondsCount prometheus.Counter
}

func NewDispatcherGatherer(labels prometheus.Labels,
	dispatcherInstance *dispatcher.Dispatcher,
	metricRegistry *prometheus.Registry) (*DispatcherGatherer, error) {

	newDispatcherGatherer := &DispatcherGatherer{
		dispatcher: dispatcherInstance,
	}

	for _, counterOpts := range []struct {
		counter *prometheus.Counter
		name    string
		help    string
	}{
		{&newDispatcherGatherer.invocationsSuccessTotal, "ric_invocations_success_total", "Number of invocations that succeeded"},
		{&newDispatcherGatherer.invocationsFailureTotal, "ric_invocations_failure_total", "Number of invocations that failed"},
		{&newDispatcherGatherer.invocationsPanicTotal, "ric_invocations_panic_total", "Number of invocations whose handler panicked"},
		{&newDispatcherGatherer.invocationsDurationMillisecondsSum, "ric_invocations_duration_milliseconds_sum", "Total sum of milliseconds it took to handle invocations"},
		{&newDispatcherGatherer.invocationsDurationMillisecondsCount, "ric_invocations_duration_milliseconds_count", "Number of measurements taken for ric_invocations_duration_milliseconds_sum"},
	} {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name:        counterOpts.name,
			Help:        counterOpts.help,
			ConstLabels: labels,
		})

		if err := metricRegistry.Register(counter); err != nil {
			return nil, errors.Wrapf(err, "Failed to register %s", counterOpts.name)
		}

		*counterOpts.counter = counter
	}

	return newDispatcherGatherer, nil
}

func (dg *DispatcherGatherer) Gather() error {

	// read current stats
	currentStatistics := dg.dispatcher.GetStatistics().Snapshot()

	// diff from previous to get this period
	diffStatistics := currentStatistics.DiffFrom(&dg.prevStatistics)

	dg.invocationsSuccessTotal.Add(float64(diffStatistics.SuccessCount))
	dg.invocationsFailureTotal.Add(float64(diffStatistics.FailureCount))
	dg.invocationsPanicTotal.Add(float64(diffStatistics.PanicCount))
	dg.invocationsDurationMillisecondsSum.Add(float64(diffStatistics.DurationMilliSecondsSum))
	dg.invocationsDurationMillisecondsCount.Add(float64(diffStatistics.DurationMilliSecondsCount))

	// save previous
	dg.prevStatistics = currentStatistics

	return nil
}

// ConnectionStateGatherer exposes the connection state of transports that have one
type ConnectionStateGatherer struct {
	stateProvider   transport.StateProvider
	connectionState prometheus.Gauge
}

func NewConnectionStateGatherer(labels prometheus.Labels,
	stateProvider transport.StateProvider,
	metricRegistry *prometheus.Registry) (*ConnectionStateGatherer, error) {

	newConnectionStateGatherer := &ConnectionStateGatherer{
		stateProvider: stateProvider,
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ric_transport_connection_state",
			Help:        "Connection state: 0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 fallen back",
			ConstLabels: labels,
		}),
	}

	if err := metricRegistry.Register(newConnectionStateGatherer.connectionState); err != nil {
		return nil, errors.Wrap(err, "Failed to register connection state")
	}

	return newConnectionStateGatherer, nil
}

func (csg *ConnectionStateGatherer) Gather() error {
	csg.connectionState.Set(float64(csg.stateProvider.GetState()))

	return nil
}
