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
	"github.com/lambdahome/ric/pkg/ric/config"
	"github.com/lambdahome/ric/pkg/ric/transport"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type factory struct{}

func (f *factory) Create(parentLogger logger.Logger,
	configuration *transport.Configuration) (transport.Transport, error) {

	if configuration.RuntimeAPI == "" {
		return nil, errors.New("Runtime API must be set")
	}

	pollTransport, err := newTransport(parentLogger, configuration)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create poll transport")
	}

	return pollTransport, nil
}

// register factory
func init() {
	transport.RegistrySingleton.Register(config.TransportKindPoll, &factory{})
}
