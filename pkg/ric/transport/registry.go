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
	"github.com/lambdahome/ric/pkg/registry"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// Creator creates a transport instance
type Creator interface {

	// Create creates a transport instance
	Create(logger.Logger, *Configuration) (Transport, error)
}

type Registry struct {
	*registry.Registry
}

// RegistrySingleton is a transport global singleton
var RegistrySingleton = Registry{
	Registry: registry.NewRegistry("transport"),
}

// NewTransport creates a transport of a given kind
func (r *Registry) NewTransport(parentLogger logger.Logger,
	kind string,
	configuration *Configuration) (Transport, error) {

	registree, err := r.Get(kind)
	if err != nil {
		return nil, err
	}

	newTransport, err := registree.(Creator).Create(parentLogger, configuration)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create %s transport", kind)
	}

	return newTransport, nil
}
