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

package handler

import (
	"github.com/lambdahome/ric/pkg/registry"
)

// capabilities linked into the binary, keyed by "module.function"
var capabilityRegistry = registry.NewRegistry("handler")

// Register makes a capability resolvable by its handler reference. Typically
// called from an init() of the package holding the handler
func Register(handlerRef string, capability Capability) {
	capabilityRegistry.Register(handlerRef, capability)
}

// GetRegisteredRefs returns the handler references linked into the binary
func GetRegisteredRefs() []string {
	return capabilityRegistry.GetKinds()
}

func getRegistered(handlerRef string) (Capability, bool) {
	registered, err := capabilityRegistry.Get(handlerRef)
	if err != nil {
		return nil, false
	}

	capability, ok := registered.(Capability)
	return capability, ok
}
