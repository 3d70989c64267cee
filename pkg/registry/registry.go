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

package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

// ErrNotFound is the cause of errors returned by Get for unknown kinds
var ErrNotFound = errors.New("Not registered")

// Registry maps a kind to a registered value. Values are usually registered
// from package init functions and looked up once at startup
type Registry struct {
	className  string
	lock       sync.RWMutex
	registered map[string]interface{}
}

func NewRegistry(className string) *Registry {
	return &Registry{
		className:  className,
		registered: map[string]interface{}{},
	}
}

// Register registers a value under kind. Registering the same kind twice panics
func (r *Registry) Register(kind string, registeree interface{}) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, found := r.registered[kind]; found {

		// registries register things on package initialization; no place for error handling
		panic(fmt.Sprintf("%s already registered: %s", r.className, kind))
	}

	r.registered[kind] = registeree
}

// Get returns the value registered under kind
func (r *Registry) Get(kind string) (interface{}, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	registree, found := r.registered[kind]
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "Registry for %s failed to find: %s", r.className, kind)
	}

	return registree, nil
}

// Has returns true if something is registered under kind
func (r *Registry) Has(kind string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, found := r.registered[kind]
	return found
}

// GetKinds returns the registered kinds, sorted
func (r *Registry) GetKinds() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	kinds := lo.Keys(r.registered)
	sort.Strings(kinds)

	return kinds
}
