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
	"strings"

	"github.com/lambdahome/ric/pkg/ric/invocation"
)

const DefaultHandler = "index.handler"

// Capability is a loaded user handler
type Capability func(payload interface{}, context invocation.Context) (interface{}, error)

// contextFirstCapability is the alternative signature, with the context first
type contextFirstCapability = func(context invocation.Context, payload interface{}) (interface{}, error)

// Ref is a parsed "module.function" handler reference
type Ref struct {
	Module   string
	Function string
}

// ParseRef splits a handler reference into exactly a module and a function part
func ParseRef(handlerRef string) (*Ref, error) {
	parts := strings.Split(handlerRef, ".")

	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, newLoadError(handlerRef,
			InvalidReferenceReason,
			nil,
			"Handler must be of the form module.function")
	}

	return &Ref{
		Module:   parts[0],
		Function: parts[1],
	}, nil
}

func (r *Ref) String() string {
	return r.Module + "." + r.Function
}
