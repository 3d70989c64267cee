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
	"github.com/lambdahome/ric/pkg/ric/invocation"
)

const BuiltinEchoHandler = "builtin.echo"

// this is used for running a standalone client during development
func builtinEcho(payload interface{}, context invocation.Context) (interface{}, error) {
	if context.Logger != nil {
		context.Logger.InfoWith("Got invocation",
			"requestId", context.RequestID,
			"functionName", context.FunctionName,
			"remainingTimeMs", context.RemainingTimeMs)
	}

	return payload, nil
}

func init() {
	Register(BuiltinEchoHandler, builtinEcho)
}
