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
	"path/filepath"
	"plugin"
	"strings"

	"github.com/lambdahome/ric/pkg/ric/invocation"

	"github.com/nuclio/logger"
)

// symbolLookuper is what the loader needs from an opened module
type symbolLookuper interface {
	Lookup(symbolName string) (plugin.Symbol, error)
}

type moduleOpener func(path string) (symbolLookuper, error)

func openPlugin(path string) (symbolLookuper, error) {
	handlerPlugin, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	return handlerPlugin, nil
}

// Loader resolves a handler reference into a capability, once, at startup
type Loader struct {
	logger     logger.Logger
	taskRoot   string
	openModule moduleOpener
}

func NewLoader(parentLogger logger.Logger, taskRoot string) *Loader {
	return &Loader{
		logger:     parentLogger.GetChild("handler"),
		taskRoot:   taskRoot,
		openModule: openPlugin,
	}
}

// Resolve returns the capability named by handlerRef. Capabilities registered
// in-process take precedence over modules in the task root
func (l *Loader) Resolve(handlerRef string) (Capability, error) {
	l.logger.InfoWith("RIC initialization started", "handler", handlerRef)

	ref, err := ParseRef(handlerRef)
	if err != nil {
		return nil, err
	}

	if capability, found := getRegistered(ref.String()); found {
		l.logger.InfoWith("RIC initialization completed successfully",
			"handler", handlerRef,
			"source", "registry")

		return capability, nil
	}

	capability, err := l.loadFromModule(ref)
	if err != nil {
		return nil, err
	}

	l.logger.InfoWith("RIC initialization completed successfully",
		"handler", handlerRef,
		"source", "module")

	return capability, nil
}

func (l *Loader) loadFromModule(ref *Ref) (Capability, error) {
	modulePath := filepath.Join(l.taskRoot, ref.Module+".so")

	l.logger.DebugWith("Loading handler module", "path", modulePath)

	module, err := l.openModule(modulePath)
	if err != nil {
		return nil, newLoadError(ref.String(), ModuleLoadReason, err, "Can't load module at %s", modulePath)
	}

	symbol, err := l.lookupFunction(module, ref.Function)
	if err != nil {
		return nil, newLoadError(ref.String(), FunctionNotFoundReason, err, "Can't find %s in %s", ref.Function, modulePath)
	}

	capability := toCapability(symbol)
	if capability == nil {
		return nil, newLoadError(ref.String(), NotInvocableReason, nil, "%s is of wrong type - %T", ref.Function, symbol)
	}

	return capability, nil
}

// lookupFunction looks the function up as written and then with its first
// letter upper-cased, since modules only export capitalized symbols
func (l *Loader) lookupFunction(module symbolLookuper, functionName string) (plugin.Symbol, error) {
	symbol, err := module.Lookup(functionName)
	if err == nil {
		return symbol, nil
	}

	exportedName := capitalize(functionName)
	if exportedName == functionName {
		return nil, err
	}

	l.logger.DebugWith("Function not found as written, trying exported name",
		"function", functionName,
		"exportedName", exportedName)

	return module.Lookup(exportedName)
}

func toCapability(symbol interface{}) Capability {
	switch typedSymbol := symbol.(type) {
	case Capability:
		return typedSymbol
	case *Capability:
		if typedSymbol == nil {
			return nil
		}
		return *typedSymbol
	case func(interface{}, invocation.Context) (interface{}, error):
		return typedSymbol
	case *func(interface{}, invocation.Context) (interface{}, error):
		if typedSymbol == nil {
			return nil
		}
		return *typedSymbol
	case contextFirstCapability:
		return func(payload interface{}, context invocation.Context) (interface{}, error) {
			return typedSymbol(context, payload)
		}
	}

	return nil
}

func capitalize(name string) string {
	if name == "" {
		return name
	}

	runes := []rune(name)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

