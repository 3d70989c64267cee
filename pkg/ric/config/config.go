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

package config

import (
	"os"

	"github.com/lambdahome/ric/pkg/ric/invocation"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	TransportKindPoll   = "poll"
	TransportKindPush   = "push"
	TransportKindStream = "stream"
)

// configuration keys
const (
	HandlerKey            = "handler"
	TaskRootKey           = "task-root"
	RuntimeAPIKey         = "runtime-api"
	FunctionNameKey       = "function-name"
	FunctionVersionKey    = "function-version"
	MemorySizeKey         = "memory-size"
	LogGroupNameKey       = "log-group-name"
	LogStreamNameKey      = "log-stream-name"
	InstanceIDKey         = "instance-id"
	TransportKey          = "transport"
	ListenAddressKey      = "listen-address"
	RuntimeNameKey        = "runtime-name"
	LogLevelKey           = "log-level"
	AdminListenAddressKey = "admin-listen-address"
)

type binding struct {
	key          string
	env          string
	defaultValue string
	usage        string
}

var bindings = []binding{
	{HandlerKey, "HANDLER", "index.handler", "Handler reference, module.function"},
	{TaskRootKey, "LAMBDA_TASK_ROOT", "", "Directory holding the handler modules (defaults to the working directory)"},
	{RuntimeAPIKey, "AWS_LAMBDA_RUNTIME_API", "localhost:9001", "Runtime API host:port"},
	{FunctionNameKey, "AWS_LAMBDA_FUNCTION_NAME", "", "Function name"},
	{FunctionVersionKey, "AWS_LAMBDA_FUNCTION_VERSION", "1", "Function version"},
	{MemorySizeKey, "AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "", "Function memory limit in MB"},
	{LogGroupNameKey, "AWS_LAMBDA_LOG_GROUP_NAME", "", "Log group name"},
	{LogStreamNameKey, "AWS_LAMBDA_LOG_STREAM_NAME", "", "Log stream name"},
	{InstanceIDKey, "LAMBDAH_INSTANCE_ID", "", "Instance ID reported to the runtime API"},
	{TransportKey, "RIC_TRANSPORT", TransportKindPoll, "Transport: poll, push or stream"},
	{ListenAddressKey, "RIC_LISTEN_ADDRESS", ":8080", "Listen address of the local invoke server (push)"},
	{RuntimeNameKey, "RIC_RUNTIME_NAME", "go", "Runtime name sent when registering (stream)"},
	{LogLevelKey, "RIC_LOG_LEVEL", "info", "Log level: debug, info, warn or error"},
	{AdminListenAddressKey, "RIC_ADMIN_LISTEN_ADDRESS", "", "Listen address of the health/metrics server, empty to disable"},
}

// Configuration is read once at startup
type Configuration struct {
	Handler            string
	TaskRoot           string
	RuntimeAPI         string
	Identity           invocation.Identity
	TransportKind      string
	ListenAddress      string
	RuntimeName        string
	LogLevel           string
	AdminListenAddress string
}

// AddFlags registers a flag per configuration key. Flags that are explicitly set
// override the environment
func AddFlags(flagSet *pflag.FlagSet) {
	for _, configBinding := range bindings {
		flagSet.String(configBinding.key, configBinding.defaultValue, configBinding.usage)
	}
}

// NewConfiguration reads the configuration from the environment and the given
// (optional) flags, applying defaults
func NewConfiguration(flagSet *pflag.FlagSet) (*Configuration, error) {
	configViper := viper.New()

	for _, configBinding := range bindings {
		configViper.SetDefault(configBinding.key, configBinding.defaultValue)

		if err := configViper.BindEnv(configBinding.key, configBinding.env); err != nil {
			return nil, errors.Wrapf(err, "Failed to bind %s to %s", configBinding.key, configBinding.env)
		}

		if flagSet == nil {
			continue
		}

		if flag := flagSet.Lookup(configBinding.key); flag != nil {
			if err := configViper.BindPFlag(configBinding.key, flag); err != nil {
				return nil, errors.Wrapf(err, "Failed to bind flag %s", configBinding.key)
			}
		}
	}

	configuration := &Configuration{
		Handler:    configViper.GetString(HandlerKey),
		TaskRoot:   configViper.GetString(TaskRootKey),
		RuntimeAPI: configViper.GetString(RuntimeAPIKey),
		Identity: invocation.Identity{
			FunctionName:    configViper.GetString(FunctionNameKey),
			FunctionVersion: configViper.GetString(FunctionVersionKey),
			MemoryLimitInMB: configViper.GetString(MemorySizeKey),
			LogGroupName:    configViper.GetString(LogGroupNameKey),
			LogStreamName:   configViper.GetString(LogStreamNameKey),
			InstanceID:      configViper.GetString(InstanceIDKey),
		},
		TransportKind:      configViper.GetString(TransportKey),
		ListenAddress:      configViper.GetString(ListenAddressKey),
		RuntimeName:        configViper.GetString(RuntimeNameKey),
		LogLevel:           configViper.GetString(LogLevelKey),
		AdminListenAddress: configViper.GetString(AdminListenAddressKey),
	}

	if configuration.TaskRoot == "" {
		workingDir, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to get working directory")
		}

		configuration.TaskRoot = workingDir
	}

	if err := configuration.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}

	return configuration, nil
}

// Validate checks the configuration is usable
func (c *Configuration) Validate() error {
	if c.Handler == "" {
		return errors.New("Handler must be set")
	}

	if !lo.Contains(TransportKinds(), c.TransportKind) {
		return errors.Errorf("Unknown transport kind: %s", c.TransportKind)
	}

	if c.TransportKind != TransportKindPush && c.RuntimeAPI == "" {
		return errors.Errorf("Runtime API must be set for the %s transport", c.TransportKind)
	}

	return nil
}

// TransportKinds returns the supported transports
func TransportKinds() []string {
	return []string{TransportKindPoll, TransportKindPush, TransportKindStream}
}
