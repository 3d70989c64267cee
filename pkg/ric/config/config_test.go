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
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (suite *ConfigTestSuite) SetupTest() {

	// start every test from a clean environment
	for _, configBinding := range bindings {
		suite.T().Setenv(configBinding.env, "")
		os.Unsetenv(configBinding.env) // nolint: errcheck
	}
}

func (suite *ConfigTestSuite) TestDefaults() {
	configuration, err := NewConfiguration(nil)
	suite.Require().NoError(err)

	workingDir, err := os.Getwd()
	suite.Require().NoError(err)

	suite.Equal("index.handler", configuration.Handler)
	suite.Equal(workingDir, configuration.TaskRoot)
	suite.Equal("localhost:9001", configuration.RuntimeAPI)
	suite.Equal("1", configuration.Identity.FunctionVersion)
	suite.Equal("", configuration.Identity.InstanceID)
	suite.Equal(TransportKindPoll, configuration.TransportKind)
	suite.Equal(":8080", configuration.ListenAddress)
	suite.Equal("go", configuration.RuntimeName)
	suite.Equal("info", configuration.LogLevel)
	suite.Equal("", configuration.AdminListenAddress)
}

func (suite *ConfigTestSuite) TestEnvironment() {
	suite.T().Setenv("HANDLER", "main.Handler")
	suite.T().Setenv("LAMBDA_TASK_ROOT", "/var/task")
	suite.T().Setenv("AWS_LAMBDA_RUNTIME_API", "10.0.0.1:9001")
	suite.T().Setenv("AWS_LAMBDA_FUNCTION_NAME", "echo")
	suite.T().Setenv("AWS_LAMBDA_FUNCTION_VERSION", "7")
	suite.T().Setenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE", "256")
	suite.T().Setenv("AWS_LAMBDA_LOG_GROUP_NAME", "/aws/lambda/echo")
	suite.T().Setenv("AWS_LAMBDA_LOG_STREAM_NAME", "2023/01/01/[7]abc")
	suite.T().Setenv("LAMBDAH_INSTANCE_ID", "instance-9")
	suite.T().Setenv("RIC_TRANSPORT", "stream")
	suite.T().Setenv("RIC_LOG_LEVEL", "debug")

	configuration, err := NewConfiguration(nil)
	suite.Require().NoError(err)

	suite.Equal("main.Handler", configuration.Handler)
	suite.Equal("/var/task", configuration.TaskRoot)
	suite.Equal("10.0.0.1:9001", configuration.RuntimeAPI)
	suite.Equal("echo", configuration.Identity.FunctionName)
	suite.Equal("7", configuration.Identity.FunctionVersion)
	suite.Equal("256", configuration.Identity.MemoryLimitInMB)
	suite.Equal("/aws/lambda/echo", configuration.Identity.LogGroupName)
	suite.Equal("2023/01/01/[7]abc", configuration.Identity.LogStreamName)
	suite.Equal("instance-9", configuration.Identity.InstanceID)
	suite.Equal(TransportKindStream, configuration.TransportKind)
	suite.Equal("debug", configuration.LogLevel)
}

func (suite *ConfigTestSuite) TestFlagsOverrideEnvironment() {
	suite.T().Setenv("RIC_TRANSPORT", "stream")
	suite.T().Setenv("AWS_LAMBDA_FUNCTION_NAME", "from-env")

	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flagSet)
	suite.Require().NoError(flagSet.Parse([]string{"--transport", "push", "--listen-address", ":9090"}))

	configuration, err := NewConfiguration(flagSet)
	suite.Require().NoError(err)

	suite.Equal(TransportKindPush, configuration.TransportKind)
	suite.Equal(":9090", configuration.ListenAddress)

	// unset flags don't mask the environment
	suite.Equal("from-env", configuration.Identity.FunctionName)
}

func (suite *ConfigTestSuite) TestValidation() {
	suite.T().Setenv("RIC_TRANSPORT", "carrier-pigeon")

	_, err := NewConfiguration(nil)
	suite.Require().Error(err)

	configuration := &Configuration{Handler: "index.handler", TransportKind: TransportKindStream}
	suite.Error(configuration.Validate())

	configuration.TransportKind = TransportKindPush
	suite.NoError(configuration.Validate())

	configuration.Handler = ""
	suite.Error(configuration.Validate())
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
