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

package app

import (
	"io"
	"os"

	"github.com/lambdahome/ric/pkg/ric/config"
	"github.com/lambdahome/ric/pkg/ric/logging"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
	"github.com/v3io/version-go"
)

type RootCommandeer struct {
	cmd     *cobra.Command
	sink    io.Writer
	errSink io.Writer
}

func NewRootCommandeer() *RootCommandeer {
	commandeer := &RootCommandeer{
		sink:    os.Stdout,
		errSink: os.Stderr,
	}

	cmd := &cobra.Command{
		Use:           "ric",
		Short:         "Runtime interface client: runs a function handler against the runtime API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commandeer.run(cmd)
		},
	}

	cmd.Version = version.Get().Label

	config.AddFlags(cmd.Flags())

	commandeer.cmd = cmd

	return commandeer
}

// Execute uses os.Args to execute the command
func (rc *RootCommandeer) Execute() error {
	return rc.cmd.Execute()
}

// GetCmd returns the underlying cobra command
func (rc *RootCommandeer) GetCmd() *cobra.Command {
	return rc.cmd
}

func (rc *RootCommandeer) run(cmd *cobra.Command) error {
	configuration, err := config.NewConfiguration(cmd.Flags())
	if err != nil {
		return errors.Wrap(err, "Failed to read configuration")
	}

	loggerInstance, err := logging.NewLogger("ric", configuration.LogLevel, rc.sink, rc.errSink)
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	versionInfo := version.Get()
	loggerInstance.InfoWith("Read version", "version", versionInfo)

	ricInstance, err := NewRIC(loggerInstance, configuration)
	if err != nil {
		return errors.Wrap(err, "Failed to create runtime interface client")
	}

	return ricInstance.Start(cmd.Context())
}
