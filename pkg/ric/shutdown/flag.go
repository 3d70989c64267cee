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

package shutdown

import (
	"sync"
	"sync/atomic"
)

// Flag is set once when termination is requested and is never reset
type Flag struct {
	isSet    atomic.Bool
	setOnce  sync.Once
	doneChan chan struct{}
}

func NewFlag() *Flag {
	return &Flag{
		doneChan: make(chan struct{}),
	}
}

// Set raises the flag. Returns true only for the call that raised it
func (f *Flag) Set() bool {
	raised := false

	f.setOnce.Do(func() {
		f.isSet.Store(true)
		close(f.doneChan)
		raised = true
	})

	return raised
}

// IsSet returns whether termination was requested
func (f *Flag) IsSet() bool {
	return f.isSet.Load()
}

// Done is closed when the flag is raised, so blocking waits can observe it
func (f *Flag) Done() <-chan struct{} {
	return f.doneChan
}
