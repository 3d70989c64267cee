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
	"sync/atomic"
)

// ConnectionState is the state of a connection-oriented transport
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	FallenBack
)

func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case FallenBack:
		return "fallenBack"
	default:
		return "unknown"
	}
}

// AtomicConnectionState is written by a single control loop and may be read
// from any goroutine
type AtomicConnectionState struct {
	value atomic.Int32
}

func (acs *AtomicConnectionState) Load() ConnectionState {
	return ConnectionState(acs.value.Load())
}

func (acs *AtomicConnectionState) Store(state ConnectionState) {
	acs.value.Store(int32(state))
}
