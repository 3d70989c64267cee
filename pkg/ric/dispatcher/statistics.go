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

package dispatcher

import (
	"sync/atomic"
)

// Statistics holds counters updated atomically on every dispatch
type Statistics struct {
	SuccessCount              uint64
	FailureCount              uint64
	PanicCount                uint64
	DurationMilliSecondsSum   uint64
	DurationMilliSecondsCount uint64
}

// Snapshot returns a consistent-enough copy for gathering
func (s *Statistics) Snapshot() Statistics {
	return Statistics{
		SuccessCount:              atomic.LoadUint64(&s.SuccessCount),
		FailureCount:              atomic.LoadUint64(&s.FailureCount),
		PanicCount:                atomic.LoadUint64(&s.PanicCount),
		DurationMilliSecondsSum:   atomic.LoadUint64(&s.DurationMilliSecondsSum),
		DurationMilliSecondsCount: atomic.LoadUint64(&s.DurationMilliSecondsCount),
	}
}

// DiffFrom returns the counts accumulated since prev
func (s *Statistics) DiffFrom(prev *Statistics) Statistics {
	return Statistics{
		SuccessCount:              s.SuccessCount - prev.SuccessCount,
		FailureCount:              s.FailureCount - prev.FailureCount,
		PanicCount:                s.PanicCount - prev.PanicCount,
		DurationMilliSecondsSum:   s.DurationMilliSecondsSum - prev.DurationMilliSecondsSum,
		DurationMilliSecondsCount: s.DurationMilliSecondsCount - prev.DurationMilliSecondsCount,
	}
}
