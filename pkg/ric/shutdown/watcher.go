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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nuclio/logger"
)

// Watcher turns termination signals into the shutdown flag. The first signal
// raises the flag, the second cancels the process context
type Watcher struct {
	logger     logger.Logger
	flag       *Flag
	signalChan chan os.Signal
	cancel     context.CancelFunc
}

func NewWatcher(parentLogger logger.Logger, flag *Flag) *Watcher {
	return &Watcher{
		logger:     parentLogger.GetChild("shutdown"),
		flag:       flag,
		signalChan: make(chan os.Signal, 2),
	}
}

// Start subscribes to SIGTERM / SIGINT and returns a context which is cancelled
// on the second signal or when the parent is done
func (w *Watcher) Start(parentCtx context.Context) context.Context {
	var watchCtx context.Context

	watchCtx, w.cancel = context.WithCancel(parentCtx)

	signal.Notify(w.signalChan, syscall.SIGTERM, syscall.SIGINT)

	go w.watch(watchCtx)

	return watchCtx
}

// Stop unsubscribes from signals and cancels the context returned by Start
func (w *Watcher) Stop() {
	signal.Stop(w.signalChan)

	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) watch(watchCtx context.Context) {
	for {
		select {
		case <-watchCtx.Done():
			return

		case receivedSignal := <-w.signalChan:
			if w.flag.Set() {
				w.logger.InfoWith("Container termination signal received", "signal", receivedSignal.String())
				continue
			}

			w.logger.WarnWith("Termination signal received again, cancelling", "signal", receivedSignal.String())
			w.cancel()

			return
		}
	}
}
