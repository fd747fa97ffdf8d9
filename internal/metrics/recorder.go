package metrics

import (
	"time"

	"github.com/skobelev/warden/internal/events"
)

// Recorder keeps the Prometheus metrics in sync with bus events.
type Recorder struct {
	unsubscribe []func()
	done        chan struct{}
}

// NewRecorder subscribes to worker and deployment events.
func NewRecorder(bus *events.Bus) *Recorder {
	r := &Recorder{}

	r.unsubscribe = append(r.unsubscribe,
		bus.Subscribe(func(ev events.WorkerStateChangedEvent) {
			SetWorkerState(ev.NewState)
		}),
		bus.Subscribe(func(ev events.WorkerCrashedEvent) {
			if ev.WillRestart {
				IncWorkerRestarts()
			} else {
				IncWorkerCrashLoops()
			}
		}),
		bus.Subscribe(func(ev events.DeploymentFinishedEvent) {
			IncDeployments(ev.Outcome)
		}),
	)
	return r
}

// WatchUptime polls uptime (in seconds) every interval and keeps the
// uptime gauge current until Close is called.
func (r *Recorder) WatchUptime(uptime func() float64, interval time.Duration) {
	if r.done != nil {
		return
	}
	r.done = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				SetWorkerUptime(uptime())
			}
		}
	}()
}

// Close detaches the recorder from the bus and stops the uptime poller.
func (r *Recorder) Close() {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
	r.unsubscribe = nil
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}
