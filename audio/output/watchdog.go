package output

import (
	"log"
	"sync"
	"time"
)

// Watchdog polls Host.DefaultOutputDevice().Name() once per second and
// invokes onChanged when the observed default device's name differs from
// the last poll. portaudio delivers no native default-device-change
// notification on any platform, so the watchdog is always enabled. Only
// active while the default device is selected (no device pinned).
type Watchdog struct {
	host      Host
	onChanged func()
	interval  time.Duration

	mu     sync.Mutex
	pinned bool
	stop   chan struct{}
}

func NewWatchdog(host Host, onChanged func()) *Watchdog {
	return &Watchdog{host: host, onChanged: onChanged, interval: time.Second, stop: make(chan struct{})}
}

// SetPinned controls whether the watchdog polls: pinned=true (an explicit
// device name is selected) suspends polling.
func (w *Watchdog) SetPinned(pinned bool) {
	w.mu.Lock()
	w.pinned = pinned
	w.mu.Unlock()
}

func (w *Watchdog) Start() { go w.run() }

func (w *Watchdog) Stop() { close(w.stop) }

func (w *Watchdog) run() {
	current := w.currentDefaultName()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			current = w.poll(current)
		}
	}
}

// poll performs one detection pass: compares the observed default device
// name against prev and fires onChanged on a difference. While pinned the
// pass is skipped entirely, so prev is carried forward unread.
func (w *Watchdog) poll(prev string) string {
	w.mu.Lock()
	pinned := w.pinned
	w.mu.Unlock()
	if pinned {
		return prev
	}
	name := w.currentDefaultName()
	if name != prev {
		log.Printf("output: default device changed %q -> %q", prev, name)
		if w.onChanged != nil {
			w.onChanged()
		}
	}
	return name
}

func (w *Watchdog) currentDefaultName() string {
	dev, ok := w.host.DefaultOutputDevice()
	if !ok {
		return ""
	}
	name, err := dev.Name()
	if err != nil {
		return ""
	}
	return name
}
