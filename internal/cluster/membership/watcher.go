package membership

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultPollDivisor sets the watcher's poll cadence to heartbeat/3, the
// value recommended by the component design so that a single missed scan
// doesn't immediately flip a silo to Suspect.
const DefaultPollDivisor = 3

// Watcher periodically scans a Store, derives each silo's liveness Status,
// and emits SiloJoined/SiloLeft events as silos transition between being
// observed and not observed.
type Watcher struct {
	store        Store
	pollInterval time.Duration

	events chan Event

	mu        sync.Mutex
	known     map[string]Status
	lastSeen  map[string]SiloInfo
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWatcher constructs a Watcher over store, polling at heartbeatTTL/3.
func NewWatcher(store Store, heartbeatTTL time.Duration) *Watcher {
	return &Watcher{
		store:        store,
		pollInterval: heartbeatTTL / DefaultPollDivisor,
		events:       make(chan Event, 64),
		known:        make(map[string]Status),
		lastSeen:     make(map[string]SiloInfo),
		done:         make(chan struct{}),
	}
}

// Events returns the channel on which membership transitions are delivered.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins the polling loop in a background goroutine. It returns
// immediately; call Stop to terminate the loop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Run one pass immediately so a freshly started watcher doesn't wait
	// a full interval before reflecting current membership.
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	silos, err := w.store.Scan(ctx)
	if err != nil {
		log.WarnS(ctx, "Membership scan failed", "err", err)
		return
	}

	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]struct{}, len(silos))
	for _, silo := range silos {
		seen[silo.SiloID] = struct{}{}
		status := silo.StatusAt(now)
		prev, known := w.known[silo.SiloID]

		w.lastSeen[silo.SiloID] = silo
		w.known[silo.SiloID] = status

		switch {
		case !known && status == StatusActive:
			w.emit(Event{Kind: SiloJoined, Silo: silo})
		case known && prev != StatusGone && status == StatusGone:
			w.emit(Event{Kind: SiloLeft, Silo: silo})
			log.InfoS(ctx, "Silo marked gone",
				"silo_id", silo.SiloID,
				"since_heartbeat", humanize.Time(silo.LastHeartbeat))
		case known && prev == StatusGone && status == StatusActive:
			w.emit(Event{Kind: SiloJoined, Silo: silo})
		}
	}

	// Any silo we'd previously seen but that's now absent entirely from
	// the store (reaped) is treated the same as a Gone transition.
	for id, prev := range w.known {
		if _, ok := seen[id]; ok {
			continue
		}
		if prev != StatusGone {
			w.emit(Event{Kind: SiloLeft, Silo: w.lastSeen[id]})
		}
		delete(w.known, id)
		delete(w.lastSeen, id)
	}
}

// emit is called with w.mu held; it never blocks indefinitely since events
// is buffered and the oldest event is dropped rather than stalling the poll
// loop if a consumer falls behind.
func (w *Watcher) emit(evt Event) {
	select {
	case w.events <- evt:
	default:
		log.WarnS(context.Background(),
			"Membership event buffer full, dropping oldest",
			"silo_id", evt.Silo.SiloID)
		select {
		case <-w.events:
		default:
		}
		select {
		case w.events <- evt:
		default:
		}
	}
}
