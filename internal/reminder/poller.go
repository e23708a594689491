package reminder

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quark-run/quark/internal/actorutil"
	"github.com/quark-run/quark/internal/host"
)

// DefaultLeeway bounds how far into the future SelectDue looks, and (halved)
// sets the poll interval, per the poller cadence convention shared with
// cluster/membership's Watcher.
const DefaultLeeway = 2 * time.Second

// OnReminderMethod is the well-known method name Poller dispatches to.
const OnReminderMethod = "OnReminder"

// ReminderPayload is the argument Poller delivers to OnReminderMethod.
type ReminderPayload struct {
	Name    string
	Payload []byte
}

// Dispatcher is the narrow host.Host surface Poller needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv host.Invocation) (host.InvocationResult, error)
}

// Poller periodically selects due reminders and delivers them by
// dispatching OnReminderMethod into the owning actor, re-activating it if
// dormant. It uses robfig/cron only for its fixed-delay scheduling
// primitive (cron.ConstantDelaySchedule) — reminders are interval-based,
// not cron-expression based, so the expression parser is never exercised.
type Poller struct {
	queries    *Queries
	dispatcher Dispatcher
	leeway     time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewPoller constructs a Poller. leeway <= 0 uses DefaultLeeway.
func NewPoller(queries *Queries, dispatcher Dispatcher, leeway time.Duration) *Poller {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}

	return &Poller{
		queries:    queries,
		dispatcher: dispatcher,
		leeway:     leeway,
		cron:       cron.New(),
	}
}

// Start begins polling on a leeway/2 cadence until Stop is called.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	schedule := cron.ConstantDelaySchedule{Delay: p.leeway / 2}
	p.cron.Schedule(schedule, cron.FuncJob(p.pollOnce))
	p.cron.Start()
	p.running = true
}

// Stop halts polling and waits for any in-flight poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	<-p.cron.Stop().Done()
	p.running = false
}

// pollOnce runs one selection-and-delivery pass.
func (p *Poller) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	due, err := p.queries.SelectDue(ctx, now, p.leeway)
	if err != nil {
		log.ErrorS(ctx, "failed to select due reminders", err)
		return
	}

	// Fan out delivery across the batch rather than firing one reminder
	// at a time: a dormant actor's reactivation latency for one reminder
	// shouldn't delay delivery to the rest of this poll tick's batch.
	actorutil.ParallelDo(ctx, due, func(ctx context.Context, r Reminder) struct{} {
		p.fire(ctx, r, now)
		return struct{}{}
	})
}

// fire delivers one reminder and advances (or deletes) its schedule entry.
// Delivery happens at-least-once: if dispatch fails the entry is left as-is
// so the next poll retries it.
func (p *Poller) fire(ctx context.Context, r Reminder, firedAt time.Time) {
	argsBlob, err := encodeReminderArgs(r)
	if err != nil {
		log.ErrorS(ctx, "failed to encode reminder payload", err,
			"key", r.Key.String(), "name", r.Name)
		return
	}

	_, err = p.dispatcher.Dispatch(ctx, host.Invocation{
		Key:    r.Key,
		Method: OnReminderMethod,
		Args:   argsBlob,
	})
	if err != nil {
		log.WarnS(ctx, "reminder delivery failed, will retry next poll",
			"key", r.Key.String(), "name", r.Name, "err", err)
		return
	}

	if err := p.queries.AdvanceOrDelete(ctx, r.Key, r.Name, r.Period, firedAt); err != nil {
		log.ErrorS(ctx, "failed to advance reminder schedule", err,
			"key", r.Key.String(), "name", r.Name)
	}
}

func encodeReminderArgs(r Reminder) ([]byte, error) {
	var buf bytes.Buffer
	payload := ReminderPayload{Name: r.Name, Payload: r.Payload}
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
