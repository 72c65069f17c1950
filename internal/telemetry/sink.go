// Package telemetry carries the cache's observability events to an
// external collector. Events are advisory: correctness of cache
// operations never depends on them being delivered.
package telemetry

import "context"

// Sink receives instance-tagged cache events. Implementations may block;
// wrap them in a Dispatcher to keep them off the hot path.
type Sink interface {
	// OnAccess reports a lookup outcome.
	OnAccess(instance string, hit bool)

	// OnSweep reports a reaper pass and how many entries it purged.
	// Count only; keys never leak into logs or metrics.
	OnSweep(instance string, purged int)

	// OnEvict reports a capacity eviction and how many entries it removed.
	OnEvict(instance string, evicted int)
}

type eventKind uint8

const (
	eventAccess eventKind = iota
	eventSweep
	eventEvict
)

type event struct {
	kind     eventKind
	instance string
	hit      bool
	count    int
}

// Dispatcher decouples event producers from a possibly slow Sink.
// Emitting never blocks: events beyond a full buffer are dropped and
// counted, not waited on.
type Dispatcher struct {
	ctx  context.Context
	sink Sink
	ch   chan event
}

func NewDispatcher(ctx context.Context, sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	d := &Dispatcher{ctx: ctx, sink: sink, ch: make(chan event, buffer)}
	go d.loop()
	return d
}

func (d *Dispatcher) OnAccess(instance string, hit bool) {
	d.emit(event{kind: eventAccess, instance: instance, hit: hit})
}

func (d *Dispatcher) OnSweep(instance string, purged int) {
	d.emit(event{kind: eventSweep, instance: instance, count: purged})
}

func (d *Dispatcher) OnEvict(instance string, evicted int) {
	d.emit(event{kind: eventEvict, instance: instance, count: evicted})
}

func (d *Dispatcher) emit(ev event) {
	select {
	case d.ch <- ev:
	default:
		// sink is behind; dropping is the contract
	}
}

func (d *Dispatcher) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-d.ch:
			switch ev.kind {
			case eventAccess:
				d.sink.OnAccess(ev.instance, ev.hit)
			case eventSweep:
				d.sink.OnSweep(ev.instance, ev.count)
			case eventEvict:
				d.sink.OnEvict(ev.instance, ev.count)
			}
		}
	}
}
