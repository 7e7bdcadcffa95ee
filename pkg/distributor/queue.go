package distributor

import (
	"github.com/cuemby/lookout/pkg/event"
	"github.com/cuemby/lookout/pkg/metrics"
)

// task is one pending delivery of an event to a connection
type task struct {
	conn *connState
	ev   event.Event
}

// Start launches the delivery worker
func (d *Distributor) Start() {
	d.startOnce.Do(func() {
		metrics.RegisterComponent(metrics.ComponentDistributor, true, "")
		go d.run()
	})
}

// Stop stops the delivery worker. Queued tasks are discarded and a pending
// rate limit wait is abandoned.
func (d *Distributor) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		started := true
		d.startOnce.Do(func() { started = false })
		if started {
			<-d.done
		}
		metrics.UpdateComponent(metrics.ComponentDistributor, false, "stopped")
	})
}

// QueueLen returns the number of queued delivery tasks
func (d *Distributor) QueueLen() int {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return len(d.queue)
}

func (d *Distributor) enqueue(tasks ...task) {
	if len(tasks) == 0 {
		return
	}
	d.queueMu.Lock()
	d.queue = append(d.queue, tasks...)
	d.queueMu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *Distributor) run() {
	defer close(d.done)
	d.logger.Info().Msg("Delivery worker started")

	for {
		t, ok := d.next()
		if !ok {
			d.logger.Info().Msg("Delivery worker stopped")
			return
		}
		d.process(t)
		d.moveToBack(t.conn)
	}
}

// next pops the head of the queue, blocking while it is empty
func (d *Distributor) next() (task, bool) {
	for {
		d.queueMu.Lock()
		if len(d.queue) > 0 {
			t := d.queue[0]
			d.queue[0] = task{}
			d.queue = d.queue[1:]
			d.queueMu.Unlock()
			return t, true
		}
		d.queueMu.Unlock()

		select {
		case <-d.notify:
		case <-d.ctx.Done():
			return task{}, false
		}
	}
}

// moveToBack moves every queued task of cs behind the tasks of other
// connections, keeping relative order on both sides
func (d *Distributor) moveToBack(cs *connState) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()

	var same []task
	others := make([]task, 0, len(d.queue))
	for _, t := range d.queue {
		if t.conn == cs {
			same = append(same, t)
		} else {
			others = append(others, t)
		}
	}
	if len(same) == 0 {
		return
	}
	d.queue = append(others, same...)
}

// process delivers one task. Failures are logged and never stop the worker.
func (d *Distributor) process(t task) {
	cs, ev := t.conn, t.ev

	if !d.isOpen(cs) {
		metrics.DeliveriesTotal.WithLabelValues("skipped").Inc()
		return
	}

	if ev.IsError() {
		cs.mu.Lock()
		last, seen := cs.lastErrorAt[ev.ID]
		cs.mu.Unlock()
		if seen && ev.CreatedAt.Before(last) {
			cs.logger.Debug().Str("event_id", ev.ID).Msg("Skipping error older than last delivered error")
			metrics.DeliveriesTotal.WithLabelValues("skipped").Inc()
			return
		}
	}

	if cs.limiter != nil {
		if err := cs.limiter.Wait(d.ctx); err != nil {
			return
		}
	}

	ev = ev.WithApplicationID(d.cfg.ApplicationID)
	payload, err := d.cfg.Encoder(ev)
	if err != nil {
		cs.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Unable to encode event")
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}

	cs.logger.Debug().Str("event_id", ev.ID).Msg("Sending event")
	if err := cs.sub.Conn.Send(payload); err != nil {
		cs.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Unable to send event")
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}

	if ev.IsError() {
		cs.mu.Lock()
		if ev.CreatedAt.After(cs.lastErrorAt[ev.ID]) {
			cs.lastErrorAt[ev.ID] = ev.CreatedAt
		}
		cs.mu.Unlock()
	}
	metrics.DeliveriesTotal.WithLabelValues("sent").Inc()
}
