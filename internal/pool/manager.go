package pool

import (
	"context"
	"encoding/json"

	"github.com/kpeterse/crew/internal/deadletter"
	"github.com/kpeterse/crew/internal/work"
)

// deliver is the delivery manager loop: the single reconciliation point
// between raw results and waiting callers. It blocks unboundedly on the
// output queue; shutdown injects one sentinel response so the wait can
// observe the signal. The manager always runs in this process, even when
// the workers do not, because a future cannot cross an isolation boundary.
func (p *Pool) deliver() {
	defer close(p.managerDone)

	p.logger.Info("delivery manager starting", "pool_id", p.id)

	for {
		resp, ok := p.out.Get(0)
		if !ok {
			continue
		}

		if resp.Sentinel {
			if p.stop.IsSet() {
				p.logger.Info("delivery manager shutting down", "pool_id", p.id)
				return
			}
			continue
		}

		if !resp.Tracked {
			// Fire-and-forget outcome; there is nothing to resolve.
			droppedResponsesTotal.WithLabelValues(reasonUntracked).Inc()
			p.recordDrop(resp, reasonUntracked)
			continue
		}

		fut, ok := p.pending.take(resp.WorkID)
		if !ok {
			// Cannot occur while tokens are unique, but a duplicate must
			// degrade to a logged drop, not a stall.
			p.logger.Warn("response without pending future", "pool_id", p.id, "work_id", uint64(resp.WorkID))
			droppedResponsesTotal.WithLabelValues(reasonUnmatched).Inc()
			p.recordDrop(resp, reasonUnmatched)
			continue
		}
		pendingFutures.Dec()

		if resp.IsFailure {
			err := resp.Err
			if err == nil {
				err = &work.RemoteError{Message: "unknown failure"}
			}
			if !fut.resolve(nil, err) {
				p.logger.Warn("future already resolved", "pool_id", p.id, "work_id", uint64(resp.WorkID))
				continue
			}
			deliveriesTotal.WithLabelValues(statusFailed).Inc()
			continue
		}

		if !fut.resolve(resp.Payload, nil) {
			p.logger.Warn("future already resolved", "pool_id", p.id, "work_id", uint64(resp.WorkID))
			continue
		}
		deliveriesTotal.WithLabelValues(statusOK).Inc()
	}
}

// recordDrop persists a discarded response to the dead-letter store, when
// one is configured.
func (p *Pool) recordDrop(resp work.Response, reason string) {
	if p.deadLetters == nil {
		return
	}

	entry := &deadletter.Entry{
		WorkID:    uint64(resp.WorkID),
		Tracked:   resp.Tracked,
		IsFailure: resp.IsFailure,
		Reason:    reason,
	}
	if resp.Err != nil {
		entry.Failure = resp.Err.Error()
	}
	if resp.Payload != nil {
		if b, err := json.Marshal(resp.Payload); err == nil {
			entry.Payload = b
		}
	}

	if err := p.deadLetters.Record(context.Background(), entry); err != nil {
		p.logger.Error("record dead letter", "pool_id", p.id, "error", err)
	}
}
