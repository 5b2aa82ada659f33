package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/beamscope/store"
	"github.com/hazyhaar/beamscope/workqueue"
)

// writerLoop drains the persistence queue and commits measurements in
// batches: when the pending batch reaches FlushRows, when more than
// FlushInterval has passed since the last commit, or immediately on an
// empty-queue timeout with rows pending (quiet periods must not delay
// visibility of recent measurements).
//
// On a persistence failure the writer closes and reopens its own store
// handle after a short backoff and continues; the in-flight batch is
// lost. At-most-once durability is acceptable here — duplicate
// timestamps are already no-ops at the store.
func (p *Pipeline) writerLoop(ctx context.Context) {
	st := p.connect(ctx)
	if st == nil {
		return
	}
	p.logger.Info("pipeline: persistence writer started")

	pending := make([]store.Measurement, 0, p.cfg.FlushRows)
	lastCommit := time.Now()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := st.InsertBatch(context.Background(), pending); err != nil {
			p.logger.Error("pipeline: batch commit failed, reconnecting",
				"rows_lost", len(pending), "error", err)
			p.met.StoreReconnects.Inc()
			pending = pending[:0]
			st.DB.Close()
			st = p.connect(ctx)
			return
		}
		p.met.BatchesCommitted.Inc()
		p.met.RowsWritten.Add(float64(len(pending)))
		pending = pending[:0]
		lastCommit = time.Now()
	}

	for {
		if ctx.Err() != nil {
			flush()
			if st != nil {
				st.DB.Close()
			}
			return
		}

		m, err := p.writeQ.Pop(p.cfg.PopTimeout)
		timedOut := errors.Is(err, workqueue.ErrTimeout)
		if err == nil {
			pending = append(pending, m)
		}

		if len(pending) == 0 {
			continue
		}
		if timedOut || len(pending) >= p.cfg.FlushRows || time.Since(lastCommit) > p.cfg.FlushInterval {
			flush()
			if st == nil {
				return
			}
		}
	}
}

// connect opens the store, retrying with backoff until it succeeds or
// the context is cancelled. Returns nil only on cancellation.
func (p *Pipeline) connect(ctx context.Context) *store.Store {
	for {
		st, err := p.open()
		if err == nil {
			return st
		}
		p.met.StoreReconnects.Inc()
		p.logger.Error("pipeline: store open failed", "error", err,
			"retry_in", p.cfg.ReconnectBackoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.cfg.ReconnectBackoff):
		}
	}
}
