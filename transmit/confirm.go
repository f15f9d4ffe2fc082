package transmit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/receipt"
	"github.com/bitfsorg/libwit-go/tx"
	"github.com/bitfsorg/libwit-go/wit"
)

// ReceiptCallback observes a receipt during confirmation. It receives a copy.
type ReceiptCallback func(r *receipt.Receipt)

// ConfirmOptions tunes ConfirmTransaction.
type ConfirmOptions struct {
	// Confirmations is the block depth at which a mined transaction counts
	// as confirmed. Zero confirms on first inclusion. A receipt already
	// Mined moves to Confirmed once a later poll reports this depth; it
	// does not stay Mined until finality.
	Confirmations uint32
	// Timeout overrides the transmitter's confirmation deadline.
	Timeout time.Duration
	// OnCheckpoint fires when a mined transaction gains confirmations.
	OnCheckpoint ReceiptCallback
	// OnStatusChange fires on every status change.
	OnStatusChange ReceiptCallback
}

type pollResult struct {
	report *network.TransactionReport
	err    error
}

// ConfirmTransaction polls the node until the transaction leaves the
// relayed and mined states or the deadline passes.
//
// A settled transaction's outputs paid to the ledger become spendable and
// the block miner is recorded. A transaction dropped from the mempool hands
// its inputs back to their owners and fails with ErrMempool. Reaching the
// deadline fails with ErrTimeout carrying the last receipt.
func (t *Transmitter) ConfirmTransaction(ctx context.Context, hash wit.Hash, opts ConfirmOptions) (*receipt.Receipt, error) {
	r, ok := t.store.Get(hash)
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", receipt.ErrNotFound, hash)
	case r.Status == receipt.Signed || r.Status == receipt.Pending:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotSubmitted, hash, r.Status)
	case r.Status == receipt.Removed:
		return r, &Error{Kind: KindMempool, Hash: hash, Receipt: r}
	case r.Status.Settled():
		return r, nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.confirmWait
	}
	start := t.clock.Now()
	deadline := t.clock.TickAfter(timeout)

	tk := t.newTicker(t.pollInterval)
	tk.Resume()
	defer tk.Stop()

	// done is set once the wait is over; polls finishing later are dropped.
	var done atomic.Bool
	defer done.Store(true)

	results := make(chan pollResult, 1)
	polling := false
	poll := func() {
		polling = true
		go func() {
			pctx, cancel := context.WithTimeout(ctx, t.pollTimeout)
			defer cancel()
			report, err := t.ledger.Provider().GetTransaction(pctx, hash)
			if done.Load() {
				t.logger.Debug("late poll discarded", zap.Stringer("hash", hash))
				return
			}
			results <- pollResult{report: report, err: err}
		}()
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-deadline:
			done.Store(true)
			last, _ := t.store.Get(hash)
			t.metrics.observe(evTimeout, r.Type)
			return last, &Error{Kind: KindTimeout, Hash: hash, Elapsed: t.clock.Now().Sub(start), Receipt: last}

		case <-tk.Ticks():
			if !polling {
				poll()
			}

		case res := <-results:
			polling = false
			if done.Load() {
				continue
			}
			next, err := t.advance(hash, res, opts)
			if err != nil {
				return nil, err
			}
			if next.Status == receipt.Relayed || next.Status == receipt.Mined {
				continue
			}
			done.Store(true)
			return t.settle(ctx, next)
		}
	}
}

// advance applies one poll result to the stored receipt.
func (t *Transmitter) advance(hash wit.Hash, res pollResult, opts ConfirmOptions) (*receipt.Receipt, error) {
	var prev receipt.Status
	checkpoint := false
	next, err := t.store.Update(hash, func(r *receipt.Receipt) error {
		prev = r.Status
		checkpoint = transition(r, res, opts.Confirmations)
		if r.Status != prev {
			r.Timestamp = t.clock.Now().UnixMilli()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.remember(next)
	if res.err != nil && next.Status != receipt.Removed {
		t.logger.Debug("poll failed", zap.Stringer("hash", hash), zap.Error(res.err))
	}
	if checkpoint && opts.OnCheckpoint != nil {
		opts.OnCheckpoint(next.Clone())
	}
	if next.Status != prev {
		t.logger.Debug("status",
			zap.Stringer("hash", hash),
			zap.String("from", string(prev)),
			zap.String("to", string(next.Status)))
		if opts.OnStatusChange != nil {
			opts.OnStatusChange(next.Clone())
		}
	}
	return next, nil
}

// transition moves r according to a poll result and reports whether the
// confirmation count of a mined transaction changed.
func transition(r *receipt.Receipt, res pollResult, target uint32) (checkpoint bool) {
	r.Error = ""
	if res.err != nil {
		r.Error = res.err.Error()
		if notFound(res.err) {
			r.Status = receipt.Removed
		}
		return false
	}
	report := res.report
	if report == nil {
		return false
	}

	switch r.Status {
	case receipt.Relayed:
		if report.BlockHash.IsZero() {
			return false
		}
		bh := report.BlockHash
		r.BlockHash = &bh
		r.BlockEpoch = report.BlockEpoch
		r.BlockTimestamp = report.BlockTimestamp
		r.Confirmations = report.Confirmations
		switch {
		case report.Confirmed:
			r.Status = receipt.Finalized
		case report.Confirmations >= target:
			r.Status = receipt.Confirmed
		default:
			r.Status = receipt.Mined
		}

	case receipt.Mined:
		switch {
		case report.BlockHash.IsZero() || r.BlockHash == nil || report.BlockHash != *r.BlockHash:
			r.ClearBlock()
			r.Status = receipt.Relayed
		case report.Confirmed:
			r.Confirmations = report.Confirmations
			r.Status = receipt.Finalized
		case report.Confirmations != r.Confirmations:
			r.Confirmations = report.Confirmations
			checkpoint = true
			if r.Confirmations >= target {
				r.Status = receipt.Confirmed
			}
		}
	}
	return checkpoint
}

func notFound(err error) bool {
	return errors.Is(err, network.ErrTxNotFound) || strings.Contains(err.Error(), "not found")
}

// settle runs the side effects of a final status. Pool updates and the
// miner lookup are best effort; their failures are only logged.
func (t *Transmitter) settle(ctx context.Context, r *receipt.Receipt) (*receipt.Receipt, error) {
	if r.Status == receipt.Removed {
		t.metrics.observe(evRemoved, r.Type)
		if r.Type != tx.KindStakeWithdrawal {
			t.recoverInputs(r)
		}
		t.logger.Info("removed from mempool", zap.Stringer("hash", r.Hash))
		return r, &Error{Kind: KindMempool, Hash: r.Hash, Receipt: r}
	}

	t.metrics.observe(evConfirmed, r.Type)
	t.recoverOutputs(r)

	miner, err := t.blockMiner(ctx, r)
	if err != nil {
		t.logger.Warn("block miner lookup", zap.Stringer("hash", r.Hash), zap.Error(err))
		return r, nil
	}
	updated, err := t.store.Update(r.Hash, func(r *receipt.Receipt) error {
		r.BlockMiner = miner
		return nil
	})
	if err != nil {
		t.logger.Warn("record block miner", zap.Stringer("hash", r.Hash), zap.Error(err))
		r.BlockMiner = miner
		t.remember(r)
		return r, nil
	}
	t.remember(updated)
	t.logger.Info("settled",
		zap.Stringer("hash", r.Hash),
		zap.String("status", string(updated.Status)),
		zap.String("miner", miner))
	return updated, nil
}

// recoverInputs hands the inputs of a dropped transaction back to the
// signers that own them.
func (t *Transmitter) recoverInputs(r *receipt.Receipt) {
	if len(r.Inputs) == 0 {
		return
	}
	included, excluded := t.ledger.AddUtxos(r.Inputs...)
	t.logger.Debug("inputs recovered",
		zap.Stringer("hash", r.Hash),
		zap.Int("recovered", len(included)),
		zap.Int("skipped", len(excluded)))
}

// recoverOutputs adds the outputs paid to ledger signers as spendable utxos.
func (t *Transmitter) recoverOutputs(r *receipt.Receipt) {
	owners := make(map[string]bool)
	for _, o := range r.Outputs {
		if o.PKH != "" && t.ledger.Signer(o.PKH) != nil {
			owners[o.PKH] = true
		}
	}
	utxos := r.OwnedOutputs(owners)
	if len(utxos) == 0 {
		return
	}
	included, _ := t.ledger.AddUtxos(utxos...)
	t.logger.Debug("outputs added",
		zap.Stringer("hash", r.Hash),
		zap.Int("count", len(included)))
}

func (t *Transmitter) blockMiner(ctx context.Context, r *receipt.Receipt) (string, error) {
	if r.BlockHash == nil {
		return "", errors.New("no block hash")
	}
	block, err := t.ledger.Provider().GetBlock(ctx, *r.BlockHash)
	if err != nil {
		return "", err
	}
	return block.MinerAddress(t.ledger.Network())
}
