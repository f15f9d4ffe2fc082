package utxo

import (
	"sort"
	"sync"
	"time"

	"github.com/bitfsorg/libwit-go/wit"
)

// Pool is the set of outputs held by one address, keyed by output pointer.
// Consumed outputs stay reserved until they are added back or the node stops
// listing them, so a reload never resurrects them. It is safe for concurrent
// use.
type Pool struct {
	owner string

	mu       sync.RWMutex
	entries  map[wit.OutputPointer]wit.Utxo
	reserved map[wit.OutputPointer]struct{}
}

// NewPool creates an empty pool accepting only outputs owned by owner.
func NewPool(owner string) *Pool {
	return &Pool{
		owner:    owner,
		entries:  make(map[wit.OutputPointer]wit.Utxo),
		reserved: make(map[wit.OutputPointer]struct{}),
	}
}

// Owner returns the address whose outputs the pool accepts.
func (p *Pool) Owner() string {
	return p.owner
}

// Add inserts the owned outputs not already present, releasing any
// reservation on them. Outputs owned by another address, or whose pointer is
// already held, are returned as excluded.
func (p *Pool) Add(utxos ...wit.Utxo) (included, excluded []wit.Utxo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(utxos, false)
}

// add inserts utxos; with skipReserved, reserved pointers are excluded
// instead of released. Callers hold p.mu.
func (p *Pool) add(utxos []wit.Utxo, skipReserved bool) (included, excluded []wit.Utxo) {
	for _, u := range utxos {
		if u.Signer != p.owner {
			excluded = append(excluded, u)
			continue
		}
		if _, ok := p.entries[u.OutputPointer]; ok {
			excluded = append(excluded, u)
			continue
		}
		if _, ok := p.reserved[u.OutputPointer]; ok {
			if skipReserved {
				excluded = append(excluded, u)
				continue
			}
			delete(p.reserved, u.OutputPointer)
		}
		p.entries[u.OutputPointer] = u
		included = append(included, u)
	}
	return included, excluded
}

// Consume removes the given outputs by pointer and reserves them. Outputs
// the pool did not hold are returned unchanged.
func (p *Pool) Consume(utxos ...wit.Utxo) (unmatched []wit.Utxo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range utxos {
		if _, ok := p.entries[u.OutputPointer]; !ok {
			unmatched = append(unmatched, u)
			continue
		}
		delete(p.entries, u.OutputPointer)
		p.reserved[u.OutputPointer] = struct{}{}
	}
	return unmatched
}

// Replace discards the current contents and loads utxos, the node's view of
// the owner's outputs. Reserved outputs in that view are excluded. A
// reservation the view no longer lists has been spent and is dropped.
func (p *Pool) Replace(utxos []wit.Utxo) (included, excluded []wit.Utxo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	listed := make(map[wit.OutputPointer]bool, len(utxos))
	for _, u := range utxos {
		listed[u.OutputPointer] = true
	}
	for op := range p.reserved {
		if !listed[op] {
			delete(p.reserved, op)
		}
	}
	p.entries = make(map[wit.OutputPointer]wit.Utxo, len(utxos))
	return p.add(utxos, true)
}

// Reserved reports whether op was consumed and not yet returned.
func (p *Pool) Reserved(op wit.OutputPointer) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.reserved[op]
	return ok
}

// Has reports whether the pool holds op.
func (p *Pool) Has(op wit.OutputPointer) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[op]
	return ok
}

// Len returns the number of held outputs.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Snapshot returns the held outputs ordered by pointer.
func (p *Pool) Snapshot() []wit.Utxo {
	p.mu.RLock()
	out := make([]wit.Utxo, 0, len(p.entries))
	for _, u := range p.entries {
		out = append(out, u)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].OutputPointer.Less(out[j].OutputPointer)
	})
	return out
}

// Info summarizes a pool at a point in time.
type Info struct {
	Expendable wit.Nanowits `json:"expendable"`
	Locked     wit.Nanowits `json:"locked"`
	Size       int          `json:"size"`
	Timelock   int64        `json:"timelock"` // nearest future unlock, 0 if nothing is locked
}

// CacheInfo aggregates the pool contents as seen at now.
func (p *Pool) CacheInfo(now time.Time) Info {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := Info{Size: len(p.entries)}
	for _, u := range p.entries {
		switch {
		case u.Locked(now):
			info.Locked += u.Value
			if info.Timelock == 0 || u.Timelock < info.Timelock {
				info.Timelock = u.Timelock
			}
		case u.Spendable(now):
			info.Expendable += u.Value
		}
	}
	return info
}
