package wallet

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/utxo"
	"github.com/bitfsorg/libwit-go/wit"
)

// Ledger groups signers of one network. The first signer is the default:
// it receives change and signs single-owner payloads.
type Ledger struct {
	signers []*Signer
	byAddr  map[string]*Signer
}

// NewLedger creates a Ledger over signers.
func NewLedger(signers ...*Signer) (*Ledger, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}
	l := &Ledger{byAddr: make(map[string]*Signer, len(signers))}
	net := signers[0].Network()
	for _, s := range signers {
		if s == nil {
			return nil, ErrNilKey
		}
		if s.Network() != net {
			return nil, fmt.Errorf("%w: %s on %s, expected %s", ErrNetworkMismatch, s.Address(), s.Network(), net)
		}
		if _, dup := l.byAddr[s.Address()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSigner, s.Address())
		}
		l.byAddr[s.Address()] = s
		l.signers = append(l.signers, s)
	}
	return l, nil
}

// Network returns the ledger's network.
func (l *Ledger) Network() wit.Network { return l.signers[0].Network() }

// Provider returns the default signer's provider.
func (l *Ledger) Provider() network.Provider { return l.signers[0].Provider() }

// Address returns the default signer's address.
func (l *Ledger) Address() string { return l.signers[0].Address() }

// Signers returns the signers in registration order.
func (l *Ledger) Signers() []*Signer {
	return append([]*Signer(nil), l.signers...)
}

// Signer returns the signer owning addr, the default signer for an empty
// addr, or nil if none matches.
func (l *Ledger) Signer(addr string) *Signer {
	if addr == "" {
		return l.signers[0]
	}
	return l.byAddr[addr]
}

// AddUtxos routes each output to the signer it is addressed to. Outputs of
// unknown owners, or already held, are excluded.
func (l *Ledger) AddUtxos(utxos ...wit.Utxo) (included, excluded []wit.Utxo) {
	for owner, group := range l.groupByOwner(utxos) {
		s := l.byAddr[owner]
		if s == nil {
			excluded = append(excluded, group...)
			continue
		}
		in, ex := s.AddUtxos(group...)
		included = append(included, in...)
		excluded = append(excluded, ex...)
	}
	return included, excluded
}

// ConsumeUtxos removes outputs from their owners' pools, returning those
// no signer held.
func (l *Ledger) ConsumeUtxos(utxos ...wit.Utxo) []wit.Utxo {
	var unmatched []wit.Utxo
	for owner, group := range l.groupByOwner(utxos) {
		s := l.byAddr[owner]
		if s == nil {
			unmatched = append(unmatched, group...)
			continue
		}
		unmatched = append(unmatched, s.ConsumeUtxos(group...)...)
	}
	return unmatched
}

// Utxos returns the union of every signer's pool, loading pools concurrently.
func (l *Ledger) Utxos(ctx context.Context, reload bool) ([]wit.Utxo, error) {
	pools := make([][]wit.Utxo, len(l.signers))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range l.signers {
		i, s := i, s
		g.Go(func() error {
			utxos, err := s.Utxos(gctx, reload)
			if err != nil {
				return err
			}
			pools[i] = utxos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []wit.Utxo
	for _, p := range pools {
		all = append(all, p...)
	}
	return all, nil
}

// SelectUtxos picks outputs covering value across all signers using the
// default signer's strategy. Nothing is consumed.
func (l *Ledger) SelectUtxos(ctx context.Context, value wit.Nanowits, reload bool) ([]wit.Utxo, error) {
	all, err := l.Utxos(ctx, reload)
	if err != nil {
		return nil, err
	}
	def := l.signers[0]
	return utxo.Select(all, value, def.Strategy(), def.Clock().Now())
}

// CacheInfo aggregates every signer's pool summary.
func (l *Ledger) CacheInfo() utxo.Info {
	var info utxo.Info
	for _, s := range l.signers {
		si := s.CacheInfo()
		info.Expendable += si.Expendable
		info.Locked += si.Locked
		info.Size += si.Size
		if si.Timelock != 0 && (info.Timelock == 0 || si.Timelock < info.Timelock) {
			info.Timelock = si.Timelock
		}
	}
	return info
}

// LockCovering takes every signer's covering lock in address order and
// returns the matching unlock function.
func (l *Ledger) LockCovering() (unlock func()) {
	ordered := l.Signers()
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Address() < ordered[j].Address()
	})
	for _, s := range ordered {
		s.coverMu.Lock()
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].coverMu.Unlock()
		}
	}
}

func (l *Ledger) groupByOwner(utxos []wit.Utxo) map[string][]wit.Utxo {
	groups := make(map[string][]wit.Utxo)
	for _, u := range utxos {
		groups[u.Signer] = append(groups[u.Signer], u)
	}
	return groups
}
