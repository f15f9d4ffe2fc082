package utxo

import (
	"fmt"
	"sort"
	"time"

	"github.com/bitfsorg/libwit-go/wit"
)

// Strategy decides the order in which candidates are picked.
type Strategy int

const (
	// SlimFit picks the smallest single output covering the target, falling
	// back to BigFirst when no single output is large enough.
	SlimFit Strategy = iota

	// BigFirst picks the largest outputs first, minimizing the input count.
	BigFirst

	// SmallFirst picks the smallest outputs first, consolidating dust.
	SmallFirst
)

var strategyNames = map[Strategy]string{
	SlimFit:    "slim-fit",
	BigFirst:   "big-first",
	SmallFirst: "small-first",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a strategy name to its value.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Select chooses a subset of candidates whose total value covers target.
// Immature outputs and outputs locked past now are never chosen. The result
// is deterministic for a given input set: equal values are ordered by output
// pointer. Picks made redundant by later, larger picks are dropped.
// Candidates are not modified.
func Select(candidates []wit.Utxo, target wit.Nanowits, strategy Strategy, now time.Time) ([]wit.Utxo, error) {
	if target == 0 {
		return nil, nil
	}

	spendable := make([]wit.Utxo, 0, len(candidates))
	var total wit.Nanowits
	for _, u := range candidates {
		if !u.Spendable(now) {
			continue
		}
		spendable = append(spendable, u)
		total += u.Value
	}
	if total < target {
		return nil, &InsufficientFundsError{Need: target, Have: total}
	}

	switch strategy {
	case SmallFirst:
		sortByValue(spendable, true)
	case SlimFit:
		sortByValue(spendable, true)
		for _, u := range spendable {
			if u.Value >= target {
				return []wit.Utxo{u}, nil
			}
		}
		sortByValue(spendable, false)
	default:
		sortByValue(spendable, false)
	}

	var (
		picked []wit.Utxo
		sum    wit.Nanowits
	)
	for _, u := range spendable {
		picked = append(picked, u)
		sum += u.Value
		if sum >= target {
			break
		}
	}
	return trim(picked, sum, target), nil
}

func sortByValue(utxos []wit.Utxo, ascending bool) {
	sort.SliceStable(utxos, func(i, j int) bool {
		a, b := utxos[i], utxos[j]
		if a.Value != b.Value {
			if ascending {
				return a.Value < b.Value
			}
			return a.Value > b.Value
		}
		return a.OutputPointer.Less(b.OutputPointer)
	})
}

// trim drops the smallest picks while the remainder still covers target.
func trim(picked []wit.Utxo, sum, target wit.Nanowits) []wit.Utxo {
	if len(picked) < 2 {
		return picked
	}
	order := make([]int, len(picked))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return picked[order[i]].Value < picked[order[j]].Value
	})

	drop := make(map[int]bool)
	for _, i := range order {
		if sum-picked[i].Value < target {
			break
		}
		sum -= picked[i].Value
		drop[i] = true
	}
	if len(drop) == 0 {
		return picked
	}
	out := make([]wit.Utxo, 0, len(picked)-len(drop))
	for i, u := range picked {
		if !drop[i] {
			out = append(out, u)
		}
	}
	return out
}
