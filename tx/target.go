package tx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bitfsorg/libwit-go/network"
	"github.com/bitfsorg/libwit-go/wit"
)

// FeeSpec is either a priority tier, priced from the node's fee table, or an
// explicit amount. The zero value means "unspecified".
type FeeSpec struct {
	Priority network.Priority
	Amount   wit.Nanowits
}

// Priority returns a FeeSpec priced at tier p.
func Priority(p network.Priority) FeeSpec { return FeeSpec{Priority: p} }

// Amount returns a FeeSpec paying exactly n.
func Amount(n wit.Nanowits) FeeSpec { return FeeSpec{Amount: n} }

// IsZero reports whether no fee was specified.
func (f FeeSpec) IsZero() bool { return f.Priority == "" && f.Amount == 0 }

// Explicit reports whether f is a fixed amount.
func (f FeeSpec) Explicit() bool { return f.Priority == "" && f.Amount > 0 }

func (f FeeSpec) validate() error {
	switch {
	case f.Priority != "" && f.Amount != 0:
		return fmt.Errorf("%w: fee has both priority and amount", ErrInvalidTarget)
	case f.Priority != "" && !f.Priority.Valid():
		return fmt.Errorf("%w: unknown fee priority %q", ErrInvalidTarget, f.Priority)
	case f.IsZero():
		return fmt.Errorf("%w: fee must be positive", ErrInvalidTarget)
	}
	return nil
}

func (f FeeSpec) String() string {
	if f.Priority != "" {
		return string(f.Priority)
	}
	return strconv.FormatUint(uint64(f.Amount), 10)
}

// MarshalJSON renders a priority as a string and an amount as a number.
func (f FeeSpec) MarshalJSON() ([]byte, error) {
	if f.Priority != "" {
		return json.Marshal(string(f.Priority))
	}
	return json.Marshal(uint64(f.Amount))
}

func (f *FeeSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			*f = Amount(wit.Nanowits(n))
			return nil
		}
		*f = Priority(network.Priority(s))
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: fees: %v", ErrInvalidTarget, err)
	}
	*f = Amount(wit.Nanowits(n))
	return nil
}

// Target is a validated spend intent for one payload kind.
type Target interface {
	Kind() Kind
	isTarget()
}

// Witnesses is either a committee size or an explicit weighted committee.
// Only the size form is currently supported.
type Witnesses struct {
	Count     uint16
	Committee map[string]wit.Nanowits
}

func (w Witnesses) MarshalJSON() ([]byte, error) {
	if len(w.Committee) > 0 {
		return json.Marshal(w.Committee)
	}
	return json.Marshal(w.Count)
}

func (w *Witnesses) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, &w.Committee)
	}
	if err := json.Unmarshal(data, &w.Count); err != nil {
		return fmt.Errorf("%w: witnesses: %v", ErrInvalidTarget, err)
	}
	return nil
}

// TemplateArgs holds the arguments of a parameterized request, one list per
// source. A bare string or flat list are accepted on input.
type TemplateArgs [][]string

func (a *TemplateArgs) UnmarshalJSON(data []byte) error {
	var nested [][]string
	if err := json.Unmarshal(data, &nested); err == nil {
		*a = nested
		return nil
	}
	var flat []string
	if err := json.Unmarshal(data, &flat); err == nil {
		*a = TemplateArgs{flat}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("%w: args: %v", ErrInvalidTarget, err)
	}
	*a = TemplateArgs{{single}}
	return nil
}

// DataRequestTarget asks a witness committee to resolve a Radon request.
type DataRequestTarget struct {
	Fees          FeeSpec      `json:"fees"`
	Witnesses     Witnesses    `json:"witnesses"`
	MaxResultSize uint64       `json:"maxResultSize,omitempty"`
	Args          TemplateArgs `json:"args,omitempty"`
}

func (DataRequestTarget) Kind() Kind { return KindDataRequest }
func (DataRequestTarget) isTarget()  {}

// ValueTransferTarget pays one or more outputs.
type ValueTransferTarget struct {
	Fees    FeeSpec                   `json:"fees"`
	Outputs []wit.ValueTransferOutput `json:"outputs"`
}

func (ValueTransferTarget) Kind() Kind { return KindValueTransfer }
func (ValueTransferTarget) isTarget()  {}

// StakeWithdrawalTarget withdraws Value from the stake held on Validator.
// A nil Nonce is resolved from the node at covering time.
type StakeWithdrawalTarget struct {
	Fees      FeeSpec      `json:"fees"`
	Value     wit.Nanowits `json:"value"`
	Validator string       `json:"validator"`
	Nonce     *uint64      `json:"nonce,omitempty"`
}

func (StakeWithdrawalTarget) Kind() Kind { return KindStakeWithdrawal }
func (StakeWithdrawalTarget) isTarget()  {}

var targetFields = map[Kind][]string{
	KindDataRequest:     {"args", "fees", "maxResultSize", "witnesses"},
	KindValueTransfer:   {"fees", "outputs"},
	KindStakeWithdrawal: {"fees", "nonce", "validator", "value"},
}

// DecodeTarget decodes a JSON spend intent for kind. Keys not recognized for
// the kind are dropped before decoding. The result is not validated.
func DecodeTarget(kind Kind, data []byte) (Target, error) {
	allowed, ok := targetFields[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	clean := make(map[string]json.RawMessage, len(allowed))
	for _, key := range allowed {
		if v, ok := raw[key]; ok {
			clean[key] = v
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("%w: no recognized fields", ErrInvalidTarget)
	}
	filtered, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}

	var target Target
	switch kind {
	case KindDataRequest:
		var t DataRequestTarget
		err = json.Unmarshal(filtered, &t)
		target = t
	case KindValueTransfer:
		var t ValueTransferTarget
		err = json.Unmarshal(filtered, &t)
		target = t
	case KindStakeWithdrawal:
		var t StakeWithdrawalTarget
		err = json.Unmarshal(filtered, &t)
		target = t
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return target, nil
}
