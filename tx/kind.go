package tx

import (
	"fmt"

	"github.com/bitfsorg/libwit-go/network"
)

// Kind tags a payload variant. The set is closed.
type Kind int

const (
	KindDataRequest Kind = iota + 1
	KindValueTransfer
	KindStakeWithdrawal
)

var kindNames = map[Kind]string{
	KindDataRequest:     "DataRequest",
	KindValueTransfer:   "ValueTransfer",
	KindStakeWithdrawal: "Unstake",
}

// String returns the node's tag for the kind, also used as receipt type.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a tag back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// priorityPrefix is the fee table key prefix used to price a kind.
func (k Kind) priorityPrefix() string {
	if k == KindDataRequest {
		return network.PrefixDataRequest
	}
	// Withdrawals are priced off the value-transfer table until the node
	// publishes a dedicated one.
	return network.PrefixValueTransfer
}
