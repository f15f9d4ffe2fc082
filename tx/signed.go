package tx

import (
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

// SignedBytes encodes p with its signatures in the node's binary form.
func SignedBytes(p Payload, sigs []wit.KeyedSignature) ([]byte, error) {
	body, err := p.Body()
	if err != nil {
		return nil, err
	}
	return MarshalSigned(body, sigs)
}

// SignedJSON renders p with its signatures tagged by kind, as
// {"<Kind>": {"body": ..., "signatures": [...]}}. Withdrawals carry a single
// "signature" instead.
func SignedJSON(p Payload, sigs []wit.KeyedSignature, humanize bool) (json.RawMessage, error) {
	body, err := p.JSON(humanize)
	if err != nil {
		return nil, err
	}
	inner := map[string]interface{}{"body": body}
	if p.MultiSig() {
		list := make([]keyedSignatureJSON, len(sigs))
		for i, sig := range sigs {
			list[i] = signatureJSON(sig)
		}
		inner["signatures"] = list
	} else {
		if len(sigs) != 1 {
			return nil, fmt.Errorf("%w: %s needs one signature, got %d", ErrInvalidWire, p.Kind(), len(sigs))
		}
		inner["signature"] = signatureJSON(sigs[0])
	}
	return json.Marshal(map[string]interface{}{p.Kind().String(): inner})
}

type keyedSignatureJSON struct {
	Signature struct {
		Secp256k1 struct {
			Der []int `json:"der"`
		} `json:"Secp256k1"`
	} `json:"signature"`
	PublicKey struct {
		Compressed uint8 `json:"compressed"`
		Bytes      []int `json:"bytes"`
	} `json:"public_key"`
}

// signatureJSON renders byte arrays as integer lists, the node's serde form.
func signatureJSON(ks wit.KeyedSignature) keyedSignatureJSON {
	var out keyedSignatureJSON
	out.Signature.Secp256k1.Der = ints(ks.Signature)
	out.PublicKey.Compressed = ks.PublicKey[0]
	out.PublicKey.Bytes = ints(ks.PublicKey[1:])
	return out
}

func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
