package tx

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

// RadonRequest is a compiled Radon script ready to embed in a data request.
type RadonRequest interface {
	// Bytecode is the protobuf encoding of the RADRequest message.
	Bytecode() []byte
	// Weight is the request's contribution to the data request weight.
	Weight() uint64
	RadHash() wit.Hash
	// JSON renders the request for the node, or for people when humanize is set.
	JSON(humanize bool) interface{}
}

// RadonTemplate produces a RadonRequest once its arguments are known.
type RadonTemplate interface {
	Build(args [][]string) (RadonRequest, error)
}

// TemplateFunc adapts a function to RadonTemplate.
type TemplateFunc func(args [][]string) (RadonRequest, error)

func (f TemplateFunc) Build(args [][]string) (RadonRequest, error) { return f(args) }

// CompiledRequest is an opaque precompiled Radon request.
type CompiledRequest struct {
	bytecode []byte
	json     json.RawMessage
	human    json.RawMessage
}

// NewCompiledRequest wraps bytecode and the node JSON for it. human is
// optional and defaults to the node JSON.
func NewCompiledRequest(bytecode []byte, nodeJSON, human json.RawMessage) (*CompiledRequest, error) {
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("%w: empty radon bytecode", ErrInvalidTarget)
	}
	if len(nodeJSON) == 0 || !json.Valid(nodeJSON) {
		return nil, fmt.Errorf("%w: radon request json", ErrInvalidTarget)
	}
	if len(human) == 0 {
		human = nodeJSON
	}
	return &CompiledRequest{
		bytecode: append([]byte(nil), bytecode...),
		json:     nodeJSON,
		human:    human,
	}, nil
}

func (r *CompiledRequest) Bytecode() []byte { return append([]byte(nil), r.bytecode...) }

// Weight is the bytecode length.
func (r *CompiledRequest) Weight() uint64 { return uint64(len(r.bytecode)) }

// RadHash is the SHA-256 of the bytecode.
func (r *CompiledRequest) RadHash() wit.Hash { return sha256.Sum256(r.bytecode) }

func (r *CompiledRequest) JSON(humanize bool) interface{} {
	if humanize {
		return r.human
	}
	return r.json
}
