package tx

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

const (
	// DataRequestMaxWeight is the largest data request the node accepts.
	DataRequestMaxWeight = 80_000
	// MinCollateral is the least collateral a witness may be asked to stake (20 WIT).
	MinCollateral wit.Nanowits = 20 * wit.NanowitsPerWit
	// MinConsensusPercentage is the agreement threshold every request carries.
	MinConsensusPercentage = 51
	// CollateralRatio is collateral per unit of witness reward.
	CollateralRatio = 125

	drExtraWeight     = 30
	inputWeight       = 133
	outputWeight      = 36
	commitWeight      = 400
	revealWeight      = 200
	tallyOutputWeight = 36
	minResultSize     = 100
)

// SLA is the witnessing agreement derived from a fee and a committee size.
type SLA struct {
	Witnesses              uint16
	CommitAndRevealFee     wit.Nanowits
	WitnessReward          wit.Nanowits
	Collateral             wit.Nanowits
	MinConsensusPercentage uint32
}

// DataRequestSLA derives the witnessing terms for fee and witnesses.
func DataRequestSLA(fee wit.Nanowits, witnesses uint16) SLA {
	sla := SLA{Witnesses: witnesses, MinConsensusPercentage: MinConsensusPercentage}
	if witnesses == 0 {
		return sla
	}
	w := wit.Nanowits(witnesses)
	sla.CommitAndRevealFee = fee / 3 / w
	sla.WitnessReward = w * sla.CommitAndRevealFee
	sla.Collateral = sla.WitnessReward * CollateralRatio
	return sla
}

// WitnessingValue is the value a data request funds on top of its fee:
// every witness's reward.
func WitnessingValue(fee wit.Nanowits, witnesses uint16) wit.Nanowits {
	if witnesses == 0 {
		return 0
	}
	w := wit.Nanowits(witnesses)
	return w * w * (fee / 3 / w)
}

// Burns is the total the requester gives up once the request resolves:
// the fee plus commit and reveal fees for every witness.
func Burns(fee wit.Nanowits, witnesses uint16) wit.Nanowits {
	if witnesses == 0 {
		return 0
	}
	w := wit.Nanowits(witnesses)
	return w * (fee + 2*w*(fee/3/w))
}

// DataRequest asks a witness committee to resolve a Radon request.
type DataRequest struct {
	base
	request  RadonRequest
	template RadonTemplate
	built    RadonRequest
	target   *DataRequestTarget
}

var _ Payload = (*DataRequest)(nil)

// NewDataRequest returns an empty payload for a fixed Radon request.
func NewDataRequest(req RadonRequest) *DataRequest {
	return &DataRequest{request: req}
}

// NewDataRequestTemplate returns an empty payload for a parameterized Radon
// request. Every target must carry its arguments.
func NewDataRequestTemplate(tmpl RadonTemplate) *DataRequest {
	return &DataRequest{template: tmpl}
}

func (d *DataRequest) Kind() Kind { return KindDataRequest }
func (d *DataRequest) isPayload() {}

func (d *DataRequest) Target() Target {
	if d.target == nil {
		return nil
	}
	return *d.target
}

func dataRequestTarget(t Target) (DataRequestTarget, error) {
	switch v := t.(type) {
	case DataRequestTarget:
		return v, nil
	case *DataRequestTarget:
		if v != nil {
			return *v, nil
		}
	}
	return DataRequestTarget{}, fmt.Errorf("%w: want a data request target, got %T", ErrInvalidTarget, t)
}

func (d *DataRequest) Validate(t Target) error {
	_, _, err := d.check(t)
	return err
}

// check validates t and builds the Radon request it implies.
func (d *DataRequest) check(t Target) (DataRequestTarget, RadonRequest, error) {
	target, err := dataRequestTarget(t)
	if err != nil {
		return target, nil, err
	}
	if err := target.Fees.validate(); err != nil {
		return target, nil, err
	}
	if len(target.Witnesses.Committee) > 0 {
		return target, nil, fmt.Errorf("%w: weighted witness committees", ErrUnsupported)
	}
	if target.Witnesses.Count == 0 {
		return target, nil, fmt.Errorf("%w: witnesses must be positive", ErrInvalidTarget)
	}
	if target.Fees.Explicit() {
		if sla := DataRequestSLA(target.Fees.Amount, target.Witnesses.Count); sla.Collateral < MinCollateral {
			return target, nil, fmt.Errorf("%w: %d < %d", ErrCollateralTooLow, sla.Collateral, MinCollateral)
		}
	}

	if d.template == nil {
		if len(target.Args) > 0 {
			return target, nil, fmt.Errorf("%w: args given for a fixed request", ErrInvalidTarget)
		}
		if d.request == nil {
			return target, nil, fmt.Errorf("%w: no radon request", ErrInvalidTarget)
		}
		return target, d.request, nil
	}
	if len(target.Args) == 0 {
		return target, nil, fmt.Errorf("%w: template requires args", ErrInvalidTarget)
	}
	req, err := d.template.Build(target.Args)
	if err != nil {
		return target, nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return target, req, nil
}

func (d *DataRequest) Reset(t Target) error {
	d.base.clear()
	d.target = nil
	d.built = nil

	target, req, err := d.check(t)
	if err != nil {
		return err
	}
	d.target = &target
	d.built = req
	return nil
}

func (d *DataRequest) Cover(ctx context.Context, l Ledger, opts CoverOptions) error {
	if d.target == nil {
		return ErrNoTarget
	}
	if err := cover(ctx, l, &d.base, d, opts); err != nil {
		return err
	}
	if sla := d.sla(); sla.Collateral < MinCollateral {
		d.base.release(l)
		return fmt.Errorf("%w: %d < %d at %s priority", ErrCollateralTooLow, sla.Collateral, MinCollateral, d.target.Fees)
	}
	return nil
}

func (d *DataRequest) feeSpec() FeeSpec                        { return d.target.Fees }
func (d *DataRequest) fixedOutputs() []wit.ValueTransferOutput { return nil }

func (d *DataRequest) spendValue(fee wit.Nanowits) wit.Nanowits {
	return WitnessingValue(fee, d.target.Witnesses.Count)
}

func (d *DataRequest) weightFor(inputs, outputs int) uint64 {
	var reqWeight, witnesses, resultSize uint64
	if d.built != nil {
		reqWeight = d.built.Weight()
	}
	if d.target != nil {
		witnesses = uint64(d.target.Witnesses.Count)
		resultSize = d.target.MaxResultSize
	}
	if resultSize < minResultSize {
		resultSize = minResultSize
	}
	return reqWeight + drExtraWeight +
		inputWeight*uint64(inputs) +
		outputWeight*uint64(outputs) +
		witnesses*(commitWeight+revealWeight+tallyOutputWeight) +
		resultSize
}

func (d *DataRequest) sla() SLA {
	if d.target == nil {
		return SLA{}
	}
	return DataRequestSLA(d.fees, d.target.Witnesses.Count)
}

// Prepared reports whether the request is covered by at least one input.
// A data request always pays collateral from its inputs.
func (d *DataRequest) Prepared() bool {
	return d.target != nil && d.covered && len(d.inputs) > 0
}

func (d *DataRequest) Value() wit.Nanowits {
	if !d.covered {
		return 0
	}
	return WitnessingValue(d.fees, d.target.Witnesses.Count)
}

func (d *DataRequest) Weight() uint64    { return d.weightFor(len(d.inputs), len(d.outputs)) }
func (d *DataRequest) MaxWeight() uint64 { return DataRequestMaxWeight }
func (d *DataRequest) MultiSig() bool    { return true }

func (d *DataRequest) drOutput() DROutput {
	sla := d.sla()
	return DROutput{
		DataRequest:            d.built.Bytecode(),
		WitnessReward:          sla.WitnessReward,
		Witnesses:              sla.Witnesses,
		CommitAndRevealFee:     sla.CommitAndRevealFee,
		MinConsensusPercentage: sla.MinConsensusPercentage,
		Collateral:             sla.Collateral,
	}
}

func (d *DataRequest) Body() (Body, error) {
	if !d.Prepared() {
		return nil, ErrNotPrepared
	}
	outputs, err := wireOutputs(d.outputs)
	if err != nil {
		return nil, err
	}
	return DRBody{Inputs: d.inputPointers(), Outputs: outputs, DROutput: d.drOutput()}, nil
}

func (d *DataRequest) MarshalBody() ([]byte, error) {
	body, err := d.Body()
	if err != nil {
		return nil, err
	}
	return body.Marshal(), nil
}

// Hash is sha256(sha256(dr_output) || sha256(body)).
func (d *DataRequest) Hash() (wit.Hash, error) {
	body, err := d.Body()
	if err != nil {
		return wit.Hash{}, err
	}
	dro := sha256.Sum256(body.(DRBody).DROutput.Marshal())
	whole := sha256.Sum256(body.Marshal())
	return sha256.Sum256(append(dro[:], whole[:]...)), nil
}

type drOutputJSON struct {
	DataRequest            interface{} `json:"data_request"`
	WitnessReward          interface{} `json:"witness_reward"`
	Witnesses              uint16      `json:"witnesses"`
	CommitAndRevealFee     interface{} `json:"commit_and_reveal_fee"`
	MinConsensusPercentage uint32      `json:"min_consensus_percentage"`
	Collateral             interface{} `json:"collateral"`
}

func (d *DataRequest) JSON(humanize bool) (json.RawMessage, error) {
	if !d.Prepared() {
		return nil, ErrNotPrepared
	}
	sla := d.sla()
	return json.Marshal(struct {
		Inputs   []inputJSON  `json:"inputs"`
		Outputs  []outputJSON `json:"outputs"`
		DROutput drOutputJSON `json:"dr_output"`
	}{
		Inputs:  inputsJSON(d.inputs),
		Outputs: outputsJSON(d.outputs, humanize),
		DROutput: drOutputJSON{
			DataRequest:            d.built.JSON(humanize),
			WitnessReward:          amount(sla.WitnessReward, humanize),
			Witnesses:              sla.Witnesses,
			CommitAndRevealFee:     amount(sla.CommitAndRevealFee, humanize),
			MinConsensusPercentage: sla.MinConsensusPercentage,
			Collateral:             amount(sla.Collateral, humanize),
		},
	})
}

func (d *DataRequest) ReceiptFields() map[string]interface{} {
	if !d.Prepared() {
		return nil
	}
	droHash := wit.Hash(sha256.Sum256(d.drOutput().Marshal()))
	fields := map[string]interface{}{
		"burns":     Burns(d.fees, d.target.Witnesses.Count),
		"droHash":   droHash.String(),
		"radHash":   d.built.RadHash().String(),
		"witnesses": d.target.Witnesses.Count,
	}
	if len(d.target.Args) > 0 {
		fields["radArgs"] = d.target.Args
	}
	return fields
}
