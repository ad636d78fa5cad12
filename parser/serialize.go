package parser

import (
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
)

// collectRedeemers rebuilds the witness set's (tag, index) -> RedeemerValue
// map from the classification Parse attached to each staged entry, mirroring
// the builder's buildRedeemerMap in reverse.
func (b *Body) collectRedeemers() map[common.RedeemerKey]common.RedeemerValue {
	out := make(map[common.RedeemerKey]common.RedeemerValue)
	for i, entry := range b.Inputs {
		if entry.Redeemer != nil {
			out[common.RedeemerKey{Tag: common.RedeemerTagSpend, Index: uint32(i)}] = *entry.Redeemer
		}
	}
	for i, m := range b.Mints {
		if m.Redeemer != nil {
			out[common.RedeemerKey{Tag: common.RedeemerTagMint, Index: uint32(i)}] = *m.Redeemer
		}
	}
	for i, w := range b.Withdrawals {
		if w.Redeemer != nil {
			out[common.RedeemerKey{Tag: common.RedeemerTagReward, Index: uint32(i)}] = *w.Redeemer
		}
	}
	for i, v := range b.CertRedeemers {
		out[common.RedeemerKey{Tag: common.RedeemerTagCert, Index: uint32(i)}] = v
	}
	for i, v := range b.Votes {
		if v.Redeemer != nil {
			out[common.RedeemerKey{Tag: common.RedeemerTagVoting, Index: uint32(i)}] = *v.Redeemer
		}
	}
	return out
}

// scripts returns every Provided script this body's classification carries,
// deduplicated by hash and split by language.
func (b *Body) scripts() (v1 []common.PlutusV1Script, v2 []common.PlutusV2Script, v3 []common.PlutusV3Script, native []common.NativeScript) {
	seen := make(map[common.Blake2b224]bool)
	add := func(src *ScriptSource) {
		if src == nil || src.Kind != Provided || seen[src.Script.Hash()] {
			return
		}
		seen[src.Script.Hash()] = true
		switch s := src.Script.(type) {
		case common.PlutusV1Script:
			v1 = append(v1, s)
		case common.PlutusV2Script:
			v2 = append(v2, s)
		case common.PlutusV3Script:
			v3 = append(v3, s)
		case common.NativeScript:
			native = append(native, s)
		}
	}
	for _, e := range b.Inputs {
		add(e.Script)
	}
	for _, m := range b.Mints {
		add(m.Script)
	}
	for _, w := range b.Withdrawals {
		add(w.Script)
	}
	for _, v := range b.Votes {
		add(v.Script)
	}
	return
}

// datums returns every Provided datum this body's classification carries,
// deduplicated by hash.
func (b *Body) datums() []common.Datum {
	seen := make(map[string]bool)
	var out []common.Datum
	add := func(src *DatumSource) {
		if src == nil || src.Kind != Provided {
			return
		}
		h := common.Blake2b256Hash(src.Datum.Cbor())
		key := string(h.Bytes())
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, src.Datum)
	}
	for _, e := range b.Inputs {
		add(e.Datum)
	}
	return out
}

// Reserialize rebuilds a Conway transaction from the staged body and
// returns its CBOR encoding. Re-parsing that encoding reproduces an
// equivalent Body, modulo canonical set/map ordering.
func (b *Body) Reserialize() ([]byte, error) {
	txInputs := make([]shelley.ShelleyTransactionInput, len(b.Inputs))
	for i, e := range b.Inputs {
		txInputs[i] = shelley.ShelleyTransactionInput{TxId: e.Input.Id(), OutputIndex: e.Input.Index()}
	}

	body := conway.ConwayTransactionBody{
		TxInputs:                conway.NewConwayTransactionInputSet(txInputs),
		TxOutputs:                b.Outputs,
		TxFee:                    b.Fee,
		Ttl:                      b.Ttl,
		TxValidityIntervalStart:  b.ValidityStart,
		TxMint:                   b.Mint,
		TxCertificates:           b.Certificates,
		TxCollateralReturn:       b.CollateralReturn,
		TxTotalCollateral:        b.TotalCollateral,
		TxProposalProcedures:     b.Proposals,
		TxNetworkId:              b.NetworkId,
	}

	if len(b.RequiredSigners) > 0 {
		body.TxRequiredSigners = cbor.NewSetType(b.RequiredSigners, true)
	}
	if len(b.ReferenceInputs) > 0 {
		refs := make([]shelley.ShelleyTransactionInput, len(b.ReferenceInputs))
		for i, in := range b.ReferenceInputs {
			refs[i] = shelley.ShelleyTransactionInput{TxId: in.Id(), OutputIndex: in.Index()}
		}
		body.TxReferenceInputs = cbor.NewSetType(refs, true)
	}
	if len(b.Collateral) > 0 {
		coll := make([]shelley.ShelleyTransactionInput, len(b.Collateral))
		for i, e := range b.Collateral {
			coll[i] = shelley.ShelleyTransactionInput{TxId: e.Input.Id(), OutputIndex: e.Input.Index()}
		}
		body.TxCollateral = cbor.NewSetType(coll, true)
	}
	if len(b.Withdrawals) > 0 {
		wdMap := make(map[*common.Address]uint64, len(b.Withdrawals))
		for _, w := range b.Withdrawals {
			addr := w.Address
			wdMap[addr] = w.Amount
		}
		body.TxWithdrawals = wdMap
	}
	if len(b.Votes) > 0 {
		procs := make(common.VotingProcedures, len(b.Votes))
		for _, v := range b.Votes {
			byAction := make(map[*common.GovActionId]common.VotingProcedure, len(v.Votes))
			for actionId, proc := range v.Votes {
				actionId := actionId
				byAction[&actionId] = proc
			}
			procs[v.Voter] = byAction
		}
		body.TxVotingProcedures = procs
	}

	v1, v2, v3, native := b.scripts()
	ws := conway.ConwayTransactionWitnessSet{}
	if len(v1) > 0 {
		ws.WsPlutusV1Scripts = cbor.NewSetType(v1, true)
	}
	if len(v2) > 0 {
		ws.WsPlutusV2Scripts = cbor.NewSetType(v2, true)
	}
	if len(v3) > 0 {
		ws.WsPlutusV3Scripts = cbor.NewSetType(v3, true)
	}
	if len(native) > 0 {
		ws.WsNativeScripts = cbor.NewSetType(native, true)
	}
	if datums := b.datums(); len(datums) > 0 {
		ws.WsPlutusData = cbor.NewSetType(datums, true)
	}
	if redeemers := b.collectRedeemers(); len(redeemers) > 0 {
		ws.WsRedeemers = conway.ConwayRedeemers{Redeemers: redeemers}
	}

	tx := conway.ConwayTransaction{
		Body:       body,
		WitnessSet: ws,
		TxIsValid:  b.IsValid,
		TxMetadata: b.Metadata,
	}

	return cbor.Encode(&tx)
}
