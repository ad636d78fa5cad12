// Package phase2 builds Plutus ScriptContext values and drives the uplc
// machine over a transaction's witnessed scripts, reproducing local
// phase-2 execution-unit estimation for FixedChainContext.
package phase2

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	"github.com/blinklabs-io/plutigo/data"

	"github.com/cardano-forge/txforge/plutusdata"
)

// LanguageVersion identifies which Plutus language a script and its
// ScriptContext shape belong to.
type LanguageVersion int

const (
	V1 LanguageVersion = iota
	V2
	V3
)

func (v LanguageVersion) String() string {
	switch v {
	case V1:
		return "PlutusV1"
	case V2:
		return "PlutusV2"
	case V3:
		return "PlutusV3"
	default:
		return "PlutusUnknown"
	}
}

// Purpose identifies why a script is being run, matching the ledger's
// RedeemerTag classification.
type Purpose int

const (
	PurposeSpend Purpose = iota
	PurposeMint
	PurposeCert
	PurposeReward
	PurposeVote
	PurposePropose
)

// txInfo holds the pieces of a decoded transaction needed to assemble
// ScriptContext values, resolved against a UTxO set the caller supplies
// (on-chain inputs plus any chained, not-yet-submitted outputs).
type txInfo struct {
	body     *conway.ConwayTransactionBody
	resolved map[string]common.Utxo // "txidhex#index" -> resolved utxo
	datums   map[string]common.Datum
	slotCfg  SlotConfig
}

func utxoKey(id common.Blake2b256, index uint32) string {
	return fmt.Sprintf("%x#%d", id.Bytes(), index)
}

func (ti *txInfo) resolveInput(in common.TransactionInput) (common.Utxo, bool) {
	u, ok := ti.resolved[utxoKey(in.Id(), in.Index())]
	return u, ok
}

func addressToPlutusData(addr common.Address) data.PlutusData {
	return addr.ToPlutusData()
}

// valueToPlutusData builds the real Plutus Value representation: a Map from
// currency symbol (empty bytestring for ada) to a Map from token name to
// quantity. MultiAsset.ToPlutusData already yields the non-ada policy map,
// so the two are merged here.
func valueToPlutusData[T any](lovelace *big.Int, assets *common.MultiAsset[T]) data.PlutusData {
	if lovelace == nil {
		lovelace = big.NewInt(0)
	}
	pairs := [][2]data.PlutusData{
		{data.NewByteString(nil), data.NewMap([][2]data.PlutusData{
			{data.NewByteString(nil), data.NewInteger(new(big.Int).Set(lovelace))},
		})},
	}
	if assets != nil {
		if am, ok := assets.ToPlutusData().(*data.Map); ok {
			pairs = append(pairs, am.Pairs...)
		}
	}
	return data.NewMap(pairs)
}

// mintValueToPlutusData builds the mint field's Value: assets only, since
// lovelace can never be minted.
func mintValueToPlutusData[T any](assets *common.MultiAsset[T]) data.PlutusData {
	if assets == nil {
		return data.NewMap(nil)
	}
	if am, ok := assets.ToPlutusData().(*data.Map); ok {
		return am
	}
	return data.NewMap(nil)
}

func txOutRefToPlutusData(in common.TransactionInput) data.PlutusData {
	return data.NewConstr(0,
		data.NewByteString(in.Id().Bytes()),
		data.NewInteger(big.NewInt(int64(in.Index()))),
	)
}

// outputDatumToPlutusData builds the V2/V3 OutputDatum: NoOutputDatum (tag
// 0), OutputDatumHash (tag 1, hash), or OutputDatum (tag 2, inline datum).
func outputDatumToPlutusData(out common.TransactionOutput) data.PlutusData {
	if d := out.Datum(); d != nil && d.Data != nil {
		return data.NewConstr(2, d.Data)
	}
	if dh := out.DatumHash(); dh != nil {
		return data.NewConstr(1, data.NewByteString(dh.Bytes()))
	}
	return data.NewConstr(0)
}

func datumHashOnlyToPlutusData(out common.TransactionOutput) data.PlutusData {
	if dh := out.DatumHash(); dh != nil {
		return data.NewConstr(1, data.NewByteString(dh.Bytes()))
	}
	if d := out.Datum(); d != nil {
		h := common.Blake2b256Hash(d.Cbor())
		return data.NewConstr(1, data.NewByteString(h.Bytes()))
	}
	return data.NewConstr(0)
}

func scriptRefToPlutusData(out common.TransactionOutput) data.PlutusData {
	ref := out.ScriptRef()
	if ref == nil {
		return data.NewConstr(1)
	}
	return data.NewConstr(0, data.NewByteString(ref.Hash().Bytes()))
}

// txOutToPlutusData encodes a transaction output for the given language
// version: V1 carries only an optional datum hash, V2/V3 carry the full
// OutputDatum plus an optional reference script.
func txOutToPlutusData(out common.TransactionOutput, version LanguageVersion) data.PlutusData {
	addrPd := addressToPlutusData(out.Address())
	valPd := valueToPlutusData(out.Amount(), out.Assets())
	if version == V1 {
		return data.NewConstr(0, addrPd, valPd, datumHashOnlyToPlutusData(out))
	}
	return data.NewConstr(0, addrPd, valPd, outputDatumToPlutusData(out), scriptRefToPlutusData(out))
}

func txInInfoToPlutusData(in common.TransactionInput, out common.TransactionOutput, version LanguageVersion) data.PlutusData {
	return data.NewConstr(0, txOutRefToPlutusData(in), txOutToPlutusData(out, version))
}

// approxEncode uses the reflection-based plutusdata encoder as a fallback
// for ledger types this package has no hand-written Plutus Data shape for
// (certificates, governance votes and proposals). The shape it produces is
// a best-effort positional encoding, not guaranteed to match the ledger's
// exact CDDL-derived representation.
func approxEncode(v any) data.PlutusData {
	pd, err := plutusdata.Encode(v)
	if err != nil {
		return data.NewConstr(0)
	}
	return pd
}

func certificateToPlutusData(c common.CertificateWrapper) data.PlutusData {
	return approxEncode(c.Certificate)
}

func credentialToPlutusData(addr common.Address) data.PlutusData {
	return addr.ToPlutusData()
}

func validityRangeToPlutusData(body *conway.ConwayTransactionBody, slotCfg SlotConfig) data.PlutusData {
	lower := negInfBound()
	upper := posInfBound()
	if body.TxValidityIntervalStart > 0 {
		ms := slotCfg.SlotToPosixTimeMs(body.TxValidityIntervalStart)
		lower = finiteBound(ms, true)
	}
	if body.Ttl > 0 {
		ms := slotCfg.SlotToPosixTimeMs(body.Ttl)
		upper = finiteBound(ms, false)
	}
	return data.NewConstr(0, lower, upper)
}

func negInfBound() data.PlutusData {
	return boundData(data.NewConstr(0), false)
}

func posInfBound() data.PlutusData {
	return boundData(data.NewConstr(2), false)
}

func finiteBound(ms int64, closed bool) data.PlutusData {
	return boundData(data.NewConstr(1, data.NewInteger(big.NewInt(ms))), closed)
}

// boundData wraps an Extended value with its Closure flag into the
// LowerBound/UpperBound shape: Constr 0 [Extended, Bool].
func boundData(extended data.PlutusData, closed bool) data.PlutusData {
	return data.NewConstr(0, extended, boolData(closed))
}

func boolData(b bool) data.PlutusData {
	if b {
		return data.NewConstr(1)
	}
	return data.NewConstr(0)
}

func sortedInputs(body *conway.ConwayTransactionBody) []common.TransactionInput {
	items := body.TxInputs.Items()
	inputs := make([]common.TransactionInput, len(items))
	for i := range items {
		inputs[i] = &items[i]
	}
	sort.Slice(inputs, func(i, j int) bool {
		a, b := inputs[i], inputs[j]
		ah, bh := hex.EncodeToString(a.Id().Bytes()), hex.EncodeToString(b.Id().Bytes())
		if ah != bh {
			return ah < bh
		}
		return a.Index() < b.Index()
	})
	return inputs
}

// buildTxInfo assembles the TxInfo Constr for version, sharing the common
// prefix across V1/V2/V3 and appending each version's extra fields.
func (ti *txInfo) buildTxInfo(version LanguageVersion, redeemersMap data.PlutusData) (data.PlutusData, error) {
	body := ti.body

	inputs := sortedInputs(body)
	inputsPd := make([]data.PlutusData, 0, len(inputs))
	for _, in := range inputs {
		out, ok := ti.resolveInput(in)
		if !ok {
			return nil, fmt.Errorf("phase2: unresolved input %x#%d", in.Id().Bytes(), in.Index())
		}
		inputsPd = append(inputsPd, txInInfoToPlutusData(in, out.Output, version))
	}

	var refInputsPd []data.PlutusData
	if body.TxReferenceInputs != nil {
		for _, in := range body.TxReferenceInputs.Items() {
			in := in
			out, ok := ti.resolveInput(&in)
			if !ok {
				continue
			}
			refInputsPd = append(refInputsPd, txInInfoToPlutusData(&in, out.Output, version))
		}
	}

	outputsPd := make([]data.PlutusData, len(body.TxOutputs))
	for i, out := range body.TxOutputs {
		out := out
		outputsPd[i] = txOutToPlutusData(&out, version)
	}

	var feeField data.PlutusData
	if version == V3 {
		feeField = data.NewInteger(new(big.Int).SetUint64(body.TxFee))
	} else {
		feeField = valueToPlutusData(new(big.Int).SetUint64(body.TxFee), nil)
	}

	mintPd := mintValueToPlutusData(body.TxMint)

	var certsPd []data.PlutusData
	for _, c := range body.TxCertificates {
		certsPd = append(certsPd, certificateToPlutusData(c))
	}

	var wdrlPairs [][2]data.PlutusData
	for addr, amount := range body.TxWithdrawals {
		wdrlPairs = append(wdrlPairs, [2]data.PlutusData{
			credentialToPlutusData(*addr),
			data.NewInteger(new(big.Int).SetUint64(amount)),
		})
	}

	sigsPd := make([]data.PlutusData, 0)
	if body.TxRequiredSigners != nil {
		for _, s := range body.TxRequiredSigners.Items() {
			sigsPd = append(sigsPd, data.NewByteString(s.Bytes()))
		}
	}

	var datumPairs [][2]data.PlutusData
	for hashHex, d := range ti.datums {
		_ = hashHex
		h := common.Blake2b256Hash(d.Cbor())
		datumPairs = append(datumPairs, [2]data.PlutusData{data.NewByteString(h.Bytes()), data.NewConstr(0, d.Data)})
	}

	txId := body.Id()
	idPd := data.NewConstr(0, data.NewByteString(txId.Bytes()))

	fields := []data.PlutusData{
		data.NewList(inputsPd...),
	}
	if version != V1 {
		fields = append(fields, data.NewList(refInputsPd...))
	}
	fields = append(fields,
		data.NewList(outputsPd...),
		feeField,
		mintPd,
		data.NewList(certsPd...),
		data.NewMap(wdrlPairs),
		validityRangeToPlutusData(body, ti.slotCfg),
		data.NewList(sigsPd...),
	)
	if version == V1 {
		fields = append(fields, data.NewMap(datumPairs), idPd)
		return data.NewConstr(0, fields...), nil
	}

	fields = append(fields, redeemersMap, data.NewMap(datumPairs), idPd)

	if version == V3 {
		votesPd := ti.votingProceduresToPlutusData()
		proposalsPd := ti.proposalProceduresToPlutusData()
		var treasuryAmt data.PlutusData = data.NewConstr(0)
		var donation data.PlutusData = data.NewConstr(0)
		if body.TxCurrentTreasuryValue != nil {
			treasuryAmt = data.NewConstr(1, data.NewInteger(new(big.Int).SetUint64(*body.TxCurrentTreasuryValue)))
		}
		if body.TxDonation != nil {
			donation = data.NewConstr(1, data.NewInteger(new(big.Int).SetUint64(*body.TxDonation)))
		}
		fields = append(fields, votesPd, proposalsPd, treasuryAmt, donation)
	}

	return data.NewConstr(0, fields...), nil
}

func (ti *txInfo) votingProceduresToPlutusData() data.PlutusData {
	var pairs [][2]data.PlutusData
	for voter, byAction := range ti.body.TxVotingProcedures {
		var actionPairs [][2]data.PlutusData
		for actionId, proc := range byAction {
			actionPairs = append(actionPairs, [2]data.PlutusData{approxEncode(actionId), approxEncode(proc)})
		}
		pairs = append(pairs, [2]data.PlutusData{approxEncode(voter), data.NewMap(actionPairs)})
	}
	return data.NewMap(pairs)
}

func (ti *txInfo) proposalProceduresToPlutusData() data.PlutusData {
	items := make([]data.PlutusData, len(ti.body.TxProposalProcedures))
	for i, p := range ti.body.TxProposalProcedures {
		items[i] = approxEncode(p)
	}
	return data.NewList(items...)
}

// scriptPurposeV1V2 builds the ScriptPurpose sum type shared by V1/V2.
func scriptPurposeV1V2(purpose Purpose, subject data.PlutusData) data.PlutusData {
	switch purpose {
	case PurposeMint:
		return data.NewConstr(0, subject)
	case PurposeSpend:
		return data.NewConstr(1, subject)
	case PurposeReward:
		return data.NewConstr(2, subject)
	case PurposeCert:
		return data.NewConstr(3, subject)
	default:
		return data.NewConstr(0, subject)
	}
}

// scriptInfoV3 builds the ScriptInfo sum type introduced in PlutusV3, which
// additionally carries the resolved spending datum and supports vote/
// propose purposes.
func scriptInfoV3(purpose Purpose, index uint64, subject data.PlutusData, spendDatum data.PlutusData) data.PlutusData {
	switch purpose {
	case PurposeSpend:
		if spendDatum != nil {
			return data.NewConstr(0, subject, data.NewConstr(1, spendDatum))
		}
		return data.NewConstr(0, subject, data.NewConstr(0))
	case PurposeMint:
		return data.NewConstr(1, subject)
	case PurposeReward:
		return data.NewConstr(2, subject)
	case PurposeCert:
		return data.NewConstr(3, data.NewInteger(new(big.Int).SetUint64(index)), subject)
	case PurposeVote:
		return data.NewConstr(4, subject)
	case PurposePropose:
		return data.NewConstr(5, data.NewInteger(new(big.Int).SetUint64(index)), subject)
	default:
		return data.NewConstr(1, subject)
	}
}
