package phase2

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
	"github.com/blinklabs-io/plutigo/data"

	"github.com/cardano-forge/txforge/backend"
	"github.com/cardano-forge/txforge/txerr"
	"github.com/cardano-forge/txforge/uplc"
)

// scriptWitness pairs a decoded Flat program with the language version its
// ScriptContext shape must follow.
type scriptWitness struct {
	version LanguageVersion
	program *uplc.Program
}

func exUnitLimit(pp backend.ProtocolParameters) (uplc.ExBudget, error) {
	mem, err := parseExUnit(pp.MaxTxExMem, 14000000)
	if err != nil {
		return uplc.ExBudget{}, err
	}
	steps, err := parseExUnit(pp.MaxTxExSteps, 10000000000)
	if err != nil {
		return uplc.ExBudget{}, err
	}
	return uplc.ExBudget{Mem: mem, Cpu: steps}, nil
}

func parseExUnit(s string, fallback int64) (int64, error) {
	if s == "" {
		return fallback, nil
	}
	var v int64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("phase2: invalid ex-unit budget %q: %w", s, err)
	}
	return v, nil
}

func redeemerTagName(tag common.RedeemerTag) string {
	switch tag {
	case common.RedeemerTagSpend:
		return "spend"
	case common.RedeemerTagMint:
		return "mint"
	case common.RedeemerTagCert:
		return "cert"
	case common.RedeemerTagReward:
		return "reward"
	case common.RedeemerTagVoting:
		return "vote"
	default:
		return "unknown"
	}
}

// collectScripts indexes every Plutus script available to the transaction,
// either witnessed directly in the witness set or carried as a reference
// script on a resolved input/reference-input UTxO, by script hash.
func collectScripts(tx *conway.ConwayTransaction, ti *txInfo) map[common.Blake2b224]scriptWitness {
	out := make(map[common.Blake2b224]scriptWitness)
	addScript := func(version LanguageVersion, script common.Script, raw []byte) {
		prog, err := uplc.DecodeFlat(raw)
		if err != nil {
			return
		}
		out[script.Hash()] = scriptWitness{version: version, program: prog}
	}
	if tx.WitnessSet.WsPlutusV1Scripts != nil {
		for _, s := range tx.WitnessSet.WsPlutusV1Scripts.Items() {
			addScript(V1, s, []byte(s))
		}
	}
	if tx.WitnessSet.WsPlutusV2Scripts != nil {
		for _, s := range tx.WitnessSet.WsPlutusV2Scripts.Items() {
			addScript(V2, s, []byte(s))
		}
	}
	if tx.WitnessSet.WsPlutusV3Scripts != nil {
		for _, s := range tx.WitnessSet.WsPlutusV3Scripts.Items() {
			addScript(V3, s, []byte(s))
		}
	}
	for _, u := range ti.resolved {
		ref := u.Output.ScriptRef()
		if ref == nil {
			continue
		}
		switch s := ref.Script.(type) {
		case common.PlutusV1Script:
			addScript(V1, s, []byte(s))
		case common.PlutusV2Script:
			addScript(V2, s, []byte(s))
		case common.PlutusV3Script:
			addScript(V3, s, []byte(s))
		}
	}
	return out
}

func sortedMintPolicies(body *conway.ConwayTransactionBody) []common.Blake2b224 {
	if body.TxMint == nil {
		return nil
	}
	policies := body.TxMint.Policies()
	sort.Slice(policies, func(i, j int) bool { return policies[i].String() < policies[j].String() })
	return policies
}

func sortedWithdrawalAddrs(body *conway.ConwayTransactionBody) []*common.Address {
	addrs := make([]*common.Address, 0, len(body.TxWithdrawals))
	for a := range body.TxWithdrawals {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		bi, _ := addrs[i].Bytes()
		bj, _ := addrs[j].Bytes()
		return string(bi) < string(bj)
	})
	return addrs
}

func sortedVoters(body *conway.ConwayTransactionBody) []common.Voter {
	voters := make([]common.Voter, 0, len(body.TxVotingProcedures))
	for v := range body.TxVotingProcedures {
		voters = append(voters, v)
	}
	sort.Slice(voters, func(i, j int) bool {
		if voters[i].Type != voters[j].Type {
			return voters[i].Type < voters[j].Type
		}
		return hex.EncodeToString(voters[i].Hash[:]) < hex.EncodeToString(voters[j].Hash[:])
	})
	return voters
}

// redeemerSubject resolves the script-hash/credential a redeemer applies to,
// the ScriptPurpose "subject" PlutusData, and (for spend redeemers) the
// resolved spending datum, following the same sorted-index rules the
// builder uses when assigning redeemer indices.
func redeemerSubject(
	key common.RedeemerKey,
	body *conway.ConwayTransactionBody,
	inputs []common.TransactionInput,
	mintPolicies []common.Blake2b224,
	withdrawalAddrs []*common.Address,
	voters []common.Voter,
	ti *txInfo,
) (purpose Purpose, subjectHash common.Blake2b224, subjectPd data.PlutusData, spendDatum data.PlutusData, err error) {
	switch key.Tag {
	case common.RedeemerTagSpend:
		if int(key.Index) >= len(inputs) {
			return 0, common.Blake2b224{}, nil, nil, fmt.Errorf("spend redeemer index %d out of range", key.Index)
		}
		in := inputs[key.Index]
		out, ok := ti.resolveInput(in)
		if !ok {
			return 0, common.Blake2b224{}, nil, nil, fmt.Errorf("unresolved spend input %x#%d", in.Id().Bytes(), in.Index())
		}
		subjectHash = out.Output.Address().PaymentKeyHash()
		subjectPd = txOutRefToPlutusData(in)
		if d := out.Output.Datum(); d != nil && d.Data != nil {
			spendDatum = d.Data
		} else if dh := out.Output.DatumHash(); dh != nil {
			if d, found := ti.datums[hex.EncodeToString(dh.Bytes())]; found {
				spendDatum = d.Data
			}
		}
		return PurposeSpend, subjectHash, subjectPd, spendDatum, nil
	case common.RedeemerTagMint:
		if int(key.Index) >= len(mintPolicies) {
			return 0, common.Blake2b224{}, nil, nil, fmt.Errorf("mint redeemer index %d out of range", key.Index)
		}
		policy := mintPolicies[key.Index]
		return PurposeMint, policy, data.NewByteString(policy.Bytes()), nil, nil
	case common.RedeemerTagReward:
		if int(key.Index) >= len(withdrawalAddrs) {
			return 0, common.Blake2b224{}, nil, nil, fmt.Errorf("reward redeemer index %d out of range", key.Index)
		}
		addr := withdrawalAddrs[key.Index]
		subjectHash = addr.StakeKeyHash()
		return PurposeReward, subjectHash, credentialToPlutusData(*addr), nil, nil
	case common.RedeemerTagVoting:
		if int(key.Index) >= len(voters) {
			return 0, common.Blake2b224{}, nil, nil, fmt.Errorf("voting redeemer index %d out of range", key.Index)
		}
		voter := voters[key.Index]
		subjectHash = voter.Hash
		return PurposeVote, subjectHash, approxEncode(voter), nil, nil
	default:
		return 0, common.Blake2b224{}, nil, nil, fmt.Errorf("redeemer tag %s is not supported for local evaluation", redeemerTagName(key.Tag))
	}
}

func scriptArguments(version LanguageVersion, purpose Purpose, subjectPd data.PlutusData, spendDatum data.PlutusData, redeemerPd data.PlutusData, txInfoPd data.PlutusData, index uint64) []data.PlutusData {
	if version == V3 {
		scriptInfoPd := scriptInfoV3(purpose, index, subjectPd, spendDatum)
		ctx := data.NewConstr(0, txInfoPd, redeemerPd, scriptInfoPd)
		return []data.PlutusData{ctx}
	}
	ctx := data.NewConstr(0, txInfoPd, scriptPurposeV1V2(purpose, subjectPd))
	if purpose == PurposeSpend {
		if spendDatum == nil {
			spendDatum = data.NewConstr(0)
		}
		return []data.PlutusData{spendDatum, redeemerPd, ctx}
	}
	return []data.PlutusData{redeemerPd, ctx}
}

// resolveAdditionalTxs decodes each chained, not-yet-submitted transaction
// in additionalTxs and merges its outputs into resolved (without mutating
// the caller's map), so a script spending a UTxO produced earlier in the
// same chain still resolves. Later entries shadow earlier ones on
// collision, matching last-write-wins everywhere else in this package.
func resolveAdditionalTxs(resolved map[string]common.Utxo, additionalTxs [][]byte) (map[string]common.Utxo, error) {
	if len(additionalTxs) == 0 {
		return resolved, nil
	}
	merged := make(map[string]common.Utxo, len(resolved))
	for k, v := range resolved {
		merged[k] = v
	}
	for i, raw := range additionalTxs {
		var atx conway.ConwayTransaction
		if _, err := cbor.Decode(raw, &atx); err != nil {
			return nil, fmt.Errorf("phase2: decode additional tx %d: %w", i, err)
		}
		bodyCbor, err := cbor.Encode(&atx.Body)
		if err != nil {
			return nil, fmt.Errorf("phase2: re-encode additional tx %d body: %w", i, err)
		}
		atx.Body.SetCbor(bodyCbor)
		txHash := atx.Body.Id()
		for idx, out := range atx.Body.TxOutputs {
			out := out
			merged[utxoKey(txHash, uint32(idx))] = common.Utxo{
				Id: shelley.ShelleyTransactionInput{
					TxId:        txHash,
					OutputIndex: uint32(idx), //nolint:gosec // bounded by actual output count
				},
				Output: &out,
			}
		}
	}
	return merged, nil
}

// Evaluate decodes a Conway transaction and runs every attached redeemer's
// script through the uplc machine, reporting each redeemer's actual ExUnits
// usage (or failure) independently. resolved supplies every UTxO
// referenced by the transaction's inputs, reference inputs, and collateral,
// keyed by "txidhex#index" (see utxoKey); additionalTxs supplies chained,
// not-yet-submitted transactions whose outputs extend that set. A script
// crash or budget exhaustion for one redeemer is reported as that
// redeemer's ScriptExecutionFailure -- it never aborts evaluation of the
// remaining redeemers, so the caller sees which passed and which failed.
func Evaluate(txCbor []byte, resolved map[string]common.Utxo, additionalTxs [][]byte, pp backend.ProtocolParameters, slotCfg SlotConfig) ([]RedeemerEvalResult, error) {
	var tx conway.ConwayTransaction
	if _, err := cbor.Decode(txCbor, &tx); err != nil {
		return nil, fmt.Errorf("phase2: decode transaction: %w: %w", txerr.ErrInvalidTxEra, err)
	}

	resolved, err := resolveAdditionalTxs(resolved, additionalTxs)
	if err != nil {
		return nil, err
	}

	costModels, err := BuildCostModels(pp)
	if err != nil {
		return nil, err
	}
	limit, err := exUnitLimit(pp)
	if err != nil {
		return nil, err
	}

	datums := make(map[string]common.Datum)
	if tx.WitnessSet.WsPlutusData != nil {
		for _, d := range tx.WitnessSet.WsPlutusData.Items() {
			h := common.Blake2b256Hash(d.Cbor())
			datums[hex.EncodeToString(h.Bytes())] = d
		}
	}

	ti := &txInfo{body: &tx.Body, resolved: resolved, datums: datums, slotCfg: slotCfg}

	scripts := collectScripts(&tx, ti)
	inputs := sortedInputs(&tx.Body)
	mintPolicies := sortedMintPolicies(&tx.Body)
	withdrawalAddrs := sortedWithdrawalAddrs(&tx.Body)
	voters := sortedVoters(&tx.Body)

	if tx.WitnessSet.WsRedeemers.Redeemers == nil {
		return nil, nil
	}

	redeemersPdByVersion := make(map[LanguageVersion]data.PlutusData)

	var results []RedeemerEvalResult
	for key, val := range tx.WitnessSet.WsRedeemers.Redeemers {
		purpose, subjectHash, subjectPd, spendDatum, err := redeemerSubject(key, &tx.Body, inputs, mintPolicies, withdrawalAddrs, voters, ti)
		if err != nil {
			return nil, fmt.Errorf("phase2: %s#%d: %w", redeemerTagName(key.Tag), key.Index, err)
		}

		sw, ok := scripts[subjectHash]
		if !ok {
			return nil, fmt.Errorf("phase2: no witnessed script for %s#%d (hash %x)", redeemerTagName(key.Tag), key.Index, subjectHash.Bytes())
		}

		redeemersPd, ok := redeemersPdByVersion[sw.version]
		if !ok {
			redeemersPd = redeemersMapToPlutusDataForBody(&tx, inputs, mintPolicies, withdrawalAddrs, voters, ti)
			redeemersPdByVersion[sw.version] = redeemersPd
		}

		txInfoPd, err := ti.buildTxInfo(sw.version, redeemersPd)
		if err != nil {
			return nil, fmt.Errorf("phase2: %s#%d: building tx info: %w", redeemerTagName(key.Tag), key.Index, err)
		}

		redeemerPd := val.Data.Data
		args := scriptArguments(sw.version, purpose, subjectPd, spendDatum, redeemerPd, txInfoPd, uint64(key.Index))

		results = append(results, runRedeemerScript(key, sw, args, costModels.Get(sw.version), limit))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Tag != results[j].Tag {
			return results[i].Tag < results[j].Tag
		}
		return results[i].Index < results[j].Index
	})

	return results, nil
}

// runRedeemerScript applies args to sw's program and runs it through the
// uplc machine, reporting the redeemer's actual budget usage either way. A
// script crash or budget exhaustion is captured as that result's Failure
// rather than returned as a call error, so a caller iterating Evaluate's
// results sees every redeemer's outcome, not just the first one reached.
func runRedeemerScript(key common.RedeemerKey, sw scriptWitness, args []data.PlutusData, cost uplc.CostModel, limit uplc.ExBudget) RedeemerEvalResult {
	applied := uplc.ApplyArguments(sw.program, args...)
	m := uplc.NewMachine(cost, limit)
	result := m.Run(applied)
	partial := common.ExUnits{Memory: uint64(result.Spent.Mem), Steps: uint64(result.Spent.Cpu)}

	if result.Err != nil {
		return RedeemerEvalResult{
			Tag:    key.Tag,
			Index:  key.Index,
			Budget: partial,
			Logs:   result.Logs,
			Failure: &ScriptExecutionFailure{
				Index:         key.Index,
				Tag:           key.Tag,
				PartialBudget: partial,
				Message:       result.Err.Error(),
				Logs:          result.Logs,
			},
		}
	}

	return RedeemerEvalResult{
		Tag:    key.Tag,
		Index:  key.Index,
		Budget: partial,
		Logs:   result.Logs,
	}
}

func redeemersMapToPlutusDataForBody(
	tx *conway.ConwayTransaction,
	inputs []common.TransactionInput,
	mintPolicies []common.Blake2b224,
	withdrawalAddrs []*common.Address,
	voters []common.Voter,
	ti *txInfo,
) data.PlutusData {
	var pairs [][2]data.PlutusData
	for key, val := range tx.WitnessSet.WsRedeemers.Redeemers {
		purpose, _, subjectPd, _, err := redeemerSubject(key, &tx.Body, inputs, mintPolicies, withdrawalAddrs, voters, ti)
		if err != nil {
			continue
		}
		pairs = append(pairs, [2]data.PlutusData{
			scriptPurposeV1V2(purpose, subjectPd),
			val.Data.Data,
		})
	}
	return data.NewMap(pairs)
}
