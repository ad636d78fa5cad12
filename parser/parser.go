// Package parser reconstructs a staged transaction body from a decoded
// Conway transaction and its resolved UTxO set -- the inverse of the root
// builder package's buildBody/buildWitnessSet. It classifies witness-set
// scripts and datums as Provided and inline (resolved-output) ones as
// Inline, and inverts (tag, index) redeemer binding back onto the input,
// mint, withdrawal, and voter entries it was bound to.
package parser

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"

	"github.com/cardano-forge/txforge/txerr"
)

// SourceKind distinguishes a script or datum carried directly in the
// witness set (Provided) from one recovered from a resolved output's
// inline field (Inline).
type SourceKind int

const (
	Provided SourceKind = iota
	Inline
)

func (k SourceKind) String() string {
	if k == Inline {
		return "inline"
	}
	return "provided"
}

// ScriptSource is a script recovered either from the witness set or from a
// resolved output's reference script.
type ScriptSource struct {
	Kind   SourceKind
	Script common.Script
}

// DatumSource is a datum recovered either from the witness set (keyed by
// hash) or from a resolved output's inline datum.
type DatumSource struct {
	Kind  SourceKind
	Datum common.Datum
}

// InputEntry is a parsed spending input together with its resolved UTxO
// and, for script-locked inputs, the datum/script/redeemer satisfying it.
type InputEntry struct {
	Input    common.TransactionInput
	Resolved common.Utxo
	Datum    *DatumSource
	Script   *ScriptSource
	Redeemer *common.RedeemerValue
}

// MintEntry names the script/redeemer classification for one minting
// policy; the minted quantities themselves live in Body.Mint, the single
// multi-asset structure the ledger carries them in.
type MintEntry struct {
	Policy   common.Blake2b224
	Script   *ScriptSource
	Redeemer *common.RedeemerValue
}

// WithdrawalEntry is one reward withdrawal.
type WithdrawalEntry struct {
	Address  *common.Address
	Amount   uint64
	Script   *ScriptSource
	Redeemer *common.RedeemerValue
}

// VoteEntry is one voter's voting procedures.
type VoteEntry struct {
	Voter    common.Voter
	Votes    map[common.GovActionId]common.VotingProcedure
	Script   *ScriptSource
	Redeemer *common.RedeemerValue
}

// Body is the staged reconstruction of a Conway transaction: the same
// shape the builder assembles before serialization, recovered by
// inverting the serializer's sorting and redeemer-binding rules.
type Body struct {
	Inputs           []InputEntry
	ReferenceInputs  []common.TransactionInput
	Outputs          []babbage.BabbageTransactionOutput
	Collateral       []InputEntry
	CollateralReturn *babbage.BabbageTransactionOutput
	TotalCollateral  uint64
	Mint             *common.MultiAsset[common.MultiAssetTypeMint]
	Mints            []MintEntry
	Withdrawals      []WithdrawalEntry
	Certificates     []common.CertificateWrapper
	CertRedeemers    map[int]common.RedeemerValue
	Votes            []VoteEntry
	Proposals        []common.ProposalProcedure
	Fee              uint64
	Ttl              uint64
	ValidityStart    uint64
	NetworkId        *uint8
	RequiredSigners  []common.Blake2b224
	IsValid          bool
	Metadata         *common.MetaMap
}

// Parse decodes txCbor as a Conway transaction and reconstructs its staged
// body. resolved must cover every input, reference input, and collateral
// input the transaction spends, keyed by "txidhex#index".
func Parse(txCbor []byte, resolved map[string]common.Utxo) (*Body, error) {
	var tx conway.ConwayTransaction
	if _, err := cbor.Decode(txCbor, &tx); err != nil {
		return nil, fmt.Errorf("parser: %w: %w", txerr.ErrInvalidEncoding, err)
	}
	return parseBody(&tx, resolved)
}

func resolve(resolved map[string]common.Utxo, in common.TransactionInput) (common.Utxo, bool) {
	key := fmt.Sprintf("%x#%d", in.Id().Bytes(), in.Index())
	u, ok := resolved[key]
	return u, ok
}

func providedScripts(ws *conway.ConwayTransactionWitnessSet) map[common.Blake2b224]ScriptSource {
	out := make(map[common.Blake2b224]ScriptSource)
	if ws.WsPlutusV1Scripts != nil {
		for _, s := range ws.WsPlutusV1Scripts.Items() {
			out[s.Hash()] = ScriptSource{Kind: Provided, Script: s}
		}
	}
	if ws.WsPlutusV2Scripts != nil {
		for _, s := range ws.WsPlutusV2Scripts.Items() {
			out[s.Hash()] = ScriptSource{Kind: Provided, Script: s}
		}
	}
	if ws.WsPlutusV3Scripts != nil {
		for _, s := range ws.WsPlutusV3Scripts.Items() {
			out[s.Hash()] = ScriptSource{Kind: Provided, Script: s}
		}
	}
	if ws.WsNativeScripts != nil {
		for _, s := range ws.WsNativeScripts.Items() {
			s := s
			out[s.Hash()] = ScriptSource{Kind: Provided, Script: s}
		}
	}
	return out
}

func providedDatums(ws *conway.ConwayTransactionWitnessSet) map[string]common.Datum {
	out := make(map[string]common.Datum)
	if ws.WsPlutusData != nil {
		for _, d := range ws.WsPlutusData.Items() {
			h := common.Blake2b256Hash(d.Cbor())
			out[hex.EncodeToString(h.Bytes())] = d
		}
	}
	return out
}

// resolveDatum classifies the datum satisfying a script-locked output as
// Inline (the output itself carries the datum) or Provided (the output
// only carries a datum hash, resolved against the witness set's datums).
func resolveDatum(out common.TransactionOutput, datums map[string]common.Datum) *DatumSource {
	if d := out.Datum(); d != nil && d.Data != nil {
		return &DatumSource{Kind: Inline, Datum: *d}
	}
	if dh := out.DatumHash(); dh != nil {
		if d, ok := datums[hex.EncodeToString(dh.Bytes())]; ok {
			return &DatumSource{Kind: Provided, Datum: d}
		}
	}
	return nil
}

// resolveScript classifies the script satisfying a script-locked output as
// Inline (a reference script on the resolved output) or Provided (a
// witness-set script matching the payment credential hash).
func resolveScript(out common.TransactionOutput, scripts map[common.Blake2b224]ScriptSource) *ScriptSource {
	if ref := out.ScriptRef(); ref != nil {
		return &ScriptSource{Kind: Inline, Script: ref.Script}
	}
	hash := out.Address().PaymentKeyHash()
	if src, ok := scripts[hash]; ok {
		return &src
	}
	return nil
}

func sortedInputList(inputs []shelley.ShelleyTransactionInput) []common.TransactionInput {
	out := make([]common.TransactionInput, len(inputs))
	for i := range inputs {
		out[i] = &inputs[i]
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := hex.EncodeToString(out[i].Id().Bytes()), hex.EncodeToString(out[j].Id().Bytes())
		if ai != aj {
			return ai < aj
		}
		return out[i].Index() < out[j].Index()
	})
	return out
}

func sortedMintPolicies(body *conway.ConwayTransactionBody) []common.Blake2b224 {
	if body.TxMint == nil {
		return nil
	}
	p := body.TxMint.Policies()
	sort.Slice(p, func(i, j int) bool { return p[i].String() < p[j].String() })
	return p
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

func parseBody(tx *conway.ConwayTransaction, resolved map[string]common.Utxo) (*Body, error) {
	body := &tx.Body
	ws := &tx.WitnessSet

	pScripts := providedScripts(ws)
	pDatums := providedDatums(ws)

	redeemers := ws.WsRedeemers.Redeemers

	b := &Body{
		Outputs:          body.TxOutputs,
		CollateralReturn: body.TxCollateralReturn,
		TotalCollateral:  body.TxTotalCollateral,
		Certificates:     body.TxCertificates,
		Proposals:        body.TxProposalProcedures,
		Fee:              body.TxFee,
		Ttl:              body.Ttl,
		ValidityStart:    body.TxValidityIntervalStart,
		NetworkId:        body.TxNetworkId,
		IsValid:          tx.TxIsValid,
		Metadata:         tx.TxMetadata,
	}
	if body.TxRequiredSigners != nil {
		b.RequiredSigners = body.TxRequiredSigners.Items()
	}
	if body.TxReferenceInputs != nil {
		for _, in := range body.TxReferenceInputs.Items() {
			in := in
			b.ReferenceInputs = append(b.ReferenceInputs, &in)
		}
	}

	// Inputs, in the same sorted order the serializer assigns Spend
	// redeemer indices against.
	inputs := sortedInputList(body.TxInputs.Items())
	for i, in := range inputs {
		entry := InputEntry{Input: in}
		if u, ok := resolve(resolved, in); ok {
			entry.Resolved = u
			entry.Datum = resolveDatum(u.Output, pDatums)
			entry.Script = resolveScript(u.Output, pScripts)
		}
		if val, ok := redeemers[common.RedeemerKey{Tag: common.RedeemerTagSpend, Index: uint32(i)}]; ok {
			rv := val
			entry.Redeemer = &rv
		}
		b.Inputs = append(b.Inputs, entry)
	}

	// Collateral inputs carry no redeemer/datum classification of their own.
	if body.TxCollateral != nil {
		for _, in := range body.TxCollateral.Items() {
			in := in
			entry := InputEntry{Input: &in}
			if u, ok := resolve(resolved, &in); ok {
				entry.Resolved = u
			}
			b.Collateral = append(b.Collateral, entry)
		}
	}

	// Mint, indexed by sorted policy ID.
	b.Mint = body.TxMint
	mintPolicies := sortedMintPolicies(body)
	for i, policy := range mintPolicies {
		m := MintEntry{Policy: policy}
		if scr, ok := pScripts[policy]; ok {
			s := scr
			m.Script = &s
		}
		if val, ok := redeemers[common.RedeemerKey{Tag: common.RedeemerTagMint, Index: uint32(i)}]; ok {
			rv := val
			m.Redeemer = &rv
		}
		b.Mints = append(b.Mints, m)
	}

	// Withdrawals, indexed by sorted reward address.
	wdAddrs := sortedWithdrawalAddrs(body)
	for i, addr := range wdAddrs {
		w := WithdrawalEntry{Address: addr, Amount: body.TxWithdrawals[addr]}
		if scr, ok := pScripts[addr.StakeKeyHash()]; ok {
			s := scr
			w.Script = &s
		}
		if val, ok := redeemers[common.RedeemerKey{Tag: common.RedeemerTagReward, Index: uint32(i)}]; ok {
			rv := val
			w.Redeemer = &rv
		}
		b.Withdrawals = append(b.Withdrawals, w)
	}

	// Certificate redeemers -- indexed directly by certificate position,
	// the same rule the wire format uses for RedeemerTagCert.
	for i := range body.TxCertificates {
		if val, ok := redeemers[common.RedeemerKey{Tag: common.RedeemerTagCert, Index: uint32(i)}]; ok {
			if b.CertRedeemers == nil {
				b.CertRedeemers = make(map[int]common.RedeemerValue)
			}
			b.CertRedeemers[i] = val
		}
	}

	// Voting procedures, indexed by sorted voter.
	voters := sortedVoters(body)
	for i, v := range voters {
		ve := VoteEntry{Voter: v, Votes: make(map[common.GovActionId]common.VotingProcedure)}
		for actionId, proc := range body.TxVotingProcedures[v] {
			ve.Votes[*actionId] = proc
		}
		if scr, ok := pScripts[v.Hash]; ok {
			s := scr
			ve.Script = &s
		}
		if val, ok := redeemers[common.RedeemerKey{Tag: common.RedeemerTagVoting, Index: uint32(i)}]; ok {
			rv := val
			ve.Redeemer = &rv
		}
		b.Votes = append(b.Votes, ve)
	}

	return b, nil
}
