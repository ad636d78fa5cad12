package txforge

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
)

// Anchor points at off-chain metadata (a DRep registration's bio, a
// committee resignation's reason, a governance proposal's rationale) by
// URL and content hash, mirroring common.GovAnchor.
type Anchor struct {
	Url      string
	DataHash common.Blake2b256
}

func (a Anchor) toGovAnchor() *common.GovAnchor {
	return &common.GovAnchor{
		Url:      a.Url,
		DataHash: [32]byte(a.DataHash),
	}
}

// --- DRep governance certificates ---

// RegisterDRep registers credOrAddr as a DRep, locking deposit lovelace.
// anchor may be nil.
func (a *Builder) RegisterDRep(credOrAddr any, deposit int64, anchor *Anchor) (*Builder, error) {
	cred, err := a.resolveCredential(credOrAddr)
	if err != nil {
		return a, err
	}
	cert := common.RegistrationDrepCertificate{
		CertType:       uint(common.CertificateTypeRegistrationDrep),
		DrepCredential: cred,
		Amount:         deposit,
	}
	if anchor != nil {
		cert.Anchor = anchor.toGovAnchor()
	}
	a.certificates = append(a.certificates, common.CertificateWrapper{
		Type:        uint(common.CertificateTypeRegistrationDrep),
		Certificate: &cert,
	})
	return a, nil
}

// DeregisterDRep retires credOrAddr's DRep registration, refunding deposit lovelace.
func (a *Builder) DeregisterDRep(credOrAddr any, refund int64) (*Builder, error) {
	cred, err := a.resolveCredential(credOrAddr)
	if err != nil {
		return a, err
	}
	cert := common.DeregistrationDrepCertificate{
		CertType:       uint(common.CertificateTypeDeregistrationDrep),
		DrepCredential: cred,
		Amount:         refund,
	}
	a.certificates = append(a.certificates, common.CertificateWrapper{
		Type:        uint(common.CertificateTypeDeregistrationDrep),
		Certificate: &cert,
	})
	return a, nil
}

// UpdateDRep refreshes credOrAddr's DRep anchor without moving its deposit.
func (a *Builder) UpdateDRep(credOrAddr any, anchor *Anchor) (*Builder, error) {
	cred, err := a.resolveCredential(credOrAddr)
	if err != nil {
		return a, err
	}
	cert := common.UpdateDrepCertificate{
		CertType:       uint(common.CertificateTypeUpdateDrep),
		DrepCredential: cred,
	}
	if anchor != nil {
		cert.Anchor = anchor.toGovAnchor()
	}
	a.certificates = append(a.certificates, common.CertificateWrapper{
		Type:        uint(common.CertificateTypeUpdateDrep),
		Certificate: &cert,
	})
	return a, nil
}

// --- Constitutional committee certificates ---

// AuthorizeCommitteeHot authorizes hotCred to act as the committee hot key
// for coldCred.
func (a *Builder) AuthorizeCommitteeHot(coldCred, hotCred any) (*Builder, error) {
	cold, err := a.resolveCredential(coldCred)
	if err != nil {
		return a, err
	}
	hot, err := a.resolveCredential(hotCred)
	if err != nil {
		return a, err
	}
	cert := common.AuthCommitteeHotCertificate{
		CertType:       uint(common.CertificateTypeAuthCommitteeHot),
		ColdCredential: cold,
		HotCredential:  hot,
	}
	a.certificates = append(a.certificates, common.CertificateWrapper{
		Type:        uint(common.CertificateTypeAuthCommitteeHot),
		Certificate: &cert,
	})
	return a, nil
}

// ResignCommitteeCold resigns coldCred from the constitutional committee.
// anchor may be nil.
func (a *Builder) ResignCommitteeCold(coldCred any, anchor *Anchor) (*Builder, error) {
	cold, err := a.resolveCredential(coldCred)
	if err != nil {
		return a, err
	}
	cert := common.ResignCommitteeColdCertificate{
		CertType:       uint(common.CertificateTypeResignCommitteeCold),
		ColdCredential: cold,
	}
	if anchor != nil {
		cert.Anchor = anchor.toGovAnchor()
	}
	a.certificates = append(a.certificates, common.CertificateWrapper{
		Type:        uint(common.CertificateTypeResignCommitteeCold),
		Certificate: &cert,
	})
	return a, nil
}

// --- Votes ---

// Vote stages a voting procedure for voter against actionId. A second Vote
// call for the same (voter, actionId) pair overwrites the first, matching
// the ledger's own last-write-wins merge of duplicate voter entries within
// a transaction.
func (a *Builder) Vote(voter common.Voter, actionId common.GovActionId, procedure common.VotingProcedure) *Builder {
	if a.votingProcedures == nil {
		a.votingProcedures = make(map[common.Voter]map[common.GovActionId]common.VotingProcedure)
	}
	votes, ok := a.votingProcedures[voter]
	if !ok {
		votes = make(map[common.GovActionId]common.VotingProcedure)
		a.votingProcedures[voter] = votes
	}
	votes[actionId] = procedure
	return a
}

// AttachVoteRedeemer stages a voting redeemer for a script-witnessed vote
// cast by voter on actionId, following the same script-attachment shape as
// CollectFrom.
func (a *Builder) AttachVoteRedeemer(voter common.Voter, actionId common.GovActionId, redeemer common.Datum, exUnits common.ExUnits) *Builder {
	if a.voteRedeemers == nil {
		a.voteRedeemers = make(map[string]redeemerEntry)
	}
	key := voteRedeemerKey(voter, actionId)
	a.voteRedeemers[key] = redeemerEntry{
		Tag:     common.RedeemerTagVoting,
		Data:    redeemer,
		ExUnits: exUnits,
	}
	a.isEstimateRequired = true
	return a
}

func voteRedeemerKey(voter common.Voter, actionId common.GovActionId) string {
	return fmt.Sprintf("%x:%d:%d:%x", actionId.TransactionId, actionId.GovActionIdx, voter.Type, voter.Hash)
}

// --- Proposal procedures ---

// Propose stages a governance action proposal. Proposals never require a
// Propose redeemer unless a Plutus script witnesses the proposal policy,
// so staging one never forces execution unit estimation on its own.
func (a *Builder) Propose(procedure common.ProposalProcedure) *Builder {
	a.proposalProcedures = append(a.proposalProcedures, procedure)
	return a
}

// --- Chained transactions ---

// ChainTx decodes a prior, not-yet-submitted transaction from its hex CBOR
// and registers its outputs as spendable UTxOs for this builder's coin
// selection, so a follow-up transaction can spend them before the first one
// is ever submitted to a node. The outputs are not handed to the chain
// context: Complete's execution-unit estimation sends only the new
// transaction's CBOR to Context.EvaluateTx, so a chained output resolves
// there only if the context itself already knows it.
func (a *Builder) ChainTx(txHex string) (*Builder, error) {
	txBytes, err := hex.DecodeString(txHex)
	if err != nil {
		return a, fmt.Errorf("invalid hex: %w", err)
	}
	var prior conway.ConwayTransaction
	if _, err := cbor.Decode(txBytes, &prior); err != nil {
		return a, fmt.Errorf("failed to decode chained transaction: %w", err)
	}
	bodyCbor, err := cbor.Encode(&prior.Body)
	if err != nil {
		return a, fmt.Errorf("failed to re-encode chained transaction body: %w", err)
	}
	prior.Body.SetCbor(bodyCbor)
	txHash := prior.Body.Id()
	for idx, out := range prior.Body.TxOutputs {
		if idx > math.MaxUint32 {
			return a, fmt.Errorf("chained transaction has more than %d outputs", math.MaxUint32)
		}
		out := out
		a.utxos = append(a.utxos, common.Utxo{
			Id: shelley.ShelleyTransactionInput{
				TxId:        txHash,
				OutputIndex: uint32(idx),
			},
			Output: &out,
		})
	}
	return a, nil
}
