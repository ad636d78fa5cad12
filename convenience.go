package txforge

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger/common"
)

// --- Bech32 Convenience Methods ---

// AddInputAddressFromBech32 adds a bech32 address whose UTxOs should be used for coin selection.
func (a *Builder) AddInputAddressFromBech32(bech32 string) (*Builder, error) {
	addr, err := common.NewAddress(bech32)
	if err != nil {
		return a, fmt.Errorf("invalid bech32 address: %w", err)
	}
	a.inputAddresses = append(a.inputAddresses, addr)
	return a, nil
}

// PayToAddressBech32 creates a simple payment to a bech32 address.
func (a *Builder) PayToAddressBech32(bech32 string, lovelace int64, units ...Unit) (*Builder, error) {
	addr, err := common.NewAddress(bech32)
	if err != nil {
		return a, fmt.Errorf("invalid bech32 address: %w", err)
	}
	a.PayToAddress(addr, lovelace, units...)
	return a, nil
}

// SetChangeAddressBech32 sets the change address from a bech32 string.
func (a *Builder) SetChangeAddressBech32(bech32 string) (*Builder, error) {
	addr, err := common.NewAddress(bech32)
	if err != nil {
		return a, fmt.Errorf("invalid bech32 address: %w", err)
	}
	a.SetChangeAddress(addr)
	return a, nil
}

// --- Datum Convenience Methods ---

// AttachDatum adds a datum to the witness set. Alias for AddDatum.
func (a *Builder) AttachDatum(datum *common.Datum) *Builder {
	return a.AddDatum(datum)
}

// PayToContractAsHash creates a payment to a script address with a pre-computed datum hash.
// Unlike PayToContractWithDatumHash, the full datum is NOT added to the witness set.
func (a *Builder) PayToContractAsHash(addr common.Address, datumHash []byte, lovelace int64, units ...Unit) *Builder {
	p := &Payment{
		Receiver:  addr,
		Lovelace:  lovelace,
		Units:     units,
		DatumHash: datumHash,
	}
	a.payments = append(a.payments, p)
	return a
}

// --- Version-Specific Reference Script Methods ---

// PayToAddressWithV1ReferenceScript pays to an address with a Plutus V1 reference script attached.
func (a *Builder) PayToAddressWithV1ReferenceScript(addr common.Address, lovelace int64, script common.PlutusV1Script, units ...Unit) (*Builder, error) {
	return a.PayToAddressWithReferenceScript(addr, lovelace, script, units...)
}

// PayToAddressWithV2ReferenceScript pays to an address with a Plutus V2 reference script attached.
func (a *Builder) PayToAddressWithV2ReferenceScript(addr common.Address, lovelace int64, script common.PlutusV2Script, units ...Unit) (*Builder, error) {
	return a.PayToAddressWithReferenceScript(addr, lovelace, script, units...)
}

// PayToAddressWithV3ReferenceScript pays to an address with a Plutus V3 reference script attached.
func (a *Builder) PayToAddressWithV3ReferenceScript(addr common.Address, lovelace int64, script common.PlutusV3Script, units ...Unit) (*Builder, error) {
	return a.PayToAddressWithReferenceScript(addr, lovelace, script, units...)
}

// PayToContractWithReferenceScript pays to a script address with an inline datum and a reference script.
func (a *Builder) PayToContractWithReferenceScript(addr common.Address, datum *common.Datum, lovelace int64, script common.Script, units ...Unit) (*Builder, error) {
	ref, err := NewScriptRef(script)
	if err != nil {
		return a, fmt.Errorf("failed to create script ref: %w", err)
	}
	p := &Payment{
		Receiver:  addr,
		Lovelace:  lovelace,
		Units:     units,
		Datum:     datum,
		IsInline:  true,
		ScriptRef: ref,
	}
	a.payments = append(a.payments, p)
	return a, nil
}

// PayToContractWithV1ReferenceScript pays to a script address with an inline datum and a Plutus V1 reference script.
func (a *Builder) PayToContractWithV1ReferenceScript(addr common.Address, datum *common.Datum, lovelace int64, script common.PlutusV1Script, units ...Unit) (*Builder, error) {
	return a.PayToContractWithReferenceScript(addr, datum, lovelace, script, units...)
}

// PayToContractWithV2ReferenceScript pays to a script address with an inline datum and a Plutus V2 reference script.
func (a *Builder) PayToContractWithV2ReferenceScript(addr common.Address, datum *common.Datum, lovelace int64, script common.PlutusV2Script, units ...Unit) (*Builder, error) {
	return a.PayToContractWithReferenceScript(addr, datum, lovelace, script, units...)
}

// PayToContractWithV3ReferenceScript pays to a script address with an inline datum and a Plutus V3 reference script.
func (a *Builder) PayToContractWithV3ReferenceScript(addr common.Address, datum *common.Datum, lovelace int64, script common.PlutusV3Script, units ...Unit) (*Builder, error) {
	return a.PayToContractWithReferenceScript(addr, datum, lovelace, script, units...)
}

// --- Staking FromAddress / FromBech32 Convenience Methods ---

// RegisterStakeFromAddress creates a stake registration certificate from an address.
func (a *Builder) RegisterStakeFromAddress(addr common.Address) (*Builder, error) {
	return a.RegisterStake(addr)
}

// RegisterStakeFromBech32 creates a stake registration certificate from a bech32 address.
func (a *Builder) RegisterStakeFromBech32(bech32 string) (*Builder, error) {
	return a.RegisterStake(bech32)
}

// DeregisterStakeFromAddress creates a stake deregistration certificate from an address.
func (a *Builder) DeregisterStakeFromAddress(addr common.Address) (*Builder, error) {
	return a.DeregisterStake(addr)
}

// DeregisterStakeFromBech32 creates a stake deregistration certificate from a bech32 address.
func (a *Builder) DeregisterStakeFromBech32(bech32 string) (*Builder, error) {
	return a.DeregisterStake(bech32)
}

// DelegateStakeFromAddress creates a stake delegation certificate from an address.
func (a *Builder) DelegateStakeFromAddress(addr common.Address, poolHash common.Blake2b224) (*Builder, error) {
	return a.DelegateStake(addr, poolHash)
}

// DelegateStakeFromBech32 creates a stake delegation certificate from a bech32 address.
func (a *Builder) DelegateStakeFromBech32(bech32 string, poolHash common.Blake2b224) (*Builder, error) {
	return a.DelegateStake(bech32, poolHash)
}

// DelegateVoteFromAddress creates a vote delegation certificate from an address.
func (a *Builder) DelegateVoteFromAddress(addr common.Address, drep common.Drep) (*Builder, error) {
	return a.DelegateVote(addr, drep)
}

// DelegateVoteFromBech32 creates a vote delegation certificate from a bech32 address.
func (a *Builder) DelegateVoteFromBech32(bech32 string, drep common.Drep) (*Builder, error) {
	return a.DelegateVote(bech32, drep)
}

// DelegateStakeAndVoteFromAddress creates a combined stake+vote delegation certificate from an address.
func (a *Builder) DelegateStakeAndVoteFromAddress(addr common.Address, poolHash common.Blake2b224, drep common.Drep) (*Builder, error) {
	return a.DelegateStakeAndVote(addr, poolHash, drep)
}

// DelegateStakeAndVoteFromBech32 creates a combined stake+vote delegation certificate from a bech32 address.
func (a *Builder) DelegateStakeAndVoteFromBech32(bech32 string, poolHash common.Blake2b224, drep common.Drep) (*Builder, error) {
	return a.DelegateStakeAndVote(bech32, poolHash, drep)
}

// RegisterAndDelegateStakeFromAddress creates a combined registration+delegation certificate from an address.
func (a *Builder) RegisterAndDelegateStakeFromAddress(addr common.Address, poolHash common.Blake2b224, coin int64) (*Builder, error) {
	return a.RegisterAndDelegateStake(addr, poolHash, coin)
}

// RegisterAndDelegateStakeFromBech32 creates a combined registration+delegation certificate from a bech32 address.
func (a *Builder) RegisterAndDelegateStakeFromBech32(bech32 string, poolHash common.Blake2b224, coin int64) (*Builder, error) {
	return a.RegisterAndDelegateStake(bech32, poolHash, coin)
}

// RegisterAndDelegateVoteFromAddress creates a combined registration+vote delegation certificate from an address.
func (a *Builder) RegisterAndDelegateVoteFromAddress(addr common.Address, drep common.Drep, coin int64) (*Builder, error) {
	return a.RegisterAndDelegateVote(addr, drep, coin)
}

// RegisterAndDelegateVoteFromBech32 creates a combined registration+vote delegation certificate from a bech32 address.
func (a *Builder) RegisterAndDelegateVoteFromBech32(bech32 string, drep common.Drep, coin int64) (*Builder, error) {
	return a.RegisterAndDelegateVote(bech32, drep, coin)
}

// RegisterAndDelegateStakeAndVoteFromAddress creates a combined registration+stake+vote certificate from an address.
func (a *Builder) RegisterAndDelegateStakeAndVoteFromAddress(addr common.Address, poolHash common.Blake2b224, drep common.Drep, coin int64) (*Builder, error) {
	return a.RegisterAndDelegateStakeAndVote(addr, poolHash, drep, coin)
}

// RegisterAndDelegateStakeAndVoteFromBech32 creates a combined registration+stake+vote certificate from a bech32 address.
func (a *Builder) RegisterAndDelegateStakeAndVoteFromBech32(bech32 string, poolHash common.Blake2b224, drep common.Drep, coin int64) (*Builder, error) {
	return a.RegisterAndDelegateStakeAndVote(bech32, poolHash, drep, coin)
}
