// Package coinselect implements the largest-first-with-threshold UTxO
// selection algorithm the transaction builder uses to cover outputs,
// deposits, and fees that preselected inputs do not already satisfy.
package coinselect

import (
	"errors"
	"math/big"
	"sort"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/common"
)

// Requirement is the coin plus multi-asset amount coin selection must
// cover, or the amount already covered by preselected inputs.
type Requirement struct {
	Coin   uint64
	Assets *common.MultiAsset[common.MultiAssetTypeOutput]
}

func (r Requirement) hasPositiveAssets() bool {
	if r.Assets == nil {
		return false
	}
	for _, policyId := range r.Assets.Policies() {
		for _, name := range r.Assets.Assets(policyId) {
			if qty := r.Assets.Asset(policyId, name); qty != nil && qty.Sign() > 0 {
				return true
			}
		}
	}
	return false
}

// cloneAssets deep-copies a MultiAsset so selection can mutate a working
// "remaining" total without touching the caller's value.
func cloneAssets(m *common.MultiAsset[common.MultiAssetTypeOutput]) *common.MultiAsset[common.MultiAssetTypeOutput] {
	if m == nil {
		return nil
	}
	policies := m.Policies()
	raw := make(map[common.Blake2b224]map[cbor.ByteString]common.MultiAssetTypeOutput, len(policies))
	for _, policyId := range policies {
		names := m.Assets(policyId)
		assetMap := make(map[cbor.ByteString]common.MultiAssetTypeOutput, len(names))
		for _, name := range names {
			val := m.Asset(policyId, name)
			assetMap[cbor.NewByteString(name)] = new(big.Int).Set(val)
		}
		raw[policyId] = assetMap
	}
	result := common.NewMultiAsset[common.MultiAssetTypeOutput](raw)
	return &result
}

// subtractSaturating removes the quantities present in spent from
// remaining, clamping each asset at zero rather than going negative.
func subtractSaturating(remaining, spent *common.MultiAsset[common.MultiAssetTypeOutput]) {
	if remaining == nil || spent == nil {
		return
	}
	for _, policyId := range spent.Policies() {
		for _, name := range spent.Assets(policyId) {
			spentQty := spent.Asset(policyId, name)
			reqQty := remaining.Asset(policyId, name)
			if reqQty == nil || reqQty.Sign() <= 0 {
				continue
			}
			var toSubtract *big.Int
			if spentQty.Cmp(reqQty) >= 0 {
				toSubtract = new(big.Int).Set(reqQty)
			} else {
				toSubtract = new(big.Int).Set(spentQty)
			}
			negAssets := common.NewMultiAsset[common.MultiAssetTypeOutput](
				map[common.Blake2b224]map[cbor.ByteString]common.MultiAssetTypeOutput{
					policyId: {cbor.NewByteString(name): new(big.Int).Neg(toSubtract)},
				},
			)
			remaining.Add(&negAssets)
		}
	}
}

// SortCandidates orders UTxOs ADA-only-first (descending amount), then
// UTxOs carrying native assets (also descending amount). Largest-first
// ordering tends to minimize the number of inputs a single selection pass
// consumes.
func SortCandidates(utxos []common.Utxo) []common.Utxo {
	res := make([]common.Utxo, len(utxos))
	copy(res, utxos)
	sort.Slice(res, func(i, j int) bool {
		iHasAssets := res[i].Output.Assets() != nil
		jHasAssets := res[j].Output.Assets() != nil
		if iHasAssets == jHasAssets {
			iAmt := res[i].Output.Amount()
			jAmt := res[j].Output.Amount()
			if iAmt != nil && jAmt != nil {
				return iAmt.Cmp(jAmt) > 0
			}
			return false
		}
		return jHasAssets
	})
	return res
}

// Select walks candidates -- normally pre-sorted with SortCandidates --
// greedily adding UTxOs until required is covered by have plus the
// selected set. skip reports whether a candidate (identified by ref) is
// already committed elsewhere, e.g. as a preselected input or collateral,
// and should not be considered again.
//
// Select does not try to minimize the input count beyond following
// candidate order; that ordering is the caller's responsibility.
func Select(
	candidates []common.Utxo,
	required, have Requirement,
	ref func(common.Utxo) string,
	skip func(string) bool,
) ([]common.Utxo, []string, error) {
	if have.Coin >= required.Coin && !exceedsAssets(required, have) {
		return nil, nil, nil
	}

	remaining := Requirement{}
	if required.Coin > have.Coin {
		remaining.Coin = required.Coin - have.Coin
	}
	if required.Assets != nil {
		remaining.Assets = cloneAssets(required.Assets)
		if have.Assets != nil {
			subtractSaturating(remaining.Assets, have.Assets)
		}
	}

	var selected []common.Utxo
	var selectedRefs []string

	for _, utxo := range candidates {
		key := ref(utxo)
		if skip != nil && skip(key) {
			continue
		}

		selected = append(selected, utxo)
		selectedRefs = append(selectedRefs, key)

		if amt := utxo.Output.Amount(); amt != nil {
			if remaining.Coin <= amt.Uint64() {
				remaining.Coin = 0
			} else {
				remaining.Coin -= amt.Uint64()
			}
		}
		if remaining.Assets != nil && utxo.Output.Assets() != nil {
			subtractSaturating(remaining.Assets, utxo.Output.Assets())
		}

		if remaining.Coin == 0 && !remaining.hasPositiveAssets() {
			return selected, selectedRefs, nil
		}
	}

	return nil, nil, errors.New("insufficient UTxOs to cover required value")
}

// exceedsAssets reports whether required carries asset quantities that have
// does not fully cover.
func exceedsAssets(required, have Requirement) bool {
	if required.Assets == nil {
		return false
	}
	remaining := cloneAssets(required.Assets)
	if have.Assets != nil {
		subtractSaturating(remaining, have.Assets)
	}
	return Requirement{Assets: remaining}.hasPositiveAssets()
}
