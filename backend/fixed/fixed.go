package fixed

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/cardano-forge/txforge/backend"
	"github.com/cardano-forge/txforge/phase2"
)

// FixedChainContext is a backend with preset protocol/genesis parameters and UTxOs.
// Useful for testing without a live chain connection.
type FixedChainContext struct {
	protocolParams backend.ProtocolParameters
	genesisParams  backend.GenesisParameters
	networkId      uint8
	slotConfig     phase2.SlotConfig
	mu             sync.RWMutex
	utxos          map[string][]common.Utxo // keyed by address string
	byRef          map[string]common.Utxo   // keyed by "txidhex#index"
}

// NewFixedChainContext creates a new FixedChainContext with the given protocol parameters.
func NewFixedChainContext(pp backend.ProtocolParameters, gp backend.GenesisParameters, networkId uint8) *FixedChainContext {
	return &FixedChainContext{
		protocolParams: pp,
		genesisParams:  gp,
		networkId:      networkId,
		slotConfig:     phase2.MainnetSlotConfig,
		utxos:          make(map[string][]common.Utxo),
		byRef:          make(map[string]common.Utxo),
	}
}

// SetSlotConfig overrides the slot-to-time configuration used to build the
// validity range when evaluating Plutus scripts (defaults to mainnet).
func (f *FixedChainContext) SetSlotConfig(cfg phase2.SlotConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slotConfig = cfg
}

func utxoRefKey(u common.Utxo) string {
	return fmt.Sprintf("%s#%d", hex.EncodeToString(u.Id.Id().Bytes()), u.Id.Index())
}

// NewEmptyFixedChainContext creates a FixedChainContext with default preprod parameters.
func NewEmptyFixedChainContext() *FixedChainContext {
	pp := backend.ProtocolParameters{
		MinFeeConstant:    155381,
		MinFeeCoefficient: 44,
		MaxTxSize:         16384,
		CoinsPerUtxoByte:  "4310",
		CollateralPercent: 150,
		MaxCollateralInputs: 3,
		MaxValSize:        "5000",
		PriceMem:          0.0577,
		PriceStep:         0.0000721,
		MaxTxExMem:        "14000000",
		MaxTxExSteps:      "10000000000",
		KeyDeposits:       "2000000",
		PoolDeposits:      "500000000",
	}
	gp := backend.GenesisParameters{
		NetworkMagic: 1,
	}
	return NewFixedChainContext(pp, gp, 0)
}

// AddUtxo adds a UTxO to the fixed context for the given address.
func (f *FixedChainContext) AddUtxo(addr common.Address, utxo common.Utxo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := addr.String()
	f.utxos[key] = append(f.utxos[key], utxo)
	f.byRef[utxoRefKey(utxo)] = utxo
}

func (f *FixedChainContext) ProtocolParams() (backend.ProtocolParameters, error) {
	pp := f.protocolParams
	if pp.CostModels != nil {
		cm := make(map[string][]int64, len(pp.CostModels))
		for k, v := range pp.CostModels {
			dup := make([]int64, len(v))
			copy(dup, v)
			cm[k] = dup
		}
		pp.CostModels = cm
	}
	return pp, nil
}

func (f *FixedChainContext) GenesisParams() (backend.GenesisParameters, error) {
	return f.genesisParams, nil
}

func (f *FixedChainContext) NetworkId() uint8 {
	return f.networkId
}

func (f *FixedChainContext) CurrentEpoch() (uint64, error) {
	return 0, nil
}

func (f *FixedChainContext) MaxTxFee() (uint64, error) {
	pp, err := f.ProtocolParams()
	if err != nil {
		return 0, err
	}
	return backend.ComputeMaxTxFee(pp)
}

func (f *FixedChainContext) Tip() (uint64, error) {
	return 0, nil
}

func (f *FixedChainContext) Utxos(address common.Address) ([]common.Utxo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	src := f.utxos[address.String()]
	result := make([]common.Utxo, len(src))
	copy(result, src)
	return result, nil
}

func (f *FixedChainContext) SubmitTx(_ []byte) (common.Blake2b256, error) {
	return common.Blake2b256{}, errors.New("cannot submit tx with fixed chain context")
}

// EvaluateTx runs local phase-2 evaluation over the preset UTxO set using
// the uplc machine, rather than delegating to a live node. It adapts
// phase2.Evaluate's per-redeemer results onto the ChainContext interface's
// map shape; if any redeemer's script failed, the first failure's message
// is returned as the call's error, matching how a live node reports phase-2
// validation failure for the whole transaction.
func (f *FixedChainContext) EvaluateTx(txCbor []byte) (map[common.RedeemerKey]common.ExUnits, error) {
	results, err := f.EvaluateTxDetailed(txCbor, nil)
	if err != nil {
		return nil, err
	}
	units := make(map[common.RedeemerKey]common.ExUnits, len(results))
	for _, r := range results {
		if r.Failure != nil {
			return nil, r.Failure
		}
		units[common.RedeemerKey{Tag: r.Tag, Index: r.Index}] = r.Budget
	}
	return units, nil
}

// EvaluateTxDetailed runs local phase-2 evaluation and returns the full
// per-redeemer result set, including any ScriptExecutionFailure entries,
// without collapsing them into a single error. additionalTxs extends the
// resolved UTxO set with chained, not-yet-submitted transactions.
func (f *FixedChainContext) EvaluateTxDetailed(txCbor []byte, additionalTxs [][]byte) ([]phase2.RedeemerEvalResult, error) {
	f.mu.RLock()
	resolved := make(map[string]common.Utxo, len(f.byRef))
	for k, v := range f.byRef {
		resolved[k] = v
	}
	pp := f.protocolParams
	slotCfg := f.slotConfig
	f.mu.RUnlock()

	return phase2.Evaluate(txCbor, resolved, additionalTxs, pp, slotCfg)
}

func (f *FixedChainContext) UtxoByRef(txHash common.Blake2b256, index uint32) (*common.Utxo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	key := fmt.Sprintf("%s#%d", hex.EncodeToString(txHash.Bytes()), index)
	u, ok := f.byRef[key]
	if !ok {
		return nil, fmt.Errorf("utxo %s not found in fixed chain context", key)
	}
	return &u, nil
}

func (f *FixedChainContext) ScriptCbor(scriptHash common.Blake2b224) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, u := range f.byRef {
		ref := u.Output.ScriptRef()
		if ref == nil {
			continue
		}
		if ref.Script.Hash() != scriptHash {
			continue
		}
		switch s := ref.Script.(type) {
		case common.PlutusV1Script:
			return []byte(s), nil
		case common.PlutusV2Script:
			return []byte(s), nil
		case common.PlutusV3Script:
			return []byte(s), nil
		}
	}
	return nil, fmt.Errorf("script %x not found in fixed chain context", scriptHash.Bytes())
}
