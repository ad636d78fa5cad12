package phase2

import (
	"fmt"

	"github.com/cardano-forge/txforge/backend"
	"github.com/cardano-forge/txforge/txerr"
	"github.com/cardano-forge/txforge/uplc"
)

// CostModels bundles the per-language cost model used for budgeting script
// evaluation, built from the flat parameter arrays the ledger publishes
// under the PlutusV1/PlutusV2/PlutusV3 protocol parameter keys.
type CostModels struct {
	V1 uplc.CostModel
	V2 uplc.CostModel
	V3 uplc.CostModel
}

// Get returns the cost model for version.
func (c CostModels) Get(version LanguageVersion) uplc.CostModel {
	switch version {
	case V1:
		return c.V1
	case V2:
		return c.V2
	default:
		return c.V3
	}
}

// BuildCostModels constructs a CostModels from a ProtocolParameters'
// CostModels map, matching the "PlutusV1"/"PlutusV2"/"PlutusV3" keys used
// across every backend's protocol parameter fetch path. All three keys must
// be present; otherwise it fails with txerr.ErrMissingCostModels.
func BuildCostModels(pp backend.ProtocolParameters) (CostModels, error) {
	for _, lang := range []string{"PlutusV1", "PlutusV2", "PlutusV3"} {
		if _, ok := pp.CostModels[lang]; !ok {
			return CostModels{}, fmt.Errorf("phase2: %w: %s", txerr.ErrMissingCostModels, lang)
		}
	}
	return CostModels{
		V1: uplc.NewCostModel(pp.CostModels["PlutusV1"]),
		V2: uplc.NewCostModel(pp.CostModels["PlutusV2"]),
		V3: uplc.NewCostModel(pp.CostModels["PlutusV3"]),
	}, nil
}
