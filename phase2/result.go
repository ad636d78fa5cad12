package phase2

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger/common"
)

// RedeemerEvalResult is the outcome of running one redeemer's script
// through the uplc machine. Exactly one of Failure being nil or non-nil
// tells the caller whether the script passed; Evaluate never aborts the
// whole call because one redeemer's script crashed, so callers can see
// which redeemers passed and which failed in the same response.
type RedeemerEvalResult struct {
	Tag     common.RedeemerTag
	Index   uint32
	Budget  common.ExUnits
	Logs    []string
	Failure *ScriptExecutionFailure
}

// ScriptExecutionFailure records a single redeemer's UPLC evaluation
// failure -- an explicit Error term or budget exhaustion -- along with
// whatever partial budget the machine had spent and whatever trace log
// entries it emitted before failing.
type ScriptExecutionFailure struct {
	Index         uint32
	Tag           common.RedeemerTag
	PartialBudget common.ExUnits
	Message       string
	Logs          []string
}

func (f *ScriptExecutionFailure) Error() string {
	return fmt.Sprintf("phase2: script execution failed for %s#%d: %s", redeemerTagName(f.Tag), f.Index, f.Message)
}
