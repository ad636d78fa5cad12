// Package txerr defines sentinel errors for the transaction builder,
// serializer, coin selection, parser, and phase-2 evaluator packages. Call
// sites wrap these with fmt.Errorf("...: %w", ...) for context, the same way
// the rest of the codebase annotates errors.
//
// Four of them are returned by code in this module: ErrInsufficientFunds
// (builder coin selection), ErrInvalidEncoding (parser.Parse), and
// ErrInvalidTxEra and ErrMissingCostModels (phase2.Evaluate). No function in
// this module returns the others; each one's comment names the error case it
// stands for.
package txerr

import "errors"

var (
	// ErrInvalidEncoding is returned when CBOR bytes do not decode into the
	// expected ledger shape (malformed input, wrong era tag, truncated array).
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrInvalidStagingTransition names the case where a builder staging slot
	// (input/output/mint/cert/vote) is mutated out of the order the facade
	// expects.
	ErrInvalidStagingTransition = errors.New("invalid staging transition")

	// ErrIncompleteScriptInput names the case where a script-locked input is
	// collected without a matching redeemer, datum, or script witness.
	ErrIncompleteScriptInput = errors.New("incomplete script input")

	// ErrDanglingRedeemer names the case where a redeemer was staged for a
	// spend/mint/cert/withdrawal/vote key that never made it into the final
	// transaction body, so its (tag, index) binding cannot be resolved.
	ErrDanglingRedeemer = errors.New("dangling redeemer with no matching transaction element")

	// ErrMissingWitness names the case where the witness set is missing a
	// vkey, native script, or Plutus script witness required to satisfy an
	// input, certificate, mint, or withdrawal.
	ErrMissingWitness = errors.New("missing witness")

	// ErrMissingScriptSource names the case where a script hash is referenced by
	// an input, mint, certificate, or withdrawal but the script body is not
	// attached and no matching reference input carries it.
	ErrMissingScriptSource = errors.New("missing script source")

	// ErrMissingDatumSource names the case where a Plutus input carries a datum
	// hash but neither an inline datum nor a witness-set datum resolves it.
	ErrMissingDatumSource = errors.New("missing datum source")

	// ErrMissingRedeemer names the case where phase-2 evaluation is requested for
	// a script purpose that has no redeemer bound to it.
	ErrMissingRedeemer = errors.New("missing redeemer")

	// ErrInsufficientFunds is returned when coin selection or balancing
	// cannot cover the requested outputs, deposits, and fee from the
	// available inputs.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientChange names the case where the computed change value is
	// non-empty but falls below the minimum ADA required for its own output.
	ErrInsufficientChange = errors.New("insufficient change for minimum UTxO")

	// ErrMissingCostModels is returned by phase-2 evaluation when the
	// protocol parameters do not carry a cost model for each of PlutusV1,
	// PlutusV2 and PlutusV3.
	ErrMissingCostModels = errors.New("missing cost models for script language")

	// ErrInvalidTxEra is returned by phase-2 evaluation when the supplied
	// CBOR does not decode as a Conway-era transaction.
	ErrInvalidTxEra = errors.New("invalid transaction era")

	// ErrInvalidScriptRef names the case where a reference script cannot be
	// decoded into a recognized native or Plutus script variant.
	ErrInvalidScriptRef = errors.New("invalid script reference")

	// ErrFeeMismatch names the case where a caller forces a fee that is lower
	// than the minimum fee computed for the final transaction.
	ErrFeeMismatch = errors.New("forced fee below minimum required fee")
)
