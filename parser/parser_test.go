package parser_test

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"testing"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger/babbage"
	"github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"
	"github.com/blinklabs-io/gouroboros/ledger/mary"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
	"github.com/blinklabs-io/plutigo/data"

	txforge "github.com/cardano-forge/txforge"
	"github.com/cardano-forge/txforge/backend/fixed"
	"github.com/cardano-forge/txforge/parser"
)

var testAddrBech32 = func() string {
	var raw [57]byte
	raw[0] = 0x00
	raw[1] = 0xAA
	raw[29] = 0xBB
	addr, _ := common.NewAddressFromBytes(raw[:])
	return addr.String()
}()

func testAddress(t *testing.T) common.Address {
	t.Helper()
	addr, err := common.NewAddress(testAddrBech32)
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func utxoKey(txHash common.Blake2b256, index uint32) string {
	return hex.EncodeToString(txHash.Bytes()) + "#" + strconv.FormatUint(uint64(index), 10)
}

// TestParseReserializeRoundTrip builds a simple transfer transaction,
// parses it back into a staged Body, re-serializes that Body, and checks
// that the two encodings describe the same transaction.
func TestParseReserializeRoundTrip(t *testing.T) {
	cc := fixed.NewEmptyFixedChainContext()
	addr := testAddress(t)

	var txHash common.Blake2b256
	txHash[0] = 0x01
	input := shelley.ShelleyTransactionInput{TxId: txHash, OutputIndex: 0}
	output := babbage.BabbageTransactionOutput{
		OutputAddress: addr,
		OutputAmount:  mary.MaryTransactionOutputValue{Amount: 10_000_000},
	}
	utxo := common.Utxo{Id: input, Output: &output}
	cc.AddUtxo(addr, utxo)

	w := txforge.NewExternalWallet(addr)
	p, err := txforge.NewPayment(testAddrBech32, 2_000_000, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := txforge.New(cc).
		SetWallet(w).
		AddPayment(p).
		SetTtl(50000000).
		Complete()
	if err != nil {
		t.Fatal(err)
	}

	origCbor, err := b.GetTxCbor()
	if err != nil {
		t.Fatal(err)
	}

	resolved := map[string]common.Utxo{
		utxoKey(txHash, 0): utxo,
	}

	body, err := parser.Parse(origCbor, resolved)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(body.Inputs) != 1 {
		t.Fatalf("expected 1 parsed input, got %d", len(body.Inputs))
	}
	if body.Inputs[0].Resolved.Output == nil {
		t.Fatal("expected input to resolve against the supplied UTxO set")
	}
	if body.Fee == 0 {
		t.Error("expected non-zero parsed fee")
	}

	reserialized, err := body.Reserialize()
	if err != nil {
		t.Fatalf("reserialize failed: %v", err)
	}

	var origTx, reserializedTx conway.ConwayTransaction
	if _, err := cbor.Decode(origCbor, &origTx); err != nil {
		t.Fatal(err)
	}
	if _, err := cbor.Decode(reserialized, &reserializedTx); err != nil {
		t.Fatal(err)
	}

	if origTx.Body.TxFee != reserializedTx.Body.TxFee {
		t.Errorf("fee mismatch: got %d, want %d", reserializedTx.Body.TxFee, origTx.Body.TxFee)
	}
	if origTx.Body.Ttl != reserializedTx.Body.Ttl {
		t.Errorf("ttl mismatch: got %d, want %d", reserializedTx.Body.Ttl, origTx.Body.Ttl)
	}
	if len(origTx.Body.TxOutputs) != len(reserializedTx.Body.TxOutputs) {
		t.Fatalf("output count mismatch: got %d, want %d", len(reserializedTx.Body.TxOutputs), len(origTx.Body.TxOutputs))
	}
	for i := range origTx.Body.TxOutputs {
		want := origTx.Body.TxOutputs[i].OutputAmount.Amount
		got := reserializedTx.Body.TxOutputs[i].OutputAmount.Amount
		if want != got {
			t.Errorf("output %d amount mismatch: got %d, want %d", i, got, want)
		}
	}
	if len(origTx.Body.TxInputs.Items()) != len(reserializedTx.Body.TxInputs.Items()) {
		t.Fatalf("input count mismatch: got %d, want %d", len(reserializedTx.Body.TxInputs.Items()), len(origTx.Body.TxInputs.Items()))
	}
}

// TestParseClassifiesInlineScriptAndDatum verifies that a script-locked
// spend whose datum and reference script both live on the resolved output
// (rather than the witness set) is classified Inline, not Provided.
func TestParseClassifiesInlineScriptAndDatum(t *testing.T) {
	addr := testAddress(t)
	script := common.PlutusV2Script([]byte{0x01, 0x02, 0x03})

	var txHash common.Blake2b256
	txHash[0] = 0x02
	input := shelley.ShelleyTransactionInput{TxId: txHash, OutputIndex: 0}

	datum := &common.Datum{Data: data.NewInteger(big.NewInt(7))}
	datumOpt, err := txforge.NewDatumOptionInline(datum)
	if err != nil {
		t.Fatal(err)
	}
	scriptRef, err := txforge.NewScriptRef(script)
	if err != nil {
		t.Fatal(err)
	}
	output := babbage.BabbageTransactionOutput{
		OutputAddress:  addr,
		OutputAmount:   mary.MaryTransactionOutputValue{Amount: 5_000_000},
		DatumOption:    datumOpt,
		TxOutScriptRef: scriptRef,
	}
	utxo := common.Utxo{Id: input, Output: &output}

	body := conway.ConwayTransactionBody{
		TxInputs:  conway.NewConwayTransactionInputSet([]shelley.ShelleyTransactionInput{input}),
		TxOutputs: []babbage.BabbageTransactionOutput{output},
		TxFee:     200000,
	}
	tx := conway.ConwayTransaction{Body: body, TxIsValid: true}
	txBytes, err := cbor.Encode(&tx)
	if err != nil {
		t.Fatal(err)
	}

	resolved := map[string]common.Utxo{
		utxoKey(txHash, 0): utxo,
	}

	parsed, err := parser.Parse(txBytes, resolved)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(parsed.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(parsed.Inputs))
	}
	entry := parsed.Inputs[0]
	if entry.Datum == nil || entry.Datum.Kind != parser.Inline {
		t.Errorf("expected inline datum classification, got %+v", entry.Datum)
	}
	if entry.Script == nil || entry.Script.Kind != parser.Inline {
		t.Errorf("expected inline script classification, got %+v", entry.Script)
	}
}
