package plutusdata

import (
	"math/big"
	"testing"

	"github.com/blinklabs-io/plutigo/data"
)

type simpleDatum struct {
	_      struct{} `plutusType:"DefList" plutusConstr:"0"`
	Amount int64    `plutusType:"Int"`
	Name   []byte   `plutusType:"Bytes"`
}

type indefDatum struct {
	_      struct{} `plutusType:"IndefList" plutusConstr:"1"`
	Pkh    []byte   `plutusType:"Bytes"`
	Amount int64    `plutusType:"Int"`
}

type mapDatum struct {
	_     struct{} `plutusType:"Map"`
	Name  string   `plutusType:"StringBytes" plutusKey:"name"`
	Value int64    `plutusType:"Int" plutusKey:"value"`
}

type boolDatum struct {
	_      struct{} `plutusType:"DefList" plutusConstr:"0"`
	Active bool     `plutusType:"Bool"`
}

type bigIntDatum struct {
	_     struct{} `plutusType:"DefList" plutusConstr:"0"`
	Value *big.Int `plutusType:"BigInt"`
}

type hexDatum struct {
	_    struct{} `plutusType:"DefList" plutusConstr:"0"`
	Hash string   `plutusType:"HexString"`
}

type nestedDatum struct {
	_     struct{}    `plutusType:"DefList" plutusConstr:"0"`
	Inner simpleDatum `plutusType:"DefList"`
}

func TestEncodeSimpleDatum(t *testing.T) {
	d := simpleDatum{Amount: 42, Name: []byte("hello")}
	pd, err := Encode(&d)
	if err != nil {
		t.Fatal(err)
	}

	constr, ok := pd.(*data.Constr)
	if !ok {
		t.Fatalf("expected Constr, got %T", pd)
	}
	if constr.Tag != 0 {
		t.Errorf("expected tag 0, got %d", constr.Tag)
	}
	if len(constr.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(constr.Fields))
	}
	intField, ok := constr.Fields[0].(*data.Integer)
	if !ok || intField.Inner.Int64() != 42 {
		t.Errorf("expected Integer(42), got %#v", constr.Fields[0])
	}
	bsField, ok := constr.Fields[1].(*data.ByteString)
	if !ok || string(bsField.Inner) != "hello" {
		t.Errorf("expected ByteString(hello), got %#v", constr.Fields[1])
	}
}

func TestEncodeIndefDatum(t *testing.T) {
	d := indefDatum{Pkh: []byte{0xaa, 0xbb}, Amount: 100}
	pd, err := Encode(&d)
	if err != nil {
		t.Fatal(err)
	}
	constr, ok := pd.(*data.Constr)
	if !ok {
		t.Fatalf("expected Constr, got %T", pd)
	}
	if constr.Tag != 1 {
		t.Errorf("expected tag 1, got %d", constr.Tag)
	}
}

func TestEncodeMapDatum(t *testing.T) {
	d := mapDatum{Name: "test", Value: 99}
	pd, err := Encode(&d)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := pd.(*data.Map)
	if !ok {
		t.Fatalf("expected Map, got %T", pd)
	}
	if len(m.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(m.Pairs))
	}
}

func TestEncodeBoolDatum(t *testing.T) {
	pd, err := Encode(&boolDatum{Active: true})
	if err != nil {
		t.Fatal(err)
	}
	constr := pd.(*data.Constr)
	inner := constr.Fields[0].(*data.Constr)
	if inner.Tag != 1 {
		t.Errorf("expected tag 1 for true, got %d", inner.Tag)
	}

	pd, err = Encode(&boolDatum{Active: false})
	if err != nil {
		t.Fatal(err)
	}
	inner = pd.(*data.Constr).Fields[0].(*data.Constr)
	if inner.Tag != 0 {
		t.Errorf("expected tag 0 for false, got %d", inner.Tag)
	}
}

func TestEncodeBigIntDatum(t *testing.T) {
	d := bigIntDatum{Value: big.NewInt(123456789)}
	pd, err := Encode(&d)
	if err != nil {
		t.Fatal(err)
	}
	integer := pd.(*data.Constr).Fields[0].(*data.Integer)
	if integer.Inner.Int64() != 123456789 {
		t.Errorf("expected 123456789, got %s", integer.Inner.String())
	}
}

func TestEncodeBigIntNil(t *testing.T) {
	d := bigIntDatum{}
	pd, err := Encode(&d)
	if err != nil {
		t.Fatal(err)
	}
	integer := pd.(*data.Constr).Fields[0].(*data.Integer)
	if integer.Inner.Sign() != 0 {
		t.Errorf("expected 0 for nil *big.Int, got %s", integer.Inner.String())
	}
}

func TestEncodeHexDatum(t *testing.T) {
	d := hexDatum{Hash: "deadbeef"}
	pd, err := Encode(&d)
	if err != nil {
		t.Fatal(err)
	}
	bs := pd.(*data.Constr).Fields[0].(*data.ByteString)
	if string(bs.Inner) != "\xde\xad\xbe\xef" {
		t.Errorf("unexpected decoded hex bytes: %x", bs.Inner)
	}
}

func TestEncodeHexInvalid(t *testing.T) {
	if _, err := Encode(&hexDatum{Hash: "not-hex!"}); err == nil {
		t.Fatal("expected error for invalid hex string")
	}
}

func TestEncodeNilPointer(t *testing.T) {
	var d *simpleDatum
	if _, err := Encode(d); err == nil {
		t.Fatal("expected error for nil pointer")
	}
}

func TestEncodeNonStruct(t *testing.T) {
	if _, err := Encode(42); err == nil {
		t.Fatal("expected error for non-struct value")
	}
}

func TestDecodeSimpleDatum(t *testing.T) {
	src := simpleDatum{Amount: 7, Name: []byte("abc")}
	pd, err := Encode(&src)
	if err != nil {
		t.Fatal(err)
	}
	var dst simpleDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Amount != 7 || string(dst.Name) != "abc" {
		t.Errorf("round-trip mismatch: %+v", dst)
	}
}

func TestDecodeIndefDatum(t *testing.T) {
	src := indefDatum{Pkh: []byte{1, 2, 3}, Amount: 5}
	pd, err := Encode(&src)
	if err != nil {
		t.Fatal(err)
	}
	var dst indefDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Amount != 5 {
		t.Errorf("expected Amount 5, got %d", dst.Amount)
	}
}

func TestDecodeMapDatum(t *testing.T) {
	src := mapDatum{Name: "hi", Value: 3}
	pd, err := Encode(&src)
	if err != nil {
		t.Fatal(err)
	}
	var dst mapDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Name != "hi" || dst.Value != 3 {
		t.Errorf("round-trip mismatch: %+v", dst)
	}
}

func TestDecodeBoolDatum(t *testing.T) {
	pd, err := Encode(&boolDatum{Active: true})
	if err != nil {
		t.Fatal(err)
	}
	var dst boolDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if !dst.Active {
		t.Error("expected Active to round-trip as true")
	}
}

func TestDecodeBigIntDatum(t *testing.T) {
	pd, err := Encode(&bigIntDatum{Value: big.NewInt(42)})
	if err != nil {
		t.Fatal(err)
	}
	var dst bigIntDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Value.Int64() != 42 {
		t.Errorf("expected 42, got %s", dst.Value.String())
	}
}

func TestDecodeHexDatum(t *testing.T) {
	pd, err := Encode(&hexDatum{Hash: "cafe"})
	if err != nil {
		t.Fatal(err)
	}
	var dst hexDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Hash != "cafe" {
		t.Errorf("expected cafe, got %s", dst.Hash)
	}
}

func TestDecodeNonPointer(t *testing.T) {
	var dst simpleDatum
	if err := Decode(data.NewInteger(big.NewInt(1)), dst); err == nil {
		t.Fatal("expected error for non-pointer decode target")
	}
}

func TestDecodeNilPointer(t *testing.T) {
	var dst *simpleDatum
	if err := Decode(data.NewInteger(big.NewInt(1)), dst); err == nil {
		t.Fatal("expected error for nil pointer decode target")
	}
}

func TestRoundTripNestedDatum(t *testing.T) {
	src := nestedDatum{Inner: simpleDatum{Amount: 11, Name: []byte("x")}}
	pd, err := Encode(&src)
	if err != nil {
		t.Fatal(err)
	}
	var dst nestedDatum
	if err := Decode(pd, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Inner.Amount != 11 || string(dst.Inner.Name) != "x" {
		t.Errorf("round-trip mismatch: %+v", dst)
	}
}

func TestEncodeUintField(t *testing.T) {
	type uintDatum struct {
		_     struct{} `plutusType:"DefList" plutusConstr:"0"`
		Value uint64   `plutusType:"Int"`
	}
	pd, err := Encode(&uintDatum{Value: 9999})
	if err != nil {
		t.Fatal(err)
	}
	integer := pd.(*data.Constr).Fields[0].(*data.Integer)
	if integer.Inner.Uint64() != 9999 {
		t.Errorf("expected 9999, got %s", integer.Inner.String())
	}
}

func TestDecodeTooFewFields(t *testing.T) {
	pd := data.NewConstr(0, data.NewInteger(big.NewInt(1)))
	var dst simpleDatum
	if err := Decode(pd, &dst); err == nil {
		t.Fatal("expected error when data has fewer fields than struct expects")
	}
}

func TestDecodeMapConstrWrongFieldCount(t *testing.T) {
	pd := data.NewConstr(0, data.NewInteger(big.NewInt(1)), data.NewInteger(big.NewInt(2)))
	var dst mapDatum
	if err := Decode(pd, &dst); err == nil {
		t.Fatal("expected error when Constr wrapping a Map has more than one field")
	}
}
