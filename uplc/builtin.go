package uplc

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/blinklabs-io/plutigo/data"
)

// DefaultFun enumerates the Plutus Core builtin functions. Values match the
// 7-bit Flat builtin tag so a decoded program's Builtin terms index directly
// into defaultFunNames and builtinArity.
type DefaultFun int

const (
	AddInteger DefaultFun = iota
	SubtractInteger
	MultiplyInteger
	DivideInteger
	QuotientInteger
	RemainderInteger
	ModInteger
	EqualsInteger
	LessThanInteger
	LessThanEqualsInteger
	AppendByteString
	ConsByteString
	SliceByteString
	LengthOfByteString
	IndexByteString
	EqualsByteString
	LessThanByteString
	LessThanEqualsByteString
	Sha2_256
	Sha3_256
	Blake2b_256
	VerifyEd25519Signature
	AppendString
	EqualsString
	EncodeUtf8
	DecodeUtf8
	IfThenElse
	ChooseUnit
	Trace
	FstPair
	SndPair
	ChooseList
	MkCons
	HeadList
	TailList
	NullList
	ChooseData
	ConstrData
	MapData
	ListData
	IData
	BData
	UnConstrData
	UnMapData
	UnListData
	UnIData
	UnBData
	EqualsData
	SerialiseData
	MkPairData
	MkNilData
	MkNilPairData
	VerifyEcdsaSecp256k1Signature
	VerifySchnorrSecp256k1Signature
	Bls12_381_G1_Add
	Bls12_381_G1_Neg
	Bls12_381_G1_ScalarMul
	Bls12_381_G1_Equal
	Bls12_381_G1_Compress
	Bls12_381_G1_Uncompress
	Bls12_381_G2_Add
	Bls12_381_G2_Neg
	Bls12_381_G2_ScalarMul
	Bls12_381_G2_Equal
	Bls12_381_G2_Compress
	Bls12_381_G2_Uncompress
	Bls12_381_MillerLoop
	Bls12_381_MulMlResult
	Bls12_381_FinalVerify
	Keccak_256
	Blake2b_224
	IntegerToByteString
	ByteStringToInteger
	AndByteString
	OrByteString
	XorByteString
	ComplementByteString
	ReadBit
	WriteBits
	ReplicateByte
	ShiftByteString
	RotateByteString
	CountSetBits
	FindFirstSetBit
	Ripemd_160
)

var defaultFunNames = [...]string{
	"AddInteger", "SubtractInteger", "MultiplyInteger", "DivideInteger",
	"QuotientInteger", "RemainderInteger", "ModInteger", "EqualsInteger",
	"LessThanInteger", "LessThanEqualsInteger", "AppendByteString",
	"ConsByteString", "SliceByteString", "LengthOfByteString", "IndexByteString",
	"EqualsByteString", "LessThanByteString", "LessThanEqualsByteString",
	"Sha2_256", "Sha3_256", "Blake2b_256", "VerifyEd25519Signature",
	"AppendString", "EqualsString", "EncodeUtf8", "DecodeUtf8", "IfThenElse",
	"ChooseUnit", "Trace", "FstPair", "SndPair", "ChooseList", "MkCons",
	"HeadList", "TailList", "NullList", "ChooseData", "ConstrData", "MapData",
	"ListData", "IData", "BData", "UnConstrData", "UnMapData", "UnListData",
	"UnIData", "UnBData", "EqualsData", "SerialiseData", "MkPairData",
	"MkNilData", "MkNilPairData", "VerifyEcdsaSecp256k1Signature",
	"VerifySchnorrSecp256k1Signature", "Bls12_381_G1_Add", "Bls12_381_G1_Neg",
	"Bls12_381_G1_ScalarMul", "Bls12_381_G1_Equal", "Bls12_381_G1_Compress",
	"Bls12_381_G1_Uncompress", "Bls12_381_G2_Add", "Bls12_381_G2_Neg",
	"Bls12_381_G2_ScalarMul", "Bls12_381_G2_Equal", "Bls12_381_G2_Compress",
	"Bls12_381_G2_Uncompress", "Bls12_381_MillerLoop", "Bls12_381_MulMlResult",
	"Bls12_381_FinalVerify", "Keccak_256", "Blake2b_224", "IntegerToByteString",
	"ByteStringToInteger", "AndByteString", "OrByteString", "XorByteString",
	"ComplementByteString", "ReadBit", "WriteBits", "ReplicateByte",
	"ShiftByteString", "RotateByteString", "CountSetBits", "FindFirstSetBit",
	"Ripemd_160",
}

func (f DefaultFun) String() string {
	if int(f) < 0 || int(f) >= len(defaultFunNames) {
		return fmt.Sprintf("DefaultFun(%d)", int(f))
	}
	return defaultFunNames[f]
}

// builtinArity gives the number of term arguments each builtin needs before
// it can be applied; type-level Force applications are not tracked since
// the untyped machine doesn't need them to execute correctly.
var builtinArity = map[DefaultFun]int{
	AddInteger: 2, SubtractInteger: 2, MultiplyInteger: 2, DivideInteger: 2,
	QuotientInteger: 2, RemainderInteger: 2, ModInteger: 2, EqualsInteger: 2,
	LessThanInteger: 2, LessThanEqualsInteger: 2, AppendByteString: 2,
	ConsByteString: 2, SliceByteString: 3, LengthOfByteString: 1,
	IndexByteString: 2, EqualsByteString: 2, LessThanByteString: 2,
	LessThanEqualsByteString: 2, Sha2_256: 1, Sha3_256: 1, Blake2b_256: 1,
	VerifyEd25519Signature: 3, AppendString: 2, EqualsString: 2,
	EncodeUtf8: 1, DecodeUtf8: 1, IfThenElse: 3, ChooseUnit: 2, Trace: 2,
	FstPair: 1, SndPair: 1, ChooseList: 3, MkCons: 2, HeadList: 1,
	TailList: 1, NullList: 1, ChooseData: 6, ConstrData: 2, MapData: 1,
	ListData: 1, IData: 1, BData: 1, UnConstrData: 1, UnMapData: 1,
	UnListData: 1, UnIData: 1, UnBData: 1, EqualsData: 2, SerialiseData: 1,
	MkPairData: 2, MkNilData: 1, MkNilPairData: 1,
	VerifyEcdsaSecp256k1Signature: 3, VerifySchnorrSecp256k1Signature: 3,
	Bls12_381_G1_Add: 2, Bls12_381_G1_Neg: 1, Bls12_381_G1_ScalarMul: 2,
	Bls12_381_G1_Equal: 2, Bls12_381_G1_Compress: 1, Bls12_381_G1_Uncompress: 1,
	Bls12_381_G2_Add: 2, Bls12_381_G2_Neg: 1, Bls12_381_G2_ScalarMul: 2,
	Bls12_381_G2_Equal: 2, Bls12_381_G2_Compress: 1, Bls12_381_G2_Uncompress: 1,
	Bls12_381_MillerLoop: 2, Bls12_381_MulMlResult: 2, Bls12_381_FinalVerify: 2,
	Keccak_256: 1, Blake2b_224: 1, IntegerToByteString: 3, ByteStringToInteger: 2,
	AndByteString: 3, OrByteString: 3, XorByteString: 3, ComplementByteString: 1,
	ReadBit: 2, WriteBits: 3, ReplicateByte: 2, ShiftByteString: 2,
	RotateByteString: 2, CountSetBits: 1, FindFirstSetBit: 1, Ripemd_160: 1,
}

var errNotImplemented = errors.New("builtin not implemented in this evaluator")

// applyBuiltin evaluates a fully-saturated builtin application.
func applyBuiltin(fn DefaultFun, args []Constant) (Constant, error) {
	switch fn {
	case AddInteger:
		return integerBinOp(args, func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) })
	case SubtractInteger:
		return integerBinOp(args, func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) })
	case MultiplyInteger:
		return integerBinOp(args, func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) })
	case DivideInteger:
		return integerDivOp(args, floorDiv)
	case QuotientInteger:
		return integerDivOp(args, truncDiv)
	case RemainderInteger:
		return integerDivOp(args, truncMod)
	case ModInteger:
		return integerDivOp(args, floorMod)
	case EqualsInteger:
		return integerCmp(args, func(c int) bool { return c == 0 })
	case LessThanInteger:
		return integerCmp(args, func(c int) bool { return c < 0 })
	case LessThanEqualsInteger:
		return integerCmp(args, func(c int) bool { return c <= 0 })
	case AppendByteString:
		a, b, err := twoBytes(args)
		if err != nil {
			return Constant{}, err
		}
		return bytesConst(append(append([]byte(nil), a...), b...)), nil
	case ConsByteString:
		if len(args) != 2 || args[0].Type != TypeInteger || args[1].Type != TypeByteString {
			return Constant{}, fmt.Errorf("consByteString: bad argument types")
		}
		b := args[0].Integer.Int64() & 0xff
		return bytesConst(append([]byte{byte(b)}, args[1].ByteString...)), nil
	case SliceByteString:
		if len(args) != 3 || args[0].Type != TypeInteger || args[1].Type != TypeInteger || args[2].Type != TypeByteString {
			return Constant{}, fmt.Errorf("sliceByteString: bad argument types")
		}
		start := args[0].Integer.Int64()
		length := args[1].Integer.Int64()
		bs := args[2].ByteString
		if start < 0 {
			start = 0
		}
		end := start + length
		if start > int64(len(bs)) {
			start = int64(len(bs))
		}
		if end > int64(len(bs)) {
			end = int64(len(bs))
		}
		if end < start {
			end = start
		}
		return bytesConst(append([]byte(nil), bs[start:end]...)), nil
	case LengthOfByteString:
		if len(args) != 1 || args[0].Type != TypeByteString {
			return Constant{}, fmt.Errorf("lengthOfByteString: bad argument type")
		}
		return integerConst(big.NewInt(int64(len(args[0].ByteString)))), nil
	case IndexByteString:
		if len(args) != 2 || args[0].Type != TypeByteString || args[1].Type != TypeInteger {
			return Constant{}, fmt.Errorf("indexByteString: bad argument types")
		}
		i := args[1].Integer.Int64()
		if i < 0 || i >= int64(len(args[0].ByteString)) {
			return Constant{}, fmt.Errorf("indexByteString: index out of bounds")
		}
		return integerConst(big.NewInt(int64(args[0].ByteString[i]))), nil
	case EqualsByteString:
		a, b, err := twoBytes(args)
		if err != nil {
			return Constant{}, err
		}
		return boolConst(bytes.Equal(a, b)), nil
	case LessThanByteString:
		a, b, err := twoBytes(args)
		if err != nil {
			return Constant{}, err
		}
		return boolConst(bytes.Compare(a, b) < 0), nil
	case LessThanEqualsByteString:
		a, b, err := twoBytes(args)
		if err != nil {
			return Constant{}, err
		}
		return boolConst(bytes.Compare(a, b) <= 0), nil
	case Sha2_256:
		bs, err := oneBytes(args)
		if err != nil {
			return Constant{}, err
		}
		sum := sha256.Sum256(bs)
		return bytesConst(sum[:]), nil
	case Sha3_256:
		bs, err := oneBytes(args)
		if err != nil {
			return Constant{}, err
		}
		sum := sha3.Sum256(bs)
		return bytesConst(sum[:]), nil
	case Blake2b_256:
		bs, err := oneBytes(args)
		if err != nil {
			return Constant{}, err
		}
		sum := blake2b.Sum256(bs)
		return bytesConst(sum[:]), nil
	case Blake2b_224:
		bs, err := oneBytes(args)
		if err != nil {
			return Constant{}, err
		}
		h, err := blake2b.New(28, nil)
		if err != nil {
			return Constant{}, err
		}
		h.Write(bs)
		return bytesConst(h.Sum(nil)), nil
	case Keccak_256:
		bs, err := oneBytes(args)
		if err != nil {
			return Constant{}, err
		}
		h := sha3.NewLegacyKeccak256()
		h.Write(bs)
		return bytesConst(h.Sum(nil)), nil
	case VerifyEd25519Signature:
		return verifyEd25519(args)
	case VerifyEcdsaSecp256k1Signature:
		return verifyEcdsaSecp256k1(args)
	case VerifySchnorrSecp256k1Signature:
		return verifySchnorrSecp256k1(args)
	case AppendString:
		if len(args) != 2 || args[0].Type != TypeString || args[1].Type != TypeString {
			return Constant{}, fmt.Errorf("appendString: bad argument types")
		}
		return stringConst(args[0].String + args[1].String), nil
	case EqualsString:
		if len(args) != 2 || args[0].Type != TypeString || args[1].Type != TypeString {
			return Constant{}, fmt.Errorf("equalsString: bad argument types")
		}
		return boolConst(args[0].String == args[1].String), nil
	case EncodeUtf8:
		if len(args) != 1 || args[0].Type != TypeString {
			return Constant{}, fmt.Errorf("encodeUtf8: bad argument type")
		}
		return bytesConst([]byte(args[0].String)), nil
	case DecodeUtf8:
		bs, err := oneBytes(args)
		if err != nil {
			return Constant{}, err
		}
		return stringConst(string(bs)), nil
	case IfThenElse:
		if len(args) != 3 || args[0].Type != TypeBool {
			return Constant{}, fmt.Errorf("ifThenElse: bad argument types")
		}
		if args[0].Bool {
			return args[1], nil
		}
		return args[2], nil
	case ChooseUnit:
		if len(args) != 2 {
			return Constant{}, fmt.Errorf("chooseUnit: bad arguments")
		}
		return args[1], nil
	case Trace:
		if len(args) != 2 || args[0].Type != TypeString {
			return Constant{}, fmt.Errorf("trace: bad argument types")
		}
		return args[1], nil
	case FstPair:
		if len(args) != 1 || args[0].Type != TypePair || args[0].Fst == nil {
			return Constant{}, fmt.Errorf("fstPair: bad argument type")
		}
		return *args[0].Fst, nil
	case SndPair:
		if len(args) != 1 || args[0].Type != TypePair || args[0].Snd == nil {
			return Constant{}, fmt.Errorf("sndPair: bad argument type")
		}
		return *args[0].Snd, nil
	case ChooseList:
		if len(args) != 3 || args[0].Type != TypeList {
			return Constant{}, fmt.Errorf("chooseList: bad argument types")
		}
		if len(args[0].List) == 0 {
			return args[1], nil
		}
		return args[2], nil
	case MkCons:
		if len(args) != 2 || args[1].Type != TypeList {
			return Constant{}, fmt.Errorf("mkCons: bad argument types")
		}
		list := append([]Constant{args[0]}, args[1].List...)
		return Constant{Type: TypeList, List: list, ElemType: args[1].ElemType}, nil
	case HeadList:
		if len(args) != 1 || args[0].Type != TypeList || len(args[0].List) == 0 {
			return Constant{}, fmt.Errorf("headList: empty list")
		}
		return args[0].List[0], nil
	case TailList:
		if len(args) != 1 || args[0].Type != TypeList || len(args[0].List) == 0 {
			return Constant{}, fmt.Errorf("tailList: empty list")
		}
		return Constant{Type: TypeList, List: args[0].List[1:], ElemType: args[0].ElemType}, nil
	case NullList:
		if len(args) != 1 || args[0].Type != TypeList {
			return Constant{}, fmt.Errorf("nullList: bad argument type")
		}
		return boolConst(len(args[0].List) == 0), nil
	case ChooseData:
		return chooseData(args)
	case ConstrData:
		if len(args) != 2 || args[0].Type != TypeInteger || args[1].Type != TypeList {
			return Constant{}, fmt.Errorf("constrData: bad argument types")
		}
		fields := make([]data.PlutusData, len(args[1].List))
		for i, el := range args[1].List {
			fields[i] = el.Data
		}
		return dataConst(data.NewConstr(uint(args[0].Integer.Uint64()), fields...)), nil
	case MapData:
		if len(args) != 1 || args[0].Type != TypeList {
			return Constant{}, fmt.Errorf("mapData: bad argument type")
		}
		pairs := make([][2]data.PlutusData, len(args[0].List))
		for i, el := range args[0].List {
			if el.Type != TypePair || el.Fst == nil || el.Snd == nil {
				return Constant{}, fmt.Errorf("mapData: list element is not a pair")
			}
			pairs[i] = [2]data.PlutusData{el.Fst.Data, el.Snd.Data}
		}
		return dataConst(data.NewMap(pairs)), nil
	case ListData:
		if len(args) != 1 || args[0].Type != TypeList {
			return Constant{}, fmt.Errorf("listData: bad argument type")
		}
		items := make([]data.PlutusData, len(args[0].List))
		for i, el := range args[0].List {
			items[i] = el.Data
		}
		return dataConst(data.NewList(items...)), nil
	case IData:
		if len(args) != 1 || args[0].Type != TypeInteger {
			return Constant{}, fmt.Errorf("iData: bad argument type")
		}
		return dataConst(data.NewInteger(args[0].Integer)), nil
	case BData:
		if len(args) != 1 || args[0].Type != TypeByteString {
			return Constant{}, fmt.Errorf("bData: bad argument type")
		}
		return dataConst(data.NewByteString(args[0].ByteString)), nil
	case UnConstrData:
		c, ok := oneData(args)
		if !ok {
			return Constant{}, fmt.Errorf("unConstrData: bad argument type")
		}
		constr, ok := c.(*data.Constr)
		if !ok {
			return Constant{}, fmt.Errorf("unConstrData: not a constructor")
		}
		fields := make([]Constant, len(constr.Fields))
		for i, f := range constr.Fields {
			fields[i] = dataConst(f)
		}
		pair := Constant{Type: TypePair,
			Fst: ptr(integerConst(new(big.Int).SetUint64(uint64(constr.Tag)))),
			Snd: ptr(Constant{Type: TypeList, List: fields}),
		}
		return pair, nil
	case UnMapData:
		c, ok := oneData(args)
		if !ok {
			return Constant{}, fmt.Errorf("unMapData: bad argument type")
		}
		m, ok := c.(*data.Map)
		if !ok {
			return Constant{}, fmt.Errorf("unMapData: not a map")
		}
		out := make([]Constant, len(m.Pairs))
		for i, p := range m.Pairs {
			out[i] = Constant{Type: TypePair, Fst: ptr(dataConst(p[0])), Snd: ptr(dataConst(p[1]))}
		}
		return Constant{Type: TypeList, List: out}, nil
	case UnListData:
		c, ok := oneData(args)
		if !ok {
			return Constant{}, fmt.Errorf("unListData: bad argument type")
		}
		l, ok := c.(*data.List)
		if !ok {
			return Constant{}, fmt.Errorf("unListData: not a list")
		}
		out := make([]Constant, len(l.Items))
		for i, it := range l.Items {
			out[i] = dataConst(it)
		}
		return Constant{Type: TypeList, List: out}, nil
	case UnIData:
		c, ok := oneData(args)
		if !ok {
			return Constant{}, fmt.Errorf("unIData: bad argument type")
		}
		i, ok := c.(*data.Integer)
		if !ok {
			return Constant{}, fmt.Errorf("unIData: not an integer")
		}
		return integerConst(i.Inner), nil
	case UnBData:
		c, ok := oneData(args)
		if !ok {
			return Constant{}, fmt.Errorf("unBData: bad argument type")
		}
		b, ok := c.(*data.ByteString)
		if !ok {
			return Constant{}, fmt.Errorf("unBData: not a bytestring")
		}
		return bytesConst(b.Inner), nil
	case EqualsData:
		if len(args) != 2 || args[0].Type != TypeData || args[1].Type != TypeData {
			return Constant{}, fmt.Errorf("equalsData: bad argument types")
		}
		return boolConst(dataEquals(args[0].Data, args[1].Data)), nil
	case SerialiseData:
		c, ok := oneData(args)
		if !ok {
			return Constant{}, fmt.Errorf("serialiseData: bad argument type")
		}
		enc, err := EncodeData(c)
		if err != nil {
			return Constant{}, err
		}
		return bytesConst(enc), nil
	case MkPairData:
		if len(args) != 2 || args[0].Type != TypeData || args[1].Type != TypeData {
			return Constant{}, fmt.Errorf("mkPairData: bad argument types")
		}
		return Constant{Type: TypePair, Fst: ptr(args[0]), Snd: ptr(args[1])}, nil
	case MkNilData:
		return Constant{Type: TypeList, ElemType: ptr(Constant{Type: TypeData})}, nil
	case MkNilPairData:
		return Constant{Type: TypeList, ElemType: ptr(Constant{Type: TypePair})}, nil
	default:
		return Constant{}, fmt.Errorf("%w: %s", errNotImplemented, fn)
	}
}

func ptr[T any](v T) *T { return &v }

func twoBytes(args []Constant) ([]byte, []byte, error) {
	if len(args) != 2 || args[0].Type != TypeByteString || args[1].Type != TypeByteString {
		return nil, nil, fmt.Errorf("expected two bytestring arguments")
	}
	return args[0].ByteString, args[1].ByteString, nil
}

func oneBytes(args []Constant) ([]byte, error) {
	if len(args) != 1 || args[0].Type != TypeByteString {
		return nil, fmt.Errorf("expected one bytestring argument")
	}
	return args[0].ByteString, nil
}

func oneData(args []Constant) (data.PlutusData, bool) {
	if len(args) != 1 || args[0].Type != TypeData {
		return nil, false
	}
	return args[0].Data, true
}

func integerBinOp(args []Constant, f func(a, b *big.Int) *big.Int) (Constant, error) {
	if len(args) != 2 || args[0].Type != TypeInteger || args[1].Type != TypeInteger {
		return Constant{}, fmt.Errorf("expected two integer arguments")
	}
	return integerConst(f(args[0].Integer, args[1].Integer)), nil
}

func integerCmp(args []Constant, f func(int) bool) (Constant, error) {
	if len(args) != 2 || args[0].Type != TypeInteger || args[1].Type != TypeInteger {
		return Constant{}, fmt.Errorf("expected two integer arguments")
	}
	return boolConst(f(args[0].Integer.Cmp(args[1].Integer))), nil
}

func integerDivOp(args []Constant, f func(a, b *big.Int) (*big.Int, error)) (Constant, error) {
	if len(args) != 2 || args[0].Type != TypeInteger || args[1].Type != TypeInteger {
		return Constant{}, fmt.Errorf("expected two integer arguments")
	}
	if args[1].Integer.Sign() == 0 {
		return Constant{}, fmt.Errorf("division by zero")
	}
	v, err := f(args[0].Integer, args[1].Integer)
	if err != nil {
		return Constant{}, err
	}
	return integerConst(v), nil
}

func floorDiv(a, b *big.Int) (*big.Int, error) {
	q, m := new(big.Int), new(big.Int)
	q.DivMod(a, b, m)
	return q, nil
}

func floorMod(a, b *big.Int) (*big.Int, error) {
	m := new(big.Int)
	new(big.Int).DivMod(a, b, m)
	return m, nil
}

func truncDiv(a, b *big.Int) (*big.Int, error) {
	return new(big.Int).Quo(a, b), nil
}

func truncMod(a, b *big.Int) (*big.Int, error) {
	return new(big.Int).Rem(a, b), nil
}

func chooseData(args []Constant) (Constant, error) {
	if len(args) != 6 || args[0].Type != TypeData {
		return Constant{}, fmt.Errorf("chooseData: bad argument types")
	}
	switch args[0].Data.(type) {
	case *data.Constr:
		return args[1], nil
	case *data.Map:
		return args[2], nil
	case *data.List:
		return args[3], nil
	case *data.Integer:
		return args[4], nil
	case *data.ByteString:
		return args[5], nil
	default:
		return Constant{}, fmt.Errorf("chooseData: unrecognized data shape %T", args[0].Data)
	}
}

func dataEquals(a, b data.PlutusData) bool {
	encA, errA := EncodeData(a)
	encB, errB := EncodeData(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(encA, encB)
}

func verifyEd25519(args []Constant) (Constant, error) {
	if len(args) != 3 || args[0].Type != TypeByteString || args[1].Type != TypeByteString || args[2].Type != TypeByteString {
		return Constant{}, fmt.Errorf("verifyEd25519Signature: bad argument types")
	}
	vkey, msg, sig := args[0].ByteString, args[1].ByteString, args[2].ByteString
	if len(vkey) != ed25519.PublicKeySize {
		return Constant{}, fmt.Errorf("verifyEd25519Signature: invalid public key length %d", len(vkey))
	}
	if len(sig) != ed25519.SignatureSize {
		return Constant{}, fmt.Errorf("verifyEd25519Signature: invalid signature length %d", len(sig))
	}
	return boolConst(ed25519.Verify(vkey, msg, sig)), nil
}

func verifyEcdsaSecp256k1(args []Constant) (Constant, error) {
	if len(args) != 3 || args[0].Type != TypeByteString || args[1].Type != TypeByteString || args[2].Type != TypeByteString {
		return Constant{}, fmt.Errorf("verifyEcdsaSecp256k1Signature: bad argument types")
	}
	pubKeyBytes, msg, sigBytes := args[0].ByteString, args[1].ByteString, args[2].ByteString
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return Constant{}, fmt.Errorf("verifyEcdsaSecp256k1Signature: %w", err)
	}
	if len(sigBytes) != 64 {
		return Constant{}, fmt.Errorf("verifyEcdsaSecp256k1Signature: signature must be 64 bytes")
	}
	var rBytes, sBytes [32]byte
	copy(rBytes[:], sigBytes[:32])
	copy(sBytes[:], sigBytes[32:])
	var r, s btcec.ModNScalar
	r.SetBytes(&rBytes)
	s.SetBytes(&sBytes)
	sig := ecdsa.NewSignature(&r, &s)
	return boolConst(sig.Verify(msg, pubKey)), nil
}

func verifySchnorrSecp256k1(args []Constant) (Constant, error) {
	if len(args) != 3 || args[0].Type != TypeByteString || args[1].Type != TypeByteString || args[2].Type != TypeByteString {
		return Constant{}, fmt.Errorf("verifySchnorrSecp256k1Signature: bad argument types")
	}
	pubKeyBytes, msg, sigBytes := args[0].ByteString, args[1].ByteString, args[2].ByteString
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return Constant{}, fmt.Errorf("verifySchnorrSecp256k1Signature: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return Constant{}, fmt.Errorf("verifySchnorrSecp256k1Signature: %w", err)
	}
	return boolConst(sig.Verify(msg, pubKey)), nil
}

// EncodeData re-serializes a data.PlutusData tree back to canonical CBOR,
// the inverse of DecodeData.
func EncodeData(pd data.PlutusData) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeDataItem(&buf, pd); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeDataItem(buf *bytes.Buffer, pd data.PlutusData) error {
	switch v := pd.(type) {
	case *data.Integer:
		return encodeCborBigInt(buf, v.Inner)
	case *data.ByteString:
		return encodeCborBytes(buf, v.Inner)
	case *data.List:
		writeCborHead(buf, 4, uint64(len(v.Items)))
		for _, it := range v.Items {
			if err := encodeDataItem(buf, it); err != nil {
				return err
			}
		}
		return nil
	case *data.Map:
		writeCborHead(buf, 5, uint64(len(v.Pairs)))
		for _, p := range v.Pairs {
			if err := encodeDataItem(buf, p[0]); err != nil {
				return err
			}
			if err := encodeDataItem(buf, p[1]); err != nil {
				return err
			}
		}
		return nil
	case *data.Constr:
		tag := v.Tag
		var cborTag uint64
		switch {
		case tag <= 6:
			cborTag = 121 + uint64(tag)
		case tag >= 7 && tag <= 127:
			cborTag = 1280 + uint64(tag) - 7
		default:
			cborTag = 102
		}
		writeCborHead(buf, 6, cborTag)
		if cborTag == 102 {
			writeCborHead(buf, 4, 2)
			if err := encodeCborBigInt(buf, new(big.Int).SetUint64(uint64(tag))); err != nil {
				return err
			}
		}
		writeCborHead(buf, 4, uint64(len(v.Fields)))
		for _, f := range v.Fields {
			if err := encodeDataItem(buf, f); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("uplc: cbor: cannot encode %T", pd)
	}
}

func writeCborHead(buf *bytes.Buffer, major byte, n uint64) {
	switch {
	case n < 24:
		buf.WriteByte(major<<5 | byte(n))
	case n <= 0xff:
		buf.WriteByte(major<<5 | 24)
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(major<<5 | 25)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	case n <= 0xffffffff:
		buf.WriteByte(major<<5 | 26)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(major<<5 | 27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], n)
		buf.Write(b[:])
	}
}

func encodeCborBytes(buf *bytes.Buffer, b []byte) error {
	writeCborHead(buf, 2, uint64(len(b)))
	buf.Write(b)
	return nil
}

func encodeCborBigInt(buf *bytes.Buffer, v *big.Int) error {
	if v.IsInt64() && v.Int64() >= 0 {
		writeCborHead(buf, 0, v.Uint64())
		return nil
	}
	if v.Sign() >= 0 {
		if v.IsUint64() {
			writeCborHead(buf, 0, v.Uint64())
			return nil
		}
		buf.WriteByte(6<<5 | 2)
		return encodeCborBytes(buf, v.Bytes())
	}
	neg := new(big.Int).Neg(v)
	neg.Sub(neg, big.NewInt(1))
	if neg.IsUint64() {
		writeCborHead(buf, 1, neg.Uint64())
		return nil
	}
	buf.WriteByte(6<<5 | 3)
	return encodeCborBytes(buf, neg.Bytes())
}
