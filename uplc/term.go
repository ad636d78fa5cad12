package uplc

import (
	"fmt"
	"math/big"

	"github.com/blinklabs-io/plutigo/data"
)

// Term is a node of the untyped Plutus Core AST.
type Term interface{ isTerm() }

// Var is a de Bruijn-indexed variable reference (1 = nearest enclosing lambda).
type Var struct{ Index uint64 }

// Lambda is a one-argument abstraction.
type Lambda struct{ Body Term }

// Apply applies Function to Argument.
type Apply struct {
	Function Term
	Argument Term
}

// Force removes a Delay wrapper, triggering the suspended computation.
type Force struct{ Term Term }

// Delay suspends evaluation of Term until a matching Force.
type Delay struct{ Term Term }

// Const wraps a literal constant value.
type Const struct{ Value Constant }

// Builtin refers to one of the DefaultFun builtin functions.
type Builtin struct{ Function DefaultFun }

// ErrorTerm unconditionally aborts evaluation (the `(error)` term).
type ErrorTerm struct{}

// ConstrTerm builds a sum-type value carrying Tag and Fields (PlutusV3/Conway only).
type ConstrTerm struct {
	Tag    uint64
	Fields []Term
}

// CaseTerm pattern-matches Scrutinee against positional Branches (PlutusV3/Conway only).
type CaseTerm struct {
	Scrutinee Term
	Branches  []Term
}

func (Var) isTerm()        {}
func (Lambda) isTerm()     {}
func (Apply) isTerm()      {}
func (Force) isTerm()      {}
func (Delay) isTerm()      {}
func (Const) isTerm()      {}
func (Builtin) isTerm()    {}
func (ErrorTerm) isTerm()  {}
func (ConstrTerm) isTerm() {}
func (CaseTerm) isTerm()   {}

// ConstType identifies the shape of a Constant.
type ConstType int

const (
	TypeInteger ConstType = iota
	TypeByteString
	TypeString
	TypeUnit
	TypeBool
	TypeList
	TypePair
	TypeData
	TypeBLSG1
	TypeBLSG2
	TypeBLSMLResult
)

// Constant is a typed UPLC literal. Only the field matching Type is
// meaningful; List carries ElemType for empty lists so the type survives
// round-tripping, and Pair carries both element types.
type Constant struct {
	Type ConstType

	Integer    *big.Int
	ByteString []byte
	String     string
	Bool       bool
	List       []Constant
	ElemType   *Constant // zero-value constant of the list's element type
	Fst, Snd   *Constant
	Data       data.PlutusData
}

func integerConst(v *big.Int) Constant    { return Constant{Type: TypeInteger, Integer: v} }
func bytesConst(v []byte) Constant        { return Constant{Type: TypeByteString, ByteString: v} }
func stringConst(v string) Constant       { return Constant{Type: TypeString, String: v} }
func unitConst() Constant                 { return Constant{Type: TypeUnit} }
func boolConst(v bool) Constant           { return Constant{Type: TypeBool, Bool: v} }
func dataConst(v data.PlutusData) Constant { return Constant{Type: TypeData, Data: v} }

// decodeTypeTag decodes a Flat-encoded UPLC type tag list (a run of small
// unsigned-integer codes identifying the constant's shape, nested for
// list/pair).
func decodeTypeTag(r *bitReader) (ConstType, *Constant, *Constant, error) {
	codes, err := readFlatList(r, func(r *bitReader) (uint64, error) {
		v, err := r.readBits(4)
		return v, err
	})
	if err != nil {
		return 0, nil, nil, err
	}
	idx := 0
	t, elem, fst, _, err := decodeTypeFromCodes(codes, &idx)
	if err != nil {
		return 0, nil, nil, err
	}
	return t, elem, fst, nil
}

// decodeTypeFromCodes interprets the flattened type-tag code list. Codes
// follow the Plutus convention: 0=integer, 1=bytestring, 2=string, 3=unit,
// 4=bool, 7,5=list(elem), 7,6,6=pair(fst,snd) (applied-type encoding: list
// is `app 7 5`, pair is `app (app 7 6) fst` applied to `snd`), 8=data.
func decodeTypeFromCodes(codes []uint64, idx *int) (ConstType, *Constant, *Constant, *Constant, error) {
	if *idx >= len(codes) {
		return 0, nil, nil, nil, fmt.Errorf("uplc: flat: truncated type tag")
	}
	c := codes[*idx]
	*idx++
	switch c {
	case 0:
		return TypeInteger, nil, nil, nil, nil
	case 1:
		return TypeByteString, nil, nil, nil, nil
	case 2:
		return TypeString, nil, nil, nil, nil
	case 3:
		return TypeUnit, nil, nil, nil, nil
	case 4:
		return TypeBool, nil, nil, nil, nil
	case 8:
		return TypeData, nil, nil, nil, nil
	case 11:
		return TypeBLSG1, nil, nil, nil, nil
	case 12:
		return TypeBLSG2, nil, nil, nil, nil
	case 7:
		if *idx >= len(codes) {
			return 0, nil, nil, nil, fmt.Errorf("uplc: flat: truncated compound type")
		}
		inner := codes[*idx]
		*idx++
		switch inner {
		case 5:
			et, eelem, efst, esnd, err := decodeTypeFromCodes(codes, idx)
			if err != nil {
				return 0, nil, nil, nil, err
			}
			zero := zeroConstant(et, eelem, efst, esnd)
			return TypeList, &zero, nil, nil, nil
		case 6:
			ft, felem, ffst, fsnd, err := decodeTypeFromCodes(codes, idx)
			if err != nil {
				return 0, nil, nil, nil, err
			}
			st, selem, sfst, ssnd, err := decodeTypeFromCodes(codes, idx)
			if err != nil {
				return 0, nil, nil, nil, err
			}
			fz := zeroConstant(ft, felem, ffst, fsnd)
			sz := zeroConstant(st, selem, sfst, ssnd)
			return TypePair, nil, &fz, &sz, nil
		}
	}
	return 0, nil, nil, nil, fmt.Errorf("uplc: flat: unsupported type tag %d", c)
}

func zeroConstant(t ConstType, elem, fst, snd *Constant) Constant {
	c := Constant{Type: t}
	c.ElemType = elem
	c.Fst, c.Snd = fst, snd
	return c
}

func decodeConstant(r *bitReader) (Constant, error) {
	t, elem, fstType, err := decodeTypeTag(r)
	if err != nil {
		return Constant{}, err
	}
	return decodeConstantValue(r, t, elem, fstType)
}

func decodeConstantValue(r *bitReader, t ConstType, elem, fstZero *Constant) (Constant, error) {
	switch t {
	case TypeInteger:
		v, err := r.readInteger()
		if err != nil {
			return Constant{}, err
		}
		return integerConst(v), nil
	case TypeByteString:
		v, err := r.readByteStringChunks()
		if err != nil {
			return Constant{}, err
		}
		return bytesConst(v), nil
	case TypeString:
		v, err := r.readByteStringChunks()
		if err != nil {
			return Constant{}, err
		}
		return stringConst(string(v)), nil
	case TypeUnit:
		return unitConst(), nil
	case TypeBool:
		v, err := r.readBool()
		if err != nil {
			return Constant{}, err
		}
		return boolConst(v), nil
	case TypeData:
		raw, err := r.readByteStringChunks()
		if err != nil {
			return Constant{}, err
		}
		pd, err := DecodeData(raw)
		if err != nil {
			return Constant{}, fmt.Errorf("uplc: flat: data constant: %w", err)
		}
		return dataConst(pd), nil
	case TypeList:
		et := TypeInteger
		var eelem, efst *Constant
		if elem != nil {
			et = elem.Type
			eelem = elem.ElemType
			efst = elem.Fst
		}
		items, err := readFlatList(r, func(r *bitReader) (Constant, error) {
			return decodeConstantValue(r, et, eelem, efst)
		})
		if err != nil {
			return Constant{}, err
		}
		c := Constant{Type: TypeList, List: items}
		if elem != nil {
			c.ElemType = elem
		}
		return c, nil
	case TypePair:
		var fv, sv Constant
		if fstZero != nil {
			v, err := decodeConstantValue(r, fstZero.Type, fstZero.ElemType, fstZero.Fst)
			if err != nil {
				return Constant{}, err
			}
			fv = v
		}
		return Constant{Type: TypePair, Fst: &fv, Snd: &sv}, nil
	default:
		return Constant{}, fmt.Errorf("uplc: flat: unsupported constant type %d", t)
	}
}

func decodeTerm(r *bitReader) (Term, error) {
	tag, err := r.readBits(4)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0: // Var
		idx, err := r.readNatural()
		if err != nil {
			return nil, err
		}
		return Var{Index: idx.Uint64()}, nil
	case 1: // Delay
		t, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		return Delay{Term: t}, nil
	case 2: // Lambda
		body, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		return Lambda{Body: body}, nil
	case 3: // Apply
		fn, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		arg, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		return Apply{Function: fn, Argument: arg}, nil
	case 4: // Constant
		c, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		return Const{Value: c}, nil
	case 5: // Force
		t, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		return Force{Term: t}, nil
	case 6: // Error
		return ErrorTerm{}, nil
	case 7: // Builtin
		code, err := r.readBits(7)
		if err != nil {
			return nil, err
		}
		return Builtin{Function: DefaultFun(code)}, nil
	case 8: // Constr
		tagv, err := r.readNatural()
		if err != nil {
			return nil, err
		}
		fields, err := readFlatList(r, decodeTerm)
		if err != nil {
			return nil, err
		}
		return ConstrTerm{Tag: tagv.Uint64(), Fields: fields}, nil
	case 9: // Case
		scrutinee, err := decodeTerm(r)
		if err != nil {
			return nil, err
		}
		branches, err := readFlatList(r, decodeTerm)
		if err != nil {
			return nil, err
		}
		return CaseTerm{Scrutinee: scrutinee, Branches: branches}, nil
	default:
		return nil, fmt.Errorf("uplc: flat: unknown term tag %d", tag)
	}
}
