// Package plutusdata converts between Go structs and plutigo's PlutusData
// tree using struct tags, so callers can describe a datum or redeemer as a
// plain Go type instead of hand-assembling Constr/List/Map nodes.
//
// A struct opts into a container shape with an anonymous `_` field:
//
//	type MyDatum struct {
//		_        struct{} `plutusConstr:"0"`
//		Owner    []byte   `plutusType:"Bytes"`
//		Deadline int64    `plutusType:"Int"`
//	}
//
// Recognized plutusType tags: Int, BigInt, Bytes, StringBytes, HexString,
// Bool, IndefBool, IndefList, DefList, Map, Custom. A field with no tag and
// struct kind is marshaled recursively as a nested container. Types that
// need full control over their own representation implement Marshaler.
package plutusdata

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/blinklabs-io/plutigo/data"
)

// Marshaler lets a type override the default reflection-based conversion to
// and from PlutusData.
type Marshaler interface {
	ToPlutusData() (data.PlutusData, error)
	FromPlutusData(pd data.PlutusData, res any) error
}

// Encode converts v, which must be a struct or pointer to struct, into its
// PlutusData representation using struct tags.
func Encode(v any) (data.PlutusData, error) {
	return encodeValue(reflect.ValueOf(v))
}

func encodeValue(val reflect.Value) (data.PlutusData, error) {
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, errors.New("plutusdata: nil pointer")
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("plutusdata: Encode requires a struct, got %s", val.Kind())
	}

	if val.CanAddr() {
		if m, ok := val.Addr().Interface().(Marshaler); ok {
			return m.ToPlutusData()
		}
	}
	if m, ok := val.Interface().(Marshaler); ok {
		return m.ToPlutusData()
	}

	typ := val.Type()

	containerType := ""
	constrTag := uint(0)
	hasConstr := false
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "_" {
			containerType = field.Tag.Get("plutusType")
			if constrStr := field.Tag.Get("plutusConstr"); constrStr != "" {
				c, err := strconv.ParseUint(constrStr, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("plutusdata: invalid plutusConstr tag %q: %w", constrStr, err)
				}
				constrTag = uint(c)
				hasConstr = true
			}
			break
		}
	}

	switch containerType {
	case "Map":
		return encodeMap(val, typ, constrTag, hasConstr)
	default:
		useIndef := containerType == "IndefList"
		return encodeList(val, typ, constrTag, hasConstr, useIndef)
	}
}

func encodeList(val reflect.Value, typ reflect.Type, constrTag uint, hasConstr, useIndef bool) (data.PlutusData, error) {
	var fields []data.PlutusData
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "_" || !field.IsExported() {
			continue
		}
		pd, err := encodeField(val.Field(i), field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		fields = append(fields, pd)
	}
	if hasConstr {
		return data.NewConstrDefIndef(useIndef, constrTag, fields...), nil
	}
	return data.NewListDefIndef(useIndef, fields...), nil
}

func encodeMap(val reflect.Value, typ reflect.Type, constrTag uint, hasConstr bool) (data.PlutusData, error) {
	var pairs [][2]data.PlutusData
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "_" || !field.IsExported() {
			continue
		}
		keyName := field.Tag.Get("plutusKey")
		if keyName == "" {
			keyName = field.Name
		}
		value, err := encodeField(val.Field(i), field)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		pairs = append(pairs, [2]data.PlutusData{data.NewByteString([]byte(keyName)), value})
	}
	if hasConstr {
		return data.NewConstr(constrTag, data.NewMap(pairs)), nil
	}
	return data.NewMap(pairs), nil
}

func encodeField(fieldVal reflect.Value, field reflect.StructField) (data.PlutusData, error) {
	plutusType := field.Tag.Get("plutusType")

	if plutusType == "BigInt" {
		return encodeBigInt(fieldVal)
	}

	for fieldVal.Kind() == reflect.Ptr {
		if fieldVal.IsNil() {
			return nil, fmt.Errorf("plutusdata: nil pointer for field %s", field.Name)
		}
		fieldVal = fieldVal.Elem()
	}

	if fieldVal.CanAddr() {
		if m, ok := fieldVal.Addr().Interface().(Marshaler); ok {
			return m.ToPlutusData()
		}
	}
	if m, ok := fieldVal.Interface().(Marshaler); ok {
		return m.ToPlutusData()
	}

	switch plutusType {
	case "Int":
		return encodeInt(fieldVal)
	case "Bytes":
		return encodeBytes(fieldVal)
	case "StringBytes":
		return encodeStringBytes(fieldVal)
	case "HexString":
		return encodeHexString(fieldVal)
	case "Bool":
		return encodeBool(fieldVal, false)
	case "IndefBool":
		return encodeBool(fieldVal, true)
	case "IndefList":
		return encodeSliceOrNested(fieldVal, true)
	case "DefList":
		return encodeSliceOrNested(fieldVal, false)
	case "Map":
		return encodeSliceAsMap(fieldVal)
	case "Custom":
		return nil, fmt.Errorf("plutusdata: field %s tagged Custom but doesn't implement Marshaler", field.Name)
	default:
		if fieldVal.Kind() == reflect.Struct {
			return encodeValue(fieldVal)
		}
		return nil, fmt.Errorf("plutusdata: unsupported field type %s for field %s", fieldVal.Kind(), field.Name)
	}
}

func encodeInt(val reflect.Value) (data.PlutusData, error) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return data.NewInteger(big.NewInt(val.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return data.NewInteger(new(big.Int).SetUint64(val.Uint())), nil
	default:
		return nil, fmt.Errorf("plutusdata: Int tag requires integer type, got %s", val.Kind())
	}
}

func encodeBigInt(val reflect.Value) (data.PlutusData, error) {
	switch v := val.Interface().(type) {
	case *big.Int:
		if v == nil {
			return data.NewInteger(big.NewInt(0)), nil
		}
		return data.NewInteger(v), nil
	case big.Int:
		return data.NewInteger(&v), nil
	default:
		return nil, fmt.Errorf("plutusdata: BigInt tag requires *big.Int or big.Int, got %T", val.Interface())
	}
}

func encodeBytes(val reflect.Value) (data.PlutusData, error) {
	if val.Kind() != reflect.Slice || val.Type().Elem().Kind() != reflect.Uint8 {
		return nil, fmt.Errorf("plutusdata: Bytes tag requires []byte, got %s", val.Type())
	}
	return data.NewByteString(val.Bytes()), nil
}

func encodeStringBytes(val reflect.Value) (data.PlutusData, error) {
	if val.Kind() != reflect.String {
		return nil, fmt.Errorf("plutusdata: StringBytes tag requires string, got %s", val.Kind())
	}
	return data.NewByteString([]byte(val.String())), nil
}

func encodeHexString(val reflect.Value) (data.PlutusData, error) {
	if val.Kind() != reflect.String {
		return nil, fmt.Errorf("plutusdata: HexString tag requires string, got %s", val.Kind())
	}
	b, err := hex.DecodeString(val.String())
	if err != nil {
		return nil, fmt.Errorf("plutusdata: HexString invalid hex: %w", err)
	}
	return data.NewByteString(b), nil
}

func encodeBool(val reflect.Value, useIndef bool) (data.PlutusData, error) {
	if val.Kind() != reflect.Bool {
		return nil, fmt.Errorf("plutusdata: Bool tag requires bool, got %s", val.Kind())
	}
	tag := uint(0)
	if val.Bool() {
		tag = 1
	}
	return data.NewConstrDefIndef(useIndef, tag), nil
}

func encodeSliceOrNested(val reflect.Value, useIndef bool) (data.PlutusData, error) {
	if val.Kind() == reflect.Slice {
		items := make([]data.PlutusData, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			pd, err := encodeSliceElement(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			items = append(items, pd)
		}
		return data.NewListDefIndef(useIndef, items...), nil
	}
	return encodeValue(val)
}

func encodeSliceElement(elem reflect.Value) (data.PlutusData, error) {
	for elem.Kind() == reflect.Ptr {
		if elem.IsNil() {
			return nil, errors.New("plutusdata: nil pointer in slice")
		}
		elem = elem.Elem()
	}
	switch elem.Kind() {
	case reflect.Struct:
		return encodeValue(elem)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return data.NewInteger(big.NewInt(elem.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return data.NewInteger(new(big.Int).SetUint64(elem.Uint())), nil
	case reflect.String:
		return data.NewByteString([]byte(elem.String())), nil
	case reflect.Slice:
		if elem.Type().Elem().Kind() == reflect.Uint8 {
			return data.NewByteString(elem.Bytes()), nil
		}
		return nil, fmt.Errorf("plutusdata: unsupported slice element type %s", elem.Type())
	default:
		return nil, fmt.Errorf("plutusdata: unsupported slice element kind %s", elem.Kind())
	}
}

func encodeSliceAsMap(val reflect.Value) (data.PlutusData, error) {
	if val.Kind() != reflect.Slice {
		return encodeValue(val)
	}
	pairs := make([][2]data.PlutusData, 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		elem := val.Index(i)
		for elem.Kind() == reflect.Ptr {
			if elem.IsNil() {
				return nil, fmt.Errorf("plutusdata: nil pointer at element %d", i)
			}
			elem = elem.Elem()
		}
		key, keyIdx, err := extractMapKey(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d key: %w", i, err)
		}
		pd, err := encodeMapValueFields(elem, keyIdx)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		pairs = append(pairs, [2]data.PlutusData{key, pd})
	}
	return data.NewMap(pairs), nil
}

// encodeMapValueFields encodes every exported field of elem except the key
// field at keyIdx. A single remaining field is returned bare; more than one
// is wrapped in a List.
func encodeMapValueFields(elem reflect.Value, keyIdx int) (data.PlutusData, error) {
	typ := elem.Type()
	var fields []data.PlutusData
	for i := 0; i < typ.NumField(); i++ {
		if i == keyIdx {
			continue
		}
		f := typ.Field(i)
		if f.Name == "_" || !f.IsExported() {
			continue
		}
		pd, err := encodeField(elem.Field(i), f)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, pd)
	}
	if len(fields) == 1 {
		return fields[0], nil
	}
	return data.NewList(fields...), nil
}

// extractMapKey reads the map key from a slice element's first exported
// field, returning the encoded key, its field index, and any error.
func extractMapKey(elem reflect.Value) (data.PlutusData, int, error) {
	if elem.Kind() != reflect.Struct {
		return nil, -1, fmt.Errorf("plutusdata: cannot extract map key from non-struct element of kind %s", elem.Kind())
	}
	typ := elem.Type()
	for j := 0; j < typ.NumField(); j++ {
		f := typ.Field(j)
		if f.Name == "_" || !f.IsExported() {
			continue
		}
		fv := elem.Field(j)
		if fv.Kind() == reflect.String {
			return data.NewByteString([]byte(fv.String())), j, nil
		}
		pd, err := encodeField(fv, f)
		if err != nil {
			return nil, -1, err
		}
		return pd, j, nil
	}
	return nil, -1, errors.New("plutusdata: struct has no exported fields to use as map key")
}
