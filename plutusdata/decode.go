package plutusdata

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	"github.com/blinklabs-io/plutigo/data"
)

// Decode fills v, which must be a non-nil pointer to struct, from pd using
// the same struct tags Encode reads.
func Decode(pd data.PlutusData, v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("plutusdata: Decode requires a non-nil pointer")
	}
	return decodeValue(pd, val.Elem())
}

func decodeValue(pd data.PlutusData, val reflect.Value) error {
	if val.CanAddr() {
		if m, ok := val.Addr().Interface().(Marshaler); ok {
			return m.FromPlutusData(pd, val.Addr().Interface())
		}
	}
	if m, ok := val.Interface().(Marshaler); ok {
		return m.FromPlutusData(pd, val.Interface())
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("plutusdata: decode target must be a struct, got %s", val.Kind())
	}

	typ := val.Type()
	containerType := ""
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "_" {
			containerType = field.Tag.Get("plutusType")
			break
		}
	}

	switch containerType {
	case "Map":
		return decodeFromMap(pd, val, typ)
	default:
		return decodeFromList(pd, val, typ)
	}
}

func expectedConstrTag(typ reflect.Type) (tag uint, has bool, err error) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name != "_" {
			continue
		}
		if constrStr := field.Tag.Get("plutusConstr"); constrStr != "" {
			c, parseErr := strconv.ParseUint(constrStr, 10, 64)
			if parseErr != nil {
				return 0, false, fmt.Errorf("plutusdata: invalid plutusConstr tag %q: %w", constrStr, parseErr)
			}
			return uint(c), true, nil
		}
		break
	}
	return 0, false, nil
}

func decodeFromList(pd data.PlutusData, val reflect.Value, typ reflect.Type) error {
	expectedConstr, hasExpectedConstr, err := expectedConstrTag(typ)
	if err != nil {
		return err
	}

	var fields []data.PlutusData
	switch v := pd.(type) {
	case *data.Constr:
		if hasExpectedConstr && v.Tag != expectedConstr {
			return fmt.Errorf("plutusdata: expected Constr tag %d, got %d", expectedConstr, v.Tag)
		}
		fields = v.Fields
	case *data.List:
		if hasExpectedConstr {
			return fmt.Errorf("plutusdata: expected Constr with tag %d, got List", expectedConstr)
		}
		fields = v.Items
	default:
		return fmt.Errorf("plutusdata: expected Constr or List, got %T", pd)
	}

	exportedCount := 0
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Name != "_" && f.IsExported() {
			exportedCount++
		}
	}
	if len(fields) < exportedCount {
		return fmt.Errorf("plutusdata: data has %d fields, struct %s expects %d", len(fields), typ.Name(), exportedCount)
	}

	fieldIdx := 0
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "_" || !field.IsExported() {
			continue
		}
		if err := decodeField(fields[fieldIdx], val.Field(i), field); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		fieldIdx++
	}
	return nil
}

func decodeFromMap(pd data.PlutusData, val reflect.Value, typ reflect.Type) error {
	expectedConstr, hasExpectedConstr, err := expectedConstrTag(typ)
	if err != nil {
		return err
	}

	mapData, ok := pd.(*data.Map)
	if !ok {
		constr, isConstr := pd.(*data.Constr)
		switch {
		case isConstr && len(constr.Fields) == 1:
			if hasExpectedConstr && constr.Tag != expectedConstr {
				return fmt.Errorf("plutusdata: expected Constr tag %d, got %d", expectedConstr, constr.Tag)
			}
			mapData, ok = constr.Fields[0].(*data.Map)
			if !ok {
				return fmt.Errorf("plutusdata: expected Map in Constr, got %T", constr.Fields[0])
			}
		case isConstr:
			return fmt.Errorf("plutusdata: expected Constr with 1 field wrapping a Map, got Constr with %d fields", len(constr.Fields))
		default:
			return fmt.Errorf("plutusdata: expected Map, got %T", pd)
		}
	} else if hasExpectedConstr {
		return fmt.Errorf("plutusdata: expected Constr with tag %d wrapping Map, got bare Map", expectedConstr)
	}

	keyed := make(map[string]data.PlutusData, len(mapData.Pairs))
	for _, pair := range mapData.Pairs {
		if bs, ok := pair[0].(*data.ByteString); ok {
			keyed[string(bs.Inner)] = pair[1]
		}
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Name == "_" || !field.IsExported() {
			continue
		}
		keyName := field.Tag.Get("plutusKey")
		if keyName == "" {
			keyName = field.Name
		}
		value, exists := keyed[keyName]
		if !exists {
			continue
		}
		if err := decodeField(value, val.Field(i), field); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func decodeField(pd data.PlutusData, fieldVal reflect.Value, field reflect.StructField) error {
	plutusType := field.Tag.Get("plutusType")

	if plutusType == "BigInt" {
		return decodeBigInt(pd, fieldVal)
	}

	for fieldVal.Kind() == reflect.Ptr {
		if fieldVal.IsNil() {
			fieldVal.Set(reflect.New(fieldVal.Type().Elem()))
		}
		fieldVal = fieldVal.Elem()
	}

	if fieldVal.CanAddr() {
		if m, ok := fieldVal.Addr().Interface().(Marshaler); ok {
			return m.FromPlutusData(pd, fieldVal.Addr().Interface())
		}
	}
	if m, ok := fieldVal.Interface().(Marshaler); ok {
		return m.FromPlutusData(pd, fieldVal.Interface())
	}

	switch plutusType {
	case "Int":
		return decodeInt(pd, fieldVal)
	case "Bytes":
		return decodeBytes(pd, fieldVal)
	case "StringBytes":
		return decodeStringBytes(pd, fieldVal)
	case "HexString":
		return decodeHexString(pd, fieldVal)
	case "Bool", "IndefBool":
		return decodeBool(pd, fieldVal)
	case "IndefList", "DefList":
		return decodeSliceOrNested(pd, fieldVal)
	case "Map":
		return decodeSliceAsMap(pd, fieldVal)
	case "Custom":
		return fmt.Errorf("plutusdata: field %s tagged Custom but doesn't implement Marshaler", field.Name)
	default:
		if fieldVal.Kind() == reflect.Struct {
			return decodeValue(pd, fieldVal)
		}
		return fmt.Errorf("plutusdata: unsupported field type %s for field %s", fieldVal.Kind(), field.Name)
	}
}

func decodeInt(pd data.PlutusData, fieldVal reflect.Value) error {
	integer, ok := pd.(*data.Integer)
	if !ok {
		return fmt.Errorf("plutusdata: expected Integer, got %T", pd)
	}
	switch fieldVal.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		if !integer.Inner.IsInt64() {
			return fmt.Errorf("plutusdata: integer value %s does not fit in int64", integer.Inner.String())
		}
		v := integer.Inner.Int64()
		if err := checkIntRange(fieldVal.Kind(), v); err != nil {
			return err
		}
		fieldVal.SetInt(v)
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		if integer.Inner.Sign() < 0 || !integer.Inner.IsUint64() {
			return fmt.Errorf("plutusdata: integer value %s does not fit in %s", integer.Inner.String(), fieldVal.Kind())
		}
		v := integer.Inner.Uint64()
		if err := checkUintRange(fieldVal.Kind(), v); err != nil {
			return err
		}
		fieldVal.SetUint(v)
	default:
		return fmt.Errorf("plutusdata: Int tag requires integer type, got %s", fieldVal.Kind())
	}
	return nil
}

func checkIntRange(kind reflect.Kind, v int64) error {
	switch kind {
	case reflect.Int32:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("plutusdata: value %d does not fit in int32", v)
		}
	case reflect.Int16:
		if v < math.MinInt16 || v > math.MaxInt16 {
			return fmt.Errorf("plutusdata: value %d does not fit in int16", v)
		}
	case reflect.Int8:
		if v < math.MinInt8 || v > math.MaxInt8 {
			return fmt.Errorf("plutusdata: value %d does not fit in int8", v)
		}
	}
	return nil
}

func checkUintRange(kind reflect.Kind, v uint64) error {
	switch kind {
	case reflect.Uint32:
		if v > math.MaxUint32 {
			return fmt.Errorf("plutusdata: value %d does not fit in uint32", v)
		}
	case reflect.Uint16:
		if v > math.MaxUint16 {
			return fmt.Errorf("plutusdata: value %d does not fit in uint16", v)
		}
	case reflect.Uint8:
		if v > math.MaxUint8 {
			return fmt.Errorf("plutusdata: value %d does not fit in uint8", v)
		}
	}
	return nil
}

func decodeBigInt(pd data.PlutusData, fieldVal reflect.Value) error {
	integer, ok := pd.(*data.Integer)
	if !ok {
		return fmt.Errorf("plutusdata: expected Integer, got %T", pd)
	}
	switch fieldVal.Type() {
	case reflect.TypeFor[*big.Int]():
		fieldVal.Set(reflect.ValueOf(new(big.Int).Set(integer.Inner)))
	case reflect.TypeFor[big.Int]():
		fieldVal.Set(reflect.ValueOf(*new(big.Int).Set(integer.Inner)))
	default:
		return fmt.Errorf("plutusdata: BigInt tag requires *big.Int or big.Int, got %s", fieldVal.Type())
	}
	return nil
}

func decodeBytes(pd data.PlutusData, fieldVal reflect.Value) error {
	bs, ok := pd.(*data.ByteString)
	if !ok {
		return fmt.Errorf("plutusdata: expected ByteString, got %T", pd)
	}
	if fieldVal.Kind() != reflect.Slice || fieldVal.Type().Elem().Kind() != reflect.Uint8 {
		return fmt.Errorf("plutusdata: Bytes tag requires []byte, got %s", fieldVal.Type())
	}
	fieldVal.SetBytes(append([]byte(nil), bs.Inner...))
	return nil
}

func decodeStringBytes(pd data.PlutusData, fieldVal reflect.Value) error {
	bs, ok := pd.(*data.ByteString)
	if !ok {
		return fmt.Errorf("plutusdata: expected ByteString, got %T", pd)
	}
	if fieldVal.Kind() != reflect.String {
		return fmt.Errorf("plutusdata: StringBytes tag requires string, got %s", fieldVal.Kind())
	}
	fieldVal.SetString(string(bs.Inner))
	return nil
}

func decodeHexString(pd data.PlutusData, fieldVal reflect.Value) error {
	bs, ok := pd.(*data.ByteString)
	if !ok {
		return fmt.Errorf("plutusdata: expected ByteString, got %T", pd)
	}
	if fieldVal.Kind() != reflect.String {
		return fmt.Errorf("plutusdata: HexString tag requires string, got %s", fieldVal.Kind())
	}
	fieldVal.SetString(hex.EncodeToString(bs.Inner))
	return nil
}

func decodeBool(pd data.PlutusData, fieldVal reflect.Value) error {
	constr, ok := pd.(*data.Constr)
	if !ok {
		return fmt.Errorf("plutusdata: expected Constr for Bool, got %T", pd)
	}
	if constr.Tag > 1 {
		return fmt.Errorf("plutusdata: expected Constr tag 0 or 1 for Bool, got %d", constr.Tag)
	}
	if fieldVal.Kind() != reflect.Bool {
		return fmt.Errorf("plutusdata: Bool tag requires bool, got %s", fieldVal.Kind())
	}
	fieldVal.SetBool(constr.Tag == 1)
	return nil
}

func decodeSliceOrNested(pd data.PlutusData, fieldVal reflect.Value) error {
	if fieldVal.Kind() != reflect.Slice {
		return decodeValue(pd, fieldVal)
	}
	var items []data.PlutusData
	switch v := pd.(type) {
	case *data.List:
		items = v.Items
	case *data.Constr:
		items = v.Fields
	default:
		return fmt.Errorf("plutusdata: expected List or Constr for slice, got %T", pd)
	}

	elemType := fieldVal.Type().Elem()
	result := reflect.MakeSlice(fieldVal.Type(), len(items), len(items))
	for i, item := range items {
		if elemType.Kind() == reflect.Ptr {
			ptr := reflect.New(elemType.Elem())
			if err := decodeSliceElement(item, ptr.Elem()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			result.Index(i).Set(ptr)
		} else {
			elem := reflect.New(elemType).Elem()
			if err := decodeSliceElement(item, elem); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			result.Index(i).Set(elem)
		}
	}
	fieldVal.Set(result)
	return nil
}

func decodeSliceElement(pd data.PlutusData, elem reflect.Value) error {
	switch elem.Kind() {
	case reflect.Struct:
		return decodeValue(pd, elem)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		integer, ok := pd.(*data.Integer)
		if !ok {
			return fmt.Errorf("plutusdata: expected Integer, got %T", pd)
		}
		if !integer.Inner.IsInt64() {
			return fmt.Errorf("plutusdata: integer value %s does not fit in %s", integer.Inner.String(), elem.Kind())
		}
		v := integer.Inner.Int64()
		if err := checkIntRange(elem.Kind(), v); err != nil {
			return err
		}
		elem.SetInt(v)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		integer, ok := pd.(*data.Integer)
		if !ok {
			return fmt.Errorf("plutusdata: expected Integer, got %T", pd)
		}
		if integer.Inner.Sign() < 0 || !integer.Inner.IsUint64() {
			return fmt.Errorf("plutusdata: integer value %s does not fit in %s", integer.Inner.String(), elem.Kind())
		}
		v := integer.Inner.Uint64()
		if err := checkUintRange(elem.Kind(), v); err != nil {
			return err
		}
		elem.SetUint(v)
		return nil
	case reflect.String:
		bs, ok := pd.(*data.ByteString)
		if !ok {
			return fmt.Errorf("plutusdata: expected ByteString, got %T", pd)
		}
		elem.SetString(string(bs.Inner))
		return nil
	case reflect.Slice:
		if elem.Type().Elem().Kind() == reflect.Uint8 {
			bs, ok := pd.(*data.ByteString)
			if !ok {
				return fmt.Errorf("plutusdata: expected ByteString, got %T", pd)
			}
			elem.SetBytes(append([]byte(nil), bs.Inner...))
			return nil
		}
		return fmt.Errorf("plutusdata: unsupported nested slice type %s", elem.Type())
	default:
		return fmt.Errorf("plutusdata: unsupported slice element kind %s", elem.Kind())
	}
}

func decodeSliceAsMap(pd data.PlutusData, fieldVal reflect.Value) error {
	if fieldVal.Kind() != reflect.Slice {
		return decodeValue(pd, fieldVal)
	}
	mapData, ok := pd.(*data.Map)
	if !ok {
		return fmt.Errorf("plutusdata: expected Map for slice, got %T", pd)
	}
	elemType := fieldVal.Type().Elem()
	result := reflect.MakeSlice(fieldVal.Type(), len(mapData.Pairs), len(mapData.Pairs))
	for i, pair := range mapData.Pairs {
		var elem reflect.Value
		if elemType.Kind() == reflect.Ptr {
			elem = reflect.New(elemType.Elem()).Elem()
		} else {
			elem = reflect.New(elemType).Elem()
		}
		if err := decodeMapEntry(pair, elem); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if elemType.Kind() == reflect.Ptr {
			result.Index(i).Set(elem.Addr())
		} else {
			result.Index(i).Set(elem)
		}
	}
	fieldVal.Set(result)
	return nil
}

// decodeMapEntry restores a map entry into a struct: pair[0] fills the first
// exported field (the key), pair[1] fills the rest.
func decodeMapEntry(pair [2]data.PlutusData, elem reflect.Value) error {
	if elem.Kind() != reflect.Struct {
		return decodeValue(pair[1], elem)
	}
	typ := elem.Type()

	keyIdx := -1
	for j := 0; j < typ.NumField(); j++ {
		f := typ.Field(j)
		if f.Name == "_" || !f.IsExported() {
			continue
		}
		keyIdx = j
		break
	}
	if keyIdx < 0 {
		return decodeValue(pair[1], elem)
	}

	keyField := typ.Field(keyIdx)
	if err := decodeField(pair[0], elem.Field(keyIdx), keyField); err != nil {
		return fmt.Errorf("key field %s: %w", keyField.Name, err)
	}

	var valueFieldIdxs []int
	for j := 0; j < typ.NumField(); j++ {
		if j == keyIdx {
			continue
		}
		f := typ.Field(j)
		if f.Name == "_" || !f.IsExported() {
			continue
		}
		valueFieldIdxs = append(valueFieldIdxs, j)
	}

	if len(valueFieldIdxs) == 1 {
		f := typ.Field(valueFieldIdxs[0])
		return decodeField(pair[1], elem.Field(valueFieldIdxs[0]), f)
	}

	var items []data.PlutusData
	switch v := pair[1].(type) {
	case *data.List:
		items = v.Items
	case *data.Constr:
		items = v.Fields
	default:
		return fmt.Errorf("plutusdata: expected List for multi-field map value, got %T", pair[1])
	}
	if len(items) < len(valueFieldIdxs) {
		return fmt.Errorf("plutusdata: map value has %d items but struct expects %d non-key fields", len(items), len(valueFieldIdxs))
	}
	for i, fieldIdx := range valueFieldIdxs {
		f := typ.Field(fieldIdx)
		if err := decodeField(items[i], elem.Field(fieldIdx), f); err != nil {
			return fmt.Errorf("value field %s: %w", f.Name, err)
		}
	}
	return nil
}
