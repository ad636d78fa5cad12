package uplc

import (
	"fmt"
	"math/big"

	"github.com/blinklabs-io/plutigo/data"
)

// DecodeData decodes a self-contained CBOR-encoded Plutus Data value (the
// representation carried inside a UPLC `data` constant and inside datums /
// redeemers in the witness set). Constructor tags follow the Plutus
// convention: 121..127 for alternatives 0..6, 1280..1400 for alternatives
// 7..127, and 102 for a general (tag, fields) pair.
func DecodeData(b []byte) (data.PlutusData, error) {
	pd, rest, err := decodeDataItem(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("uplc: cbor: %d trailing bytes after data item", len(rest))
	}
	return pd, nil
}

func decodeDataItem(b []byte) (data.PlutusData, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("uplc: cbor: unexpected end of input")
	}
	major := b[0] >> 5
	minor := b[0] & 0x1f
	switch major {
	case 0: // unsigned int
		n, rest, err := readCborUint(b)
		if err != nil {
			return nil, nil, err
		}
		return data.NewInteger(new(big.Int).SetUint64(n)), rest, nil
	case 1: // negative int
		n, rest, err := readCborUint(b)
		if err != nil {
			return nil, nil, err
		}
		v := new(big.Int).SetUint64(n)
		v.Add(v, big.NewInt(1))
		v.Neg(v)
		return data.NewInteger(v), rest, nil
	case 2: // bytestring
		return decodeByteStringItem(b)
	case 4: // array
		return decodeArrayItem(b)
	case 5: // map
		return decodeMapItem(b)
	case 6: // tag
		return decodeTaggedItem(b, minor)
	case 7:
		if minor == 31 {
			return nil, nil, fmt.Errorf("uplc: cbor: unexpected break byte")
		}
		return nil, nil, fmt.Errorf("uplc: cbor: unsupported simple value minor %d", minor)
	}
	return nil, nil, fmt.Errorf("uplc: cbor: unsupported major type %d", major)
}

// readCborUint reads the head byte plus argument of a CBOR item, returning
// the argument as a uint64 and the remaining bytes after the head.
func readCborUint(b []byte) (uint64, []byte, error) {
	minor := b[0] & 0x1f
	switch {
	case minor < 24:
		return uint64(minor), b[1:], nil
	case minor == 24:
		if len(b) < 2 {
			return 0, nil, fmt.Errorf("uplc: cbor: truncated uint8 argument")
		}
		return uint64(b[1]), b[2:], nil
	case minor == 25:
		if len(b) < 3 {
			return 0, nil, fmt.Errorf("uplc: cbor: truncated uint16 argument")
		}
		return uint64(b[1])<<8 | uint64(b[2]), b[3:], nil
	case minor == 26:
		if len(b) < 5 {
			return 0, nil, fmt.Errorf("uplc: cbor: truncated uint32 argument")
		}
		v := uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
		return v, b[5:], nil
	case minor == 27:
		if len(b) < 9 {
			return 0, nil, fmt.Errorf("uplc: cbor: truncated uint64 argument")
		}
		var v uint64
		for i := 1; i <= 8; i++ {
			v = v<<8 | uint64(b[i])
		}
		return v, b[9:], nil
	default:
		return 0, nil, fmt.Errorf("uplc: cbor: indefinite-length argument not a count")
	}
}

func decodeByteStringItem(b []byte) (data.PlutusData, []byte, error) {
	minor := b[0] & 0x1f
	if minor == 31 {
		// Indefinite-length bytestring: chunks until a break byte (0xff).
		var out []byte
		rest := b[1:]
		for {
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("uplc: cbor: truncated indefinite bytestring")
			}
			if rest[0] == 0xff {
				rest = rest[1:]
				break
			}
			n, r2, err := readCborUint(rest)
			if err != nil {
				return nil, nil, err
			}
			if uint64(len(r2)) < n {
				return nil, nil, fmt.Errorf("uplc: cbor: bytestring chunk overruns buffer")
			}
			out = append(out, r2[:n]...)
			rest = r2[n:]
		}
		return data.NewByteString(out), rest, nil
	}
	n, rest, err := readCborUint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("uplc: cbor: bytestring overruns buffer")
	}
	return data.NewByteString(append([]byte(nil), rest[:n]...)), rest[n:], nil
}

func decodeArrayItem(b []byte) (data.PlutusData, []byte, error) {
	minor := b[0] & 0x1f
	var items []data.PlutusData
	rest := b[1:]
	if minor == 31 {
		for {
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("uplc: cbor: truncated indefinite array")
			}
			if rest[0] == 0xff {
				rest = rest[1:]
				break
			}
			item, r2, err := decodeDataItem(rest)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, item)
			rest = r2
		}
		return data.NewList(items...), rest, nil
	}
	n, r2, err := readCborUint(b)
	if err != nil {
		return nil, nil, err
	}
	rest = r2
	for i := uint64(0); i < n; i++ {
		item, r3, err := decodeDataItem(rest)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
		rest = r3
	}
	return data.NewList(items...), rest, nil
}

func decodeMapItem(b []byte) (data.PlutusData, []byte, error) {
	minor := b[0] & 0x1f
	var pairs [][2]data.PlutusData
	rest := b[1:]
	if minor == 31 {
		for {
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("uplc: cbor: truncated indefinite map")
			}
			if rest[0] == 0xff {
				rest = rest[1:]
				break
			}
			k, r2, err := decodeDataItem(rest)
			if err != nil {
				return nil, nil, err
			}
			v, r3, err := decodeDataItem(r2)
			if err != nil {
				return nil, nil, err
			}
			pairs = append(pairs, [2]data.PlutusData{k, v})
			rest = r3
		}
		return data.NewMap(pairs), rest, nil
	}
	n, r2, err := readCborUint(b)
	if err != nil {
		return nil, nil, err
	}
	rest = r2
	for i := uint64(0); i < n; i++ {
		k, r3, err := decodeDataItem(rest)
		if err != nil {
			return nil, nil, err
		}
		v, r4, err := decodeDataItem(r3)
		if err != nil {
			return nil, nil, err
		}
		pairs = append(pairs, [2]data.PlutusData{k, v})
		rest = r4
	}
	return data.NewMap(pairs), rest, nil
}

func decodeTaggedItem(b []byte, minor byte) (data.PlutusData, []byte, error) {
	tagVal, rest, err := readCborUint(b)
	_ = minor
	if err != nil {
		return nil, nil, err
	}
	switch {
	case tagVal == 2 || tagVal == 3: // big positive/negative integer
		item, r2, err := decodeDataItem(rest)
		if err != nil {
			return nil, nil, err
		}
		bs, ok := item.(*data.ByteString)
		if !ok {
			return nil, nil, fmt.Errorf("uplc: cbor: bigint tag wraps non-bytestring")
		}
		v := new(big.Int).SetBytes(bs.Inner)
		if tagVal == 3 {
			v.Add(v, big.NewInt(1))
			v.Neg(v)
		}
		return data.NewInteger(v), r2, nil
	case tagVal >= 121 && tagVal <= 127:
		fields, r2, err := decodeConstrFields(rest)
		if err != nil {
			return nil, nil, err
		}
		return data.NewConstr(uint(tagVal-121), fields...), r2, nil
	case tagVal >= 1280 && tagVal <= 1400:
		fields, r2, err := decodeConstrFields(rest)
		if err != nil {
			return nil, nil, err
		}
		return data.NewConstr(uint(7+(tagVal-1280)), fields...), r2, nil
	case tagVal == 102:
		// General constructor: [tag, fields-array]
		item, r2, err := decodeDataItem(rest)
		if err != nil {
			return nil, nil, err
		}
		arr, ok := item.(*data.List)
		if !ok || len(arr.Items) != 2 {
			return nil, nil, fmt.Errorf("uplc: cbor: tag 102 expects [tag, fields]")
		}
		tagItem, ok := arr.Items[0].(*data.Integer)
		if !ok {
			return nil, nil, fmt.Errorf("uplc: cbor: tag 102 first element must be an integer")
		}
		fieldsList, ok := arr.Items[1].(*data.List)
		if !ok {
			return nil, nil, fmt.Errorf("uplc: cbor: tag 102 second element must be a list")
		}
		return data.NewConstr(uint(tagItem.Inner.Uint64()), fieldsList.Items...), r2, nil
	default:
		// Unrecognized tag: decode and return the wrapped item as-is.
		return decodeDataItem(rest)
	}
}

func decodeConstrFields(b []byte) ([]data.PlutusData, []byte, error) {
	item, rest, err := decodeDataItem(b)
	if err != nil {
		return nil, nil, err
	}
	list, ok := item.(*data.List)
	if !ok {
		return nil, nil, fmt.Errorf("uplc: cbor: constructor fields must be a list")
	}
	return list.Items, rest, nil
}
