package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// WriteMetadata encodes a GGUF v3 header and key/value section with no
// tensors. Keys are written in sorted order. Supported value types are the
// Go types ReadMetadata produces plus []string.
func WriteMetadata(w io.Writer, kv map[string]interface{}) error {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := &encoder{w: w}
	e.u32(GGUFMagic)
	e.u32(GGUFVersion)
	e.u64(0)
	e.u64(uint64(len(keys)))
	for _, k := range keys {
		e.str(k)
		typ, err := typeOf(kv[k])
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		e.u32(uint32(typ))
		if err := e.value(kv[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	return e.err
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) put(v interface{}) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) u32(v uint32) { e.put(v) }
func (e *encoder) u64(v uint64) { e.put(v) }

func (e *encoder) str(s string) {
	e.u64(uint64(len(s)))
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

func (e *encoder) value(v interface{}) error {
	switch x := v.(type) {
	case uint8, int8, uint16, int16, uint32, int32, uint64, int64, bool:
		e.put(x)
	case float32:
		e.u32(math.Float32bits(x))
	case float64:
		e.u64(math.Float64bits(x))
	case string:
		e.str(x)
	case []string:
		e.u32(uint32(GGUFMetadataValueTypeString))
		e.u64(uint64(len(x)))
		for _, s := range x {
			e.str(s)
		}
	case []interface{}:
		elem := GGUFMetadataValueTypeUint8
		if len(x) > 0 {
			t, err := typeOf(x[0])
			if err != nil {
				return err
			}
			elem = t
		}
		e.u32(uint32(elem))
		e.u64(uint64(len(x)))
		for _, item := range x {
			if err := e.value(item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported metadata value %T", v)
	}
	return e.err
}

func typeOf(v interface{}) (GGUFMetadataValueType, error) {
	switch v.(type) {
	case uint8:
		return GGUFMetadataValueTypeUint8, nil
	case int8:
		return GGUFMetadataValueTypeInt8, nil
	case uint16:
		return GGUFMetadataValueTypeUint16, nil
	case int16:
		return GGUFMetadataValueTypeInt16, nil
	case uint32:
		return GGUFMetadataValueTypeUint32, nil
	case int32:
		return GGUFMetadataValueTypeInt32, nil
	case float32:
		return GGUFMetadataValueTypeFloat32, nil
	case bool:
		return GGUFMetadataValueTypeBool, nil
	case string:
		return GGUFMetadataValueTypeString, nil
	case []string, []interface{}:
		return GGUFMetadataValueTypeArray, nil
	case uint64:
		return GGUFMetadataValueTypeUint64, nil
	case int64:
		return GGUFMetadataValueTypeInt64, nil
	case float64:
		return GGUFMetadataValueTypeFloat64, nil
	}
	return 0, fmt.Errorf("unsupported metadata value %T", v)
}
