package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	// Upper bounds for a single string or array in the metadata section.
	// Real vocabularies are well below these.
	maxStringLen     = 1 << 24
	maxArrayLen      = 1 << 24
	maxArrayPrealloc = 4096
)

// LoadFile reads the metadata section of the GGUF file at path.
func LoadFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close() // Ignore close error in reader function
	}()

	md, err := ReadMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("read gguf %s: %w", path, err)
	}
	return md, nil
}

// ReadMetadata parses a GGUF header and key/value pairs from r and stops
// before the tensor infos.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	d := &decoder{r: bufio.NewReaderSize(r, 1<<16)}

	md := &Metadata{KV: make(map[string]interface{})}
	md.Header.Magic = d.u32()
	if d.err != nil {
		return nil, d.err
	}
	if md.Header.Magic != GGUFMagic {
		return nil, ErrInvalidMagic{Magic: md.Header.Magic}
	}

	md.Header.Version = d.u32()
	if d.err == nil && (md.Header.Version < 2 || md.Header.Version > 3) {
		return nil, ErrUnsupportedVersion{Version: md.Header.Version}
	}
	md.Header.TensorCount = d.u64()
	md.Header.KVCount = d.u64()
	if d.err != nil {
		return nil, d.err
	}

	for i := uint64(0); i < md.Header.KVCount; i++ {
		key := d.str()
		typ := GGUFMetadataValueType(d.u32())
		if d.err != nil {
			return nil, fmt.Errorf("kv %d: %w", i, d.err)
		}
		val := d.value(typ)
		if d.err != nil {
			return nil, fmt.Errorf("kv %q: %w", key, d.err)
		}
		md.KV[key] = val
	}
	return md, nil
}

// decoder keeps the first error so call sites can read a run of fields and
// check once.
type decoder struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return d.buf[:n]
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
	}
	return d.buf[:n]
}

func (d *decoder) u8() uint8   { return d.read(1)[0] }
func (d *decoder) u16() uint16 { return binary.LittleEndian.Uint16(d.read(2)) }
func (d *decoder) u32() uint32 { return binary.LittleEndian.Uint32(d.read(4)) }
func (d *decoder) u64() uint64 { return binary.LittleEndian.Uint64(d.read(8)) }

func (d *decoder) str() string {
	n := d.u64()
	if d.err != nil {
		return ""
	}
	if n > maxStringLen {
		d.err = fmt.Errorf("%w: string of %d bytes", ErrTooLarge, n)
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = io.ErrUnexpectedEOF
		return ""
	}
	return string(b)
}

func (d *decoder) value(typ GGUFMetadataValueType) interface{} {
	switch typ {
	case GGUFMetadataValueTypeUint8:
		return d.u8()
	case GGUFMetadataValueTypeInt8:
		return int8(d.u8())
	case GGUFMetadataValueTypeUint16:
		return d.u16()
	case GGUFMetadataValueTypeInt16:
		return int16(d.u16())
	case GGUFMetadataValueTypeUint32:
		return d.u32()
	case GGUFMetadataValueTypeInt32:
		return int32(d.u32())
	case GGUFMetadataValueTypeFloat32:
		return math.Float32frombits(d.u32())
	case GGUFMetadataValueTypeBool:
		return d.u8() != 0
	case GGUFMetadataValueTypeString:
		return d.str()
	case GGUFMetadataValueTypeArray:
		elemType := GGUFMetadataValueType(d.u32())
		n := d.u64()
		if d.err != nil {
			return nil
		}
		if n > maxArrayLen {
			d.err = fmt.Errorf("%w: array of %d elements", ErrTooLarge, n)
			return nil
		}
		// n is untrusted; grow past the first few thousand elements on demand.
		arr := make([]interface{}, 0, min(n, maxArrayPrealloc))
		for i := uint64(0); i < n && d.err == nil; i++ {
			arr = append(arr, d.value(elemType))
		}
		return arr
	case GGUFMetadataValueTypeUint64:
		return d.u64()
	case GGUFMetadataValueTypeInt64:
		return int64(d.u64())
	case GGUFMetadataValueTypeFloat64:
		return math.Float64frombits(d.u64())
	default:
		d.err = fmt.Errorf("unsupported metadata type: %d", typ)
		return nil
	}
}
