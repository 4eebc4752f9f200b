package gguf

import (
	"errors"
	"fmt"
)

const (
	GGUFMagic   = 0x46554747 // "GGUF"
	GGUFVersion = 3
)

type GGUFMetadataValueType uint32

const (
	GGUFMetadataValueTypeUint8   GGUFMetadataValueType = 0
	GGUFMetadataValueTypeInt8    GGUFMetadataValueType = 1
	GGUFMetadataValueTypeUint16  GGUFMetadataValueType = 2
	GGUFMetadataValueTypeInt16   GGUFMetadataValueType = 3
	GGUFMetadataValueTypeUint32  GGUFMetadataValueType = 4
	GGUFMetadataValueTypeInt32   GGUFMetadataValueType = 5
	GGUFMetadataValueTypeFloat32 GGUFMetadataValueType = 6
	GGUFMetadataValueTypeBool    GGUFMetadataValueType = 7
	GGUFMetadataValueTypeString  GGUFMetadataValueType = 8
	GGUFMetadataValueTypeArray   GGUFMetadataValueType = 9
	GGUFMetadataValueTypeUint64  GGUFMetadataValueType = 10
	GGUFMetadataValueTypeInt64   GGUFMetadataValueType = 11
	GGUFMetadataValueTypeFloat64 GGUFMetadataValueType = 12
)

// Well-known metadata keys.
const (
	KeyArchitecture = "general.architecture"
	KeyName         = "general.name"
	KeyTokens       = "tokenizer.ggml.tokens"
	KeyEOSTokenID   = "tokenizer.ggml.eos_token_id"
	KeyBOSTokenID   = "tokenizer.ggml.bos_token_id"
	KeyTokenizer    = "tokenizer.ggml.model"
)

type GGUFHeader struct {
	Magic       uint32
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// Metadata is the header and key/value section of a GGUF file. Tensor infos
// and tensor data are not read.
type Metadata struct {
	Header GGUFHeader
	KV     map[string]interface{}
}

var (
	ErrKeyNotFound = errors.New("metadata key not found")
	ErrTooLarge    = errors.New("metadata value exceeds size limit")
)

// Error types
type ErrInvalidMagic struct{ Magic uint32 }

func (e ErrInvalidMagic) Error() string {
	return fmt.Sprintf("invalid GGUF magic: %x", e.Magic)
}

type ErrUnsupportedVersion struct{ Version uint32 }

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported GGUF version: %d", e.Version)
}

func (t GGUFMetadataValueType) String() string {
	switch t {
	case GGUFMetadataValueTypeUint8:
		return "uint8"
	case GGUFMetadataValueTypeInt8:
		return "int8"
	case GGUFMetadataValueTypeUint16:
		return "uint16"
	case GGUFMetadataValueTypeInt16:
		return "int16"
	case GGUFMetadataValueTypeUint32:
		return "uint32"
	case GGUFMetadataValueTypeInt32:
		return "int32"
	case GGUFMetadataValueTypeFloat32:
		return "float32"
	case GGUFMetadataValueTypeBool:
		return "bool"
	case GGUFMetadataValueTypeString:
		return "string"
	case GGUFMetadataValueTypeArray:
		return "array"
	case GGUFMetadataValueTypeUint64:
		return "uint64"
	case GGUFMetadataValueTypeInt64:
		return "int64"
	case GGUFMetadataValueTypeFloat64:
		return "float64"
	default:
		return fmt.Sprintf("UNKNOWN_VALUE_TYPE_%d", uint32(t))
	}
}
