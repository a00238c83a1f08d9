package valueindex

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"
)

// MaxStringLen bounds the length of a decoded string value.
const MaxStringLen = 1 << 30

// Kind identifies a built-in value type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindUUID
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindUUID:
		return "uuid"
	default:
		return "invalid"
	}
}

// Reader is the input consumed by value decoders. *bufio.Reader satisfies it.
type Reader interface {
	io.Reader
	io.ByteReader
}

// ValueType describes how an index compares, converts and serializes values.
// The index factory of the owning store picks one per property.
type ValueType[T comparable] struct {
	Kind Kind

	// Ordered reports whether greater/less/range queries and ordering are
	// meaningful for this type.
	Ordered bool

	// Compare returns a negative number when a < b, zero when a == b and a
	// positive number when a > b. It defines the sorted projection.
	Compare func(a, b T) int

	// Coerce converts a query constant into T.
	Coerce func(v any) (T, error)

	// Append appends the binary encoding of v to dst.
	Append func(dst []byte, v T) []byte

	// Decode reads one value encoded by Append.
	Decode func(r Reader) (T, error)
}

func mismatch(kind Kind, v any) error {
	return fmt.Errorf("%w: cannot use %T as %s", ErrTypeMismatch, v, kind)
}

// Int64 is the value type of integer properties.
var Int64 = ValueType[int64]{
	Kind:    KindInt,
	Ordered: true,
	Compare: cmp.Compare[int64],
	Coerce: func(v any) (int64, error) {
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint8:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case float64:
			// JSON decoding yields float64 for every number.
			if x == math.Trunc(x) && x >= -1<<63 && x < 1<<63 {
				return int64(x), nil
			}
		}
		return 0, mismatch(KindInt, v)
	},
	Append: func(dst []byte, v int64) []byte {
		return binary.LittleEndian.AppendUint64(dst, uint64(v))
	},
	Decode: func(r Reader) (int64, error) {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return int64(binary.LittleEndian.Uint64(buf[:])), nil
	},
}

// Float64 is the value type of floating point properties. NaN is rejected
// because it is not equal to itself.
var Float64 = ValueType[float64]{
	Kind:    KindFloat,
	Ordered: true,
	Compare: cmp.Compare[float64],
	Coerce: func(v any) (float64, error) {
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		case int:
			f = float64(x)
		case int32:
			f = float64(x)
		case int64:
			f = float64(x)
		default:
			return 0, mismatch(KindFloat, v)
		}
		if math.IsNaN(f) {
			return 0, fmt.Errorf("%w: NaN is not indexable", ErrTypeMismatch)
		}
		return f, nil
	},
	Append: func(dst []byte, v float64) []byte {
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	},
	Decode: func(r Reader) (float64, error) {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
	},
}

// String is the value type of text properties, ordered by byte-wise comparison.
var String = ValueType[string]{
	Kind:    KindString,
	Ordered: true,
	Compare: strings.Compare,
	Coerce: func(v any) (string, error) {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", mismatch(KindString, v)
	},
	Append: func(dst []byte, v string) []byte {
		dst = binary.AppendUvarint(dst, uint64(len(v)))
		return append(dst, v...)
	},
	Decode: func(r Reader) (string, error) {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return "", err
		}
		if n > MaxStringLen {
			return "", fmt.Errorf("%w: string length %d exceeds %d", ErrCorrupt, n, MaxStringLen)
		}
		var sb strings.Builder
		if _, err := io.CopyN(&sb, r, int64(n)); err != nil {
			return "", fmt.Errorf("%w: string of length %d: %v", ErrCorrupt, n, err)
		}
		return sb.String(), nil
	},
}

// Bool is the value type of boolean properties. It supports equality only.
var Bool = ValueType[bool]{
	Kind:    KindBool,
	Ordered: false,
	Compare: func(a, b bool) int {
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		default:
			return 1
		}
	},
	Coerce: func(v any) (bool, error) {
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return false, mismatch(KindBool, v)
	},
	Append: func(dst []byte, v bool) []byte {
		if v {
			return append(dst, 1)
		}
		return append(dst, 0)
	},
	Decode: func(r Reader) (bool, error) {
		b, err := r.ReadByte()
		if err != nil {
			return false, err
		}
		return b != 0, nil
	},
}

// UUID is the value type of identifier properties (e.g. foreign node ids).
// It supports equality only.
var UUID = ValueType[uuid.UUID]{
	Kind:    KindUUID,
	Ordered: false,
	Compare: func(a, b uuid.UUID) int {
		return strings.Compare(string(a[:]), string(b[:]))
	},
	Coerce: func(v any) (uuid.UUID, error) {
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		case string:
			u, err := uuid.Parse(x)
			if err != nil {
				return uuid.Nil, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
			}
			return u, nil
		}
		return uuid.Nil, mismatch(KindUUID, v)
	},
	Append: func(dst []byte, v uuid.UUID) []byte {
		return append(dst, v[:]...)
	},
	Decode: func(r Reader) (uuid.UUID, error) {
		var u uuid.UUID
		if _, err := io.ReadFull(r, u[:]); err != nil {
			return uuid.Nil, err
		}
		return u, nil
	},
}
