package valueindex

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/nodegraph/model"
)

func TestPersist_RoundTrip(t *testing.T) {
	clock := model.NewClock()
	src := New(String, clock)
	for i, v := range []string{"a", "b", "a", "", "zz"} {
		require.NoError(t, src.Add(uint32(i*3), v))
	}

	id := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, src.SaveState(&buf, Checkpoint{Timestamp: 1234, Identity: id}))

	dst := New(String, clock)
	require.NoError(t, dst.Add(99, "stale"))

	cp, err := dst.ReadState(&buf, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cp.Timestamp)
	assert.Equal(t, id, cp.Identity)

	require.NoError(t, dst.Check())
	assert.Equal(t, src.Len(), dst.Len())
	assert.Equal(t, src.Values(), dst.Values())
	for _, i := range src.AllIDs() {
		want, _ := src.ValueOf(i)
		got, ok := dst.ValueOf(i)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := dst.ValueOf(99)
	assert.False(t, ok)
}

func TestPersist_IdentityMismatch(t *testing.T) {
	src := newIntIndex()
	require.NoError(t, src.Add(1, 1))

	var buf bytes.Buffer
	require.NoError(t, src.SaveState(&buf, Checkpoint{Timestamp: 1, Identity: uuid.New()}))

	dst := newIntIndex()
	require.NoError(t, dst.Add(5, 5))
	_, err := dst.ReadState(&buf, uuid.New())
	require.ErrorIs(t, err, ErrIdentityMismatch)

	// The index is left unchanged.
	v, ok := dst.ValueOf(5)
	require.True(t, ok)
	assert.Equal(t, int64(5), v)
}

func TestPersist_Corrupt(t *testing.T) {
	src := newIntIndex()
	require.NoError(t, src.Add(1, 1))

	id := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, src.SaveState(&buf, Checkpoint{Timestamp: 7, Identity: id}))
	data := buf.Bytes()

	t.Run("timestamp", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-17]++ // last byte of the second timestamp
		_, err := newIntIndex().ReadState(bytes.NewReader(bad), id)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] ^= 0xFF
		_, err := newIntIndex().ReadState(bytes.NewReader(bad), id)
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := newIntIndex().ReadState(bytes.NewReader(data[:len(data)-4]), id)
		require.Error(t, err)
	})
}

func TestPersist_RejectsBadRecordWithoutReset(t *testing.T) {
	clock := model.NewClock()
	id := uuid.New()

	src := New(String, clock)
	require.NoError(t, src.Add(1, "a"))
	require.NoError(t, src.Add(2, "a"))
	var buf bytes.Buffer
	require.NoError(t, src.SaveState(&buf, Checkpoint{Timestamp: 3, Identity: id}))
	valid := buf.Bytes()

	// header(8) count(1) | id(4) "a"(2) | id(4) "a"(2) | tail(32)
	dup := bytes.Clone(valid)
	copy(dup[15:19], dup[9:13])

	var huge []byte
	huge = append(huge, valid[:8]...)
	huge = binary.AppendUvarint(huge, 1)
	huge = binary.LittleEndian.AppendUint32(huge, 7)
	huge = binary.AppendUvarint(huge, 1<<62)

	var short []byte
	short = append(short, valid[:8]...)
	short = binary.AppendUvarint(short, 1)
	short = binary.LittleEndian.AppendUint32(short, 7)
	short = binary.AppendUvarint(short, 100)
	short = append(short, "abc"...)

	tests := []struct {
		name string
		data []byte
	}{
		{"duplicate id", dup},
		{"oversized string", huge},
		{"truncated string", short},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := New(String, clock)
			require.NoError(t, dst.Add(5, "keep"))

			_, err := dst.ReadState(bytes.NewReader(tt.data), id)
			require.ErrorIs(t, err, ErrCorrupt)

			assert.Equal(t, 1, dst.Len())
			v, ok := dst.ValueOf(5)
			require.True(t, ok)
			assert.Equal(t, "keep", v)
		})
	}
}
