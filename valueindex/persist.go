package valueindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
)

const (
	magicValueIndex = 0x4E475649 // "NGVI"
	versionState    = 1
)

// Checkpoint identifies the checkpoint a state record belongs to.
type Checkpoint struct {
	// Timestamp is the logical time of the checkpoint.
	Timestamp int64
	// Identity is the durability file the checkpoint was taken against.
	Identity uuid.UUID
}

// SaveState writes the index content to w.
//
// Format (little endian):
//
//	magic uint32 | version uint32 | count uvarint
//	count × (id uint32 | value)
//	timestamp int64 | timestamp int64 | identity [16]byte
//
// The timestamp is written twice and verified on load.
//
// Thread-safety: Caller must ensure no concurrent Add/Remove.
func (ix *Index[T]) SaveState(w io.Writer, cp Checkpoint) error {
	bw := bufio.NewWriter(w)

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magicValueIndex)
	binary.LittleEndian.PutUint32(hdr[4:8], versionState)
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	ids := make([]uint32, 0, len(ix.values))
	for id := range ix.values {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	buf := binary.AppendUvarint(make([]byte, 0, 64), uint64(len(ids)))
	if _, err := bw.Write(buf); err != nil {
		return err
	}

	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf[:0], id)
		buf = ix.vt.Append(buf, ix.values[id])
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(cp.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(cp.Timestamp))
	buf = append(buf, cp.Identity[:]...)
	if _, err := bw.Write(buf); err != nil {
		return err
	}

	return bw.Flush()
}

// ReadState replaces the index content with the record read from r.
//
// The stored identity must equal expected; otherwise ErrIdentityMismatch is
// returned and the index is left unchanged. A record that fails verification
// also leaves the index unchanged.
//
// Thread-safety: Caller must hold the write lock.
func (ix *Index[T]) ReadState(r io.Reader, expected uuid.UUID) (Checkpoint, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return Checkpoint{}, err
	}
	if magic := binary.LittleEndian.Uint32(hdr[0:4]); magic != magicValueIndex {
		return Checkpoint{}, fmt.Errorf("%w: invalid magic: %x", ErrCorrupt, magic)
	}
	if ver := binary.LittleEndian.Uint32(hdr[4:8]); ver != versionState {
		return Checkpoint{}, fmt.Errorf("%w: unsupported version: %d", ErrCorrupt, ver)
	}

	count, err := binary.ReadUvarint(br)
	if err != nil {
		return Checkpoint{}, err
	}

	type entry struct {
		id    uint32
		value T
	}
	entries := make([]entry, 0, min(count, 1<<20))

	var idBuf [4]byte
	for range count {
		if _, err := io.ReadFull(br, idBuf[:]); err != nil {
			return Checkpoint{}, err
		}
		v, err := ix.vt.Decode(br)
		if err != nil {
			return Checkpoint{}, err
		}
		entries = append(entries, entry{id: binary.LittleEndian.Uint32(idBuf[:]), value: v})
	}

	var tail [32]byte
	if _, err := io.ReadFull(br, tail[:]); err != nil {
		return Checkpoint{}, err
	}
	ts := binary.LittleEndian.Uint64(tail[0:8])
	if check := binary.LittleEndian.Uint64(tail[8:16]); check != ts {
		return Checkpoint{}, fmt.Errorf("%w: checkpoint timestamp mismatch", ErrCorrupt)
	}
	cp := Checkpoint{Timestamp: int64(ts)}
	copy(cp.Identity[:], tail[16:32])

	if cp.Identity != expected {
		return cp, fmt.Errorf("%w: stored %s, expected %s", ErrIdentityMismatch, cp.Identity, expected)
	}

	seen := make(map[uint32]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.id]; dup {
			return cp, fmt.Errorf("%w: duplicate id %d", ErrCorrupt, e.id)
		}
		seen[e.id] = struct{}{}
	}

	ix.reset()
	for _, e := range entries {
		if err := ix.Add(e.id, e.value); err != nil {
			return cp, err
		}
	}
	return cp, nil
}
