package checkpoint

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/hupe1980/nodegraph/internal/hash"
)

const (
	magic   = 0x4E474350 // "NGCP"
	version = 1

	// maxSectionSize bounds allocations while reading a damaged file.
	maxSectionSize = 1 << 31
)

// ErrCorrupt is returned for malformed or damaged checkpoint data.
var ErrCorrupt = errors.New("checkpoint: corrupt data")

// Header describes a checkpoint file.
type Header struct {
	Compression Compression
	// Codec is the name of the codec used for record sections.
	Codec string
	// Identity is the durability identity of the store that wrote the file.
	Identity uuid.UUID
	// Timestamp is the logical time of the checkpoint.
	Timestamp int64
}

// Section is one named, possibly compressed, part of a checkpoint.
type Section struct {
	Name       string
	Size       uint32 // uncompressed
	Compressed bool
	Checksum   uint32 // CRC32C of the uncompressed data
	Data       []byte
}

// EncodeSection checksums and compresses data.
func EncodeSection(name string, data []byte, c Compression) (Section, error) {
	if len(data) >= maxSectionSize {
		return Section{}, fmt.Errorf("checkpoint: section %q too large", name)
	}
	stored, compressed, err := compress(data, c)
	if err != nil {
		return Section{}, err
	}
	return Section{
		Name:       name,
		Size:       uint32(len(data)),
		Compressed: compressed,
		Checksum:   hash.CRC32C(data),
		Data:       stored,
	}, nil
}

// Decode decompresses the section and verifies its checksum.
func (s Section) Decode(c Compression) ([]byte, error) {
	data := s.Data
	if s.Compressed {
		var err error
		if data, err = decompress(s.Data, s.Size, c); err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
	}
	if uint32(len(data)) != s.Size {
		return nil, fmt.Errorf("%w: section %q: size mismatch", ErrCorrupt, s.Name)
	}
	if hash.CRC32C(data) != s.Checksum {
		return nil, fmt.Errorf("%w: section %q: checksum mismatch", ErrCorrupt, s.Name)
	}
	return data, nil
}

// Writer writes a checkpoint stream.
//
// Format (little endian):
//
//	magic uint32 | version uint32 | compression uint8 | codec len uint8 | codec
//	identity [16]byte | timestamp int64
//	sections: name len uvarint | name | size uint32 | stored uint32 | crc uint32 | data
//	end: name len 0
//
// stored is 0 when the section is not compressed (data is size bytes).
type Writer struct {
	bw  *bufio.Writer
	buf []byte
}

// NewWriter writes the header to w.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if len(h.Codec) > 255 {
		return nil, fmt.Errorf("checkpoint: codec name too long")
	}
	cw := &Writer{bw: bufio.NewWriter(w), buf: make([]byte, 0, 64)}

	b := binary.LittleEndian.AppendUint32(cw.buf[:0], magic)
	b = binary.LittleEndian.AppendUint32(b, version)
	b = append(b, byte(h.Compression), byte(len(h.Codec)))
	b = append(b, h.Codec...)
	b = append(b, h.Identity[:]...)
	b = binary.LittleEndian.AppendUint64(b, uint64(h.Timestamp))
	if _, err := cw.bw.Write(b); err != nil {
		return nil, err
	}
	return cw, nil
}

// WriteSection appends a section.
func (w *Writer) WriteSection(s Section) error {
	if s.Name == "" {
		return errors.New("checkpoint: empty section name")
	}
	stored := uint32(0)
	if s.Compressed {
		stored = uint32(len(s.Data))
	}

	b := binary.AppendUvarint(w.buf[:0], uint64(len(s.Name)))
	b = append(b, s.Name...)
	b = binary.LittleEndian.AppendUint32(b, s.Size)
	b = binary.LittleEndian.AppendUint32(b, stored)
	b = binary.LittleEndian.AppendUint32(b, s.Checksum)
	w.buf = b
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	_, err := w.bw.Write(s.Data)
	return err
}

// Close writes the end marker and flushes. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if err := w.bw.WriteByte(0); err != nil {
		return err
	}
	return w.bw.Flush()
}

// Reader reads a checkpoint stream.
type Reader struct {
	br     *bufio.Reader
	header Header
}

// NewReader reads and validates the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var fixed [10]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return nil, corrupt("header", err)
	}
	if m := binary.LittleEndian.Uint32(fixed[0:4]); m != magic {
		return nil, fmt.Errorf("%w: invalid magic: %x", ErrCorrupt, m)
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != version {
		return nil, fmt.Errorf("%w: unsupported version: %d", ErrCorrupt, v)
	}

	h := Header{Compression: Compression(fixed[8])}
	if !h.Compression.Valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, fixed[8])
	}

	codec := make([]byte, fixed[9])
	if _, err := io.ReadFull(br, codec); err != nil {
		return nil, corrupt("header", err)
	}
	h.Codec = string(codec)

	var tail [24]byte
	if _, err := io.ReadFull(br, tail[:]); err != nil {
		return nil, corrupt("header", err)
	}
	copy(h.Identity[:], tail[:16])
	h.Timestamp = int64(binary.LittleEndian.Uint64(tail[16:]))

	return &Reader{br: br, header: h}, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next section, or io.EOF after the last one.
func (r *Reader) Next() (Section, error) {
	n, err := binary.ReadUvarint(r.br)
	if err != nil {
		return Section{}, corrupt("section name", err)
	}
	if n == 0 {
		return Section{}, io.EOF
	}
	if n > 1<<16 {
		return Section{}, fmt.Errorf("%w: section name too long", ErrCorrupt)
	}

	name := make([]byte, n)
	if _, err := io.ReadFull(r.br, name); err != nil {
		return Section{}, corrupt("section name", err)
	}

	var hdr [12]byte
	if _, err := io.ReadFull(r.br, hdr[:]); err != nil {
		return Section{}, corrupt("section "+strconv.Quote(string(name)), err)
	}
	s := Section{
		Name:     string(name),
		Size:     binary.LittleEndian.Uint32(hdr[0:4]),
		Checksum: binary.LittleEndian.Uint32(hdr[8:12]),
	}
	length := s.Size
	if stored := binary.LittleEndian.Uint32(hdr[4:8]); stored != 0 {
		s.Compressed = true
		length = stored
	}
	if length >= maxSectionSize {
		return Section{}, fmt.Errorf("%w: section %q too large", ErrCorrupt, s.Name)
	}

	s.Data = make([]byte, length)
	if _, err := io.ReadFull(r.br, s.Data); err != nil {
		return Section{}, corrupt("section "+strconv.Quote(s.Name), err)
	}
	return s, nil
}

// corrupt wraps a read error. A short read is never reported as io.EOF, which
// Next reserves for the end marker.
func corrupt(what string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, what, err)
}
