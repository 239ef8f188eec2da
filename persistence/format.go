package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// fileMagic identifies index files ("VEXD").
	fileMagic uint32 = 0x56455844

	// fileVersion is the current on-disk format version.
	fileVersion uint16 = 1

	// headerSize is the fixed envelope size preceding the payload.
	// magic u32, version u16, codec u8, reserved u8, payload len u64,
	// payload crc32 u32.
	headerSize = 4 + 2 + 1 + 1 + 8 + 4
)

// Snapshot file names within an index directory.
const (
	metaFile      = "meta.bin"
	graphFile     = "graph.bin"
	mappingFile   = "mapping.bin"
	vectorsFile   = "vectors.bin"
	quantizerFile = "quantizer.bin"
)

var (
	// ErrBadMagic is returned when a file does not start with the index
	// file magic.
	ErrBadMagic = errors.New("persistence: bad magic")

	// ErrChecksum is returned when a payload fails CRC verification.
	ErrChecksum = errors.New("persistence: checksum mismatch")
)

// VersionError is returned when a file was written by an unknown format
// version.
type VersionError struct {
	Got uint16
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("persistence: unsupported format version %d (current %d)", e.Got, fileVersion)
}

// writeFile writes one envelope-framed payload atomically: the bytes land
// in a temp file that is renamed over the target, so a crash never leaves
// a half-written file under the final name.
func writeFile(path string, codec Codec, payload []byte) error {
	compressed, err := compress(codec, payload)
	if err != nil {
		return err
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(compressed)))
	binary.Write(buf, binary.LittleEndian, fileMagic)
	binary.Write(buf, binary.LittleEndian, fileVersion)
	buf.WriteByte(byte(codec))
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, uint64(len(compressed)))
	binary.Write(buf, binary.LittleEndian, checksum(compressed))
	buf.Write(compressed)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persistence: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readFile reads and verifies one envelope-framed payload.
func readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < headerSize {
		return nil, fmt.Errorf("persistence: %s: %w", filepath.Base(path), ErrBadMagic)
	}

	r := bytes.NewReader(raw)

	var magic uint32
	binary.Read(r, binary.LittleEndian, &magic)
	if magic != fileMagic {
		return nil, fmt.Errorf("persistence: %s: %w", filepath.Base(path), ErrBadMagic)
	}

	var version uint16
	binary.Read(r, binary.LittleEndian, &version)
	if version != fileVersion {
		return nil, &VersionError{Got: version}
	}

	codecByte, _ := r.ReadByte()
	r.ReadByte() // reserved

	var payloadLen uint64
	binary.Read(r, binary.LittleEndian, &payloadLen)
	var sum uint32
	binary.Read(r, binary.LittleEndian, &sum)

	compressed := raw[headerSize:]
	if uint64(len(compressed)) != payloadLen {
		return nil, fmt.Errorf("persistence: %s: truncated payload", filepath.Base(path))
	}
	if checksum(compressed) != sum {
		return nil, fmt.Errorf("persistence: %s: %w", filepath.Base(path), ErrChecksum)
	}

	return decompress(Codec(codecByte), compressed)
}
