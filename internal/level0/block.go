// Package level0 decodes raw Odin Level-0 telemetry files.
//
// A Level-0 file is a sequence of fixed-width blocks of unsigned 16-bit
// words in the capture platform's byte order (little endian). Every block
// starts with the common 4-word header {sync, stw low, stw high, user code};
// the user code of the first block determines which subsystem produced the
// file and therefore the block geometry for the rest of the stream.
package level0

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SyncWord marks the start of a valid spectrum/record header block.
const SyncWord = 0x2bd3

// sizeUnit is the baseline sub-block length in 16-bit words; block sizes
// are small multiples of it per subsystem.
const sizeUnit = 15

const headWords = 4

// FileType identifies the instrument subsystem that produced a Level-0 file.
type FileType string

const (
	TypeSHK FileType = "SHK" // satellite housekeeping
	TypeFBA FileType = "FBA" // filter bank mechanism
	TypeAOS FileType = "AOS" // acousto-optical spectrometer
	TypeAC1 FileType = "AC1" // autocorrelator 1
	TypeAC2 FileType = "AC2" // autocorrelator 2
)

// User codes identifying each subsystem in the block header. The AOS and
// autocorrelator codes carry a variable low nibble and are matched after
// masking with 0xfff0.
const (
	userSHK  = 0x732c
	userFBA  = 0x73ec
	userAOS  = 0x7360
	userAC1  = 0x7380
	userAC2  = 0x73b0
	userMask = 0xfff0
)

// ErrUnsupportedFileType reports a first-block user code that matches no
// known subsystem signature.
var ErrUnsupportedFileType = errors.New("level0: unsupported file type")

// Block is one fixed-width block read from a Level-0 file. It is a plain
// value: Words holds the payload with the 4-word header and the subsystem's
// trailing words stripped, Tail holds the trailing words themselves.
type Block struct {
	Sync  uint16
	STW   uint64
	User  uint16
	Words []uint16
	Tail  []uint16
}

// BlockIndex is the decoded index word carried in the first tail word of a
// block, classifying the observation discipline.
type BlockIndex struct {
	Valid      bool
	Discipline string // "ASTR" or "AERO"; empty when the valid bit is unset
	ACDCMode   uint8
	Science    uint8
}

// Index decodes the block's index word.
func (b Block) Index() BlockIndex {
	index := b.Tail[0]
	idx := BlockIndex{
		Valid:    index&0x8000 != 0,
		ACDCMode: uint8((index & 0x0f00) >> 8),
		Science:  uint8(index & 0x00ff),
	}
	if idx.Valid {
		if index&0x4000 != 0 {
			idx.Discipline = "ASTR"
		} else {
			idx.Discipline = "AERO"
		}
	}
	return idx
}

// File reads successive fixed-width blocks from one Level-0 file. A File is
// opened for exactly one import call and is not safe for concurrent use.
type File struct {
	name   string
	r      io.ReadSeeker
	closer io.Closer

	typ        FileType
	blockWords int // total words per block, header and tail included
	tailWords  int

	// First and Last are the spacecraft time words of the first and final
	// block headers, before epoch correction.
	First uint64
	Last  uint64
}

// Open opens the named Level-0 file and reads its type header.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := NewFile(fh, filepath.Base(path))
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// NewFile reads the Level-0 type header from r. The name is used in error
// messages only.
func NewFile(r io.ReadSeeker, name string) (*File, error) {
	f := &File{name: name, r: r}

	stw, user, err := f.readHead()
	if err != nil {
		return nil, fmt.Errorf("level0: read header of %s: %w", name, err)
	}
	f.First = stw

	switch {
	case user == userSHK:
		f.typ, f.blockWords, f.tailWords = TypeSHK, 5*sizeUnit, 4
	case user == userFBA:
		f.typ, f.blockWords, f.tailWords = TypeFBA, 1*sizeUnit, 4
	case user&userMask == userAOS:
		f.typ, f.blockWords, f.tailWords = TypeAOS, 8*sizeUnit, 4
	case user&userMask == userAC1:
		f.typ, f.blockWords, f.tailWords = TypeAC1, 5*sizeUnit, 7
	case user&userMask == userAC2:
		f.typ, f.blockWords, f.tailWords = TypeAC2, 5*sizeUnit, 7
	default:
		return nil, fmt.Errorf("%w: %s has user code 0x%04x", ErrUnsupportedFileType, name, user)
	}

	// The stw of the final block header gives the file's time range.
	if _, err := f.r.Seek(-int64(2*f.blockWords), io.SeekEnd); err == nil {
		if stw, _, err := f.readHead(); err == nil {
			f.Last = stw
		}
	}
	if err := f.Rewind(); err != nil {
		return nil, fmt.Errorf("level0: rewind %s: %w", name, err)
	}
	return f, nil
}

// Type returns the subsystem type derived from the file's first user code.
func (f *File) Type() FileType { return f.typ }

// Name returns the file name passed at open time.
func (f *File) Name() string { return f.name }

// BlockWords returns the fixed block length in 16-bit words.
func (f *File) BlockWords() int { return f.blockWords }

// NextBlock reads the next fixed-width block. A short read anywhere in the
// block means the stream is exhausted and is reported as io.EOF, never as a
// partial block.
func (f *File) NextBlock() (Block, error) {
	words, err := f.readWords(f.blockWords)
	if err != nil {
		return Block{}, err
	}
	return Block{
		Sync:  words[0],
		STW:   uint64(words[2])*65536 + uint64(words[1]),
		User:  words[3],
		Words: words[headWords : f.blockWords-f.tailWords],
		Tail:  words[f.blockWords-f.tailWords:],
	}, nil
}

// Rewind seeks back to the start of the stream.
func (f *File) Rewind() error {
	_, err := f.r.Seek(0, io.SeekStart)
	return err
}

// Close closes the underlying file when the File was created with Open.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func (f *File) readHead() (stw uint64, user uint16, err error) {
	words, err := f.readWords(headWords)
	if err != nil {
		return 0, 0, err
	}
	return uint64(words[2])*65536 + uint64(words[1]), words[3], nil
}

func (f *File) readWords(n int) ([]uint16, error) {
	buf := make([]byte, 2*n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	words := make([]uint16, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(buf[2*i:])
	}
	return words, nil
}
