// Package gzip implements the RFC 1952 GZIP container: magic bytes,
// header fields, and a CRC32/ISIZE footer wrapped around a DEFLATE
// payload decoded by package flate.
package gzip

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/inflatekit/goflate/flate"
)

// OS byte values from RFC 1952 section 2.3.1, enumerated the way
// go-dictzip does.
const (
	OSFAT byte = iota
	OSAmiga
	OSVMS
	OSUnix
	OSVM
	OSAtari
	OSHPFS
	OSMacintosh
	OSZSystem
	OSCPM
	OSTOPS20
	OSNTFS
	OSQDOS
	OSAcorn
	OSUnknown = 0xff
)

const (
	id1       byte = 0x1f
	id2       byte = 0x8b
	deflateCM byte = 0x08

	flgText    byte = 1 << 0
	flgHCRC    byte = 1 << 1
	flgExtra   byte = 1 << 2
	flgName    byte = 1 << 3
	flgComment byte = 1 << 4
)

var (
	errGzip = errors.New("gzip")

	// ErrHeader reports a malformed or unsupported gzip header (bad
	// magic, unsupported compression method, bad header CRC).
	ErrHeader = fmt.Errorf("%w: invalid header", errGzip)

	// ErrChecksum reports a footer CRC32 that does not match the
	// decompressed stream.
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", errGzip)

	// ErrSize reports a footer ISIZE that does not match the
	// decompressed stream's length mod 2^32.
	ErrSize = fmt.Errorf("%w: size mismatch", errGzip)
)

// Header holds the RFC 1952 per-member metadata fields a gzip
// producer may set.
type Header struct {
	Comment string
	Extra   []byte
	ModTime time.Time
	Name    string
	OS      byte
}

// Reader decompresses a gzip stream, transparently restarting
// container parsing for each member of a multi-member file (spec.md
// §9: "the inflater itself is single-member"; this is the container
// layer that adds the restart spec.md describes for implementations
// that choose to support it).
type Reader struct {
	Header

	r    *bufio.Reader
	z    io.ReadCloser
	opts []flate.Option

	digest      hash.Hash32
	size        uint32
	multistream bool
	err         error
}

// NewReader parses the first member's header and returns a Reader
// ready to decompress its payload. opts are forwarded to the
// underlying flate.Decompressor (e.g. flate.WithMaxOutput).
func NewReader(r io.Reader, opts ...flate.Option) (*Reader, error) {
	z := &Reader{
		r:           bufio.NewReader(r),
		opts:        opts,
		multistream: true,
	}
	if err := z.readHeader(); err != nil {
		return nil, err
	}
	return z, nil
}

// Multistream controls whether Read transparently continues into a
// second gzip member once the first one's footer has been verified.
// It is enabled by default; disabling it lets a caller stop after
// exactly one member even if more data follows, mirroring the
// standard library's compress/gzip.
func (z *Reader) Multistream(ok bool) {
	z.multistream = ok
}

func (z *Reader) readHeader() error {
	head := make([]byte, 10)
	if _, err := io.ReadFull(z.r, head); err != nil {
		return headerErr(err)
	}
	if head[0] != id1 || head[1] != id2 {
		return fmt.Errorf("%w: bad magic bytes %x", ErrHeader, head[0:2])
	}
	if head[2] != deflateCM {
		return fmt.Errorf("%w: unsupported compression method %x", ErrHeader, head[2])
	}
	flg := head[3]
	if mtime := binary.LittleEndian.Uint32(head[4:8]); mtime > 0 {
		z.Header.ModTime = time.Unix(int64(mtime), 0)
	}
	z.Header.OS = head[9]
	if xfl := head[8]; xfl != 0 && xfl != 2 && xfl != 4 {
		slog.Warn("gzipUnknownXFL", "xfl", xfl)
	}

	hdigest := crc32.NewIEEE()
	hdigest.Write(head)

	z.Header.Extra = nil
	z.Header.Name = ""
	z.Header.Comment = ""

	if flg&flgExtra != 0 {
		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(z.r, lenBuf); err != nil {
			return headerErr(err)
		}
		hdigest.Write(lenBuf)
		xlen := binary.LittleEndian.Uint16(lenBuf)
		extra := make([]byte, xlen)
		if _, err := io.ReadFull(z.r, extra); err != nil {
			return headerErr(err)
		}
		hdigest.Write(extra)
		z.Header.Extra = extra
	}
	if flg&flgName != 0 {
		s, err := readCString(z.r, hdigest)
		if err != nil {
			return err
		}
		z.Header.Name = s
	}
	if flg&flgComment != 0 {
		s, err := readCString(z.r, hdigest)
		if err != nil {
			return err
		}
		z.Header.Comment = s
	}
	if flg&flgHCRC != 0 {
		crcBuf := make([]byte, 2)
		if _, err := io.ReadFull(z.r, crcBuf); err != nil {
			return headerErr(err)
		}
		want := binary.LittleEndian.Uint16(crcBuf)
		if got := uint16(hdigest.Sum32()); got != want {
			return fmt.Errorf("%w: bad header CRC16", ErrHeader)
		}
	}

	z.digest = crc32.NewIEEE()
	z.size = 0
	z.z = flate.NewReader(z.r, z.opts...)
	return nil
}

func readCString(r io.Reader, digest hash.Hash32) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", headerErr(err)
		}
		digest.Write(buf)
		if buf[0] == 0 {
			break
		}
		// RFC 1952 2.3.1: NAME/COMMENT are ISO 8859-1 (Latin-1), a
		// direct byte-to-rune mapping for the 0x01-0xFF range.
		sb.WriteRune(rune(buf[0]))
	}
	return sb.String(), nil
}

func headerErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrHeader, err)
	}
	return fmt.Errorf("%w: %w", errGzip, err)
}

// Read implements io.Reader. At the end of a member it verifies the
// CRC32/ISIZE footer and, if Multistream is enabled and further bytes
// remain, restarts container parsing (not inflater state, per spec.md
// §9) for the next member.
func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	n, err := z.z.Read(p)
	z.digest.Write(p[:n])
	z.size += uint32(n)

	if err == io.EOF {
		if ferr := z.readFooter(); ferr != nil {
			z.err = ferr
			return n, ferr
		}
		if z.multistream {
			more, perr := z.startNextMember()
			if perr != nil {
				z.err = perr
				return n, perr
			}
			if more {
				return n, nil
			}
		}
		z.err = io.EOF
		return n, io.EOF
	}
	if err != nil {
		z.err = err
		return n, err
	}
	return n, nil
}

func (z *Reader) readFooter() error {
	foot := make([]byte, 8)
	if _, err := io.ReadFull(z.r, foot); err != nil {
		return headerErr(err)
	}
	wantCRC := binary.LittleEndian.Uint32(foot[0:4])
	wantSize := binary.LittleEndian.Uint32(foot[4:8])
	if got := z.digest.Sum32(); got != wantCRC {
		return fmt.Errorf("%w: got %x, want %x", ErrChecksum, got, wantCRC)
	}
	if z.size != wantSize {
		return fmt.Errorf("%w: got %d, want %d", ErrSize, z.size, wantSize)
	}
	return nil
}

// startNextMember reports whether another member follows the one just
// finished, parsing its header if so.
func (z *Reader) startNextMember() (bool, error) {
	if _, err := z.r.Peek(1); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	if err := z.readHeader(); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases resources held by the underlying flate.Decompressor.
// It does not close the wrapped io.Reader.
func (z *Reader) Close() error {
	return z.z.Close()
}

// Decompress reads and fully decompresses the gzip file at path.
func Decompress(path string, opts ...flate.Option) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	z, err := NewReader(f, opts...)
	if err != nil {
		return nil, err
	}
	defer z.Close()

	return io.ReadAll(z)
}

// DecompressBytes decompresses an in-memory gzip-encoded buffer.
func DecompressBytes(b []byte, opts ...flate.Option) ([]byte, error) {
	z, err := NewReader(bytes.NewReader(b), opts...)
	if err != nil {
		return nil, err
	}
	defer z.Close()

	return io.ReadAll(z)
}
