package main_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildGzipFile hand-encodes data as a single-member gzip file made of
// one stored DEFLATE block, the same minimal shape gzip_test.go's
// buildStoredMember uses, duplicated here since this is an external
// main_test package with no access to gzip's unexported helpers.
func buildGzipFile(data []byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x1f, 0x8b, 0x08, 0, 0, 0, 0, 0, 0, 0xff})

	buf.WriteByte(0x01) // BFINAL=1, BTYPE=0
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(data)))
	buf.Write(lenBuf[:])
	binary.LittleEndian.PutUint16(lenBuf[:], ^uint16(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)

	var footer [8]byte
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(data)))
	buf.Write(footer[:])

	return buf.Bytes()
}

func runGoflate(args ...string) ([]byte, string, error) {
	cmd := exec.Command("go", "run", ".", args...)
	output, err := cmd.CombinedOutput()
	return output, string(output), err
}

func TestCatFile(t *testing.T) {
	tmpdir := t.TempDir()
	data := []byte("hello from goflate cat\n")
	ifile := filepath.Join(tmpdir, "hello.gz")
	if err := os.WriteFile(ifile, buildGzipFile(data), 0600); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command("go", "run", ".", "cat", ifile)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		t.Fatalf("cat %v: %v", ifile, err)
	}
	if got := stdout.Bytes(); !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestCatStdin(t *testing.T) {
	data := []byte("stdin roundtrip\n")

	cmd := exec.Command("go", "run", ".", "cat")
	cmd.Stdin = bytes.NewReader(buildGzipFile(data))
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		t.Fatalf("cat (stdin): %v", err)
	}
	if got := stdout.Bytes(); !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestGunzip(t *testing.T) {
	tmpdir := t.TempDir()
	data := []byte("gunzip me please\n")
	ifile := filepath.Join(tmpdir, "payload.gz")
	if err := os.WriteFile(ifile, buildGzipFile(data), 0600); err != nil {
		t.Fatal(err)
	}

	_, out, err := runGoflate("gunzip", "--progress=false", ifile)
	if err != nil {
		t.Fatalf("gunzip: %v: %v", out, err)
	}

	got, err := os.ReadFile(filepath.Join(tmpdir, "payload"))
	if err != nil {
		t.Fatalf("reading decompressed output: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestInspect(t *testing.T) {
	tmpdir := t.TempDir()
	ifile := filepath.Join(tmpdir, "inspectme.gz")
	if err := os.WriteFile(ifile, buildGzipFile([]byte("x")), 0600); err != nil {
		t.Fatal(err)
	}

	_, out, err := runGoflate("inspect", ifile)
	if err != nil {
		t.Fatalf("inspect: %v: %v", out, err)
	}
	if !strings.Contains(out, ifile) {
		t.Errorf("output missing filename: %q", out)
	}
}

func TestCatBadMagic(t *testing.T) {
	tmpdir := t.TempDir()
	bad := buildGzipFile([]byte("x"))
	bad[0] = 0x00
	ifile := filepath.Join(tmpdir, "bad.gz")
	if err := os.WriteFile(ifile, bad, 0600); err != nil {
		t.Fatal(err)
	}

	_, out, err := runGoflate("cat", ifile)
	if err == nil || !strings.Contains(out, "invalid header") {
		t.Fatalf("missing or wrong error message: %v: %v", out, err)
	}
}
