package decode

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"
)

// DecompressGZIP decompresses a GZIP stream, for the decoded-artifact
// writer. compress/gzip is the standard library's canonical GZIP
// implementation; nothing in the retrieval pack supersedes it.
func DecompressGZIP(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DecompressZLIB decompresses a ZLIB stream.
func DecompressZLIB(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DecompressBzip2 decompresses a BZh stream. compress/bzip2 only
// implements the reader side, which is all the artifact writer needs.
func DecompressBzip2(data []byte) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}
