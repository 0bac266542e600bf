package chunk

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kraklabs/webconv/pkg/xerrors"
)

// Format selects how WriteTo persists a chunk set (spec §4.8 step 6 /
// §6's --chunk-format).
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
)

// WriteTo persists chunks under dir: one line-delimited .jsonl file, or
// one .json file per chunk.
func WriteTo(dir string, chunks []Chunk, format Format) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Wrap(xerrors.CacheIO, "create chunk dir", err).With("dir", dir)
	}
	if format == FormatJSON {
		return writePerFile(dir, chunks)
	}
	return writeJSONL(dir, chunks)
}

func writeJSONL(dir string, chunks []Chunk) error {
	path := filepath.Join(dir, "chunks.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Wrap(xerrors.CacheIO, "create jsonl file", err).With("path", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return xerrors.Wrap(xerrors.ChunkingFailed, "encode chunk", err)
		}
	}
	return w.Flush()
}

func writePerFile(dir string, chunks []Chunk) error {
	for i, c := range chunks {
		name := strconv.Itoa(i) + "-" + c.ID + ".json"
		path := filepath.Join(dir, name)
		raw, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return xerrors.Wrap(xerrors.ChunkingFailed, "marshal chunk", err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return xerrors.Wrap(xerrors.CacheIO, "write chunk file", err).With("path", path)
		}
	}
	return nil
}
