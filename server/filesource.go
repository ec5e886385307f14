package server

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/casegraph/discovery/orchestrator"
)

// FileSource resolves a remoteFolderRef into the files a job should
// process (spec §6.3: "a pluggable FileSource.Get(ref) -> iterator of
// (name, bytes)"). Go favors a slice return over a language-level
// generator here; an implementation backing a very large folder can page
// internally and is free to return its files in whatever batches suit it.
type FileSource interface {
	Get(ctx context.Context, ref string) ([]orchestrator.FileInput, error)
}

// InlineFileSource is the default FileSource: it never resolves a remote
// ref, because the inline-bytes path of spec §6.1 bypasses FileSource
// entirely. Get always errors, surfacing a clear message if a caller sends
// remoteFolderRef without a real source configured.
type InlineFileSource struct{}

func (InlineFileSource) Get(ctx context.Context, ref string) ([]orchestrator.FileInput, error) {
	return nil, fmt.Errorf("server: no FileSource configured to resolve remoteFolderRef %q", ref)
}

// decodeBase64Files is used when the wire body carries contentBase64
// instead of a JSON []byte field (spec §6.1: "files: [{ name,
// contentBase64 }]").
func decodeBase64Files(files []wireFile) ([]orchestrator.FileInput, error) {
	out := make([]orchestrator.FileInput, 0, len(files))
	for _, f := range files {
		raw, err := base64.StdEncoding.DecodeString(f.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("server: decoding file %q: %w", f.Name, err)
		}
		out = append(out, orchestrator.FileInput{Name: f.Name, Bytes: raw})
	}
	return out, nil
}

// wireFile is the literal shape spec §6.1 names for the ingest RPC body.
type wireFile struct {
	Name          string `json:"name"`
	ContentBase64 string `json:"contentBase64"`
}
