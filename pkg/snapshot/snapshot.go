// Package snapshot copies indices between a search cluster and a
// directory tree, one directory per index holding schema.json (its
// settings and mappings) and data.jsonl (one document source per
// line).
package snapshot

import (
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/go-kit/kit/log"
	"github.com/imdario/mergo"
)

const (
	SchemaFile = "schema.json"
	DataFile   = "data.jsonl"

	DefaultPattern        = "coco*"
	DefaultCleanupPattern = "coco_*"
	DefaultScrollSize     = 1000
	DefaultBatchSize      = 500
	DefaultHealthAttempts = 30
)

// IndexSummary reports what happened to one index.
type IndexSummary struct {
	Index     string
	Documents int
	// Schema is set when schema.json was written or applied.
	Schema bool
	Err    error
}

// newBar starts a progress bar writing to w. With w nil there is no
// bar, and nil is returned.
func newBar(total int, tmpl string, w io.Writer) *pb.ProgressBar {
	if w == nil {
		return nil
	}
	bar := pb.New(total)
	bar.SetTemplateString(tmpl)
	bar.SetWriter(w)
	return bar.Start()
}

func orNop(logger log.Logger) log.Logger {
	if logger == nil {
		return log.NewNopLogger()
	}
	return logger
}

// fill sets zero fields of dst from defaults, which must be of the
// same struct type.
func fill(dst, defaults interface{}) {
	if err := mergo.Merge(dst, defaults); err != nil {
		panic(err)
	}
}
