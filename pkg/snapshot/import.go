package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	cocometrics "github.com/infinilabs/cococi/pkg/metrics"
	"github.com/infinilabs/cococi/pkg/search"
)

// maxLine bounds a single document in data.jsonl.
const maxLine = 64 * 1024 * 1024

type ImportOptions struct {
	// Dir holds one directory per index, as written by Export.
	Dir string
	// CleanupPattern names the indices deleted before restoring.
	CleanupPattern string
	// Include, when set, is a glob an index name must match to be
	// restored.
	Include        string
	BatchSize      int
	HealthAttempts int
	HealthInterval time.Duration
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		CleanupPattern: DefaultCleanupPattern,
		BatchSize:      DefaultBatchSize,
		HealthAttempts: DefaultHealthAttempts,
		HealthInterval: time.Second,
	}
}

type Importer struct {
	client   *search.Client
	opts     ImportOptions
	logger   log.Logger
	progress io.Writer
}

func NewImporter(client *search.Client, opts ImportOptions, logger log.Logger, progress io.Writer) *Importer {
	fill(&opts, DefaultImportOptions())
	return &Importer{
		client:   client,
		opts:     opts,
		logger:   log.With(orNop(logger), "component", "import"),
		progress: progress,
	}
}

// Restore runs Import, for callers only interested in whether it
// worked.
func (i *Importer) Restore(ctx context.Context) error {
	_, err := i.Import(ctx)
	return err
}

// Import replaces the indices matching the cleanup pattern with those
// in the snapshot directory. An index that can't be created is logged
// and its data skipped; a bulk request that fails outright ends the
// import with an error.
func (i *Importer) Import(ctx context.Context) ([]IndexSummary, error) {
	entries, err := ioutil.ReadDir(i.opts.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot directory")
	}

	if err := i.client.WaitHealthy(ctx, i.opts.HealthAttempts, i.opts.HealthInterval); err != nil {
		i.logger.Log("warning", "cluster did not report healthy, carrying on", "endpoint", i.client.Endpoint(), "err", err)
	}

	switch err := i.client.DeleteIndex(ctx, i.opts.CleanupPattern); {
	case err == nil:
		i.logger.Log("info", "deleted indices", "pattern", i.opts.CleanupPattern)
	case search.IsMissing(err):
		i.logger.Log("info", "no indices to delete", "pattern", i.opts.CleanupPattern)
	default:
		i.logger.Log("warning", "cleanup failed", "pattern", i.opts.CleanupPattern, "err", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if i.opts.Include != "" && !glob.Glob(i.opts.Include, entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}

	bar := newBar(len(names), `Restoring {{counters . }} {{bar . }} {{percent . }} {{etime . "%s"}}`, i.progress)
	defer func() {
		if bar != nil {
			bar.Finish()
		}
	}()

	var summaries []IndexSummary
	for _, name := range names {
		s, err := i.restoreIndex(ctx, name)
		summaries = append(summaries, s)
		if err != nil {
			return summaries, errors.Wrapf(err, "restoring %s", name)
		}
		if s.Err != nil {
			i.logger.Log("index", name, "err", s.Err)
		} else {
			i.logger.Log("index", name, "documents", s.Documents)
		}
		if bar != nil {
			bar.Increment()
		}
	}
	return summaries, nil
}

// restoreIndex returns an error only for failures that should stop
// the whole import; others end up in the summary.
func (i *Importer) restoreIndex(ctx context.Context, name string) (IndexSummary, error) {
	s := IndexSummary{Index: name}
	dir := filepath.Join(i.opts.Dir, name)

	raw, err := ioutil.ReadFile(filepath.Join(dir, SchemaFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		s.Err = errors.Wrap(err, "reading schema")
		return s, nil
	default:
		body, err := restorableSchema(raw)
		if err != nil {
			s.Err = err
			return s, nil
		}
		if err := i.client.CreateIndex(ctx, name, body); err != nil {
			s.Err = errors.Wrap(err, "creating index")
			return s, nil
		}
		s.Schema = true
	}

	f, err := os.Open(filepath.Join(dir, DataFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		s.Err = errors.Wrap(err, "opening data file")
		return s, nil
	}
	defer f.Close()

	n, err := i.load(ctx, name, f)
	s.Documents = n
	return s, err
}

func (i *Importer) load(ctx context.Context, name string, r io.Reader) (int, error) {
	body := search.NewBulkBody(name)
	loaded := 0
	flush := func() error {
		if body.Len() == 0 {
			return nil
		}
		res, err := i.client.Bulk(ctx, body.Bytes())
		if err != nil {
			return err
		}
		ok := body.Len()
		if res.Errors {
			failed := res.Failed()
			i.logger.Log("index", name, "warning", "bulk request had failures", "failed", failed, "sent", body.Len())
			if ok -= failed; ok < 0 {
				ok = 0
			}
		}
		loaded += ok
		documentsTotal.With(cocometrics.LabelOperation, opImport).Add(float64(ok))
		body.Reset()
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		body.Add(line)
		if body.Len() >= i.opts.BatchSize {
			if err := flush(); err != nil {
				return loaded, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return loaded, errors.Wrap(err, "reading data file")
	}
	return loaded, flush()
}
