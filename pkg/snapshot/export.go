package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	cocometrics "github.com/infinilabs/cococi/pkg/metrics"
	"github.com/infinilabs/cococi/pkg/search"
)

type ExportOptions struct {
	// Dir receives one directory per index.
	Dir        string
	Pattern    string
	ScrollSize int
	KeepAlive  string
}

func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Pattern:    DefaultPattern,
		ScrollSize: DefaultScrollSize,
		KeepAlive:  search.DefaultKeepAlive,
	}
}

type Exporter struct {
	client   *search.Client
	opts     ExportOptions
	logger   log.Logger
	progress io.Writer
}

// NewExporter returns an Exporter reading from client. A progress bar
// is drawn on progress unless it is nil.
func NewExporter(client *search.Client, opts ExportOptions, logger log.Logger, progress io.Writer) *Exporter {
	fill(&opts, DefaultExportOptions())
	return &Exporter{
		client:   client,
		opts:     opts,
		logger:   log.With(orNop(logger), "component", "export"),
		progress: progress,
	}
}

// Export writes every index matching the pattern under the output
// directory. Failing to list indices, or finding none, is an error;
// a failure within one index is logged, recorded in its summary, and
// the export moves on to the next.
func (e *Exporter) Export(ctx context.Context) ([]IndexSummary, error) {
	if e.opts.Dir == "" {
		return nil, errors.New("no output directory given")
	}
	names, err := e.client.Indices(ctx, e.opts.Pattern)
	if err != nil {
		return nil, errors.Wrap(err, "listing indices")
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no indices match %q", e.opts.Pattern)
	}
	e.logger.Log("info", "exporting indices", "pattern", e.opts.Pattern, "count", len(names), "dir", e.opts.Dir)

	if err := os.MkdirAll(e.opts.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}

	bar := newBar(len(names), `Exporting {{counters . }} {{bar . }} {{percent . }} {{etime . "%s"}}`, e.progress)
	var summaries []IndexSummary
	for _, name := range names {
		s := e.exportIndex(ctx, name)
		if s.Err != nil {
			e.logger.Log("index", name, "err", s.Err)
		} else {
			e.logger.Log("index", name, "documents", s.Documents)
		}
		summaries = append(summaries, s)
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return summaries, nil
}

func (e *Exporter) exportIndex(ctx context.Context, name string) IndexSummary {
	s := IndexSummary{Index: name}
	dir := filepath.Join(e.opts.Dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.Err = errors.Wrap(err, "creating index directory")
		return s
	}

	// A schema that can't be saved still leaves the documents worth
	// having.
	if err := e.exportSchema(ctx, name, dir); err != nil {
		s.Err = err
	} else {
		s.Schema = true
	}

	n, err := e.exportDocuments(ctx, name, dir)
	s.Documents = n
	documentsTotal.With(cocometrics.LabelOperation, opExport).Add(float64(n))
	if err != nil && s.Err == nil {
		s.Err = err
	}
	return s
}

func (e *Exporter) exportSchema(ctx context.Context, name, dir string) error {
	described, err := e.client.GetIndex(ctx, name)
	if err != nil {
		return errors.Wrap(err, "reading index settings")
	}
	schema, err := portableSchema(name, described)
	if err != nil {
		return err
	}
	return errors.Wrap(ioutil.WriteFile(filepath.Join(dir, SchemaFile), schema, 0644), "writing schema")
}

func (e *Exporter) exportDocuments(ctx context.Context, name, dir string) (n int, err error) {
	scroll := e.client.Scroll(name, e.opts.ScrollSize, e.opts.KeepAlive)
	defer func() {
		if cerr := scroll.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Log("index", name, "warning", "could not clear scroll", "err", cerr)
		}
	}()

	hits, err := scroll.Next(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "starting scroll")
	}

	f, err := os.Create(filepath.Join(dir, DataFile))
	if err != nil {
		return 0, errors.Wrap(err, "creating data file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing data file")
		}
	}()
	w := bufio.NewWriter(f)

	var line bytes.Buffer
	for len(hits) > 0 {
		for _, hit := range hits {
			line.Reset()
			if err := json.Compact(&line, hit.Source); err != nil {
				return n, errors.Wrapf(err, "document %s", hit.ID)
			}
			line.WriteByte('\n')
			if _, err := w.Write(line.Bytes()); err != nil {
				return n, errors.Wrap(err, "writing data file")
			}
			n++
		}
		if hits, err = scroll.Next(ctx); err != nil {
			// keep what has been read so far
			w.Flush()
			return n, errors.Wrap(err, "continuing scroll")
		}
	}
	return n, errors.Wrap(w.Flush(), "writing data file")
}
