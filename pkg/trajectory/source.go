package trajectory

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/evdisplay/pkg/errors"
)

// Source yields track records. Scan visits every record of the source in
// storage order; fn may stop the scan by returning an error. A record is
// only valid for the duration of the call: sources reuse buffers.
type Source interface {
	Name() string
	Scan(ctx context.Context, fn func(*Record) error) error
	Close() error
}

// EventIndexer is implemented by sources that can list their distinct
// event ids without a full scan.
type EventIndexer interface {
	EventIDs(ctx context.Context) ([]int64, error)
}

// EventScanner is implemented by sources that can restrict a scan to one
// event.
type EventScanner interface {
	ScanEvent(ctx context.Context, id int64, fn func(*Record) error) error
}

// Identifier is implemented by sources with a stable content identity,
// used to cache the event index.
type Identifier interface {
	ID() (string, error)
}

// OpenSource opens a source from a location: a MongoDB URI, a SQLite file
// (.db, .sqlite, .sqlite3) or a ROOT file (.root).
func OpenSource(ctx context.Context, uri string) (Source, error) {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return OpenMongo(ctx, uri)
	}
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".root":
		return OpenROOT(uri)
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(ctx, uri)
	case "":
		return nil, errors.New(errors.ErrCodeDataSource, "cannot infer source type of %q", uri)
	default:
		return nil, errors.New(errors.ErrCodeDataSource, "unsupported data file %q (want .root, .db, .sqlite or mongodb://)", uri)
	}
}

// scanEvent visits the records of one event, using the source's own
// filtering when available.
func scanEvent(ctx context.Context, src Source, id int64, fn func(*Record) error) error {
	if es, ok := src.(EventScanner); ok {
		return es.ScanEvent(ctx, id, fn)
	}
	return src.Scan(ctx, func(r *Record) error {
		if r.EventID != id {
			return nil
		}
		return fn(r)
	})
}
