package trajectory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/errors"
	"github.com/matzehuels/evdisplay/pkg/observability"
)

// ErrNoSource is returned by LoadCurrentEvent when no source is open.
var ErrNoSource = stderrors.New("no data source open")

// Store indexes the events of one source and tracks the current event.
// It is not safe for concurrent use; the viewer serializes access.
type Store struct {
	logger *log.Logger
	cache  cache.Cache
	keyer  cache.Keyer

	src      Source
	ids      []int64
	cur      int // index into ids, -1 when undefined
	accepted int
	filter   Filter
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for navigation and load messages.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache caches event indexes of sources implementing Identifier.
func WithCache(c cache.Cache, k cache.Keyer) Option {
	return func(s *Store) {
		if c != nil {
			s.cache = c
		}
		if k != nil {
			s.keyer = k
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger: log.New(io.Discard),
		cache:  cache.Disabled(),
		keyer:  cache.NewDefaultKeyer(),
		cur:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open indexes src and makes it the active source, positioned at the
// smallest event id. The store takes ownership of src: it is closed on
// failure, or when replaced by a later Open. On failure the previously
// open source stays active.
func (s *Store) Open(ctx context.Context, src Source) (err error) {
	if src == nil {
		return errors.New(errors.ErrCodeDataSource, "no data source")
	}
	start := time.Now()
	var ids []int64
	defer func() {
		observability.Viewer().OnIndexComplete(ctx, src.Name(), len(ids), time.Since(start), err)
	}()

	ids, err = s.index(ctx, src)
	if err != nil {
		src.Close()
		if errors.GetCode(err) != "" {
			return err
		}
		return errors.Wrap(errors.ErrCodeDataSource, err, "index %s", src.Name())
	}

	if s.src != nil {
		if cerr := s.src.Close(); cerr != nil {
			s.logger.Warn("closing previous data source", "source", s.src.Name(), "error", cerr)
		}
	}
	s.src, s.ids, s.accepted = src, ids, 0
	s.cur = -1
	if len(ids) > 0 {
		s.cur = 0
	}
	s.logger.Infof("There are %d events in the tree", len(ids))
	return nil
}

// OpenURI opens the source at uri and indexes it.
func (s *Store) OpenURI(ctx context.Context, uri string) error {
	src, err := OpenSource(ctx, uri)
	if err != nil {
		return err
	}
	return s.Open(ctx, src)
}

func (s *Store) index(ctx context.Context, src Source) ([]int64, error) {
	var key string
	if idf, ok := src.(Identifier); ok {
		if id, err := idf.ID(); err == nil {
			key = s.keyer.IndexKey(id)
		} else {
			s.logger.Debug("event index not cacheable", "source", src.Name(), "error", err)
		}
	}
	if key != "" {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var ids []int64
			if json.Unmarshal(data, &ids) == nil {
				observability.Cache().OnCacheHit(ctx, "index")
				return ids, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "index")
	}

	var ids []int64
	if ix, ok := src.(EventIndexer); ok {
		found, err := ix.EventIDs(ctx)
		if err != nil {
			return nil, err
		}
		ids = distinctSorted(found)
	} else {
		seen := make(map[int64]struct{})
		err := src.Scan(ctx, func(r *Record) error {
			seen[r.EventID] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, err
		}
		ids = make([]int64, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	if key != "" {
		if data, err := json.Marshal(ids); err == nil {
			if err := s.cache.Set(ctx, key, data, cache.TTLIndex); err != nil {
				s.logger.Warn("event index cache write failed", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "index", len(data))
			}
		}
	}
	return ids, nil
}

func distinctSorted(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

// Close closes the active source and clears the index.
func (s *Store) Close() error {
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src, s.ids, s.cur, s.accepted = nil, nil, -1, 0
	return err
}

// Source returns the active source, or nil.
func (s *Store) Source() Source { return s.src }

// Index returns a copy of the sorted distinct event ids.
func (s *Store) Index() []int64 { return append([]int64(nil), s.ids...) }

// Current returns the current event id. ok is false when the store has no
// events.
func (s *Store) Current() (id int64, ok bool) {
	if s.cur < 0 {
		return 0, false
	}
	return s.ids[s.cur], true
}

// Next moves to current+1 if that id exists. Gaps in the ids are not
// skipped: from 5 in {3,5,7} Next fails.
func (s *Store) Next() bool {
	if s.cur < 0 || s.cur+1 >= len(s.ids) || s.ids[s.cur+1] != s.ids[s.cur]+1 {
		s.logger.Info("Already at last event.")
		return false
	}
	s.cur++
	s.accepted = 0
	return true
}

// Previous moves to current-1 if that id exists.
func (s *Store) Previous() bool {
	if s.cur <= 0 || s.ids[s.cur-1] != s.ids[s.cur]-1 {
		s.logger.Info("Already at first event.")
		return false
	}
	s.cur--
	s.accepted = 0
	return true
}

// Select makes id the current event.
func (s *Store) Select(id int64) error {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	if i == len(s.ids) || s.ids[i] != id {
		s.logger.Warnf("Event out of range: %d", id)
		return errors.New(errors.ErrCodeEventRange, "event %d is not in the index", id)
	}
	s.cur, s.accepted = i, 0
	return nil
}

// Cursor is a saved store position: the current event and the result of
// the last LoadCurrentEvent.
type Cursor struct {
	pos      int
	accepted int
	filter   Filter
}

// Mark returns the current position for a later Restore.
func (s *Store) Mark() Cursor {
	return Cursor{pos: s.cur, accepted: s.accepted, filter: s.filter}
}

// Restore returns to a position taken with Mark on the same source. A
// cursor outside the current index is ignored.
func (s *Store) Restore(c Cursor) {
	if c.pos < -1 || c.pos >= len(s.ids) {
		return
	}
	s.cur, s.accepted, s.filter = c.pos, c.accepted, c.filter
}

// LoadCurrentEvent returns the records of the current event accepted by f,
// in source order. It can be called repeatedly with different filters.
func (s *Store) LoadCurrentEvent(ctx context.Context, f Filter) ([]Record, error) {
	if s.src == nil {
		s.logger.Info("No data file selected, skipping event loading")
		return nil, ErrNoSource
	}
	id, ok := s.Current()
	if !ok {
		return nil, errors.New(errors.ErrCodeEventRange, "no current event")
	}

	start := time.Now()
	s.logger.Infof("Selecting tracks longer than %g cm and above %g MeV initial kinetic energy", f.LengthCutCm, f.KinECutMeV)

	var out []Record
	err := scanEvent(ctx, s.src, id, func(r *Record) error {
		if f.Accept(r) {
			out = append(out, r.clone())
		}
		return nil
	})
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "read event %d", id)
	}

	s.accepted, s.filter = len(out), f
	s.logger.Infof("Switched to event %d (%d tracks)", id, len(out))
	observability.Viewer().OnEventLoaded(ctx, id, len(out), time.Since(start))
	return out, nil
}

// Summary describes the store state after the last LoadCurrentEvent.
type Summary struct {
	EventID  int64  `json:"event_id"`
	HasEvent bool   `json:"has_event"`
	Events   int    `json:"events"`
	Tracks   int    `json:"tracks"`
	Source   string `json:"source,omitempty"`
	Filter   Filter `json:"filter"`
}

// Summary returns the current summary.
func (s *Store) Summary() Summary {
	sum := Summary{Events: len(s.ids), Tracks: s.accepted, Filter: s.filter}
	sum.EventID, sum.HasEvent = s.Current()
	if s.src != nil {
		sum.Source = s.src.Name()
	}
	return sum
}

// String renders the summary panel text.
func (s Summary) String() string {
	head := "No event loaded"
	if s.HasEvent {
		head = fmt.Sprintf("Event #%d of %d loaded", s.EventID, s.Events)
	}
	return fmt.Sprintf("%s\n\nTrack count: %d\nKinetic energy threshold: %g MeV\nLength threshold: %g cm",
		head, s.Tracks, s.Filter.KinECutMeV, s.Filter.LengthCutCm)
}
