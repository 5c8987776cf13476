package trajectory

import "context"

// MemorySource serves records held in memory. It is used by tests and by
// callers that build events programmatically.
type MemorySource struct {
	name    string
	records []Record
	closed  bool
}

// NewMemorySource returns a source over records, kept in the given order.
func NewMemorySource(name string, records ...Record) *MemorySource {
	return &MemorySource{name: name, records: records}
}

func (m *MemorySource) Name() string { return m.name }

func (m *MemorySource) Scan(ctx context.Context, fn func(*Record) error) error {
	for i := range m.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&m.records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemorySource) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemorySource) Closed() bool { return m.closed }
