package index

// ItemIndex defines the interface for content index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ItemIndex interface {
	UpsertItem(row ItemRow, body string) error
	DeleteItem(path string) error
	GetItem(identifier string) (*ItemRow, error)
	ListItems(collection string) ([]ItemRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies ItemIndex at compile time.
var _ ItemIndex = (*DB)(nil)
