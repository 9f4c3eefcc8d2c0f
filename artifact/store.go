package artifact

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/chazu/scopeproxy/model"
)

// ErrSourceNotFound indicates no source is stored under the requested key.
var ErrSourceNotFound = errors.New("source not found")

// Store persists generated sources in SQLite, keyed by type ID, model
// fingerprint and contract. A changed model gets a new fingerprint, so
// stale sources are never returned for it.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenStore opens or creates the store at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sources (
		type_id     TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		contract    TEXT NOT NULL,
		package     TEXT NOT NULL,
		name        TEXT NOT NULL,
		code        BLOB NOT NULL,
		skipped     BLOB,
		PRIMARY KEY (type_id, fingerprint, contract)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if err := addSkippedColumn(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// addSkippedColumn upgrades stores created before skipped methods were kept.
func addSkippedColumn(db *sql.DB) error {
	rows, err := db.Query("SELECT name FROM pragma_table_info('sources')")
	if err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("reading table info: %w", err)
		}
		if name == "skipped" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading table info: %w", err)
	}
	rows.Close()

	if _, err := db.Exec("ALTER TABLE sources ADD COLUMN skipped BLOB"); err != nil {
		return fmt.Errorf("adding skipped column: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores src, replacing any source with the same key.
func (s *Store) Save(src *Source) error {
	var skipped []byte
	if len(src.Skipped) > 0 {
		var err error
		if skipped, err = cbor.Marshal(src.Skipped); err != nil {
			return fmt.Errorf("encoding skipped methods: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sources (type_id, fingerprint, contract, package, name, code, skipped) VALUES (?, ?, ?, ?, ?, ?, ?)",
		src.TypeID, hex.EncodeToString(src.Fingerprint[:]), src.Contract.String(), src.Package, src.Name, src.Code, skipped,
	)
	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Load returns the source stored for typeID, fingerprint and c.
func (s *Store) Load(typeID string, fingerprint [32]byte, c Contract) (*Source, error) {
	src := &Source{TypeID: typeID, Fingerprint: fingerprint, Contract: c}
	var skipped []byte
	err := s.db.QueryRow(
		"SELECT package, name, code, skipped FROM sources WHERE type_id = ? AND fingerprint = ? AND contract = ?",
		typeID, hex.EncodeToString(fingerprint[:]), c.String(),
	).Scan(&src.Package, &src.Name, &src.Code, &skipped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("querying source: %w", err)
	}
	if len(skipped) > 0 {
		if err := cbor.Unmarshal(skipped, &src.Skipped); err != nil {
			return nil, fmt.Errorf("decoding skipped methods: %w", err)
		}
	}
	return src, nil
}

// Prune deletes every source of typeID except the one with fingerprint keep.
// It returns the number of deleted rows.
func (s *Store) Prune(typeID string, keep [32]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"DELETE FROM sources WHERE type_id = ? AND fingerprint != ?",
		typeID, hex.EncodeToString(keep[:]),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning sources: %w", err)
	}
	return res.RowsAffected()
}

// StoredBuilder serves sources from a Store and builds and saves missing
// ones with the wrapped builder.
type StoredBuilder struct {
	store   *Store
	builder Builder[*Source]
}

// NewStoredBuilder combines store and builder.
func NewStoredBuilder(store *Store, builder Builder[*Source]) *StoredBuilder {
	return &StoredBuilder{store: store, builder: builder}
}

// Build implements Builder.
func (b *StoredBuilder) Build(m *model.Model, c Contract) (*Source, error) {
	fp := m.Fingerprint()
	src, err := b.store.Load(m.TypeID(), fp, c)
	if err == nil {
		log.Debugf("loaded stored source for %s", m.TypeID())
		return src, nil
	}
	if !errors.Is(err, ErrSourceNotFound) {
		return nil, err
	}

	src, err = b.builder.Build(m, c)
	if err != nil {
		return nil, err
	}
	if err := b.store.Save(src); err != nil {
		return nil, err
	}
	if _, err := b.store.Prune(m.TypeID(), fp); err != nil {
		log.Warningf("pruning stale sources of %s: %v", m.TypeID(), err)
	}
	return src, nil
}
