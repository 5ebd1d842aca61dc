// Package store persists late-bound property bags in SQLite.
//
// A Store is a dispatch.Collaborator whose objects are rows: properties
// live in a (object, name) table with one payload column per kind, and
// object-valued properties hold the target row id plus a counted
// reference. Reference counts persist, so a graph survives process
// restarts and tears down whenever its last reference is released, no
// matter which process releases it.
//
// Unlike the strict in-memory registry, the store is a dynamic bag:
// resolving a name mints a member identifier whether or not the property
// has ever been written, and reading a never-written property yields the
// empty value. Method calls support "remove" (drop a named property);
// everything else fails.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/latebind/dispatch"
)

var log = commonlog.GetLogger("latebind.store")

// Invocation failure codes reported by this collaborator.
const (
	CodeNoObject    int32 = 1
	CodeNoMember    int32 = 2
	CodeBadArgCount int32 = 3
	CodeNotCallable int32 = 4
	CodeRefRequired int32 = 6
	CodeStorage     int32 = 10 // the database itself failed
)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	refs INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS members (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	obj  INTEGER NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (obj, name)
);
CREATE TABLE IF NOT EXISTS props (
	obj  INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind INTEGER NOT NULL,
	num  INTEGER,
	real REAL,
	text TEXT,
	ref  INTEGER,
	PRIMARY KEY (obj, name)
);
`

// rootHandle is the well-known id of the pinned root object.
const rootHandle dispatch.Handle = 1

// Store is a SQLite-backed late-bound object host.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the store at path. Use ":memory:" for a throwaway
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// The driver is safe for concurrent use, but this store serializes
	// its multi-statement sequences anyway; one connection is plenty.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewObject creates an empty object row and returns its handle. The caller
// owns the initial reference.
func (s *Store) NewObject() (dispatch.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`INSERT INTO objects (refs) VALUES (1)`)
	if err != nil {
		return 0, fmt.Errorf("store: create object: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create object: %w", err)
	}
	return dispatch.Handle(id), nil
}

// Root returns the store's well-known root object, creating it on first
// use. The root is pinned: its persisted count never drops below one, so
// it survives as an entry point across processes.
func (s *Store) Root() (dispatch.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO objects (id, refs) VALUES (?, 1)`, int64(rootHandle)); err != nil {
		return 0, fmt.Errorf("store: create root: %w", err)
	}
	return rootHandle, nil
}

// Live returns the number of live object rows.
func (s *Store) Live() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count objects: %w", err)
	}
	return n, nil
}

func (s *Store) objectExists(h dispatch.Handle) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM objects WHERE id = ?`, int64(h)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// dispatch.Collaborator
// ---------------------------------------------------------------------------

// ResolveName mints or finds the member identifier for a name on the
// target object. Names resolve freely; only dead handles fail.
func (s *Store) ResolveName(target dispatch.Handle, name string) (dispatch.MemberID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.objectExists(target)
	if err != nil {
		return 0, &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}
	if !ok {
		return 0, &dispatch.InvocationError{Code: CodeNoObject, Message: "no such object"}
	}

	if _, err := s.db.Exec(`INSERT OR IGNORE INTO members (obj, name) VALUES (?, ?)`, int64(target), name); err != nil {
		return 0, &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}
	var id int64
	if err := s.db.QueryRow(`SELECT id FROM members WHERE obj = ? AND name = ?`, int64(target), name).Scan(&id); err != nil {
		return 0, &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}
	return dispatch.MemberID(id), nil
}

// memberName maps an identifier back to its name, verifying it was minted
// for this target.
func (s *Store) memberName(target dispatch.Handle, member dispatch.MemberID) (string, *dispatch.InvocationError) {
	var obj int64
	var name string
	err := s.db.QueryRow(`SELECT obj, name FROM members WHERE id = ?`, int64(member)).Scan(&obj, &name)
	if err == sql.ErrNoRows || (err == nil && obj != int64(target)) {
		return "", &dispatch.InvocationError{Code: CodeNoMember, Message: "unresolved member identifier"}
	}
	if err != nil {
		return "", &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}
	return name, nil
}

// Invoke routes a member call to the stored object.
func (s *Store) Invoke(target dispatch.Handle, member dispatch.MemberID, kind dispatch.CallKind, packed []dispatch.Value) (dispatch.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.objectExists(target)
	if err != nil {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}
	if !ok {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNoObject, Message: "no such object"}
	}
	name, ierr := s.memberName(target, member)
	if ierr != nil {
		return dispatch.Value{}, ierr
	}
	args := dispatch.Positional(packed)

	switch kind {
	case dispatch.PropertyGet:
		if len(args) != 0 {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadArgCount, Message: "property get takes no arguments"}
		}
		return s.readProp(target, name)

	case dispatch.PropertyPut, dispatch.PropertyPutRef:
		if len(args) != 1 {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadArgCount, Message: "property put takes one argument"}
		}
		if _, isObj := args[0].ObjectHandle(); kind == dispatch.PropertyPutRef && !isObj {
			return dispatch.Value{}, &dispatch.InvocationError{Code: CodeRefRequired, Message: "put-by-reference requires an object value"}
		}
		if ierr := s.writeProp(target, name, args[0]); ierr != nil {
			return dispatch.Value{}, ierr
		}
		return dispatch.Empty(), nil

	case dispatch.CallMethod:
		return s.callMethod(target, name, args)

	default:
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNotCallable, Message: "unsupported call kind"}
	}
}

// AddRef increments the persisted reference count. Storage failures are
// logged; the count has no caller to report to.
func (s *Store) AddRef(target dispatch.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`UPDATE objects SET refs = refs + 1 WHERE id = ?`, int64(target)); err != nil {
		log.Errorf("addref %d: %v", target, err)
	}
}

// Release decrements the persisted reference count, deleting the object
// row (and releasing its object-valued properties) at zero.
func (s *Store) Release(target dispatch.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(target)
}

func (s *Store) release(target dispatch.Handle) {
	if target == rootHandle {
		// The root is pinned: its count never drops below one, so an
		// unbalanced release cannot cascade-delete the graph.
		if _, err := s.db.Exec(`UPDATE objects SET refs = refs - 1 WHERE id = ? AND refs > 1`, int64(target)); err != nil {
			log.Errorf("release %d: %v", target, err)
		}
		return
	}
	if _, err := s.db.Exec(`UPDATE objects SET refs = refs - 1 WHERE id = ?`, int64(target)); err != nil {
		log.Errorf("release %d: %v", target, err)
		return
	}
	var refs int64
	err := s.db.QueryRow(`SELECT refs FROM objects WHERE id = ?`, int64(target)).Scan(&refs)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		log.Errorf("release %d: %v", target, err)
		return
	}
	if refs > 0 {
		return
	}
	s.destroy(target)
}

// destroy removes a dead object row and recursively releases every object
// it referenced.
func (s *Store) destroy(target dispatch.Handle) {
	rows, err := s.db.Query(`SELECT ref FROM props WHERE obj = ? AND ref IS NOT NULL`, int64(target))
	if err != nil {
		log.Errorf("destroy %d: %v", target, err)
		return
	}
	var linked []dispatch.Handle
	for rows.Next() {
		var ref int64
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			log.Errorf("destroy %d: %v", target, err)
			return
		}
		linked = append(linked, dispatch.Handle(ref))
	}
	rows.Close()

	for _, stmt := range []string{
		`DELETE FROM props WHERE obj = ?`,
		`DELETE FROM members WHERE obj = ?`,
		`DELETE FROM objects WHERE id = ?`,
	} {
		if _, err := s.db.Exec(stmt, int64(target)); err != nil {
			log.Errorf("destroy %d: %v", target, err)
			return
		}
	}
	for _, h := range linked {
		s.release(h)
	}
}
