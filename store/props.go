package store

import (
	"database/sql"

	"github.com/chazu/latebind/dispatch"
)

// addRef is the lock-free internal flavor of AddRef.
func (s *Store) addRef(target dispatch.Handle) {
	if _, err := s.db.Exec(`UPDATE objects SET refs = refs + 1 WHERE id = ?`, int64(target)); err != nil {
		log.Errorf("addref %d: %v", target, err)
	}
}

// readProp loads one property. A never-written property reads as the empty
// value; an object property transfers a counted reference with the result.
func (s *Store) readProp(target dispatch.Handle, name string) (dispatch.Value, error) {
	var kind int
	var num sql.NullInt64
	var real sql.NullFloat64
	var text sql.NullString
	var ref sql.NullInt64

	err := s.db.QueryRow(
		`SELECT kind, num, real, text, ref FROM props WHERE obj = ? AND name = ?`,
		int64(target), name,
	).Scan(&kind, &num, &real, &text, &ref)
	if err == sql.ErrNoRows {
		return dispatch.Empty(), nil
	}
	if err != nil {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}

	switch dispatch.Kind(kind) {
	case dispatch.KindEmpty:
		return dispatch.Empty(), nil
	case dispatch.KindBool:
		return dispatch.FromBool(num.Int64 != 0), nil
	case dispatch.KindInt:
		return dispatch.FromInt64(num.Int64), nil
	case dispatch.KindUint:
		return dispatch.FromUint64(uint64(num.Int64)), nil
	case dispatch.KindFloat:
		return dispatch.FromFloat64(real.Float64), nil
	case dispatch.KindString, dispatch.KindWideString:
		// Wide strings persist as UTF-8 text; content survives, the
		// narrow representation comes back.
		return dispatch.FromString(text.String), nil
	case dispatch.KindObject:
		h := dispatch.Handle(ref.Int64)
		s.addRef(h)
		return dispatch.FromHandle(h), nil
	default:
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeStorage, Message: "corrupt property kind"}
	}
}

// writeProp stores one property, releasing the reference held for a
// previous object value and acquiring one for a new object value.
func (s *Store) writeProp(target dispatch.Handle, name string, v dispatch.Value) *dispatch.InvocationError {
	var oldRef sql.NullInt64
	err := s.db.QueryRow(
		`SELECT ref FROM props WHERE obj = ? AND name = ?`,
		int64(target), name,
	).Scan(&oldRef)
	if err != nil && err != sql.ErrNoRows {
		return &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}

	var num sql.NullInt64
	var real sql.NullFloat64
	var text sql.NullString
	var ref sql.NullInt64

	switch v.Kind() {
	case dispatch.KindEmpty:
	case dispatch.KindBool:
		b, _ := v.AsBool()
		num = sql.NullInt64{Valid: true}
		if b {
			num.Int64 = 1
		}
	case dispatch.KindInt:
		n, _ := v.AsInt64()
		num = sql.NullInt64{Int64: n, Valid: true}
	case dispatch.KindUint:
		n, _ := v.AsUint64()
		num = sql.NullInt64{Int64: int64(n), Valid: true}
	case dispatch.KindFloat:
		f, _ := v.AsFloat64()
		real = sql.NullFloat64{Float64: f, Valid: true}
	case dispatch.KindString, dispatch.KindWideString:
		str, _ := v.AsString()
		text = sql.NullString{String: str, Valid: true}
	case dispatch.KindObject:
		h, _ := v.ObjectHandle()
		s.addRef(h)
		ref = sql.NullInt64{Int64: int64(h), Valid: true}
	default:
		return &dispatch.InvocationError{Code: CodeStorage, Message: "unsupported value kind"}
	}

	kind := v.Kind()
	if kind == dispatch.KindWideString {
		kind = dispatch.KindString
	}
	_, err = s.db.Exec(
		`INSERT INTO props (obj, name, kind, num, real, text, ref) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (obj, name) DO UPDATE SET kind = excluded.kind, num = excluded.num,
		 real = excluded.real, text = excluded.text, ref = excluded.ref`,
		int64(target), name, int(kind), num, real, text, ref,
	)
	if err != nil {
		return &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}

	if oldRef.Valid {
		s.release(dispatch.Handle(oldRef.Int64))
	}
	return nil
}

// callMethod implements the store's built-in methods. Property bags have
// one: remove(name), which drops the named property.
func (s *Store) callMethod(target dispatch.Handle, name string, args []dispatch.Value) (dispatch.Value, error) {
	if name != "remove" {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeNotCallable, Message: "stored objects only support the remove method"}
	}
	if len(args) != 1 {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeBadArgCount, Message: "remove wants one argument"}
	}
	propName, err := args[0].AsString()
	if err != nil {
		return dispatch.Value{}, err
	}

	var oldRef sql.NullInt64
	qerr := s.db.QueryRow(
		`SELECT ref FROM props WHERE obj = ? AND name = ?`,
		int64(target), propName,
	).Scan(&oldRef)
	if qerr == sql.ErrNoRows {
		return dispatch.FromBool(false), nil
	}
	if qerr != nil {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeStorage, Message: qerr.Error()}
	}

	if _, err := s.db.Exec(`DELETE FROM props WHERE obj = ? AND name = ?`, int64(target), propName); err != nil {
		return dispatch.Value{}, &dispatch.InvocationError{Code: CodeStorage, Message: err.Error()}
	}
	if oldRef.Valid {
		s.release(dispatch.Handle(oldRef.Int64))
	}
	return dispatch.FromBool(true), nil
}
