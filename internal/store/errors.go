package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// DuplicateKeyError is returned when an insert hits a unique index.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// indexNameRe picks the index name out of an E11000 message such as
// `index: username_1 dup key: { username: "x" }`.
var indexNameRe = regexp.MustCompile(`index: (\S+) dup key`)

// duplicateKey converts a Mongo duplicate-key error into a DuplicateKeyError
// naming the indexed field among fields. The field comes from the server's
// keyPattern, or from the index name when keyPattern is absent, never from
// the duplicated value.
func duplicateKey(err error, fields ...string) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	for _, key := range duplicateKeys(err) {
		for _, f := range fields {
			if key == f {
				return &DuplicateKeyError{Field: f}
			}
		}
	}
	return &DuplicateKeyError{Field: "record"}
}

// duplicateKeys lists the indexed field names reported by a duplicate-key
// error.
func duplicateKeys(err error) []string {
	var keys []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code != 11000 {
				continue
			}
			if e.Raw != nil {
				if kp, ok := e.Raw.Lookup("keyPattern").DocumentOK(); ok {
					elems, _ := kp.Elements()
					for _, el := range elems {
						keys = append(keys, el.Key())
					}
					continue
				}
			}
			keys = append(keys, keysFromMessage(e.Message)...)
		}
		if len(keys) > 0 {
			return keys
		}
	}
	return keysFromMessage(err.Error())
}

// keysFromMessage turns an index name like `email_1` or `user_id_1` into
// its field names.
func keysFromMessage(msg string) []string {
	m := indexNameRe.FindStringSubmatch(msg)
	if m == nil {
		return nil
	}
	var keys []string
	for _, part := range strings.Split(m[1], "_-1_") {
		for _, p := range strings.Split(part, "_1_") {
			p = strings.TrimSuffix(strings.TrimSuffix(p, "_-1"), "_1")
			if p != "" {
				keys = append(keys, p)
			}
		}
	}
	return keys
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
