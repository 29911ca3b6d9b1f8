package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/NebulousLabs/errors"
)

const (
	// primaryIndexName is the name of the index every collection has on _id.
	primaryIndexName = "_id_"
)

var (
	// ErrSchemaMismatch is returned when the live DB doesn't match the
	// declared schema.
	ErrSchemaMismatch = errors.New("database does not match the schema")
)

type (
	// Inspector lists the collections and indexes of the selected database.
	Inspector interface {
		// CollectionNames returns the names of all collections.
		CollectionNames(ctx context.Context) ([]string, error)
		// Indexes returns all indexes of the given collection.
		Indexes(ctx context.Context, coll string) ([]Index, error)
	}
)

// Verify checks that every collection in schema exists and that its indexes,
// apart from the one on _id, are exactly the declared ones. All differences
// are reported in a single ErrSchemaMismatch error.
func Verify(ctx context.Context, insp Inspector, schema []Collection) error {
	names, err := insp.CollectionNames(ctx)
	if err != nil {
		return errors.AddContext(err, "failed to list collections")
	}
	existing := make(map[string]struct{}, len(names))
	for _, n := range names {
		existing[n] = struct{}{}
	}

	var problems []string
	for _, coll := range schema {
		if _, ok := existing[coll.Name]; !ok {
			problems = append(problems, fmt.Sprintf("collection '%s' is missing", coll.Name))
			continue
		}
		live, err := insp.Indexes(ctx, coll.Name)
		if err != nil {
			return errors.AddContext(err, "failed to list indexes of "+coll.Name)
		}
		problems = append(problems, diffIndexes(coll, live)...)
	}
	if len(problems) > 0 {
		return errors.AddContext(ErrSchemaMismatch, strings.Join(problems, "; "))
	}
	return nil
}

// diffIndexes describes every difference between the declared indexes of coll
// and the live ones.
func diffIndexes(coll Collection, live []Index) []string {
	byName := make(map[string]Index, len(live))
	for _, idx := range live {
		if idx.Name == primaryIndexName {
			continue
		}
		byName[idx.Name] = idx
	}
	var problems []string
	for _, want := range coll.Indexes {
		got, ok := byName[want.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("index '%s.%s' is missing", coll.Name, want.Name))
			continue
		}
		delete(byName, want.Name)
		if !want.Equal(got) {
			problems = append(problems, fmt.Sprintf("index '%s.%s' differs: want %s, got %s", coll.Name, want.Name, describe(want), describe(got)))
		}
	}
	for _, idx := range live {
		if _, ok := byName[idx.Name]; ok {
			problems = append(problems, fmt.Sprintf("index '%s.%s' is unexpected", coll.Name, idx.Name))
		}
	}
	return problems
}

// describe returns a short representation of the index's keys and options.
func describe(idx Index) string {
	keys := make([]string, 0, len(idx.Keys))
	for _, k := range idx.Keys {
		keys = append(keys, fmt.Sprintf("%s:%d", k.Field, k.Direction))
	}
	s := "{" + strings.Join(keys, ",") + "}"
	if idx.Unique {
		s += " unique"
	}
	if idx.IsTTL() {
		s += fmt.Sprintf(" ttl=%ds", *idx.ExpireAfterSeconds)
	}
	return s
}
