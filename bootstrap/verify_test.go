package bootstrap

import (
	"context"
	"strings"
	"testing"

	"gitlab.com/NebulousLabs/errors"
)

type (
	// staticInspector serves a fixed set of collections and indexes.
	staticInspector struct {
		indexes map[string][]Index
	}
)

func (si *staticInspector) CollectionNames(_ context.Context) ([]string, error) {
	var names []string
	for n := range si.indexes {
		names = append(names, n)
	}
	return names, nil
}

func (si *staticInspector) Indexes(_ context.Context, coll string) ([]Index, error) {
	return si.indexes[coll], nil
}

// liveSchema returns what the DB reports after a successful bootstrap.
func liveSchema() map[string][]Index {
	live := make(map[string][]Index)
	for _, coll := range Schema {
		idxs := []Index{index("_id")}
		idxs[0].Name = primaryIndexName
		idxs = append(idxs, coll.Indexes...)
		live[coll.Name] = idxs
	}
	return live
}

// TestVerify ensures Verify accepts a DB that matches the schema and reports
// every kind of difference otherwise.
func TestVerify(t *testing.T) {
	ctx := context.Background()

	// Matching DB.
	si := &staticInspector{indexes: liveSchema()}
	if err := Verify(ctx, si, Schema); err != nil {
		t.Fatal(err)
	}
	// Extra collections don't matter.
	si.indexes["guild_configs"] = nil
	if err := Verify(ctx, si, Schema); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		modify func(live map[string][]Index)
		err    string
	}{
		{
			name:   "missing collection",
			modify: func(live map[string][]Index) { delete(live, CollEvents) },
			err:    "collection 'events' is missing",
		},
		{
			name: "missing index",
			modify: func(live map[string][]Index) {
				live[CollLogs] = live[CollLogs][:len(live[CollLogs])-1]
			},
			err: "index 'logs.timestamp_ttl' is missing",
		},
		{
			name: "unexpected index",
			modify: func(live map[string][]Index) {
				live[CollCards] = append(live[CollCards], index("power"))
			},
			err: "index 'cards.power' is unexpected",
		},
		{
			name: "not unique",
			modify: func(live map[string][]Index) {
				live[CollCharacters][2].Unique = false
			},
			err: "index 'characters.name_unique' differs",
		},
		{
			name: "wrong ttl",
			modify: func(live map[string][]Index) {
				idx := ttlIndex("timestamp", LogsRetention/2)
				live[CollLogs][len(live[CollLogs])-1] = idx
			},
			err: "ttl=1296000s",
		},
		{
			name: "wrong direction",
			modify: func(live map[string][]Index) {
				live[CollEvents][2] = Index{
					Name: "createdAt",
					Keys: []IndexKey{{Field: "createdAt", Direction: Descending}},
				}
			},
			err: "index 'events.createdAt' differs",
		},
	}
	for _, tt := range tests {
		live := liveSchema()
		tt.modify(live)
		err := Verify(ctx, &staticInspector{indexes: live}, Schema)
		if err == nil || !errors.Contains(err, ErrSchemaMismatch) {
			t.Fatalf("%s: expected error '%v', got '%v'", tt.name, ErrSchemaMismatch, err)
		}
		if !strings.Contains(err.Error(), tt.err) {
			t.Fatalf("%s: expected error to contain '%s', got '%v'", tt.name, tt.err, err)
		}
	}
}

// TestIndexEqual ensures index comparison takes all options into account.
func TestIndexEqual(t *testing.T) {
	plain := index("timestamp")
	ttl := ttlIndex("timestamp", LogsRetention)
	if *ttl.ExpireAfterSeconds != 2592000 {
		t.Fatalf("Expected TTL of %d seconds, got %d", 2592000, *ttl.ExpireAfterSeconds)
	}
	if !plain.Equal(index("timestamp")) {
		t.Fatal("Expected identical indexes to be equal.")
	}
	if !ttl.Equal(ttlIndex("timestamp", LogsRetention)) {
		t.Fatal("Expected identical TTL indexes to be equal.")
	}
	renamed := ttl
	renamed.Name = plain.Name
	if plain.Equal(renamed) || renamed.Equal(plain) {
		t.Fatal("Expected a TTL index to differ from a plain one.")
	}
	if uniqueIndex("name").Equal(index("name")) {
		t.Fatal("Expected a unique index to differ from a plain one.")
	}
}
