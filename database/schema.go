package database

import (
	"github.com/sirdraith/dbinit/bootstrap"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	// indexDocument is an index as reported by the listIndexes command.
	indexDocument struct {
		Name               string `bson:"name"`
		Key                bson.D `bson:"key"`
		Unique             bool   `bson:"unique,omitempty"`
		ExpireAfterSeconds *int64 `bson:"expireAfterSeconds,omitempty"`
	}
)

// indexModel translates an index into the model the driver creates.
//
// MongoDB refuses two indexes with the same key pattern unless their partial
// filters differ, so TTL indexes only cover documents whose key holds a date.
// The TTL monitor ignores all other documents anyway.
func indexModel(idx bootstrap.Index) mongo.IndexModel {
	keys := bson.D{}
	for _, k := range idx.Keys {
		keys = append(keys, bson.E{Key: k.Field, Value: int32(k.Direction)})
	}
	opts := options.Index().SetName(idx.Name)
	if idx.Unique {
		opts.SetUnique(true)
	}
	if idx.IsTTL() {
		opts.SetExpireAfterSeconds(*idx.ExpireAfterSeconds)
		filter := bson.D{}
		for _, k := range idx.Keys {
			filter = append(filter, bson.E{Key: k.Field, Value: bson.D{{Key: "$type", Value: "date"}}})
		}
		opts.SetPartialFilterExpression(filter)
	}
	return mongo.IndexModel{
		Keys:    keys,
		Options: opts,
	}
}

// index translates the DB's description of an index back into an index.
func (doc indexDocument) index() bootstrap.Index {
	idx := bootstrap.Index{
		Name:   doc.Name,
		Unique: doc.Unique,
	}
	for _, e := range doc.Key {
		idx.Keys = append(idx.Keys, bootstrap.IndexKey{
			Field:     e.Key,
			Direction: direction(e.Value),
		})
	}
	if doc.ExpireAfterSeconds != nil {
		secs := int32(*doc.ExpireAfterSeconds)
		idx.ExpireAfterSeconds = &secs
	}
	return idx
}

// direction returns the direction of an index key. The server may report it as
// any numeric type. Non-numeric keys, e.g. "text" or "2dsphere", have no
// direction.
func direction(v interface{}) bootstrap.Direction {
	var f float64
	switch n := v.(type) {
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0
	}
	switch {
	case f > 0:
		return bootstrap.Ascending
	case f < 0:
		return bootstrap.Descending
	}
	return 0
}
