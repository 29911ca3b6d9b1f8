package database

import (
	"context"
	"net/url"

	"github.com/sirdraith/dbinit/bootstrap"
	"github.com/sirdraith/dbinit/lib"
	"gitlab.com/NebulousLabs/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// codeNamespaceExists is the server error code for creating a collection
	// that already exists.
	codeNamespaceExists = 48
	// codeUserAlreadyExists is the server error code for creating a user that
	// already exists.
	codeUserAlreadyExists = 51003
)

// CreateUser creates the given user in database userDB.
// See https://docs.mongodb.com/manual/reference/command/createUser/
func (db *DB) CreateUser(ctx context.Context, userDB string, u bootstrap.User) error {
	roles := bson.A{}
	for _, r := range u.Roles {
		roles = append(roles, bson.D{{Key: "role", Value: r.Role}, {Key: "db", Value: r.DB}})
	}
	cmd := bson.D{
		{Key: "createUser", Value: u.Name},
		{Key: "pwd", Value: u.Password},
		{Key: "roles", Value: roles},
	}
	err := db.staticClient.Database(userDB).RunCommand(ctx, cmd).Err()
	if isCommandError(err, codeUserAlreadyExists) {
		return errors.Compose(ErrUserAlreadyExists, err)
	}
	if err != nil {
		return errors.AddContext(err, "failed to create user")
	}
	return nil
}

// CreateCollection creates the given collection in the selected database.
func (db *DB) CreateCollection(ctx context.Context, name string) error {
	d, err := db.selected()
	if err != nil {
		return err
	}
	if db.staticDeps.Disrupt(lib.DisruptCreateCollection(name)) {
		return errors.AddContext(errDisrupted, "create collection "+name)
	}
	err = d.CreateCollection(ctx, name)
	if isCommandError(err, codeNamespaceExists) {
		return errors.Compose(ErrCollectionExists, err)
	}
	if err != nil {
		return errors.AddContext(err, "failed to create collection")
	}
	return nil
}

// CreateIndex creates the given index on a collection in the selected
// database and returns the index's name.
// See https://docs.mongodb.com/manual/indexes/
// See https://docs.mongodb.com/manual/core/index-ttl/
func (db *DB) CreateIndex(ctx context.Context, coll string, idx bootstrap.Index) (string, error) {
	d, err := db.selected()
	if err != nil {
		return "", err
	}
	if db.staticDeps.Disrupt(lib.DisruptCreateIndex(coll, idx.Name)) {
		return "", errors.AddContext(errDisrupted, "create index "+coll+"."+idx.Name)
	}
	name, err := d.Collection(coll).Indexes().CreateOne(ctx, indexModel(idx))
	if err != nil {
		return "", errors.AddContext(err, "failed to create index")
	}
	return name, nil
}

// CollectionNames returns the names of all collections in the selected
// database.
func (db *DB) CollectionNames(ctx context.Context) ([]string, error) {
	d, err := db.selected()
	if err != nil {
		return nil, err
	}
	return d.ListCollectionNames(ctx, bson.D{})
}

// Indexes returns all indexes of the given collection in the selected
// database, including the one on _id.
func (db *DB) Indexes(ctx context.Context, coll string) ([]bootstrap.Index, error) {
	d, err := db.selected()
	if err != nil {
		return nil, err
	}
	c, err := d.Collection(coll).Indexes().List(ctx)
	if err != nil {
		return nil, errors.AddContext(err, "failed to list indexes")
	}
	defer func() {
		if errDef := c.Close(ctx); errDef != nil {
			db.staticLogger.Debugln("Error on closing DB cursor.", errDef)
		}
	}()
	var idxs []bootstrap.Index
	for c.Next(ctx) {
		var doc indexDocument
		if err = c.Decode(&doc); err != nil {
			return nil, errors.AddContext(err, "failed to decode DB data")
		}
		idxs = append(idxs, doc.index())
	}
	return idxs, c.Err()
}

// isCommandError returns true if err is a server error with the given code.
func isCommandError(err error, code int32) bool {
	ce, ok := err.(mongo.CommandError)
	return ok && ce.Code == code
}

// redactedURI returns the given URI with its password removed, so it can be
// logged.
func redactedURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparsable URI>"
	}
	return u.Redacted()
}
