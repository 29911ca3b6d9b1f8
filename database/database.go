package database

import (
	"context"
	"time"

	"github.com/sirdraith/dbinit/lib"
	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

var (
	// DefaultURI is the MongoDB URI we connect to when none is given.
	DefaultURI = "mongodb://localhost:27017"
	// DefaultAuthSource is the database against which the admin user
	// authenticates when none is given.
	DefaultAuthSource = "admin"

	// mongoCompressors defines the compressors we are going to use for the
	// connection to MongoDB
	mongoCompressors = []string{"zstd", "zlib", "snappy"}
	// mongoWriteConcernTimeout specifies a time limit for the write concern
	// to be satisfied.
	mongoWriteConcernTimeout = 30 * time.Second

	// ErrNoDatabaseSelected is returned when a collection or an index is
	// requested before a database was selected with UseDatabase.
	ErrNoDatabaseSelected = errors.New("no database selected")
	// ErrUserAlreadyExists is returned when we try to create a user that
	// already exists.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrCollectionExists is returned when we try to create a collection that
	// already exists.
	ErrCollectionExists = errors.New("collection already exists")

	// errDisrupted is returned by requests disrupted by a test dependency.
	errDisrupted = errors.New("request disrupted by dependency")
)

type (
	// DB is an administrative connection to a MongoDB server. Collection and
	// index requests target the database selected with UseDatabase.
	DB struct {
		staticClient *mongo.Client
		staticDeps   lib.Dependencies
		staticLogger *logrus.Logger

		db *mongo.Database
	}

	// DBCredentials is a helper struct that binds together all values needed for
	// establishing a DB connection.
	DBCredentials struct {
		URI        string
		User       string
		Password   string
		AuthSource string
	}
)

// New connects to the MongoDB server described by creds and makes sure it's
// reachable. No database is selected.
func New(ctx context.Context, creds DBCredentials, logger *logrus.Logger, deps lib.Dependencies) (*DB, error) {
	if deps == nil {
		deps = &lib.ProductionDependencies{}
	}
	if logger == nil {
		logger = &logrus.Logger{}
	}
	c, err := mongo.NewClient(clientOptions(creds))
	if err != nil {
		return nil, errors.AddContext(err, "failed to create a new DB client")
	}
	err = c.Connect(ctx)
	if err != nil {
		return nil, errors.AddContext(err, "failed to connect to DB")
	}
	err = c.Ping(ctx, readpref.Primary())
	if err != nil {
		return nil, errors.Compose(errors.AddContext(err, "failed to ping DB"), c.Disconnect(ctx))
	}
	logger.Debugf("Connected to %s.", redactedURI(creds.URI))
	return &DB{
		staticClient: c,
		staticDeps:   deps,
		staticLogger: logger,
	}, nil
}

// Disconnect closes the connection to the database in an orderly fashion.
func (db *DB) Disconnect(ctx context.Context) error {
	return db.staticClient.Disconnect(ctx)
}

// UseDatabase selects the database all following collection and index
// requests target.
func (db *DB) UseDatabase(name string) error {
	if name == "" {
		return errors.New("empty database name")
	}
	db.db = db.staticClient.Database(name)
	return nil
}

// clientOptions is a helper that returns the client options for the given
// credentials. Compressors, read preference and write concern set here
// override the ones given in the URI.
// See https://docs.mongodb.com/manual/reference/connection-string/
func clientOptions(creds DBCredentials) *options.ClientOptions {
	uri := creds.URI
	if uri == "" {
		uri = DefaultURI
	}
	opts := options.Client().
		ApplyURI(uri).
		SetCompressors(mongoCompressors).
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.New(writeconcern.WMajority(), writeconcern.WTimeout(mongoWriteConcernTimeout)))
	if creds.User != "" {
		authSource := creds.AuthSource
		if authSource == "" {
			authSource = DefaultAuthSource
		}
		opts.SetAuth(options.Credential{
			Username:   creds.User,
			Password:   creds.Password,
			AuthSource: authSource,
		})
	}
	return opts
}

// selected returns the selected database.
func (db *DB) selected() (*mongo.Database, error) {
	if db.db == nil {
		return nil, ErrNoDatabaseSelected
	}
	return db.db, nil
}
