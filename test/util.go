package test

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/sirdraith/dbinit/bootstrap"
	"github.com/sirdraith/dbinit/database"
	"github.com/sirdraith/dbinit/lib"
	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/fastrand"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// maxDBNameLen is the longest database name MongoDB accepts.
	maxDBNameLen = 63
	// connectTimeout limits how long we wait for the test DB.
	connectTimeout = 3 * time.Second
)

// DBTestCredentials returns the credentials of the test DB defined in the
// Makefile.
func DBTestCredentials() database.DBCredentials {
	return database.DBCredentials{
		URI:        "mongodb://localhost:17017",
		User:       "admin",
		Password:   "aO4tV5tC1oU3oQ7u",
		AuthSource: "admin",
	}
}

// DBNameForTest returns a unique database name derived from the test's name.
func DBNameForTest(s string) string {
	r := strings.NewReplacer("/", "_", " ", "_", ".", "_", "$", "_", "\"", "_")
	suffix := "_" + hex.EncodeToString(fastrand.Bytes(4))
	name := "t_" + r.Replace(s)
	if len(name)+len(suffix) > maxDBNameLen {
		name = name[:maxDBNameLen-len(suffix)]
	}
	return name + suffix
}

// NewTestConfig returns a bootstrap config with a random user and a fresh
// database for the given test.
func NewTestConfig(t *testing.T) bootstrap.Config {
	dbName := DBNameForTest(t.Name())
	return bootstrap.Config{
		AppUser:      "user_" + hex.EncodeToString(fastrand.Bytes(6)),
		AppPassword:  hex.EncodeToString(fastrand.Bytes(16)),
		Database:     dbName,
		UserDatabase: dbName,
	}
}

// NewDB connects to the test DB with the given dependencies. The test is
// skipped when the test DB is not running.
func NewDB(t *testing.T, deps lib.Dependencies) *database.DB {
	if testing.Short() {
		t.SkipNow()
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	db, err := database.New(ctx, DBTestCredentials(), logrus.New(), deps)
	if err != nil {
		t.Skip("test DB is not available:", err)
	}
	t.Cleanup(func() {
		_ = db.Disconnect(context.Background())
	})
	return db
}

// RawDB returns a driver handle to the given database, so tests can inspect
// it independently of the code under test. The database and its users are
// dropped when the test ends.
func RawDB(t *testing.T, dbName string) *mongo.Database {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	creds := DBTestCredentials()
	opts := options.Client().ApplyURI(creds.URI).SetAuth(options.Credential{
		Username:   creds.User,
		Password:   creds.Password,
		AuthSource: creds.AuthSource,
	})
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		t.Skip("test DB is not available:", err)
	}
	db := c.Database(dbName)
	t.Cleanup(func() {
		ctx := context.Background()
		err := errors.Compose(
			db.RunCommand(ctx, bson.D{{Key: "dropAllUsersFromDatabase", Value: 1}}).Err(),
			db.Drop(ctx),
			c.Disconnect(ctx),
		)
		if err != nil {
			t.Log("Failed to clean up test DB:", err)
		}
	})
	return db
}
