package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
)

const (
	// StepCreateUser creates the application's user.
	StepCreateUser StepKind = "create_user"
	// StepUseDatabase switches all following steps to the step's database.
	StepUseDatabase StepKind = "use_database"
	// StepCreateCollection creates a collection.
	StepCreateCollection StepKind = "create_collection"
	// StepCreateIndex creates a single index on a collection.
	StepCreateIndex StepKind = "create_index"
)

var (
	// ErrUnknownStep is returned when a plan contains a step Apply doesn't know
	// how to execute.
	ErrUnknownStep = errors.New("unknown step kind")
)

type (
	// StepKind identifies the administrative request a step issues.
	StepKind string

	// Step is a single administrative request. Only the fields relevant to
	// the step's kind are set.
	Step struct {
		Kind       StepKind `yaml:"kind"`
		Database   string   `yaml:"database,omitempty"`
		Collection string   `yaml:"collection,omitempty"`
		User       *User    `yaml:"user,omitempty"`
		Index      *Index   `yaml:"index,omitempty"`
	}

	// Admin issues administrative requests against a DB engine.
	Admin interface {
		// CreateUser creates the given user in database db.
		CreateUser(ctx context.Context, db string, u User) error
		// UseDatabase selects the database all following collection and
		// index requests target.
		UseDatabase(name string) error
		// CreateCollection creates a collection in the selected database.
		CreateCollection(ctx context.Context, name string) error
		// CreateIndex creates an index on a collection in the selected
		// database and returns the index's name.
		CreateIndex(ctx context.Context, coll string, idx Index) (string, error)
	}
)

// String returns a short human-readable description of the step.
func (s Step) String() string {
	switch s.Kind {
	case StepCreateUser:
		return fmt.Sprintf("create user '%s' in '%s'", s.User.Name, s.Database)
	case StepUseDatabase:
		return fmt.Sprintf("use database '%s'", s.Database)
	case StepCreateCollection:
		return fmt.Sprintf("create collection '%s'", s.Collection)
	case StepCreateIndex:
		return fmt.Sprintf("create index '%s' on '%s'", s.Index.Name, s.Collection)
	}
	return string(s.Kind)
}

// NewPlan returns the ordered steps which create the application's user and
// then the given collections with their indexes in the configured database.
func NewPlan(cfg Config, schema []Collection) []Step {
	plan := []Step{
		{
			Kind:     StepCreateUser,
			Database: cfg.UserDatabase,
			User: &User{
				Name:     cfg.AppUser,
				Password: cfg.AppPassword,
				Roles:    []Role{{Role: RoleReadWrite, DB: cfg.Database}},
			},
		},
		{
			Kind:     StepUseDatabase,
			Database: cfg.Database,
		},
	}
	for _, coll := range schema {
		plan = append(plan, Step{Kind: StepCreateCollection, Collection: coll.Name})
		for i := range coll.Indexes {
			idx := coll.Indexes[i]
			plan = append(plan, Step{Kind: StepCreateIndex, Collection: coll.Name, Index: &idx})
		}
	}
	return plan
}

// Apply executes the given plan step by step. It stops at the first failing
// step and returns its error. Steps which already succeeded are not undone.
func Apply(ctx context.Context, admin Admin, plan []Step, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = &logrus.Logger{}
	}
	for i, s := range plan {
		log := logger.WithFields(logrus.Fields{
			"step": i + 1,
			"kind": s.Kind,
		})
		err := applyStep(ctx, admin, s, log)
		if err != nil {
			return errors.AddContext(err, fmt.Sprintf("step %d/%d (%s) failed", i+1, len(plan), s))
		}
	}
	logger.Infof("Applied %d steps.", len(plan))
	return nil
}

// applyStep issues the administrative request described by s.
func applyStep(ctx context.Context, admin Admin, s Step, log *logrus.Entry) error {
	switch s.Kind {
	case StepCreateUser:
		if err := admin.CreateUser(ctx, s.Database, *s.User); err != nil {
			return err
		}
		log.Infof("Created user '%s' in '%s'.", s.User.Name, s.Database)
	case StepUseDatabase:
		if err := admin.UseDatabase(s.Database); err != nil {
			return err
		}
		log.Debugf("Switched to database '%s'.", s.Database)
	case StepCreateCollection:
		if err := admin.CreateCollection(ctx, s.Collection); err != nil {
			return err
		}
		log.WithField("collection", s.Collection).Info("Created collection.")
	case StepCreateIndex:
		name, err := admin.CreateIndex(ctx, s.Collection, *s.Index)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"collection": s.Collection,
			"index":      name,
		}).Debug("Created index.")
	default:
		return errors.AddContext(ErrUnknownStep, string(s.Kind))
	}
	return nil
}
