package lib

// Dependencies is a mechanism for simulating different kinds of errors.
type Dependencies interface {
	// Disrupt returns true when the disruption with name disruptionName should
	// result in an error in the current context.
	Disrupt(disruptionName string) bool
}

// ProductionDependencies is the Dependency for production runs which must never
// result in an error.
type ProductionDependencies struct{}

// Disrupt does nothing in production.
func (pd *ProductionDependencies) Disrupt(_ string) bool {
	return false
}

// DisruptCreateCollection returns the name of the disruption which makes the
// creation of the given collection fail.
func DisruptCreateCollection(coll string) string {
	return "CreateCollection/" + coll
}

// DisruptCreateIndex returns the name of the disruption which makes the
// creation of the given index fail.
func DisruptCreateIndex(coll, index string) string {
	return "CreateIndex/" + coll + "/" + index
}

/* Test dependencies */

type (
	// DependencyFailCreateCollection causes the creation of a single
	// collection to fail before the request reaches the DB.
	DependencyFailCreateCollection struct {
		Collection string
	}
	// DependencyFailCreateIndex causes the creation of a single index to fail
	// before the request reaches the DB.
	DependencyFailCreateIndex struct {
		Collection string
		Index      string
	}
)

// Disrupt causes the creation of d.Collection to fail.
func (d *DependencyFailCreateCollection) Disrupt(s string) bool {
	return s == DisruptCreateCollection(d.Collection)
}

// Disrupt causes the creation of the d.Index index on d.Collection to fail.
func (d *DependencyFailCreateIndex) Disrupt(s string) bool {
	return s == DisruptCreateIndex(d.Collection, d.Index)
}

// NewDependencyFailCreateCollection returns a new
// DependencyFailCreateCollection for the given collection.
func NewDependencyFailCreateCollection(coll string) Dependencies {
	return &DependencyFailCreateCollection{Collection: coll}
}

// NewDependencyFailCreateIndex returns a new DependencyFailCreateIndex for the
// given collection and index name.
func NewDependencyFailCreateIndex(coll, index string) Dependencies {
	return &DependencyFailCreateIndex{Collection: coll, Index: index}
}
