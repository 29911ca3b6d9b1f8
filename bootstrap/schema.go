package bootstrap

import "time"

const (
	// Ascending sorts an index key in ascending order.
	Ascending Direction = 1
	// Descending sorts an index key in descending order.
	Descending Direction = -1

	// RoleReadWrite is the role granted to the application's user.
	RoleReadWrite = "readWrite"

	// LogsRetention defines how long log entries are kept before the DB
	// expires them.
	LogsRetention = 30 * 24 * time.Hour
)

var (
	// CollCharacters defines the name of the "characters" collection.
	CollCharacters = "characters"
	// CollCards defines the name of the "cards" collection.
	CollCards = "cards"
	// CollEvents defines the name of the "events" collection.
	CollEvents = "events"
	// CollLogs defines the name of the "logs" collection.
	CollLogs = "logs"

	// Schema lists the collections of the application's database, in the
	// order in which they are created, together with their indexes.
	Schema = []Collection{
		{
			Name: CollCharacters,
			Indexes: []Index{
				index("userId"),
				uniqueIndex("name"),
				index("class"),
				index("level"),
			},
		},
		{
			Name: CollCards,
			Indexes: []Index{
				uniqueIndex("name"),
				index("type"),
				index("rarity"),
			},
		},
		{
			Name: CollEvents,
			Indexes: []Index{
				index("type"),
				index("createdAt"),
			},
		},
		{
			Name: CollLogs,
			Indexes: []Index{
				index("timestamp"),
				index("type"),
				index("userId"),
				ttlIndex("timestamp", LogsRetention),
			},
		},
	}
)

type (
	// Direction is the sort direction of an index key.
	Direction int

	// IndexKey is a single field of an index.
	IndexKey struct {
		Field     string    `yaml:"field"`
		Direction Direction `yaml:"direction"`
	}

	// Index describes a secondary index. ExpireAfterSeconds is only set on TTL
	// indexes.
	Index struct {
		Name               string     `yaml:"name"`
		Keys               []IndexKey `yaml:"keys"`
		Unique             bool       `yaml:"unique,omitempty"`
		ExpireAfterSeconds *int32     `yaml:"expire_after_seconds,omitempty"`
	}

	// Collection is a collection together with its ordered indexes.
	Collection struct {
		Name    string  `yaml:"name"`
		Indexes []Index `yaml:"indexes"`
	}

	// Role grants a named set of permissions on a database.
	Role struct {
		Role string `yaml:"role"`
		DB   string `yaml:"db"`
	}

	// User is a DB user. The password is never serialised.
	User struct {
		Name     string `yaml:"name"`
		Password string `yaml:"-"`
		Roles    []Role `yaml:"roles"`
	}
)

// IsTTL returns true when the index expires documents.
func (idx Index) IsTTL() bool {
	return idx.ExpireAfterSeconds != nil
}

// Equal returns true when both indexes have the same name, keys and options.
func (idx Index) Equal(other Index) bool {
	if idx.Name != other.Name || idx.Unique != other.Unique || len(idx.Keys) != len(other.Keys) {
		return false
	}
	for i := range idx.Keys {
		if idx.Keys[i] != other.Keys[i] {
			return false
		}
	}
	if idx.IsTTL() != other.IsTTL() {
		return false
	}
	return !idx.IsTTL() || *idx.ExpireAfterSeconds == *other.ExpireAfterSeconds
}

// index returns a plain ascending index on the given field.
func index(field string) Index {
	return Index{
		Name: field,
		Keys: []IndexKey{{Field: field, Direction: Ascending}},
	}
}

// uniqueIndex returns a unique ascending index on the given field.
func uniqueIndex(field string) Index {
	idx := index(field)
	idx.Name = field + "_unique"
	idx.Unique = true
	return idx
}

// ttlIndex returns an ascending index on the given date field which expires
// documents once the field is older than ttl.
func ttlIndex(field string, ttl time.Duration) Index {
	idx := index(field)
	idx.Name = field + "_ttl"
	secs := int32(ttl / time.Second)
	idx.ExpireAfterSeconds = &secs
	return idx
}
