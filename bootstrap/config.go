package bootstrap

import "os"

var (
	// EnvAppUser holds the name of the environment variable for the username
	// of the application's DB user.
	EnvAppUser = "MONGO_APP_USER"
	// EnvAppPassword holds the name of the environment variable for the
	// password of the application's DB user.
	EnvAppPassword = "MONGO_APP_PASSWORD" // #nosec G101: Potential hardcoded credentials
	// EnvDatabase holds the name of the environment variable for the name of
	// the application's database.
	EnvDatabase = "MONGO_DATABASE"
	// EnvUserDatabase holds the name of the environment variable for the
	// database in which the application's user is stored. Optional.
	EnvUserDatabase = "MONGO_INITDB_DATABASE"

	// DefaultAppUser is the application's username when EnvAppUser is not set.
	DefaultAppUser = "sir_draith_user"
	// DefaultAppPassword is the application's password when EnvAppPassword is
	// not set.
	DefaultAppPassword = "sir_draith_password" // #nosec G101: Potential hardcoded credentials
	// DefaultDatabase is the application's database when EnvDatabase is not
	// set.
	DefaultDatabase = "sir_draith"
)

type (
	// Config holds everything a bootstrap run needs to know about the
	// application it prepares the DB for.
	Config struct {
		AppUser     string
		AppPassword string
		// Database is the database the user is granted access to and in which
		// all collections are created.
		Database string
		// UserDatabase is the database in which the user is created, i.e. the
		// one the application authenticates against.
		UserDatabase string
	}
)

// LoadConfig resolves the bootstrap configuration from the environment. Unset
// and empty variables fall back to their defaults.
func LoadConfig() Config {
	cfg := Config{
		AppUser:     envOrDefault(EnvAppUser, DefaultAppUser),
		AppPassword: envOrDefault(EnvAppPassword, DefaultAppPassword),
		Database:    envOrDefault(EnvDatabase, DefaultDatabase),
	}
	cfg.UserDatabase = envOrDefault(EnvUserDatabase, cfg.Database)
	return cfg
}

// envOrDefault returns the value of the given environment variable or def if
// the variable is unset or empty.
func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
