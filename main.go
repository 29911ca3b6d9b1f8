package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirdraith/dbinit/bootstrap"
	"github.com/sirdraith/dbinit/database"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gitlab.com/NebulousLabs/errors"
	"gopkg.in/yaml.v2"
)

var (
	// envDBURL holds the name of the environment variable for the URI of the
	// MongoDB server.
	envDBURL = "MONGODB_URL"
	// envDBUser holds the name of the environment variable for the admin
	// username.
	envDBUser = "MONGODB_USER"
	// envDBPass holds the name of the environment variable for the admin
	// password.
	envDBPass = "MONGODB_PASS" // #nosec G101: Potential hardcoded credentials
	// envDBAuthSource holds the name of the environment variable for the
	// database the admin user authenticates against.
	envDBAuthSource = "MONGODB_AUTH_SOURCE"
	// envConnectTimeout holds the name of the environment variable which
	// limits how long we wait for the DB to become reachable.
	envConnectTimeout = "MONGODB_CONNECT_TIMEOUT"
	// envLogLevel holds the name of the environment variable which defines the
	// desired log level.
	envLogLevel = "DBINIT_LOG_LEVEL"

	// defaultConnectTimeout is used when envConnectTimeout is not set.
	defaultConnectTimeout = 10 * time.Second

	// ErrMissingCredentials is returned when only one of the admin username
	// and password is given.
	ErrMissingCredentials = errors.New("admin username and password must be given together")
)

// dbCredentials validates the admin credentials and binds them together.
func dbCredentials(uri, user, pass, authSource string) (database.DBCredentials, error) {
	if (user == "") != (pass == "") {
		return database.DBCredentials{}, errors.AddContext(ErrMissingCredentials, "check "+envDBUser+" and "+envDBPass)
	}
	return database.DBCredentials{
		URI:        uri,
		User:       user,
		Password:   pass,
		AuthSource: authSource,
	}, nil
}

// logLevel returns the desired log level.
func logLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(os.Getenv(envLogLevel))
	if err == nil {
		return lvl
	}
	return logrus.InfoLevel
}

// newApp builds the command line interface.
func newApp(logger *logrus.Logger) *cli.App {
	app := cli.NewApp()
	app.Name = "dbinit"
	app.Usage = "Prepare the sir_draith MongoDB database for the bot"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "mongo-url",
			Usage:  "URI of the MongoDB server",
			Value:  database.DefaultURI,
			EnvVar: envDBURL,
		},
		cli.StringFlag{
			Name:   "mongo-user",
			Usage:  "admin username",
			EnvVar: envDBUser,
		},
		cli.StringFlag{
			Name:   "mongo-pass",
			Usage:  "admin password",
			EnvVar: envDBPass,
		},
		cli.StringFlag{
			Name:   "mongo-auth-source",
			Usage:  "database the admin user authenticates against",
			Value:  database.DefaultAuthSource,
			EnvVar: envDBAuthSource,
		},
		cli.DurationFlag{
			Name:   "connect-timeout",
			Usage:  "how long to wait for the server to become reachable",
			Value:  defaultConnectTimeout,
			EnvVar: envConnectTimeout,
		},
	}

	app.Action = func(c *cli.Context) error {
		return runBootstrap(c, logger)
	}
	app.Commands = []cli.Command{
		{
			Name:  "bootstrap",
			Usage: "create the application user, the collections and their indexes",
			Action: func(c *cli.Context) error {
				return runBootstrap(c, logger)
			},
		},
		{
			Name:  "verify",
			Usage: "check that the collections and indexes match the schema",
			Action: func(c *cli.Context) error {
				return runVerify(c, logger)
			},
		},
		{
			Name:  "plan",
			Usage: "print the requests a bootstrap would issue, without connecting",
			Action: func(c *cli.Context) error {
				return runPlan(c)
			},
		},
	}
	return app
}

// connect opens the admin connection described by the global flags.
func connect(c *cli.Context, logger *logrus.Logger) (*database.DB, error) {
	creds, err := dbCredentials(
		c.GlobalString("mongo-url"),
		c.GlobalString("mongo-user"),
		c.GlobalString("mongo-pass"),
		c.GlobalString("mongo-auth-source"),
	)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("connect-timeout"))
	defer cancel()
	return database.New(ctx, creds, logger, nil)
}

// runBootstrap applies the plan for the configured application.
func runBootstrap(c *cli.Context, logger *logrus.Logger) (err error) {
	cfg := bootstrap.LoadConfig()
	log := logger.WithFields(logrus.Fields{
		"run":      uuid.New().String(),
		"database": cfg.Database,
	})
	db, err := connect(c, logger)
	if err != nil {
		return errors.AddContext(err, "failed to connect to the DB")
	}
	ctx := context.Background()
	defer func() {
		err = errors.Compose(err, db.Disconnect(ctx))
	}()

	log.Info("Bootstrapping database.")
	err = bootstrap.Apply(ctx, db, bootstrap.NewPlan(cfg, bootstrap.Schema), log)
	if err != nil {
		return errors.AddContext(err, "bootstrap failed")
	}
	log.Info("Database bootstrapped.")
	return nil
}

// runVerify compares the configured database with the schema.
func runVerify(c *cli.Context, logger *logrus.Logger) (err error) {
	cfg := bootstrap.LoadConfig()
	db, err := connect(c, logger)
	if err != nil {
		return errors.AddContext(err, "failed to connect to the DB")
	}
	ctx := context.Background()
	defer func() {
		err = errors.Compose(err, db.Disconnect(ctx))
	}()

	if err = db.UseDatabase(cfg.Database); err != nil {
		return err
	}
	if err = bootstrap.Verify(ctx, db, bootstrap.Schema); err != nil {
		return err
	}
	logger.Infof("Database '%s' matches the schema.", cfg.Database)
	return nil
}

// runPlan writes the plan for the configured application as YAML.
func runPlan(c *cli.Context) error {
	plan := bootstrap.NewPlan(bootstrap.LoadConfig(), bootstrap.Schema)
	enc := yaml.NewEncoder(c.App.Writer)
	if err := enc.Encode(plan); err != nil {
		return errors.AddContext(err, "failed to encode plan")
	}
	return enc.Close()
}

func main() {
	// Load the environment variables from the .env file.
	// Existing variables take precedence and won't be overwritten.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetLevel(logLevel())

	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}
