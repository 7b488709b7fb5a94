package testutils

import (
	"context"
	"crypto/rand"
	"fmt"
	"github.com/creasty/defaults"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// GetTestDB retrieves the database config from env variables, opens a new database and returns it.
//
// The test suite will be skipped if no environment variable is set, otherwise fails fatally when
// invalid configurations are specified.
func GetTestDB(ctx context.Context, t *testing.T) *database.DB {
	c := &database.Config{}
	require.NoError(t, defaults.Set(c), "applying config default should not fail")

	if v, ok := os.LookupEnv("JOBS_TESTS_DB_TYPE"); ok {
		c.Type = strings.ToLower(v)
	} else {
		t.Skipf("Environment %q not set, skipping test!", "JOBS_TESTS_DB_TYPE")
	}

	if v, ok := os.LookupEnv("JOBS_TESTS_DB"); ok {
		c.Database = v
	}
	if v, ok := os.LookupEnv("JOBS_TESTS_DB_USER"); ok {
		c.User = v
	}
	if v, ok := os.LookupEnv("JOBS_TESTS_DB_PASSWORD"); ok {
		c.Password = v
	}
	if v, ok := os.LookupEnv("JOBS_TESTS_DB_HOST"); ok {
		c.Host = v
	}
	if v, ok := os.LookupEnv("JOBS_TESTS_DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		require.NoError(t, err, "invalid port provided")

		c.Port = port
	}

	require.NoError(t, c.Validate(), "database config validation should not fail")

	db, err := database.NewDbFromConfig(c, logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Hour), database.RetryConnectorCallbacks{})
	require.NoError(t, err, "connecting to database should not fail")
	require.NoError(t, db.PingContext(ctx), "pinging the database should not fail")

	return db
}

// MakeRandomString returns a 20 byte random hex string.
func MakeRandomString(t *testing.T) string {
	buf := make([]byte, 20)
	_, err := rand.Read(buf)
	require.NoError(t, err, "failed to generate random string")

	return fmt.Sprintf("%x", buf)
}

// ApplySchema drops all tables of the job catalog and recreates them from the schema file matching the
// driver of db, found in the schema directory at the given path.
func ApplySchema(ctx context.Context, t *testing.T, db *database.DB, schemaDir string) {
	driver := "pgsql"
	if db.DriverName() == database.MySQL {
		driver = "mysql"
	}

	content, err := os.ReadFile(filepath.Join(schemaDir, driver, "schema.sql"))
	require.NoError(t, err, "reading schema file should not fail")

	for _, table := range []string{
		"job_attribute_value", "attribute", "job_category", "category", "job_location", "location",
		"job_language", "language", "job",
	} {
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+table+`"`)
		require.NoErrorf(t, err, "dropping table %q should not fail", table)
	}

	for _, stmt := range strings.Split(string(content), ";\n") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}

		_, err := db.ExecContext(ctx, stmt)
		require.NoErrorf(t, err, "executing schema statement should not fail:\n%s", stmt)
	}
}

// NewTestLogging creates a new logging instance for testing purposes.
//
// The logger uses zaptest to integrate with the testing.T instance, allowing log output to be
// captured and displayed in test results. The logging level is set to Debug to provide detailed
// output during tests.
func NewTestLogging(t *testing.T) *logging.Logging {
	return logging.NewLoggingWithFactory(
		"testing",
		zap.DebugLevel,
		time.Hour,
		func(level zap.AtomicLevel) zapcore.Core {
			return zaptest.NewLogger(t, zaptest.Level(level.Level())).Core()
		},
	)
}
