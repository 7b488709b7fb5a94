package daemon

import (
	"errors"
	"fmt"
	"github.com/creasty/defaults"
	"github.com/icinga/icinga-go-library/config"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/utils"
	"github.com/icinga/icinga-job-catalog/internal"
	"github.com/icinga/icinga-job-catalog/internal/filter"
	"os"
	"time"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Catalog backends.
const (
	BackendDatabase = "database"
	BackendFixtures = "fixtures"
)

type ConfigFile struct {
	Listen                string          `yaml:"listen" default:"localhost:5690"`
	Backend               string          `yaml:"backend" default:"database"`
	Fixtures              string          `yaml:"fixtures"`
	PerPage               int             `yaml:"per-page" default:"10"`
	MaxPerPage            int             `yaml:"max-per-page" default:"100"`
	SchemaRefreshInterval time.Duration   `yaml:"schema-refresh-interval" default:"1m"`
	Filter                FilterConfig    `yaml:"filter"`
	Database              database.Config `yaml:"database"`
	Logging               logging.Config  `yaml:"logging"`
}

// FilterConfig controls how filter expressions of the HTTP API are parsed.
type FilterConfig struct {
	// NestedGroups gives parenthesised groups their own precedence instead of merging them into the
	// enclosing group.
	NestedGroups bool `yaml:"nested-groups"`
}

// ParseOptions returns the filter.ParseOptions for this configuration.
func (f FilterConfig) ParseOptions() filter.ParseOptions {
	return filter.ParseOptions{NestedGroups: f.NestedGroups}
}

// SetDefaults implements the defaults.Setter interface.
func (c *ConfigFile) SetDefaults() {
	if defaults.CanUpdate(c.Fixtures) {
		c.Fixtures = internal.SysConfDir + "/icinga-job-catalog/fixtures.yml"
	}
}

// Validate implements the config.Validator interface.
// Validates the entire daemon configuration on daemon startup.
func (c *ConfigFile) Validate() error {
	switch c.Backend {
	case BackendDatabase:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	case BackendFixtures:
		if c.Fixtures == "" {
			return errors.New("fixtures backend requires a fixtures file")
		}
	default:
		return fmt.Errorf("invalid backend %q, must be one of %q or %q", c.Backend, BackendDatabase, BackendFixtures)
	}

	if c.PerPage < 1 {
		return fmt.Errorf("per-page must be positive, got %d", c.PerPage)
	}
	if c.MaxPerPage < c.PerPage {
		return fmt.Errorf("max-per-page (%d) must not be less than per-page (%d)", c.MaxPerPage, c.PerPage)
	}
	if c.SchemaRefreshInterval <= 0 {
		return fmt.Errorf("schema-refresh-interval must be positive, got %s", c.SchemaRefreshInterval)
	}

	if err := c.Logging.Validate(); err != nil {
		return err
	}

	return nil
}

// Assert interface compliance.
var (
	_ defaults.Setter  = (*ConfigFile)(nil)
	_ config.Validator = (*ConfigFile)(nil)
)

// Flags defines the CLI flags supported by the job catalog daemon.
type Flags struct {
	// Version decides whether to just print the version and exit.
	Version bool `long:"version" description:"print version and exit"`
	// Config is the path to the config file
	Config string `short:"c" long:"config" description:"path to config file"`
}

// ParseFlagsAndConfig parses the CLI flags provided to the executable and tries to load the config from the YAML file.
//
// Prints any error during parsing or config loading to os.Stderr and exits, otherwise returns the loaded ConfigFile.
func ParseFlagsAndConfig() *ConfigFile {
	flags := Flags{Config: internal.SysConfDir + "/icinga-job-catalog/config.yml"}
	if err := config.ParseFlags(&flags); err != nil {
		if errors.Is(err, config.ErrInvalidArgument) {
			panic(err)
		}

		utils.PrintErrorThenExit(err, ExitFailure)
	}

	if flags.Version {
		internal.Version.Print("Icinga Job Catalog")
		os.Exit(ExitSuccess)
	}

	daemonConfig, err := LoadConfig(flags.Config)
	if err != nil {
		if errors.Is(err, config.ErrInvalidArgument) {
			panic(err)
		}

		utils.PrintErrorThenExit(err, ExitFailure)
	}

	return daemonConfig
}

// LoadConfig loads, defaults and validates the ConfigFile from the given YAML file.
func LoadConfig(path string) (*ConfigFile, error) {
	daemonConfig := new(ConfigFile)
	if err := config.FromYAMLFile(path, daemonConfig); err != nil {
		return nil, err
	}

	return daemonConfig, nil
}
