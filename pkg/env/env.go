package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shiplane/shiplane/pkg/log"
)

var variables = new(Environment)

// Process the environment variables set for shiplane.
func Process() error {
	if err := envconfig.Process("shiplane", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// set the log level
	if err := log.SetLevelFromString(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used by shiplane.
type Environment struct {
	LogLevel     string        `default:"info"`
	Port         int           `default:"8080"`
	NodeID       string        `default:""` // hostname when empty
	PollInterval time.Duration `default:"30s"`
	LockTimeout  time.Duration `default:"120s"`
	DatabaseType string        `default:"postgres"`
	DatabaseDSN  string        `default:"host=postgres user=postgres password=postgres dbname=shiplane port=5432 sslmode=disable"`
	DatabasePath string        `default:"shiplane.db"`

	// Integration endpoints. An empty URL means the integration is
	// absent and its tasks become optional.
	SourceControlURL  string `default:""`
	CICDURL           string `default:""`
	TicketingURL      string `default:""`
	TestManagementURL string `default:""`
	ChatWebhookURL    string `default:""`
	StoreConnectURL   string `default:""`
}
