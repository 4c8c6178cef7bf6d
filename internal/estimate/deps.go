package estimate

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// Logger provides minimal logging required by the estimation module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// EstimateDeps groups external dependencies needed by the estimation module.
type EstimateDeps struct {
	DB         *sql.DB
	RDB        *redis.Client
	Logger     Logger
	Config     EstimateConfig
	HTTPClient *http.Client
	module     *moduleState
}

// Validate ensures required dependencies are provided.
func (d *EstimateDeps) Validate() error {
	if d.DB == nil {
		return errors.New("estimate deps: DB is required")
	}
	if d.RDB == nil {
		return errors.New("estimate deps: RDB is required")
	}
	if d.Logger == nil {
		return errors.New("estimate deps: Logger is required")
	}
	if d.HTTPClient == nil {
		d.HTTPClient = http.DefaultClient
	}
	return nil
}
