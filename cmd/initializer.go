package main

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"zholkomekBack/internal/estimate"
)

type application struct {
	errorLog     *log.Logger
	infoLog      *log.Logger
	db           *sql.DB
	rdb          *redis.Client
	estimateDeps *estimate.EstimateDeps
	estimateMux  *http.ServeMux
}

type moduleLogger struct {
	info *log.Logger
	err  *log.Logger
}

func (l moduleLogger) Infof(format string, args ...interface{})  { l.info.Printf(format, args...) }
func (l moduleLogger) Errorf(format string, args ...interface{}) { l.err.Printf(format, args...) }

func initializeApp(db *sql.DB, rdb *redis.Client, estimateCfg estimate.EstimateConfig, errorLog, infoLog *log.Logger) (*application, error) {
	deps := &estimate.EstimateDeps{
		DB:     db,
		RDB:    rdb,
		Logger: moduleLogger{info: infoLog, err: errorLog},
		Config: estimateCfg,
	}

	mux := http.NewServeMux()
	if err := estimate.RegisterEstimateRoutes(mux, deps); err != nil {
		return nil, err
	}

	return &application{
		errorLog:     errorLog,
		infoLog:      infoLog,
		db:           db,
		rdb:          rdb,
		estimateDeps: deps,
		estimateMux:  mux,
	}, nil
}
