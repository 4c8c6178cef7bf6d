package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)

	mux := pat.New()
	mux.Get("/health", alice.New(makeResponseJSON).ThenFunc(app.healthCheck))

	root := http.NewServeMux()
	root.Handle("/api/v1/estimate/", app.adminGate(app.estimateMux))
	root.Handle("/ws/estimate/", app.adminGate(app.estimateMux))
	root.Handle("/", mux)

	return standardMiddleware.Then(root)
}
