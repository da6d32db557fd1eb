// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/dashboard"
	"github.com/relabs-tech/modelgate/core/logger"
)

type dashboardResponse struct {
	Status string             `json:"status"`
	Data   *dashboard.Summary `json:"data"`
}

func (g *Gateway) handleDashboard(router *mux.Router) {
	logger.Default().Debugln("dashboard")
	logger.Default().Debugln("  handle route: /api/owner_dashboard/summary GET")
	router.Handle("/api/owner_dashboard/summary", g.metrics.instrument("/api/owner_dashboard/summary", handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		g.dashboardSummary(w, r)
	})))).Methods(http.MethodOptions, http.MethodGet)
}

func (g *Gateway) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcome, err := access.Verify(ctx, g.credentials, r.Header.Get(headerAPIKey))
	if err != nil {
		g.fail(w, r, newError(AdapterError, err))
		return
	}
	switch o := outcome.(type) {
	case access.MissingKey:
		g.fail(w, r, newError(MissingApiKey, nil))
		return
	case access.InvalidKey:
		g.fail(w, r, newError(InvalidApiKey, nil))
		return
	case access.Authenticated:
		ctx, _ = logger.ContextWithLoggerIdentity(ctx, o.Identity.Login)
	}

	summary, err := dashboard.Compute(ctx, g.store, g.now())
	if err != nil {
		g.fail(w, r, newError(AdapterError, err))
		return
	}
	g.metrics.observeDispatch(r, outcomeOK)
	writeJSON(w, r, http.StatusOK, dashboardResponse{Status: "success", Data: summary})
}
