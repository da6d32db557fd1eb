package gateway

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/modelgate/core/logger"
)

// ConnectResponse is the response of /odoo_connect
type ConnectResponse struct {
	Status          string `json:"status"`
	UserDisplayName string `json:"user_display_name"`
	APIKey          string `json:"api_key"`
}

func (g *Gateway) handleConnect(router *mux.Router) {
	logger.Default().Debugln("connect")
	logger.Default().Debugln("  handle route: /odoo_connect GET")
	router.Handle("/odoo_connect", g.metrics.instrument("/odoo_connect", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		g.connect(w, r)
	}))).Methods(http.MethodOptions, http.MethodGet)
}

// connect authenticates the session and issues a new API key for it. Any previous
// key of the identity stops working. Failures do not reveal which part failed.
func (g *Gateway) connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := g.sessions.Authenticate(ctx, r.Header.Get(headerDatabase), r.Header.Get(headerLogin), r.Header.Get(headerPassword))
	if err != nil {
		g.fail(w, r, newError(WrongCredentials, err))
		return
	}
	ctx, rlog := logger.ContextWithLoggerIdentity(ctx, identity.Login)

	key, err := g.credentials.IssueAPIKey(ctx, identity.Login)
	if err != nil {
		g.fail(w, r, newError(WrongCredentials, err))
		return
	}
	rlog.Infoln("issued api key")
	g.metrics.observeDispatch(r, outcomeOK)
	writeJSON(w, r, http.StatusOK, ConnectResponse{
		Status:          "auth successful",
		UserDisplayName: identity.Name,
		APIKey:          key,
	})
}
