// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package gateway is the generic REST gateway in front of a record store.

Clients authenticate with an API key, issued by /odoo_connect, plus a login and password
for the session. /send_request maps the HTTP method, the entity type from the "model" query
parameter and the optional record identifier "Id" to a search, create, update or delete on
the store. Every entity type must have an access policy entry enabling the method.

A gateway is realized on a mux router:

	router := mux.NewRouter()
	gateway.New(&gateway.Builder{
		Store:       records,
		Credentials: credentials,
		Policies:    policies,
		Router:      router,
		Database:    "erp",
	})
*/
package gateway

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/modelgate/core"
	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/notify"
	"github.com/relabs-tech/modelgate/core/policy"
	"github.com/relabs-tech/modelgate/core/schema"
	"github.com/relabs-tech/modelgate/core/store"
)

// Gateway is the generic REST gateway
type Gateway struct {
	store       store.Store
	credentials access.Store
	sessions    access.Sessions
	policies    policy.Table
	validator   *schema.Validator
	schemaIDs   map[string]string
	notifier    core.Notifier
	router      *mux.Router
	metrics     *gatewayMetrics
	adminSecret []byte
	now         func() time.Time
}

// Builder is a builder helper for the Gateway
type Builder struct {
	// Store serves the entity types. This is mandatory.
	Store store.Store
	// Credentials validates API keys and session passwords. This is mandatory.
	Credentials access.Store
	// Policies is the access policy table. This is mandatory.
	Policies policy.Table
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Database is the name of the database clients log into. An empty db header
	// selects it as well.
	Database string
	// Validator validates payloads of entity types listed in SchemaIDs. This is optional.
	Validator *schema.Validator
	// SchemaIDs maps entity type names to schema ids of the Validator. This is optional.
	SchemaIDs map[string]string
	// Notifier receives a notification for every successful write. This is optional.
	Notifier core.Notifier
	// AdminSecret enables the /admin routes. Tokens must be HS256 signed with it and
	// carry the admin role. Policies must then be a policy.AdminTable. This is optional.
	AdminSecret []byte
	// Registry receives the gateway metrics. If nil, a new registry with process and
	// Go collectors is created. This is optional.
	Registry *prometheus.Registry
}

// New realizes the gateway and adds its routes to the router
func New(gb *Builder) *Gateway {
	if gb.Store == nil {
		panic("Store is missing")
	}
	if gb.Credentials == nil {
		panic("Credentials is missing")
	}
	if gb.Policies == nil {
		panic("Policies is missing")
	}
	if gb.Router == nil {
		panic("Router is missing")
	}
	for model, schemaID := range gb.SchemaIDs {
		if !gb.Validator.HasSchema(schemaID) {
			panic("schema " + schemaID + " of " + model + " is missing")
		}
	}

	notifier := gb.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	g := &Gateway{
		store:       gb.Store,
		credentials: gb.Credentials,
		sessions:    access.Sessions{Database: gb.Database, Authenticator: gb.Credentials},
		policies:    gb.Policies,
		validator:   gb.Validator,
		schemaIDs:   gb.SchemaIDs,
		notifier:    notifier,
		router:      gb.Router,
		metrics:     newMetrics(gb.Registry),
		adminSecret: gb.AdminSecret,
		now:         time.Now,
	}

	logger.AddRequestID(g.router)
	g.handleRecovery()
	g.handleCORS()
	g.handleUnmatched()

	g.handleConnect(g.router)
	g.handleSendRequest(g.router)
	g.handleDashboard(g.router)
	g.handleVersion(g.router)
	g.handleMetrics(g.router)
	if len(g.adminSecret) > 0 {
		g.handleAdmin(g.router)
	}
	return g
}

// Router returns the router of the gateway
func (g *Gateway) Router() *mux.Router {
	return g.router
}

// handleRecovery turns a panic in a handler into the error envelope with status 500
func (g *Gateway) handleRecovery() {
	g.router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.FromContext(r.Context()).
						WithField("stack", string(debug.Stack())).
						Errorln("Error 4700: recovered from panic:", err)
					writeErrorMessage(w, r, http.StatusInternalServerError, AdapterError.Message())
				}
			}()
			h.ServeHTTP(w, r)
		})
	})
}

// handleUnmatched answers unknown routes and unsupported methods with the error envelope,
// unless the router already has handlers for them.
func (g *Gateway) handleUnmatched() {
	if g.router.NotFoundHandler == nil {
		g.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeErrorMessage(w, r, http.StatusNotFound, "not found")
		})
	}
	if g.router.MethodNotAllowedHandler == nil {
		g.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeErrorMessage(w, r, http.StatusMethodNotAllowed, MethodNotAllowed.Message())
		})
	}
}

func (g *Gateway) handleCORS() {

	corsMiddleware := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, api-key, login, password, db")
			w.Header().Set("Access-Control-Expose-Headers", "*")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method, " (handled by CORS middleware)")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			h.ServeHTTP(w, r)
		})
	}
	g.router.Use(corsMiddleware)
}
