package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/store"
)

// header and query parameter names of the data endpoint
const (
	headerAPIKey   = "api-key"
	headerLogin    = "login"
	headerPassword = "password"
	headerDatabase = "db"

	paramModel  = "model"
	paramID     = "Id"
	paramFields = "fields"
)

func (g *Gateway) handleSendRequest(router *mux.Router) {
	logger.Default().Debugln("send request")
	logger.Default().Debugln("  handle route: /send_request GET,POST,PUT,DELETE")
	router.Handle("/send_request", g.metrics.instrument("/send_request", handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		g.sendRequest(w, r)
	})))).Methods(http.MethodOptions, http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete)
}

// sendRequest authenticates the request, resolves the entity type and hands over to the CRUD handler
func (g *Gateway) sendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	outcome, err := access.Verify(ctx, g.credentials, r.Header.Get(headerAPIKey))
	if err != nil {
		g.fail(w, r, newError(AdapterError, err))
		return
	}

	session, err := g.sessions.Authenticate(ctx, "", r.Header.Get(headerLogin), r.Header.Get(headerPassword))
	if err != nil {
		g.fail(w, r, newError(SessionAuthenticationFailed, err))
		return
	}

	collection, err := g.store.Resolve(r.URL.Query().Get(paramModel))
	if errors.Is(err, store.ErrModelNotFound) {
		g.fail(w, r, newError(ModelNotFound, err))
		return
	}
	if err != nil {
		g.fail(w, r, newError(AdapterError, err))
		return
	}
	r = r.WithContext(contextWithModel(ctx, collection.Name()))

	switch o := outcome.(type) {
	case access.MissingKey:
		g.fail(w, r, newError(MissingApiKey, nil))
	case access.InvalidKey:
		g.fail(w, r, newError(InvalidApiKey, nil))
	case access.Authenticated:
		if o.Identity.Login != session.Login {
			logger.FromContext(ctx).Warnf("api key of %s used in session of %s", o.Identity.Login, session.Login)
		}
		ctx, _ = logger.ContextWithLoggerIdentity(r.Context(), o.Identity.Login)
		ctx = access.ContextWithIdentity(ctx, &o.Identity)
		g.dispatch(w, r.WithContext(ctx), collection, recordID(r))
	default:
		panic("unexpected authentication outcome")
	}
}

// recordID returns the record identifier of the request. It is 0 if the
// parameter is missing or not a positive number.
func recordID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get(paramID), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
