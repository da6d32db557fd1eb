package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/policy"
)

// AdminRole is the role an admin token must carry
const AdminRole = "admin"

type identityRequest struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (g *Gateway) handleAdmin(router *mux.Router) {
	table, ok := g.policies.(policy.AdminTable)
	if !ok {
		panic("admin routes require a policy table which can be modified")
	}

	logger.Default().Debugln("admin")
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(access.NewJwtMiddleware(&access.JwtMiddlewareBuilder{Secret: g.adminSecret}))
	admin.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
			if r.Method != http.MethodOptions && !access.AuthorizationFromContext(r.Context()).HasRole(AdminRole) {
				writeErrorMessage(w, r, http.StatusUnauthorized, "not authorized")
				return
			}
			h.ServeHTTP(w, r)
		})
	})

	logger.Default().Debugln("  handle route: /admin/policies GET")
	admin.Handle("/policies", g.metrics.instrument("/admin/policies", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, err := table.List(r.Context())
		if err != nil {
			g.fail(w, r, newError(AdapterError, err))
			return
		}
		writeJSON(w, r, http.StatusOK, entries)
	}))).Methods(http.MethodOptions, http.MethodGet)

	logger.Default().Debugln("  handle route: /admin/policies/{model} GET,PUT,DELETE")
	admin.Handle("/policies/{model}", g.metrics.instrument("/admin/policies/{model}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.policy(w, r, table)
	}))).Methods(http.MethodOptions, http.MethodGet, http.MethodPut, http.MethodDelete)

	logger.Default().Debugln("  handle route: /admin/identities POST")
	admin.Handle("/identities", g.metrics.instrument("/admin/identities", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.createIdentity(w, r)
	}))).Methods(http.MethodOptions, http.MethodPost)
}

func (g *Gateway) policy(w http.ResponseWriter, r *http.Request, table policy.AdminTable) {
	ctx := r.Context()
	rlog := logger.FromContext(ctx)
	model := mux.Vars(r)["model"]

	switch r.Method {
	case http.MethodGet:
		entry, err := table.Lookup(ctx, model)
		if err != nil {
			g.fail(w, r, newError(AdapterError, err))
			return
		}
		if entry == nil {
			writeErrorMessage(w, r, http.StatusNotFound, "no policy for "+model)
			return
		}
		writeJSON(w, r, http.StatusOK, entry)

	case http.MethodPut:
		if _, err := g.store.Resolve(model); err != nil {
			g.fail(w, r, newError(ModelNotFound, err))
			return
		}
		var entry policy.Entry
		if err := decodeBody(r, &entry); err != nil {
			g.fail(w, r, newError(InvalidPayload, err))
			return
		}
		entry.Model = model
		if err := table.Put(ctx, entry); err != nil {
			g.fail(w, r, newError(AdapterError, err))
			return
		}
		rlog.Infof("policy for %s set to %v", model, entry.Methods())
		writeJSON(w, r, http.StatusOK, entry)

	case http.MethodDelete:
		existed, err := table.Delete(ctx, model)
		if err != nil {
			g.fail(w, r, newError(AdapterError, err))
			return
		}
		if !existed {
			writeErrorMessage(w, r, http.StatusNotFound, "no policy for "+model)
			return
		}
		rlog.Infof("policy for %s deleted", model)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) createIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decodeBody(r, &req); err != nil {
		g.fail(w, r, newError(InvalidPayload, err))
		return
	}
	identity, err := access.CreateIdentity(r.Context(), g.credentials, req.Login, req.Name, req.Password)
	switch {
	case errors.Is(err, access.ErrInvalidIdentity):
		writeErrorMessage(w, r, http.StatusBadRequest, "login and password are required")
		return
	case errors.Is(err, access.ErrIdentityExists):
		writeErrorMessage(w, r, http.StatusConflict, "identity "+req.Login+" exists already")
		return
	case err != nil:
		g.fail(w, r, newError(AdapterError, err))
		return
	}
	logger.FromContext(r.Context()).Infoln("created identity", identity.Login)
	writeJSON(w, r, http.StatusCreated, identity)
}

// decodeBody decodes the JSON request body into v. A request without a body is an error.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is missing")
	}
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}
