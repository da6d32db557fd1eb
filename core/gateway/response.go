package gateway

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/modelgate/core/logger"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	data, err := json.MarshalWithOption(body, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4731: cannot marshal response")
		http.Error(w, "Error 4731", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Status: "error", Message: message})
}

// fail logs err at a level matching its kind and writes the error envelope
func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, e *Error) {
	rlog := logger.FromContext(r.Context()).WithField("kind", e.Kind.String())
	level := logrus.WarnLevel
	if e.Kind == AdapterError {
		level = logrus.ErrorLevel
	}
	if e.Err != nil {
		rlog = rlog.WithError(e.Err)
	}
	rlog.Log(level, "request failed: ", e.Kind.Message())
	g.metrics.observeDispatch(r, e.Kind.String())
	writeErrorMessage(w, r, e.Kind.Status(), e.Message())
}
