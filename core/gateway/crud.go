// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/modelgate/core"
	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/store"
)

// response keys of the CRUD handler
const (
	keyRecords  = "records"
	keyCreated  = "New resource"
	keyUpdated  = "Updated resource"
	keyDeleted  = "Resource deleted"
	maxBodySize = 8 << 20
)

type payload struct {
	Values map[string]interface{} `json:"values"`
}

// dispatch enforces the access policy of the entity type and runs the operation
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request, collection store.Collection, id int64) {
	entry, err := g.policies.Lookup(r.Context(), collection.Name())
	if err != nil {
		g.fail(w, r, newError(AdapterError, err))
		return
	}
	if entry == nil {
		g.fail(w, r, newError(ModelNotConfigured, nil))
		return
	}
	if !entry.Allows(r.Method) {
		g.fail(w, r, newError(MethodNotAllowed, nil))
		return
	}

	var (
		body map[string]interface{}
		e    *Error
	)
	operation, _ := core.OperationForMethod(r.Method, id != 0)
	switch operation {
	case core.OperationList, core.OperationRead:
		body, e = g.read(r, collection, id)
	case core.OperationCreate:
		body, e = g.create(r, collection)
	case core.OperationUpdate:
		body, e = g.update(r, collection, id)
	case core.OperationDelete:
		body, e = g.delete(r, collection, id)
	default:
		e = newError(MethodNotAllowed, nil)
	}
	if e != nil {
		g.fail(w, r, e)
		return
	}
	g.metrics.observeDispatch(r, outcomeOK)
	writeJSON(w, r, http.StatusOK, body)
}

func (g *Gateway) read(r *http.Request, collection store.Collection, id int64) (map[string]interface{}, *Error) {
	fields := store.ParseFields(r.URL.Query().Get(paramFields))
	if len(fields) == 0 {
		return nil, newError(NoFieldsSelected, nil)
	}
	var domain store.Domain
	if id != 0 {
		domain = store.IDEquals(id)
	}
	records, err := collection.SearchRead(r.Context(), domain, fields)
	if err != nil {
		return nil, newError(AdapterError, err)
	}
	return map[string]interface{}{keyRecords: serializeRecords(records)}, nil
}

func (g *Gateway) create(r *http.Request, collection store.Collection) (map[string]interface{}, *Error) {
	ctx := r.Context()
	values, e := readValues(r)
	if e != nil {
		return nil, e
	}
	if e := g.validate(collection.Name(), values); e != nil {
		return nil, e
	}

	id, err := collection.Create(ctx, values)
	if err != nil {
		return nil, newError(AdapterError, err)
	}
	logger.FromContext(ctx).Infof("created %s %d", collection.Name(), id)

	record, e := g.fetch(r, collection, id)
	if e != nil {
		return nil, e
	}
	g.notify(r, collection.Name(), core.OperationCreate, record)
	return g.respond(r, collection, keyCreated, record), nil
}

func (g *Gateway) update(r *http.Request, collection store.Collection, id int64) (map[string]interface{}, *Error) {
	ctx := r.Context()
	if id == 0 {
		return nil, newError(NoIdProvided, nil)
	}
	existing, e := g.fetch(r, collection, id)
	if e != nil {
		return nil, e
	}
	values, e := readValues(r)
	if e != nil {
		return nil, e
	}

	merged := existing.Copy()
	for k, v := range values {
		merged[k] = v
	}
	if e := g.validate(collection.Name(), merged); e != nil {
		return nil, e
	}

	err := collection.Update(ctx, id, values)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ResourceNotFound, err)
	}
	if err != nil {
		return nil, newError(AdapterError, err)
	}
	logger.FromContext(ctx).Infof("updated %s %d", collection.Name(), id)

	record, e := g.fetch(r, collection, id)
	if e != nil {
		return nil, e
	}
	g.notify(r, collection.Name(), core.OperationUpdate, record)
	return g.respond(r, collection, keyUpdated, record), nil
}

func (g *Gateway) delete(r *http.Request, collection store.Collection, id int64) (map[string]interface{}, *Error) {
	ctx := r.Context()
	if id == 0 {
		return nil, newError(NoIdProvided, nil)
	}
	existing, e := g.fetch(r, collection, id)
	if e != nil {
		return nil, e
	}
	deleted := store.Project(collection.Name(), existing, []string{store.FieldID, store.FieldDisplayName})

	snapshot, err := collection.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ResourceNotFound, err)
	}
	if err != nil {
		return nil, newError(AdapterError, err)
	}
	logger.FromContext(ctx).Infof("deleted %s %d", collection.Name(), id)

	g.notify(r, collection.Name(), core.OperationDelete, snapshot)
	return map[string]interface{}{keyDeleted: serializeRecords([]store.Record{deleted})}, nil
}

// fetch reads the complete record with the given id. A missing record is ResourceNotFound.
func (g *Gateway) fetch(r *http.Request, collection store.Collection, id int64) (store.Record, *Error) {
	records, err := collection.SearchRead(r.Context(), store.IDEquals(id), nil)
	if err != nil {
		return nil, newError(AdapterError, err)
	}
	if len(records) == 0 {
		return nil, newError(ResourceNotFound, nil)
	}
	return records[0], nil
}

// respond projects a written record to the requested fields. Without fields, the
// whole record is returned.
func (g *Gateway) respond(r *http.Request, collection store.Collection, key string, record store.Record) map[string]interface{} {
	fields := store.ParseFields(r.URL.Query().Get(paramFields))
	projected := store.Project(collection.Name(), record, fields)
	return map[string]interface{}{key: serializeRecords([]store.Record{projected})}
}

// validate checks values against the schema of the entity type, if it has one.
// Server maintained fields are not validated.
func (g *Gateway) validate(model string, values map[string]interface{}) *Error {
	schemaID, ok := g.schemaIDs[model]
	if !ok {
		return nil
	}
	document := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch k {
		case store.FieldID, store.FieldCreateDate, store.FieldWriteDate:
			continue
		}
		document[k] = serialize(v)
	}
	if err := g.validator.ValidateRecord(document, schemaID); err != nil {
		return newError(InvalidPayload, err)
	}
	return nil
}

// readValues decodes the "values" object of the request body
func readValues(r *http.Request) (store.Record, *Error) {
	if r.Body == nil {
		return nil, newError(InvalidPayload, errors.New("values object is missing"))
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, newError(InvalidPayload, err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, newError(InvalidPayload, err)
	}
	if p.Values == nil {
		return nil, newError(InvalidPayload, errors.New("values object is missing"))
	}
	return store.Record(p.Values), nil
}

// notify publishes a change notification. Failures are logged, the request still succeeds.
func (g *Gateway) notify(r *http.Request, model string, operation core.Operation, record store.Record) {
	rlog := logger.FromContext(r.Context())
	data, err := json.Marshal(serialize(record))
	if err != nil {
		rlog.WithError(err).Errorln("Error 4740: cannot serialize notification payload")
		return
	}
	notification := core.Notification{
		Resource:   model,
		Operation:  operation,
		ResourceID: record.ID(),
		Payload:    data,
		CreatedAt:  g.now().UTC(),
	}
	if err := g.notifier.Notify(r.Context(), notification); err != nil {
		rlog.WithError(err).Errorf("Error 4741: cannot publish %s notification for %s %d", operation, model, record.ID())
	}
}
