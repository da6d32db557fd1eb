// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to the gateway REST api

Instead of marshalling HTTP, the client can talk directly to the mux router. This makes
it perfectly suited for unit tests. Created with NewWithURL, the same client talks to a
remote gateway over HTTP.

	c := client.NewWithRouter(router).WithSession("admin", "secret")
	var conn client.Connection
	c.Connect("", &conn)
	orders := c.WithAPIKey(conn.APIKey).Model("sale.order").WithFields("name", "amount_total")
	status, err := orders.List(&result)
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	ctx        context.Context

	defaultHeaders map[string]string
}

// StatusError is returned when the gateway answers with an unexpected status code.
// Message is the message of the error envelope, or the raw body if there is none.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("handler returned status %d: %s", e.Status, e.Message)
}

// Connection is the response of a successful Connect
type Connection struct {
	Status          string `json:"status"`
	UserDisplayName string `json:"user_display_name"`
	APIKey          string `json:"api_key"`
}

// NewWithRouter creates a client to make pseudo-REST requests to the gateway,
// through the mux router
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the gateway
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	// we want a true copy to avoid side effects
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithAPIKey returns a new client which sends the api key
func (c Client) WithAPIKey(key string) Client {
	return c.WithHeader("api-key", key)
}

// WithSession returns a new client which sends login and password
func (c Client) WithSession(login, password string) Client {
	return c.WithHeader("login", login).WithHeader("password", password)
}

// WithToken returns a new client which sends the token as bearer authorization
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Connect logs the session into the database and receives a new api key.
// An empty database selects the default database of the gateway.
func (c Client) Connect(database string, result *Connection) (int, error) {
	header := map[string]string{}
	if database != "" {
		header["db"] = database
	}
	return c.Do(http.MethodGet, "/odoo_connect", header, nil, result, http.StatusOK)
}

// Dashboard reads the owner dashboard. result receives the complete response including
// the "status" and "data" envelope.
func (c Client) Dashboard(result interface{}) (int, error) {
	return c.RawGet("/api/owner_dashboard/summary", result)
}

// Model is an entity type accessed through /send_request
type Model struct {
	client Client
	name   string
	fields []string
}

// Model returns a new model client
func (c Client) Model(name string) Model {
	return Model{client: c, name: name}
}

// WithFields returns a new model client which requests the given fields
func (m Model) WithFields(fields ...string) Model {
	// we want a true copy to avoid side effects
	m.fields = append(append([]string{}, m.fields...), fields...)
	return m
}

// Path returns the request path for the record with the given id. An id of 0 addresses
// the whole entity type.
func (m Model) Path(id int64) string {
	parameters := url.Values{}
	parameters.Set("model", m.name)
	if id != 0 {
		parameters.Set("Id", strconv.FormatInt(id, 10))
	}
	if len(m.fields) > 0 {
		parameters.Set("fields", strings.Join(m.fields, ","))
	}
	return "/send_request?" + parameters.Encode()
}

// List reads all records. The response is {"records":[...]}.
//
// The operation corresponds to a GET request.
func (m Model) List(result interface{}) (int, error) {
	return m.client.RawGet(m.Path(0), result)
}

// Get reads one record. The response is {"records":[...]} with at most one record.
//
// The operation corresponds to a GET request.
func (m Model) Get(id int64, result interface{}) (int, error) {
	return m.client.RawGet(m.Path(id), result)
}

// Create creates a new record from values. The response is {"New resource":[...]}.
//
// The operation corresponds to a POST request.
func (m Model) Create(values interface{}, result interface{}) (int, error) {
	return m.client.RawPost(m.Path(0), map[string]interface{}{"values": values}, result)
}

// Update merges values into the record. The response is {"Updated resource":[...]}.
//
// The operation corresponds to a PUT request.
func (m Model) Update(id int64, values interface{}, result interface{}) (int, error) {
	return m.client.RawPut(m.Path(id), map[string]interface{}{"values": values}, result)
}

// Delete deletes the record. The response is {"Resource deleted":[...]}.
//
// The operation corresponds to a DELETE request.
func (m Model) Delete(id int64, result interface{}) (int, error) {
	return m.client.RawDelete(m.Path(id), result)
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can be a struct, a map or a raw *[]byte. result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	return c.Do(http.MethodGet, path, nil, nil, result, http.StatusOK)
}

// RawPost posts body to path. Expects http.StatusOK or http.StatusCreated as response.
//
// body can also be a []byte, result can also be raw *[]byte.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.Do(http.MethodPost, path, nil, body, result, http.StatusOK, http.StatusCreated)
}

// RawPut puts body to path. Expects http.StatusOK as response.
//
// body can also be a []byte, result can also be raw *[]byte.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	return c.Do(http.MethodPut, path, nil, body, result, http.StatusOK)
}

// RawDelete deletes path. Expects http.StatusOK or http.StatusNoContent as response.
func (c Client) RawDelete(path string, result interface{}) (int, error) {
	return c.Do(http.MethodDelete, path, nil, nil, result, http.StatusOK, http.StatusNoContent)
}

// Do sends a request with the default headers plus header. If the response status is not
// one of expected, a *StatusError is returned.
func (c Client) Do(method, path string, header map[string]string, body interface{}, result interface{}, expected ...int) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		j, ok := body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return http.StatusBadRequest, err
			}
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	for key, value := range header {
		r.Header.Set(key, value)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	var status int
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		status = rec.Code
		resBody = rec.Body.Bytes()
	} else {
		res, err := c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, err
		}
		defer res.Body.Close()
		status = res.StatusCode
		resBody, _ = io.ReadAll(res.Body)
	}

	ok := false
	for _, e := range expected {
		if status == e {
			ok = true
			break
		}
	}
	if !ok {
		return status, statusError(status, resBody)
	}

	if len(resBody) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = resBody
		} else {
			err = json.Unmarshal(resBody, result)
		}
	}
	return status, err
}

func statusError(status int, body []byte) *StatusError {
	var envelope struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status == "error" {
		return &StatusError{Status: status, Message: envelope.Message}
	}
	return &StatusError{Status: status, Message: strings.TrimSpace(string(body))}
}
