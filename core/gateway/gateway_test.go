package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/modelgate/core"
	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/client"
	"github.com/relabs-tech/modelgate/core/gateway"
	"github.com/relabs-tech/modelgate/core/policy"
	"github.com/relabs-tech/modelgate/core/store"
)

func init() {
	access.BcryptCost = bcrypt.MinCost
}

const (
	testLogin       = "admin"
	testPassword    = "admin-password"
	testDisplayName = "Mitchell Admin"
	testDatabase    = "erp"
)

var testAdminSecret = []byte("test-admin-secret")

type counters struct {
	searchRead int
	create     int
	update     int
	delete     int
	lookups    int
}

func (c *counters) storeCalls() int {
	return c.searchRead + c.create + c.update + c.delete
}

type countingStore struct {
	store.Store
	counts *counters
}

func (s countingStore) Resolve(name string) (store.Collection, error) {
	c, err := s.Store.Resolve(name)
	if err != nil {
		return nil, err
	}
	return countingCollection{Collection: c, counts: s.counts}, nil
}

type countingCollection struct {
	store.Collection
	counts *counters
}

func (c countingCollection) SearchRead(ctx context.Context, domain store.Domain, fields []string) ([]store.Record, error) {
	c.counts.searchRead++
	return c.Collection.SearchRead(ctx, domain, fields)
}

func (c countingCollection) Create(ctx context.Context, values store.Record) (int64, error) {
	c.counts.create++
	return c.Collection.Create(ctx, values)
}

func (c countingCollection) Update(ctx context.Context, id int64, values store.Record) error {
	c.counts.update++
	return c.Collection.Update(ctx, id, values)
}

func (c countingCollection) Delete(ctx context.Context, id int64) (store.Record, error) {
	c.counts.delete++
	return c.Collection.Delete(ctx, id)
}

type countingPolicies struct {
	policy.AdminTable
	counts *counters
}

func (p countingPolicies) Lookup(ctx context.Context, model string) (*policy.Entry, error) {
	p.counts.lookups++
	return p.AdminTable.Lookup(ctx, model)
}

type fixture struct {
	router      *mux.Router
	records     *store.MemoryStore
	policies    *policy.MemoryTable
	credentials *access.MemoryStore
	counts      *counters
	client      client.Client

	mutex         sync.Mutex
	notifications []core.Notification
	notifyErr     error
}

func (f *fixture) Notify(ctx context.Context, n core.Notification) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.notifications = append(f.notifications, n)
	return f.notifyErr
}

func (f *fixture) lastNotification(t *testing.T) core.Notification {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	require.NotEmpty(t, f.notifications)
	return f.notifications[len(f.notifications)-1]
}

func newFixture(t *testing.T, entries ...policy.Entry) *fixture {
	return newFixtureWithBuilder(t, &gateway.Builder{}, entries...)
}

// newFixtureWithBuilder completes gb with the fixture collaborators. Fields already set in
// gb are kept.
func newFixtureWithBuilder(t *testing.T, gb *gateway.Builder, entries ...policy.Entry) *fixture {
	ctx := context.Background()
	f := &fixture{
		router:      mux.NewRouter(),
		records:     store.NewMemoryStore("task", "sale.order", "res.partner"),
		policies:    policy.NewMemoryTable(entries...),
		credentials: access.NewMemoryStore(),
		counts:      &counters{},
	}
	_, err := access.CreateIdentity(ctx, f.credentials, testLogin, testDisplayName, testPassword)
	require.NoError(t, err)

	if gb.Store == nil {
		gb.Store = countingStore{Store: f.records, counts: f.counts}
	}
	gb.Credentials = f.credentials
	gb.Policies = countingPolicies{AdminTable: f.policies, counts: f.counts}
	gb.Router = f.router
	gb.Database = testDatabase
	gb.Notifier = f
	gb.AdminSecret = testAdminSecret
	gateway.New(gb)

	session := client.NewWithRouter(f.router).WithSession(testLogin, testPassword)
	var conn client.Connection
	_, err = session.Connect("", &conn)
	require.NoError(t, err)
	f.client = session.WithAPIKey(conn.APIKey)
	return f
}

func allowAll(model string) policy.Entry {
	return policy.Entry{Model: model, AllowGet: true, AllowPost: true, AllowPut: true, AllowDelete: true}
}

type recordsResponse struct {
	Records []map[string]interface{} `json:"records"`
}

func requireStatusError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr), "expected a status error, got %v", err)
	assert.Equal(t, status, statusErr.Status)
	assert.Equal(t, message, statusErr.Message)
}

func TestConnect(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	session := client.NewWithRouter(f.router).WithSession(testLogin, testPassword)

	var conn client.Connection
	status, err := session.Connect(testDatabase, &conn)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "auth successful", conn.Status)
	assert.Equal(t, testDisplayName, conn.UserDisplayName)
	assert.NotEmpty(t, conn.APIKey)

	// the key issued by the fixture has been replaced
	_, err = f.client.Model("task").WithFields("name").List(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "Invalid API Key")

	_, err = session.WithAPIKey(conn.APIKey).Model("task").WithFields("name").List(nil)
	assert.NoError(t, err)

	_, err = client.NewWithRouter(f.router).WithSession(testLogin, "wrong").Connect("", &conn)
	requireStatusError(t, err, http.StatusUnauthorized, "wrong login credentials")

	_, err = session.Connect("other", &conn)
	requireStatusError(t, err, http.StatusUnauthorized, "wrong login credentials")

	_, err = client.NewWithRouter(f.router).Connect("", &conn)
	requireStatusError(t, err, http.StatusUnauthorized, "wrong login credentials")
}

func TestModelNotConfigured(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	partners := f.client.Model("res.partner").WithFields("name")

	_, err := partners.List(nil)
	requireStatusError(t, err, http.StatusForbidden, "No Record Created for the model")
	_, err = partners.Create(map[string]interface{}{"name": "X"}, nil)
	requireStatusError(t, err, http.StatusForbidden, "No Record Created for the model")
	_, err = partners.Update(1, map[string]interface{}{"name": "X"}, nil)
	requireStatusError(t, err, http.StatusForbidden, "No Record Created for the model")
	_, err = partners.Delete(1, nil)
	requireStatusError(t, err, http.StatusForbidden, "No Record Created for the model")

	assert.Equal(t, 0, f.counts.storeCalls())
}

func TestMethodNotAllowed(t *testing.T) {
	entry := allowAll("sale.order")
	entry.AllowGet = false
	f := newFixture(t, entry)

	_, err := f.client.Model("sale.order").WithFields("name").List(nil)
	requireStatusError(t, err, http.StatusMethodNotAllowed, "Method Not Allowed")
	_, err = f.client.Model("sale.order").WithFields("name").Get(1, nil)
	requireStatusError(t, err, http.StatusMethodNotAllowed, "Method Not Allowed")
	assert.Equal(t, 0, f.counts.searchRead)
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	tasks := f.client.Model("task").WithFields("title")

	noKey := client.NewWithRouter(f.router).WithSession(testLogin, testPassword)
	_, err := noKey.Model("task").WithFields("title").List(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "No API Key Provided")

	_, err = noKey.WithAPIKey("mgk_nonsense").Model("task").WithFields("title").List(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "Invalid API Key")

	_, err = f.client.WithSession(testLogin, "wrong").Model("task").WithFields("title").List(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "Authentication failed")

	_, err = f.client.WithHeader("login", "").Model("task").WithFields("title").List(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "Authentication failed")

	_, err = tasks.List(nil)
	assert.NoError(t, err)
}

func TestModelNotFound(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	_, err := f.client.Model("nonexistent_type").WithFields("name").List(nil)
	requireStatusError(t, err, http.StatusNotFound, "Invalid model, check spelling or maybe the related module is not installed")
	assert.Equal(t, 0, f.counts.lookups)

	// with a valid model the policy is looked up
	_, err = f.client.Model("task").WithFields("title").List(nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.counts.lookups)
}

func TestKeyOfOtherIdentity(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	ctx := context.Background()
	_, err := access.CreateIdentity(ctx, f.credentials, "integration", "", "integration-password")
	require.NoError(t, err)
	key, err := f.credentials.IssueAPIKey(ctx, "integration")
	require.NoError(t, err)

	// the key authenticates the integration, the login the session
	_, err = f.client.WithAPIKey(key).Model("task").WithFields("title").List(nil)
	assert.NoError(t, err)
}

func TestTaskScenario(t *testing.T) {
	f := newFixture(t, policy.Entry{Model: "task", AllowGet: true, AllowPost: true})
	tasks := f.client.Model("task").WithFields("title", "done")

	var raw []byte
	_, err := tasks.List(&raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"records":[]}`, string(raw))

	_, err = tasks.Create(map[string]interface{}{"title": "demo", "done": false}, &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"New resource":[{"id":1,"title":"demo","done":false}]}`, string(raw))

	_, err = tasks.Update(1, map[string]interface{}{"done": true}, nil)
	requireStatusError(t, err, http.StatusMethodNotAllowed, "Method Not Allowed")
	assert.Equal(t, 0, f.counts.update)
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t, allowAll("res.partner"))
	partners := f.client.Model("res.partner").WithFields("name")

	var created map[string][]map[string]interface{}
	_, err := partners.Create(map[string]interface{}{"name": "X"}, &created)
	require.NoError(t, err)
	require.Len(t, created["New resource"], 1)
	id := int64(created["New resource"][0]["id"].(float64))

	var result recordsResponse
	_, err = partners.Get(id, &result)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "X", result.Records[0]["name"])
	assert.Equal(t, float64(id), result.Records[0]["id"])
}

func TestRepeatedGetIsByteIdentical(t *testing.T) {
	f := newFixture(t, allowAll("sale.order"))
	orders := f.client.Model("sale.order").WithFields("name", "amount_total", "order_line", "create_date")
	for i := 0; i < 3; i++ {
		_, err := orders.Create(map[string]interface{}{
			"name":         "S0000" + strconv.Itoa(i),
			"amount_total": 10.5 * float64(i),
			"order_line":   []interface{}{map[string]interface{}{"product": "chair", "qty": i}},
		}, nil)
		require.NoError(t, err)
	}

	var first, second []byte
	_, err := orders.List(&first)
	require.NoError(t, err)
	_, err = orders.List(&second)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = orders.Get(2, &first)
	require.NoError(t, err)
	_, err = orders.Get(2, &second)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDatesAreISO8601(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	tasks := f.client.Model("task").WithFields("title", "create_date", "write_date", "deadline")

	before := time.Now().UTC().Add(-time.Second)
	_, err := tasks.Create(map[string]interface{}{"title": "demo", "deadline": "2024-05-01"}, nil)
	require.NoError(t, err)

	var result recordsResponse
	_, err = tasks.Get(1, &result)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	for _, field := range []string{"create_date", "write_date"} {
		s, ok := result.Records[0][field].(string)
		require.True(t, ok, "%s must be a string", field)
		ts, err := time.Parse(time.RFC3339Nano, s)
		require.NoError(t, err)
		assert.True(t, ts.After(before))
		assert.Equal(t, time.UTC, ts.Location())
	}
	assert.Equal(t, "2024-05-01", result.Records[0]["deadline"])
}

func TestNoFieldsSelected(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	_, err := f.client.Model("task").List(nil)
	requireStatusError(t, err, http.StatusBadRequest, "No fields selected for the model")
	_, err = f.client.Model("task").WithFields(" ", "").List(nil)
	requireStatusError(t, err, http.StatusBadRequest, "No fields selected for the model")
	assert.Equal(t, 0, f.counts.searchRead)
}

func TestMalformedID(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	tasks := f.client.Model("task").WithFields("title")
	for _, title := range []string{"one", "two"} {
		_, err := tasks.Create(map[string]interface{}{"title": title}, nil)
		require.NoError(t, err)
	}

	var result recordsResponse
	_, err := f.client.RawGet("/send_request?model=task&fields=title&Id=abc", &result)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)

	_, err = f.client.RawGet("/send_request?model=task&fields=title&Id=0", &result)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, allowAll("sale.order"))
	orders := f.client.Model("sale.order").WithFields("name", "amount_total")

	_, err := orders.Create(map[string]interface{}{"name": "S00001", "amount_total": 5}, nil)
	require.NoError(t, err)

	var updated map[string][]map[string]interface{}
	_, err = orders.Update(1, map[string]interface{}{"amount_total": 7}, &updated)
	require.NoError(t, err)
	require.Len(t, updated["Updated resource"], 1)
	assert.Equal(t, "S00001", updated["Updated resource"][0]["name"])
	assert.Equal(t, float64(7), updated["Updated resource"][0]["amount_total"])

	_, err = orders.Update(0, map[string]interface{}{"amount_total": 7}, nil)
	requireStatusError(t, err, http.StatusBadRequest, "No ID Provided")

	_, err = orders.Update(99, map[string]interface{}{"amount_total": 7}, nil)
	requireStatusError(t, err, http.StatusNotFound, "Resource not found")

	_, err = f.client.RawPut(orders.Path(1), map[string]interface{}{"other": 1}, nil)
	requireStatusError(t, err, http.StatusBadRequest, "Invalid JSON Data: values object is missing")

	status, err := f.client.RawPut(orders.Path(1), []byte("{not json"), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Contains(t, statusErr.Message, "Invalid JSON Data: ")

	assert.Equal(t, 1, f.counts.update)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, allowAll("res.partner"))
	partners := f.client.Model("res.partner").WithFields("name")

	_, err := partners.Create(map[string]interface{}{"name": "Azure Interior"}, nil)
	require.NoError(t, err)

	_, err = partners.Delete(42, nil)
	requireStatusError(t, err, http.StatusNotFound, "Resource not found")
	assert.Equal(t, 0, f.counts.delete)

	_, err = partners.Delete(0, nil)
	requireStatusError(t, err, http.StatusBadRequest, "No ID Provided")

	var raw []byte
	_, err = partners.Delete(1, &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Resource deleted":[{"id":1,"display_name":"Azure Interior"}]}`, string(raw))
	assert.Equal(t, 1, f.counts.delete)

	var result recordsResponse
	_, err = partners.List(&result)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	tasks := f.client.Model("task").WithFields("title")

	_, err := tasks.Create(map[string]interface{}{"title": "demo"}, nil)
	require.NoError(t, err)
	n := f.lastNotification(t)
	assert.Equal(t, "task", n.Resource)
	assert.Equal(t, core.OperationCreate, n.Operation)
	assert.Equal(t, int64(1), n.ResourceID)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(n.Payload, &payload))
	assert.Equal(t, "demo", payload["title"])
	assert.IsType(t, "", payload["create_date"])

	_, err = tasks.Update(1, map[string]interface{}{"title": "renamed"}, nil)
	require.NoError(t, err)
	n = f.lastNotification(t)
	assert.Equal(t, core.OperationUpdate, n.Operation)
	require.NoError(t, json.Unmarshal(n.Payload, &payload))
	assert.Equal(t, "renamed", payload["title"])

	// a failing notifier does not fail the request
	f.notifyErr = errors.New("broker down")
	_, err = tasks.Delete(1, nil)
	require.NoError(t, err)
	n = f.lastNotification(t)
	assert.Equal(t, core.OperationDelete, n.Operation)
	assert.Equal(t, int64(1), n.ResourceID)

	f.mutex.Lock()
	assert.Len(t, f.notifications, 3)
	f.mutex.Unlock()
}

func TestSchemaValidation(t *testing.T) {
	config, err := gateway.ParseConfiguration([]byte(`{
		"entity_types": [{"name": "res.partner", "schema_id": "https://modelgate.dev/res.partner.json"}],
		"policies": [{"model": "res.partner", "allow_get": true, "allow_post": true, "allow_put": true}],
		"schemas": [{
			"$id": "https://modelgate.dev/res.partner.json",
			"type": "object",
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"email": {"type": "string"}
			},
			"required": ["name"]
		}]
	}`))
	require.NoError(t, err)
	validator, err := config.Validator()
	require.NoError(t, err)

	f := newFixtureWithBuilder(t, &gateway.Builder{Validator: validator, SchemaIDs: config.SchemaIDs()}, config.Policies...)
	partners := f.client.Model("res.partner").WithFields("name", "email")

	_, err = partners.Create(map[string]interface{}{"email": "deco@example.com"}, nil)
	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Contains(t, statusErr.Message, "Invalid JSON Data: the document is not valid")
	assert.Equal(t, 0, f.counts.create)

	_, err = partners.Create(map[string]interface{}{"name": "Deco Addict"}, nil)
	require.NoError(t, err)

	// the merged record is validated, so a partial update is fine
	_, err = partners.Update(1, map[string]interface{}{"email": "deco@example.com"}, nil)
	require.NoError(t, err)

	_, err = partners.Update(1, map[string]interface{}{"name": ""}, nil)
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, 1, f.counts.update)
}

type panicStore struct {
	store.Store
}

func (panicStore) Resolve(name string) (store.Collection, error) {
	panic("store exploded")
}

func TestRecovery(t *testing.T) {
	f := newFixtureWithBuilder(t, &gateway.Builder{Store: panicStore{Store: store.NewMemoryStore("task")}}, allowAll("task"))
	var raw []byte
	status, err := f.client.Model("task").WithFields("title").List(&raw)
	requireStatusError(t, err, http.StatusInternalServerError, "Error processing request")
	assert.Equal(t, http.StatusInternalServerError, status)

	// the gateway keeps serving
	_, err = client.NewWithRouter(f.router).RawGet("/version", nil)
	assert.NoError(t, err)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/send_request?model=task", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "api-key")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, 0, f.counts.lookups)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)

	_, err := client.NewWithRouter(f.router).Dashboard(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "No API Key Provided")

	_, err = client.NewWithRouter(f.router).WithAPIKey("mgk_nonsense").Dashboard(nil)
	requireStatusError(t, err, http.StatusUnauthorized, "Invalid API Key")

	orders, err := f.records.Resolve("sale.order")
	require.NoError(t, err)
	_, err = orders.Create(context.Background(), store.Record{"name": "S00001", "state": "sale", "amount_total": 120.0, "partner_id": 7})
	require.NoError(t, err)

	var result struct {
		Status string `json:"status"`
		Data   struct {
			KPI struct {
				TotalRevenue    float64 `json:"total_revenue"`
				TotalOrders     int     `json:"total_orders"`
				ActiveCustomers int     `json:"active_customers"`
			} `json:"kpi"`
			SalesTrend []interface{} `json:"sales_trend"`
		} `json:"data"`
	}
	// the session headers are not needed for the dashboard
	_, err = client.NewWithRouter(f.router).WithAPIKey(apiKeyOf(t, f)).Dashboard(&result)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 120.0, result.Data.KPI.TotalRevenue)
	assert.Equal(t, 1, result.Data.KPI.TotalOrders)
	assert.Equal(t, 1, result.Data.KPI.ActiveCustomers)
	assert.Len(t, result.Data.SalesTrend, 6)
}

// apiKeyOf issues a fresh key for the test identity
func apiKeyOf(t *testing.T, f *fixture) string {
	key, err := f.credentials.IssueAPIKey(context.Background(), testLogin)
	require.NoError(t, err)
	return key
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	c := client.NewWithRouter(f.router)

	var version struct {
		Version string `json:"version"`
	}
	_, err := c.RawGet("/version", &version)
	require.NoError(t, err)
	assert.Equal(t, "unset", version.Version)

	gateway.Version = "another version"
	defer func() { gateway.Version = "unset" }()
	_, err = c.RawGet("/version", &version)
	require.NoError(t, err)
	assert.Equal(t, "another version", version.Version)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	_, err := f.client.Model("task").WithFields("title").List(nil)
	require.NoError(t, err)
	_, err = f.client.Model("task").List(nil)
	require.Error(t, err)

	var raw []byte
	_, err = client.NewWithRouter(f.router).RawGet("/metrics", &raw)
	require.NoError(t, err)
	metrics := string(raw)
	assert.Contains(t, metrics, `modelgate_dispatch_total{method="GET",model="task",outcome="ok",route="/send_request"} 1`)
	assert.Contains(t, metrics, `modelgate_dispatch_total{method="GET",model="task",outcome="no_fields_selected",route="/send_request"} 1`)
	assert.Contains(t, metrics, `modelgate_http_requests_total{code="200"`)
	assert.Contains(t, metrics, `modelgate_http_request_duration_seconds_bucket`)
	assert.Contains(t, metrics, `go_goroutines`)
}

func TestNew_PanicsWithoutCollaborators(t *testing.T) {
	assert.PanicsWithValue(t, "Store is missing", func() {
		gateway.New(&gateway.Builder{})
	})
	assert.PanicsWithValue(t, "Router is missing", func() {
		gateway.New(&gateway.Builder{
			Store:       store.NewMemoryStore(),
			Credentials: access.NewMemoryStore(),
			Policies:    policy.NewMemoryTable(),
		})
	})
}

type failingStore struct {
	store.Store
	err error
}

func (s failingStore) Resolve(name string) (store.Collection, error) {
	c, err := s.Store.Resolve(name)
	if err != nil {
		return nil, err
	}
	return failingCollection{Collection: c, err: s.err}, nil
}

type failingCollection struct {
	store.Collection
	err error
}

func (c failingCollection) SearchRead(ctx context.Context, domain store.Domain, fields []string) ([]store.Record, error) {
	return nil, c.err
}

func (c failingCollection) Create(ctx context.Context, values store.Record) (int64, error) {
	return 0, c.err
}

func TestAdapterError(t *testing.T) {
	f := newFixtureWithBuilder(t, &gateway.Builder{
		Store: failingStore{Store: store.NewMemoryStore("task"), err: errors.New("db down")},
	}, allowAll("task"))
	tasks := f.client.Model("task").WithFields("title")

	_, err := tasks.List(nil)
	requireStatusError(t, err, http.StatusInternalServerError, "Error processing request: db down")

	_, err = tasks.Get(1, nil)
	requireStatusError(t, err, http.StatusInternalServerError, "Error processing request: db down")

	_, err = tasks.Create(map[string]interface{}{"title": "demo"}, nil)
	requireStatusError(t, err, http.StatusInternalServerError, "Error processing request: db down")
	assert.Empty(t, f.notifications)
}

func TestMissingBody(t *testing.T) {
	f := newFixture(t, allowAll("task"))
	tasks := f.client.Model("task").WithFields("title")
	_, err := tasks.Create(map[string]interface{}{"title": "demo"}, nil)
	require.NoError(t, err)

	status, err := f.client.RawPut(tasks.Path(1), nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Contains(t, statusErr.Message, "Invalid JSON Data: ")

	// requests built without any body at all
	key := apiKeyOf(t, f)
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		r, err := http.NewRequest(method, tasks.Path(1), nil)
		require.NoError(t, err)
		require.Nil(t, r.Body)
		r.Header.Set("api-key", key)
		r.Header.Set("login", testLogin)
		r.Header.Set("password", testPassword)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.JSONEq(t, `{"status":"error","message":"Invalid JSON Data: values object is missing"}`, rec.Body.String(), method)
	}
	assert.Equal(t, 0, f.counts.update)
}

func TestUnmatchedRoutes(t *testing.T) {
	f := newFixture(t, allowAll("task"))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/send_request?model=task", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"error","message":"Method Not Allowed"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"not found"}`, rec.Body.String())
	assert.Equal(t, 0, f.counts.lookups)
}
