package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/relabs-tech/modelgate/core"
	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/csql"
	"github.com/relabs-tech/modelgate/core/gateway"
	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/notify"
	"github.com/relabs-tech/modelgate/core/policy"
	"github.com/relabs-tech/modelgate/core/registry"
	"github.com/relabs-tech/modelgate/core/schema"
	"github.com/relabs-tech/modelgate/core/store"
)

var configurationJSON string = `
{
	"entity_types": [
		{"name": "res.partner", "description": "customers and vendors"},
		{"name": "sale.order", "description": "sales orders"},
		{"name": "sale.order.line", "description": "sales order lines"},
		{"name": "account.move", "description": "invoices and bills"},
		{"name": "account.payment", "description": "payments"},
		{"name": "stock.picking", "description": "transfers"},
		{"name": "stock.quant", "description": "stock on hand"}
	],
	"policies": [
		{"model": "res.partner", "allow_get": true, "allow_post": true, "allow_put": true},
		{"model": "sale.order", "allow_get": true, "allow_post": true, "allow_put": true},
		{"model": "sale.order.line", "allow_get": true, "allow_post": true, "allow_put": true, "allow_delete": true}
	]
}
`

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker". Without POSTGRES, records and policies are kept in memory.
type Service struct {
	ListenAddress      string `env:"LISTEN_ADDRESS,default=:3000" description:"the address the gateway listens on"`
	LogLevel           string `env:"LOG_LEVEL,default=info" description:"the log level: debug, info, warn or error"`
	DatabaseName       string `env:"DATABASE_NAME,default=modelgate" description:"the database name clients log into with the db header"`
	ConfigFile         string `env:"CONFIG_FILE,optional" description:"path to the JSON gateway configuration. Default is a sales configuration"`
	Postgres           string `env:"POSTGRES,optional" description:"the connection string for the Postgres DB without password"`
	PostgresPassword   string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	PostgresSchema     string `env:"POSTGRES_SCHEMA,default=modelgate" description:"the schema of all gateway tables"`
	CredentialsBackend string `env:"CREDENTIALS_BACKEND,default=memory" description:"where identities and api keys are kept: memory, postgres or redis"`
	RedisAddress       string `env:"REDIS_ADDRESS,optional" description:"comma separated redis addresses for the redis credentials backend"`
	Notifier           string `env:"NOTIFIER,default=none" description:"where change notifications are sent: none, kafka or sqs"`
	KafkaBrokers       string `env:"KAFKA_BROKERS,optional" description:"comma separated kafka brokers"`
	KafkaTopic         string `env:"KAFKA_TOPIC,default=modelgate.changes" description:"the kafka topic for change notifications"`
	SQSQueueURL        string `env:"SQS_QUEUE_URL,optional" description:"the SQS queue for change notifications"`
	AWSRegion          string `env:"AWS_REGION,optional" description:"the AWS region of the SQS queue"`
	AdminJWTSecret     string `env:"ADMIN_JWT_SECRET,optional" description:"HMAC secret for admin tokens. Enables the /admin routes"`
	DemoLogin          string `env:"DEMO_LOGIN,optional" description:"login of an identity created at startup, together with DEMO_PASSWORD"`
	DemoPassword       string `env:"DEMO_PASSWORD,optional" description:"password of the DEMO_LOGIN identity"`
	SchemaDir          string `env:"SCHEMA_DIR,optional" description:"directory with JSON schemas and a refs/ subdirectory. Replaces the schemas of the configuration"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()
	ctx := context.Background()

	configData := []byte(configurationJSON)
	if service.ConfigFile != "" {
		var err error
		configData, err = os.ReadFile(service.ConfigFile)
		if err != nil {
			panic(fmt.Errorf("cannot read configuration: %w", err))
		}
	}
	config, err := gateway.ParseConfiguration(configData)
	if err != nil {
		panic(err)
	}
	var validator *schema.Validator
	if service.SchemaDir != "" {
		validator, err = schema.NewValidatorFromFS(os.DirFS(service.SchemaDir))
	} else {
		validator, err = config.Validator()
	}
	if err != nil {
		panic(err)
	}

	var db *csql.DB
	if service.Postgres != "" {
		db = csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.PostgresSchema)
		defer db.Close()
	}

	var records store.Store
	var policies policy.AdminTable
	if db != nil {
		records, err = store.NewPostgresStore(ctx, db, config.Models()...)
		if err != nil {
			panic(err)
		}
		policies = policy.NewRegistryTable(registry.New(db))
	} else {
		rlog.Warnln("no POSTGRES configured, records and policies are kept in memory")
		records = store.NewMemoryStore(config.Models()...)
		policies = policy.NewMemoryTable()
	}

	credentials, err := newCredentials(ctx, service, db)
	if err != nil {
		panic(err)
	}

	notifier, closeNotifier, err := newNotifier(ctx, service)
	if err != nil {
		panic(err)
	}
	defer closeNotifier()

	if err := config.Seed(ctx, policies, credentials); err != nil {
		panic(err)
	}
	if err := seedDemoIdentity(ctx, service, config, credentials); err != nil {
		panic(err)
	}

	router := mux.NewRouter()
	gateway.New(&gateway.Builder{
		Store:       records,
		Credentials: credentials,
		Policies:    policies,
		Router:      router,
		Database:    service.DatabaseName,
		Validator:   validator,
		SchemaIDs:   config.SchemaIDs(),
		Notifier:    notifier,
		AdminSecret: []byte(service.AdminJWTSecret),
	})

	rlog.Infoln("listen on", service.ListenAddress)
	if err := http.ListenAndServe(service.ListenAddress, router); err != nil {
		rlog.WithError(err).Errorln("server stopped")
	}
}

func newCredentials(ctx context.Context, service *Service, db *csql.DB) (access.Store, error) {
	switch service.CredentialsBackend {
	case "memory":
		return access.NewMemoryStore(), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("credentials backend postgres requires POSTGRES")
		}
		return access.NewPostgresStore(ctx, db)
	case "redis":
		if service.RedisAddress == "" {
			return nil, fmt.Errorf("credentials backend redis requires REDIS_ADDRESS")
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: splitList(service.RedisAddress)})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("cannot reach redis: %w", err)
		}
		return access.NewRedisStore(client, "modelgate:"), nil
	}
	return nil, fmt.Errorf("unknown credentials backend %s", service.CredentialsBackend)
}

func newNotifier(ctx context.Context, service *Service) (core.Notifier, func(), error) {
	switch service.Notifier {
	case "none", "":
		return notify.Discard, func() {}, nil
	case "kafka":
		k, err := notify.NewKafkaNotifier(notify.KafkaConfig{Brokers: splitList(service.KafkaBrokers), Topic: service.KafkaTopic})
		if err != nil {
			return nil, nil, err
		}
		return k, func() {
			if err := k.Close(); err != nil {
				logger.Default().WithError(err).Errorln("cannot close kafka writer")
			}
		}, nil
	case "sqs":
		s, err := notify.NewSQSNotifier(ctx, notify.SQSConfig{QueueURL: service.SQSQueueURL, Region: service.AWSRegion})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown notifier %s", service.Notifier)
}

// seedDemoIdentity creates the DEMO_LOGIN identity if it does not exist yet
func seedDemoIdentity(ctx context.Context, service *Service, config *gateway.Configuration, credentials access.Store) error {
	rlog := logger.Default()
	if service.DemoLogin == "" || service.DemoPassword == "" {
		if len(config.Identities) == 0 && service.CredentialsBackend == "memory" {
			rlog.Warnln("no identities configured, nobody can connect. Set DEMO_LOGIN and DEMO_PASSWORD or add identities to CONFIG_FILE")
		}
		return nil
	}
	_, err := access.CreateIdentity(ctx, credentials, service.DemoLogin, service.DemoLogin, service.DemoPassword)
	if errors.Is(err, access.ErrIdentityExists) {
		rlog.Debugln("demo identity", service.DemoLogin, "exists already")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot create demo identity: %w", err)
	}
	rlog.Infoln("created demo identity", service.DemoLogin)
	return nil
}

func splitList(s string) []string {
	var res []string
	for _, x := range strings.Split(s, ",") {
		if x = strings.TrimSpace(x); x != "" {
			res = append(res, x)
		}
	}
	return res
}
