package connect

import (
	"context"
	"sync"

	crefer "github.com/pip-services3-go/pip-services3-commons-go/refer"
	clog "github.com/pip-services3-go/pip-services3-components-go/log"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"golang.org/x/sync/singleflight"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

/*
MongoDbConnectionRegistry maintains a process-wide mapping from endpoint key to
driver client so that multiple callers against the same endpoint share one
connection.

Clients are created lazily on the first operation against a new endpoint and
retained until Close. Concurrent first requests for the same endpoint coalesce
into a single connect attempt.
*/
type MongoDbConnectionRegistry struct {
	// The logger.
	Logger *clog.CompositeLogger

	mu      sync.Mutex
	clients map[string]*mongodrv.Client
	flight  singleflight.Group
}

var sharedRegistry = NewMongoDbConnectionRegistry()

// NewMongoDbConnectionRegistry creates an empty registry.
func NewMongoDbConnectionRegistry() *MongoDbConnectionRegistry {
	return &MongoDbConnectionRegistry{
		Logger:  clog.NewCompositeLogger(),
		clients: make(map[string]*mongodrv.Client),
	}
}

// SharedRegistry returns the process-wide registry instance.
func SharedRegistry() *MongoDbConnectionRegistry {
	return sharedRegistry
}

// SetReferences sets references to dependent components.
func (c *MongoDbConnectionRegistry) SetReferences(references crefer.IReferences) {
	c.Logger.SetReferences(references)
}

// Client returns the cached client for the settings endpoint, connecting on
// first use. Connect failures surface as MONGODB_INTERNAL_ERROR with the
// driver error chained; caller cancellation surfaces as the context error.
func (c *MongoDbConnectionRegistry) Client(ctx context.Context, settings *MongoDbSettings) (*mongodrv.Client, error) {
	key := settings.EndpointKey()

	c.mu.Lock()
	client, ok := c.clients[key]
	c.mu.Unlock()
	if ok {
		return client, nil
	}

	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		client, ok := c.clients[key]
		c.mu.Unlock()
		if ok {
			return client, nil
		}

		c.Logger.Debug("", "Connecting to mongodb at %s", settings.Host)
		client, cerr := mongodrv.Connect(ctx, settings.ClientOptions())
		if cerr != nil {
			return nil, merr.WrapInternal(cerr, "Connection to mongodb failed")
		}
		if perr := client.Ping(ctx, nil); perr != nil {
			_ = client.Disconnect(ctx)
			return nil, merr.WrapInternal(perr, "Connection to mongodb failed")
		}

		c.mu.Lock()
		c.clients[key] = client
		c.mu.Unlock()
		c.Logger.Debug("", "Connected to mongodb at %s", settings.Host)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongodrv.Client), nil
}

// Database resolves a database handle, preferring the explicit name over the
// one carried by the settings or their connection string.
func (c *MongoDbConnectionRegistry) Database(ctx context.Context, settings *MongoDbSettings, database string) (*mongodrv.Database, error) {
	client, err := c.Client(ctx, settings)
	if err != nil {
		return nil, err
	}

	name := database
	if name == "" {
		name = settings.Database
	}
	if name == "" && settings.ConnectionString != "" {
		if cs, perr := connstring.Parse(settings.ConnectionString); perr == nil {
			name = cs.Database
		}
	}
	if name == "" {
		return nil, merr.New(merr.RequiredSetting, "Setting database is required")
	}
	return client.Database(name), nil
}

// Collection resolves a collection handle for the given database and table.
func (c *MongoDbConnectionRegistry) Collection(ctx context.Context, settings *MongoDbSettings, database string, table string) (*mongodrv.Collection, error) {
	db, err := c.Database(ctx, settings, database)
	if err != nil {
		return nil, err
	}
	return db.Collection(table), nil
}

// Close drains and disconnects all cached clients. Intended for a process-end
// hook; subsequent operations reconnect lazily.
func (c *MongoDbConnectionRegistry) Close(ctx context.Context) error {
	c.mu.Lock()
	clients := c.clients
	c.clients = make(map[string]*mongodrv.Client)
	c.mu.Unlock()

	var firstErr error
	for key, client := range clients {
		if err := client.Disconnect(ctx); err != nil {
			if firstErr == nil {
				firstErr = merr.WrapInternal(err, "Disconnect from mongodb failed")
			}
			continue
		}
		c.Logger.Debug("", "Disconnected from mongodb at %s", key)
	}
	return firstErr
}

// CloseConnections closes the shared registry.
func CloseConnections(ctx context.Context) error {
	return sharedRegistry.Close(ctx)
}
