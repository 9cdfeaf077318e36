package build

import (
	cref "github.com/pip-services3-go/pip-services3-commons-go/refer"
	cbuild "github.com/pip-services3-go/pip-services3-components-go/build"

	"github.com/pip-services3-go/pip-services3-mongoquery-go/connect"
	"github.com/pip-services3-go/pip-services3-mongoquery-go/persistence"
)

// DefaultMongoDbFactory creates MongoDb components by their descriptors.
// See MongoDbConnectionRegistry
// See MongoDbQueryEngine
type DefaultMongoDbFactory struct {
	cbuild.Factory
	Descriptor                   *cref.Descriptor
	ConnectionRegistryDescriptor *cref.Descriptor
	QueryEngineDescriptor        *cref.Descriptor
}

// NewDefaultMongoDbFactory creates a new instance of the factory.
func NewDefaultMongoDbFactory() *DefaultMongoDbFactory {
	factory := DefaultMongoDbFactory{}
	factory.Descriptor = cref.NewDescriptor("pip-services", "factory", "mongodb", "default", "1.0")
	factory.ConnectionRegistryDescriptor = cref.NewDescriptor("pip-services", "connection", "mongodb", "*", "1.0")
	factory.QueryEngineDescriptor = cref.NewDescriptor("pip-services", "persistence", "mongodb", "*", "1.0")
	factory.RegisterType(factory.ConnectionRegistryDescriptor, connect.NewMongoDbConnectionRegistry)
	factory.RegisterType(factory.QueryEngineDescriptor, persistence.NewMongoDbQueryEngine)
	return &factory
}
