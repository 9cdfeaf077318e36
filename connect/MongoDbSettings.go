package connect

import (
	"fmt"
	"strings"

	cconf "github.com/pip-services3-go/pip-services3-commons-go/config"
	"go.mongodb.org/mongo-driver/bson"
	mongoopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	merr "github.com/pip-services3-go/pip-services3-mongoquery-go/errors"
)

const (
	DefaultProtocol = "mongodb://"
	DefaultHost     = "localhost"
	DefaultPort     = 27017
	DefaultLimit    = 500
)

/*
MongoDbSettings holds validated MongoDB connection parameters and composes
connection URIs from them.

Either the individual fields or a single pre-composed ConnectionString is
accepted. Settings are immutable once created; build them through
NewMongoDbSettingsFromValue or NewMongoDbSettingsFromConfig.

Configuration parameters (when created from ConfigParams):

- connection:
  - protocol:   connection protocol (default: mongodb://)
  - host:       host name or IP address (default: localhost)
  - port:       port number (default: 27017)
  - database:   database name (required unless uri is set)
  - uri:        pre-composed connection string with all parameters in it
- credential:
  - username:   (optional) user name
  - password:   (optional) user password
- options:
  - limit:      (optional) default page size (default: 500)
*/
type MongoDbSettings struct {
	Protocol         string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	Limit            int64
	ConnectionString string
}

// NewMongoDbSettingsFromValue validates an arbitrary caller-provided value and
// returns populated settings with defaults applied.
func NewMongoDbSettingsFromValue(value interface{}) (*MongoDbSettings, error) {
	config, ok := asStringMap(value)
	if !ok {
		return nil, merr.New(merr.InvalidConfig, "Config is not an object")
	}

	settings := defaultSettings()

	for key, raw := range config {
		var err error
		switch key {
		case "protocol":
			settings.Protocol, err = stringSetting(key, raw)
		case "host":
			settings.Host, err = stringSetting(key, raw)
		case "user":
			settings.User, err = stringSetting(key, raw)
		case "password":
			settings.Password, err = stringSetting(key, raw)
		case "database":
			settings.Database, err = stringSetting(key, raw)
		case "connectionString":
			settings.ConnectionString, err = stringSetting(key, raw)
		case "port":
			var port int64
			port, err = integerSetting(key, raw)
			settings.Port = int(port)
		case "limit":
			settings.Limit, err = integerSetting(key, raw)
		}
		if err != nil {
			return nil, err
		}
	}

	return finishSettings(settings)
}

// NewMongoDbSettingsFromConfig builds settings from component configuration
// parameters using the connection/credential/options sections.
func NewMongoDbSettingsFromConfig(config *cconf.ConfigParams) (*MongoDbSettings, error) {
	if config == nil {
		return nil, merr.New(merr.InvalidConfig, "Config is not set")
	}

	settings := defaultSettings()
	settings.Protocol = config.GetAsStringWithDefault("connection.protocol", settings.Protocol)
	settings.Host = config.GetAsStringWithDefault("connection.host", settings.Host)
	settings.User = config.GetAsString("credential.username")
	settings.Password = config.GetAsString("credential.password")
	settings.Database = config.GetAsString("connection.database")
	settings.ConnectionString = config.GetAsString("connection.uri")

	if raw := config.GetAsString("connection.port"); raw != "" {
		port := config.GetAsInteger("connection.port")
		if port == 0 {
			return nil, merr.Newf(merr.InvalidSetting, "Setting port is not a number: %s", raw)
		}
		settings.Port = port
	}
	if raw := config.GetAsString("options.limit"); raw != "" {
		limit := config.GetAsLong("options.limit")
		if limit == 0 {
			return nil, merr.Newf(merr.InvalidSetting, "Setting limit is not a number: %s", raw)
		}
		settings.Limit = limit
	}

	return finishSettings(settings)
}

func asStringMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	case bson.M:
		return v, true
	}
	return nil, false
}

func defaultSettings() *MongoDbSettings {
	return &MongoDbSettings{
		Protocol: DefaultProtocol,
		Host:     DefaultHost,
		Port:     DefaultPort,
		Limit:    DefaultLimit,
	}
}

func finishSettings(settings *MongoDbSettings) (*MongoDbSettings, error) {
	if settings.Database == "" && settings.ConnectionString == "" {
		return nil, merr.New(merr.RequiredSetting, "Setting database is required")
	}
	settings.Host = normalizeHost(settings.Host, settings.Protocol)
	return settings, nil
}

func stringSetting(key string, raw interface{}) (string, error) {
	value, ok := raw.(string)
	if !ok {
		return "", merr.Newf(merr.InvalidSetting, "Setting %s is not a string", key)
	}
	return value, nil
}

func integerSetting(key string, raw interface{}) (int64, error) {
	switch value := raw.(type) {
	case int:
		return int64(value), nil
	case int32:
		return int64(value), nil
	case int64:
		return value, nil
	case float64:
		return int64(value), nil
	}
	return 0, merr.Newf(merr.InvalidSetting, "Setting %s is not a number", key)
}

// normalizeHost strips a duplicated protocol prefix, removes a w=majority
// query parameter and trims dangling separators left over from the removal.
func normalizeHost(host string, protocol string) string {
	for _, prefix := range []string{protocol, "mongodb+srv://", "mongodb://"} {
		if prefix != "" && strings.HasPrefix(host, prefix) {
			host = host[len(prefix):]
			break
		}
	}
	host = strings.Replace(host, "w=majority", "", 1)
	host = strings.ReplaceAll(host, "?&", "?")
	host = strings.ReplaceAll(host, "&&", "&")
	return strings.TrimRight(host, "?&")
}

// EndpointKey identifies the endpoint this settings value connects to.
// Settings with equal keys share one client in the connection registry.
func (c *MongoDbSettings) EndpointKey() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf("%s%s%s:%d", c.Protocol, c.authPrefix(), c.Host, c.Port)
}

// ComposeURI returns the connection string when one was provided, otherwise
// assembles a URI from the individual fields. Query parameters carried on the
// host are preserved.
func (c *MongoDbSettings) ComposeURI() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}

	base := c.Host
	params := ""
	if pos := strings.Index(base, "?"); pos >= 0 {
		params = base[pos+1:]
		base = base[:pos]
	}
	base = strings.TrimRight(base, "/")

	port := ""
	if c.Port > 0 && c.Protocol != "mongodb+srv://" && !strings.Contains(base, ":") {
		port = fmt.Sprintf(":%d", c.Port)
	}

	uri := c.Protocol + c.authPrefix() + base + port + "/" + c.Database
	if params != "" {
		uri += "?" + params
	}
	return uri
}

func (c *MongoDbSettings) authPrefix() string {
	if c.User == "" {
		return ""
	}
	if c.Password == "" {
		return c.User + "@"
	}
	return c.User + ":" + c.Password + "@"
}

// ClientOptions composes driver client options with the resolved URI and the
// write concern used for all operations.
func (c *MongoDbSettings) ClientOptions() *mongoopt.ClientOptions {
	return mongoopt.Client().
		ApplyURI(c.ComposeURI()).
		SetWriteConcern(writeconcern.W1())
}
