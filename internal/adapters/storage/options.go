package storage

const (
	defaultSQLitePath = "./critreview.db"
	defaultRedisAddr  = "localhost:6379"
	defaultKeyPrefix  = "critreview:"
)

type options struct {
	sqlitePath string
	redisAddr  string
	redisDB    int
	keyPrefix  string
}

// Option applies a configuration option to New.
type Option func(*options)

// WithSQLitePath sets the database file used by the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.sqlitePath = path
		}
	}
}

// WithRedisAddr sets the server address used by the redis driver.
func WithRedisAddr(addr string) Option {
	return func(o *options) {
		if addr != "" {
			o.redisAddr = addr
		}
	}
}

// WithRedisDB selects the logical redis database.
func WithRedisDB(db int) Option {
	return func(o *options) {
		if db >= 0 {
			o.redisDB = db
		}
	}
}

// WithKeyPrefix namespaces keys in shared backends such as redis.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}
