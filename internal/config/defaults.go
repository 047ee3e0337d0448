package config

import "time"

// Default values used when a field is omitted.
const (
	DefaultAPIBaseURL     = "http://127.0.0.1:5000"
	DefaultAPITimeout     = 15 * time.Second
	DefaultRetryInitial   = time.Second
	DefaultRetryMax       = 30 * time.Second
	DefaultBreakerFailing = 5
	DefaultBreakerOpen    = 30 * time.Second
	DefaultStoragePath    = "./stargazer-data"
	DefaultNATSBucket     = "stargazer"
	DefaultServerAddr     = ":8080"
	DefaultRefetchRate    = 2
	DefaultRefetchBurst   = 4
	DefaultServiceName    = "stargazer"

	DefaultLat  = 35.2271
	DefaultLon  = -80.8431
	DefaultElev = 0
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

var defaultAppliers = []DefaultApplier{
	apiDefaults{},
	storageDefaults{},
	sessionDefaults{},
	serverDefaults{},
	observabilityDefaults{},
}

func applyDefaults(cfg *Config) {
	for _, a := range defaultAppliers {
		a.ApplyDefaults(cfg)
	}
}

type apiDefaults struct{}

func (apiDefaults) Domain() string { return "api" }

func (apiDefaults) ApplyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIBaseURL
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = DefaultAPITimeout
	}

	r := &cfg.API.Retry
	if mode := NormalizeRetryBackoff(string(r.Mode)); mode != "" {
		r.Mode = mode
	} else {
		r.Mode = RetryBackoffLinear
	}
	if r.Initial <= 0 {
		r.Initial = DefaultRetryInitial
	}
	if r.Max <= 0 {
		r.Max = DefaultRetryMax
	}
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}

	if cfg.API.Breaker.MaxFailures == 0 {
		cfg.API.Breaker.MaxFailures = DefaultBreakerFailing
	}
	if cfg.API.Breaker.OpenTimeout <= 0 {
		cfg.API.Breaker.OpenTimeout = DefaultBreakerOpen
	}
}

type storageDefaults struct{}

func (storageDefaults) Domain() string { return "storage" }

func (storageDefaults) ApplyDefaults(cfg *Config) {
	// Unknown names are left as-is so validation can report them.
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFile
	} else if b := NormalizeStorageBackend(string(cfg.Storage.Backend)); b != "" {
		cfg.Storage.Backend = b
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = DefaultNATSBucket
	}
}

type sessionDefaults struct{}

func (sessionDefaults) Domain() string { return "session" }

func (sessionDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Session.DefaultLocation == nil {
		cfg.Session.DefaultLocation = &Location{Lat: DefaultLat, Lon: DefaultLon, Elev: DefaultElev}
	}
	if cfg.Refresh.Interval < 0 {
		cfg.Refresh.Interval = 0
	}
}

type serverDefaults struct{}

func (serverDefaults) Domain() string { return "server" }

func (serverDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.RefetchRate <= 0 {
		cfg.Server.RefetchRate = DefaultRefetchRate
	}
	if cfg.Server.RefetchBurst <= 0 {
		cfg.Server.RefetchBurst = DefaultRefetchBurst
	}
}

type observabilityDefaults struct{}

func (observabilityDefaults) Domain() string { return "observability" }

func (observabilityDefaults) ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "stdout"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
}
