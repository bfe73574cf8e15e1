package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset. Tokens signed with it
// are only accepted outside production.
const DevSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Owner          string
	DBPath         string
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Environment    string
	TracingEnabled bool
}

var (
	TokenTTL       = 15 * time.Minute
	RequestTimeout = 30 * time.Second
	MaxBodyBytes   = int64(64 << 10)
)

// InMemory reports whether state lives only for the process lifetime.
func (s Server) InMemory() bool {
	return s.DBPath == ""
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (Server, error) {
	cfg := Server{
		Addr:           getenv("REGISTRY_ADDR"),
		Owner:          getenv("REGISTRY_OWNER"),
		DBPath:         getenv("REGISTRY_DB_PATH"),
		JWTSigningKey:  getenv("JWT_SIGNING_KEY"),
		JWTIssuer:      getenv("JWT_ISSUER"),
		JWTAudience:    getenv("JWT_AUDIENCE"),
		Environment:    getenv("ENVIRONMENT"),
		TokenTTL:       TokenTTL,
		RequestTimeout: RequestTimeout,
		MaxBodyBytes:   MaxBodyBytes,
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Environment == "" {
		cfg.Environment = "local"
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "edureg"
	}
	if cfg.JWTAudience == "" {
		cfg.JWTAudience = "edureg-api"
	}

	var errs []error
	if cfg.Owner == "" {
		errs = append(errs, errors.New("REGISTRY_OWNER is required"))
	}

	if v := getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("TOKEN_TTL: invalid duration %q", v))
		} else {
			cfg.TokenTTL = d
		}
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: invalid duration %q", v))
		} else {
			cfg.RequestTimeout = d
		}
	}
	if v := getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("MAX_BODY_BYTES: invalid size %q", v))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	if v := getenv("TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRACING_ENABLED: invalid bool %q", v))
		} else {
			cfg.TracingEnabled = b
		}
	}

	if cfg.JWTSigningKey == "" {
		if cfg.Environment == "production" {
			errs = append(errs, errors.New("JWT_SIGNING_KEY is required in production"))
		}
		cfg.JWTSigningKey = DevSigningKey
	}

	if err := errors.Join(errs...); err != nil {
		return Server{}, err
	}
	return cfg, nil
}
