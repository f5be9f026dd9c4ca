package api

import (
	"golang.org/x/time/rate"

	"github.com/okian/riichi/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator enables the write routes behind bearer token checks.
// Without one the write routes answer 404.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithWriteLimit sets the token bucket shared by all write routes.
func WithWriteLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		if burst > 0 {
			s.writeLimiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
