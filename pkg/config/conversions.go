package config

import (
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/access"
	"github.com/codeready-toolchain/agenthost/pkg/agent"
	"github.com/codeready-toolchain/agenthost/pkg/authn"
	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/ratelimit"
	"github.com/codeready-toolchain/agenthost/pkg/tokenexchange"
)

// AgentRunnerConfig converts into pkg/agent's Config shape.
func (c *Config) AgentRunnerConfig() agent.Config {
	return agent.Config{
		MaxIterations:            c.Agent.MaxIterations,
		MaxToolCallsPerIteration: c.Agent.MaxToolCallsPerIteration,
		Timeout:                  c.AgentTimeout(),
		StopOnError:              c.Agent.StopOnError,
		RetryOnError:             c.Agent.RetryOnError,
		MaxRetries:               c.Agent.MaxRetries,
	}
}

// ConnectionManagerConfig converts into pkg/connection's Config shape.
func (c *Config) ConnectionManagerConfig() connection.Config {
	return connection.Config{
		PingInterval:   time.Duration(c.Heartbeat.PingIntervalSeconds) * time.Second,
		MaxMissedPongs: c.Heartbeat.MaxMissedPongs,
	}
}

// RateLimiterConfig converts into pkg/ratelimit's Config shape.
func (c *Config) RateLimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		protocol.TypeDataMessageSend: {
			MaxRequests:   c.RateLimit.MessageSend.MaxRequests,
			WindowSeconds: c.RateLimit.MessageSend.WindowSeconds,
		},
		protocol.TypeDataResponseSubmit: {
			MaxRequests:   c.RateLimit.ResponseSubmit.MaxRequests,
			WindowSeconds: c.RateLimit.ResponseSubmit.WindowSeconds,
		},
		protocol.TypeDataAuditEvents: {
			MaxRequests:   c.RateLimit.AuditEvents.MaxRequests,
			WindowSeconds: c.RateLimit.AuditEvents.WindowSeconds,
		},
		protocol.TypeDataToolResult: {
			MaxRequests:   c.RateLimit.ToolResult.MaxRequests,
			WindowSeconds: c.RateLimit.ToolResult.WindowSeconds,
		},
	}
}

// TokenExchangeCacheConfig converts into pkg/tokenexchange's Config shape.
func (c *Config) TokenExchangeCacheConfig() tokenexchange.Config {
	return tokenexchange.Config{
		BufferSeconds: c.TokenExchange.CacheBufferSeconds,
		BreakerConfig: tokenexchange.BreakerConfig{
			FailureThreshold: c.TokenExchange.CircuitBreakerThreshold,
			RecoveryTimeout:  time.Duration(c.TokenExchange.CircuitBreakerRecoverySec) * time.Second,
		},
	}
}

// AccessResolverConfig converts into pkg/access's Config shape.
func (c *Config) AccessResolverConfig() access.Config {
	return access.Config{TTLSeconds: c.Access.ResolverCacheTTLSeconds}
}

// AuthnVerifierConfig converts into pkg/authn's Config shape. A disabled
// issuer/audience check leaves the corresponding field at its zero value,
// which pkg/authn treats as "do not enforce" (spec §6 "hardening | off").
func (c *Config) AuthnVerifierConfig() authn.Config {
	cfg := authn.Config{}
	if c.JWT.VerifyIssuer {
		cfg.ExpectedIssuer = c.JWT.ExpectedIssuer
	}
	if c.JWT.VerifyAudience {
		cfg.ExpectedAudience = c.JWT.ExpectedAudience
	}
	return cfg
}
