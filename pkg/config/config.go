// Package config loads the process-wide configuration table spec §6
// enumerates, following the teacher's `.env` + environment-variable
// loading idiom (`cmd/tarsy/main.go`'s `godotenv.Load` +
// `database.LoadConfigFromEnv`'s getEnv-with-validated-parse pattern)
// rather than its full YAML registry system — the registry loads
// deployment-defined agents/chains/MCP servers, a concern this spec's
// Non-goals place outside the core (spec §1's "configuration loading" is
// explicitly out of scope as a *component to build*, but the process
// still needs somewhere to read its own tunables from).
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// RateLimitRule is one message type's token-bucket capacity/window pair
// (spec §4.4).
type RateLimitRule struct {
	MaxRequests   int
	WindowSeconds int
}

// RateLimitConfig carries the four rate-limited inbound message types'
// bucket rules (spec §6 `rateLimit.<type>.{maxRequests,windowSeconds}`).
type RateLimitConfig struct {
	MessageSend    RateLimitRule
	ResponseSubmit RateLimitRule
	AuditEvents    RateLimitRule
	ToolResult     RateLimitRule
}

// AgentConfig holds the ReAct loop tunables (spec §6).
type AgentConfig struct {
	MaxIterations            int
	MaxToolCallsPerIteration int
	TimeoutSeconds           int
	StopOnError              bool
	RetryOnError             bool
	MaxRetries               int
}

// HeartbeatConfig holds the connection keepalive tunables (spec §6, §4.6).
type HeartbeatConfig struct {
	PingIntervalSeconds int
	MaxMissedPongs      int
}

// TokenExchangeConfig holds the token-exchange cache/breaker tunables
// (spec §6, §4.3).
type TokenExchangeConfig struct {
	CacheBufferSeconds        int
	CircuitBreakerThreshold   int
	CircuitBreakerRecoverySec int
}

// AccessConfig holds the access-resolver cache tunable (spec §6, §4.5).
type AccessConfig struct {
	ResolverCacheTTLSeconds int
}

// JWTConfig holds the optional issuer/audience hardening checks (spec §6).
type JWTConfig struct {
	VerifyIssuer    bool
	ExpectedIssuer  string
	VerifyAudience  bool
	ExpectedAudience []string
}

// Config is the process-wide configuration loaded once at startup.
type Config struct {
	HTTPPort string

	Agent         AgentConfig
	Heartbeat     HeartbeatConfig
	RateLimit     RateLimitConfig
	TokenExchange TokenExchangeConfig
	Access        AccessConfig
	JWT           JWTConfig
}

// Load reads `<dir>/.env` (if present) via godotenv, then assembles Config
// from environment variables, applying spec §6's defaults for anything
// unset. Mirrors cmd/tarsy/main.go's `godotenv.Load(envPath)` call. A
// missing or unreadable .env file is ignored here without a warning; Load
// only returns an error for a value that fails to parse.
func Load(dir string) (*Config, error) {
	envPath := filepath.Join(dir, ".env")
	_ = godotenv.Load(envPath)

	cfg := &Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
	}

	var err error
	if cfg.Agent, err = loadAgentConfig(); err != nil {
		return nil, err
	}
	if cfg.Heartbeat, err = loadHeartbeatConfig(); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = loadRateLimitConfig(); err != nil {
		return nil, err
	}
	if cfg.TokenExchange, err = loadTokenExchangeConfig(); err != nil {
		return nil, err
	}
	if cfg.Access, err = loadAccessConfig(); err != nil {
		return nil, err
	}
	if cfg.JWT, err = loadJWTConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAgentConfig() (AgentConfig, error) {
	maxIterations, err := getEnvInt("AGENT_MAX_ITERATIONS", 10)
	if err != nil {
		return AgentConfig{}, err
	}
	maxToolCalls, err := getEnvInt("AGENT_MAX_TOOL_CALLS_PER_ITERATION", 5)
	if err != nil {
		return AgentConfig{}, err
	}
	timeoutSeconds, err := getEnvInt("AGENT_TIMEOUT_SECONDS", 300)
	if err != nil {
		return AgentConfig{}, err
	}
	stopOnError, err := getEnvBool("AGENT_STOP_ON_ERROR", false)
	if err != nil {
		return AgentConfig{}, err
	}
	retryOnError, err := getEnvBool("AGENT_RETRY_ON_ERROR", true)
	if err != nil {
		return AgentConfig{}, err
	}
	maxRetries, err := getEnvInt("AGENT_MAX_RETRIES", 2)
	if err != nil {
		return AgentConfig{}, err
	}
	return AgentConfig{
		MaxIterations:            maxIterations,
		MaxToolCallsPerIteration: maxToolCalls,
		TimeoutSeconds:           timeoutSeconds,
		StopOnError:              stopOnError,
		RetryOnError:             retryOnError,
		MaxRetries:               maxRetries,
	}, nil
}

func loadHeartbeatConfig() (HeartbeatConfig, error) {
	pingInterval, err := getEnvInt("PING_INTERVAL_SECONDS", 30)
	if err != nil {
		return HeartbeatConfig{}, err
	}
	maxMissedPongs, err := getEnvInt("MAX_MISSED_PONGS", 2)
	if err != nil {
		return HeartbeatConfig{}, err
	}
	return HeartbeatConfig{PingIntervalSeconds: pingInterval, MaxMissedPongs: maxMissedPongs}, nil
}

func loadRateLimitRule(prefix string, defaultMax, defaultWindow int) (RateLimitRule, error) {
	maxRequests, err := getEnvInt(prefix+"_MAX_REQUESTS", defaultMax)
	if err != nil {
		return RateLimitRule{}, err
	}
	windowSeconds, err := getEnvInt(prefix+"_WINDOW_SECONDS", defaultWindow)
	if err != nil {
		return RateLimitRule{}, err
	}
	return RateLimitRule{MaxRequests: maxRequests, WindowSeconds: windowSeconds}, nil
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	messageSend, err := loadRateLimitRule("RATE_LIMIT_MESSAGE_SEND", 10, 60)
	if err != nil {
		return RateLimitConfig{}, err
	}
	responseSubmit, err := loadRateLimitRule("RATE_LIMIT_RESPONSE_SUBMIT", 30, 60)
	if err != nil {
		return RateLimitConfig{}, err
	}
	auditEvents, err := loadRateLimitRule("RATE_LIMIT_AUDIT_EVENTS", 10, 60)
	if err != nil {
		return RateLimitConfig{}, err
	}
	toolResult, err := loadRateLimitRule("RATE_LIMIT_TOOL_RESULT", 20, 60)
	if err != nil {
		return RateLimitConfig{}, err
	}
	return RateLimitConfig{
		MessageSend:    messageSend,
		ResponseSubmit: responseSubmit,
		AuditEvents:    auditEvents,
		ToolResult:     toolResult,
	}, nil
}

func loadTokenExchangeConfig() (TokenExchangeConfig, error) {
	bufferSeconds, err := getEnvInt("TOKEN_EXCHANGE_CACHE_BUFFER_SECONDS", 60)
	if err != nil {
		return TokenExchangeConfig{}, err
	}
	threshold, err := getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5)
	if err != nil {
		return TokenExchangeConfig{}, err
	}
	recoverySeconds, err := getEnvInt("CIRCUIT_BREAKER_RECOVERY_TIMEOUT_SECONDS", 30)
	if err != nil {
		return TokenExchangeConfig{}, err
	}
	return TokenExchangeConfig{
		CacheBufferSeconds:        bufferSeconds,
		CircuitBreakerThreshold:   threshold,
		CircuitBreakerRecoverySec: recoverySeconds,
	}, nil
}

func loadAccessConfig() (AccessConfig, error) {
	ttl, err := getEnvInt("ACCESS_RESOLVER_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return AccessConfig{}, err
	}
	return AccessConfig{ResolverCacheTTLSeconds: ttl}, nil
}

func loadJWTConfig() (JWTConfig, error) {
	verifyIssuer, err := getEnvBool("JWT_VERIFY_ISSUER", false)
	if err != nil {
		return JWTConfig{}, err
	}
	verifyAudience, err := getEnvBool("JWT_VERIFY_AUDIENCE", false)
	if err != nil {
		return JWTConfig{}, err
	}
	return JWTConfig{
		VerifyIssuer:     verifyIssuer,
		ExpectedIssuer:   getEnvOrDefault("JWT_EXPECTED_ISSUER", ""),
		VerifyAudience:   verifyAudience,
		ExpectedAudience: getEnvStringList("JWT_EXPECTED_AUDIENCE", nil),
	}, nil
}

// AgentTimeout returns the configured agent loop timeout as a Duration.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agent.TimeoutSeconds) * time.Second
}

// Validate mirrors database.Config.Validate's style of catching
// obviously-inconsistent settings before the rest of the process wires up
// against them.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("AGENT_MAX_ITERATIONS must be at least 1")
	}
	if c.Agent.MaxToolCallsPerIteration < 1 {
		return fmt.Errorf("AGENT_MAX_TOOL_CALLS_PER_ITERATION must be at least 1")
	}
	if c.Heartbeat.MaxMissedPongs < 1 {
		return fmt.Errorf("MAX_MISSED_PONGS must be at least 1")
	}
	if c.JWT.VerifyIssuer && c.JWT.ExpectedIssuer == "" {
		return fmt.Errorf("JWT_EXPECTED_ISSUER is required when JWT_VERIFY_ISSUER is enabled")
	}
	if c.JWT.VerifyAudience && len(c.JWT.ExpectedAudience) == 0 {
		return fmt.Errorf("JWT_EXPECTED_AUDIENCE is required when JWT_VERIFY_AUDIENCE is enabled")
	}
	return nil
}
