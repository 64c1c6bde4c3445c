// Command agenthost is the agent-host orchestrator process: it wires the
// WebSocket protocol router, the per-connection conversation orchestrator,
// the ReAct agent loop, and the cross-cutting services (JWT verification,
// token exchange, rate limiting, access resolution) described in spec §6,
// exactly as cmd/tarsy/main.go wires its own services, workers, and HTTP
// server.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/agenthost/pkg/access"
	"github.com/codeready-toolchain/agenthost/pkg/agent"
	"github.com/codeready-toolchain/agenthost/pkg/authn"
	"github.com/codeready-toolchain/agenthost/pkg/config"
	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/llm"
	openaiprovider "github.com/codeready-toolchain/agenthost/pkg/llm/openai"
	"github.com/codeready-toolchain/agenthost/pkg/mediator"
	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/ratelimit"
	"github.com/codeready-toolchain/agenthost/pkg/repository"
	"github.com/codeready-toolchain/agenthost/pkg/router"
	"github.com/codeready-toolchain/agenthost/pkg/sender"
	"github.com/codeready-toolchain/agenthost/pkg/template"
	"github.com/codeready-toolchain/agenthost/pkg/tokenexchange"
	"github.com/codeready-toolchain/agenthost/pkg/toolexec"
	"github.com/codeready-toolchain/agenthost/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "."), "Path to the directory holding .env")
	flag.Parse()

	log.Printf("starting %s", version.Full())

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	jwksURL := getEnv("JWKS_URL", "")
	if jwksURL == "" {
		log.Fatal("JWKS_URL is required")
	}
	keys := authn.NewKeySet(jwksURL, nil)
	verifier := authn.NewVerifier(keys, cfg.AuthnVerifierConfig())

	policies := repository.NewInMemoryPolicyStore()
	groupActivator := access.NewStaticGroupActivator()
	accessResolver := access.NewResolver(policies, groupActivator, cfg.AccessResolverConfig(), slog.Default())

	limiter := ratelimit.New(cfg.RateLimiterConfig())

	conversations := repository.NewInMemoryConversationRepository()
	templates := repository.NewInMemoryTemplateStore()
	definitions := repository.NewInMemoryAgentDefinitionRepository()
	observability := repository.NewInMemoryObservabilityStore()

	commands := mediator.New(conversations, observability)

	registry := orchestrator.NewRegistry()

	manager := connection.NewManager(verifier, nil, cfg.ConnectionManagerConfig())
	manager.SetGroupResolver(accessResolver)
	manager.SetConnectHook(connectHook(registry, manager, conversations, definitions))

	out := sender.New(manager)

	llmProvider := newLLMProvider()

	tokenCache := tokenexchange.New(cfg.TokenExchangeCacheConfig())
	tools := toolexec.New(
		toolexec.DefaultConfig(getEnv("TOOLS_BASE_URL", "")),
		newToolTokenSource(tokenCache),
	)

	agentRunner := agent.NewRunner(llmProvider, tools, out, cfg.AgentRunnerConfig(), nil)
	templateRunner := template.NewRunner(out, templates, llmProvider, commands)
	scorer := template.NewScorer(llmProvider)

	handlers := orchestrator.NewHandlers(registry, out, agentRunner, commands, templateRunner, scorer)
	handlers.SetAuditRecorder(commands)

	r := router.New(manager)
	r.Use(router.RateLimitMiddleware(limiter, manager))
	r.Use(router.StateGuardMiddleware(router.DefaultStateGuardConfig(), registry))
	r.Handle(protocol.TypeDataMessageSend, handlers.HandleMessageSend)
	r.Handle(protocol.TypeDataResponseSubmit, handlers.HandleResponseSubmit)
	r.Handle(protocol.TypeDataAuditEvents, handlers.HandleAuditEvents)
	r.Handle(protocol.TypeControlFlowStart, handlers.HandleFlow)
	r.Handle(protocol.TypeControlFlowPause, handlers.HandleFlow)
	r.Handle(protocol.TypeControlFlowResume, handlers.HandleFlow)
	r.Handle(protocol.TypeControlFlowCancel, handlers.HandleFlow)

	manager.SetInboundHandler(r)

	e := echo.New()
	e.GET("/health", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
	})
	e.GET("/ws", func(c *echo.Context) error {
		return manager.Accept(c.Response(), c.Request())
	})

	addr := ":" + cfg.HTTPPort
	log.Printf("agenthost listening on %s", addr)
	if err := (&http.Server{Addr: addr, Handler: e}).ListenAndServe(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// newLLMProvider builds the OpenAI-compatible llm.Provider from environment
// configuration. LLM_BASE_URL lets this point at a local/self-hosted
// OpenAI-compatible gateway instead of api.openai.com.
func newLLMProvider() llm.Provider {
	return openaiprovider.New(
		os.Getenv("LLM_API_KEY"),
		getEnv("LLM_BASE_URL", ""),
		getEnv("LLM_MODEL", "gpt-4o"),
	)
}

// connectHook bootstraps the orchestrator state for a newly authenticated
// connection: it loads (or lazily creates) the conversation, loads its agent
// definition (falling back to an unsaved record carrying only the id when
// none is stored), builds the in-memory ConversationContext, registers it, and
// subscribes the connection for broadcast fan-out (spec §3, §6 WS endpoint
// query parameters).
func connectHook(
	registry *orchestrator.Registry,
	manager *connection.Manager,
	conversations repository.ConversationRepository,
	definitions repository.AgentDefinitionRepository,
) connection.ConnectHook {
	return func(ctx context.Context, conn *connection.Connection, r *http.Request) error {
		conversationID := r.URL.Query().Get("conversationId")
		definitionID := r.URL.Query().Get("definitionId")
		if conversationID == "" || definitionID == "" {
			return &router.ValidationError{Err: os.ErrInvalid}
		}

		conv, err := conversations.Get(ctx, conversationID)
		if err != nil {
			conv = &repository.ConversationAggregate{
				ID:           conversationID,
				OwnerUserID:  conn.UserID,
				DefinitionID: definitionID,
				Status:       string(orchestrator.StateInitializing),
			}
			if err := conversations.Update(ctx, conv); err != nil {
				return err
			}
		}

		def, err := definitions.Get(ctx, definitionID)
		if err != nil {
			def = &repository.AgentDefinitionRecord{ID: definitionID}
		}

		convCtx := orchestrator.NewConversationContext(conversationID, conn.UserID, conv.IsProactive, conv.TemplateID != "")
		convCtx.DefinitionID = definitionID
		convCtx.DefinitionName = def.Name
		convCtx.TemplateID = conv.TemplateID

		if err := convCtx.Transition(orchestrator.StateReady); err != nil {
			return err
		}

		registry.Put(convCtx)
		manager.Subscribe(conn, conversationID)
		return nil
	}
}

// toolTokenSource adapts tokenexchange.Cache's (CacheKey, FetchFunc) shape
// to toolexec.TokenSource's per-tool-name lookup. Every tool shares one
// client-credentials-scoped token — spec §6 attaches no per-tool audience
// to the Tools service interface, so there is nothing to key on beyond the
// shared audience the cache already scopes by.
type toolTokenSource struct {
	cache    *tokenexchange.Cache
	fetch    tokenexchange.FetchFunc
	audience string
	clientID string
}

func newToolTokenSource(cache *tokenexchange.Cache) *toolTokenSource {
	audience := getEnv("TOOLS_TOKEN_AUDIENCE", "tools")
	clientID := os.Getenv("TOOLS_CLIENT_ID")
	fetch := tokenexchange.NewClientCredentialsFetch(tokenexchange.ClientCredentialsParams{
		TokenURL:     os.Getenv("TOOLS_TOKEN_URL"),
		ClientID:     clientID,
		ClientSecret: os.Getenv("TOOLS_CLIENT_SECRET"),
		Scopes:       []string{audience},
	}, &http.Client{Timeout: 10 * time.Second})

	return &toolTokenSource{cache: cache, fetch: fetch, audience: audience, clientID: clientID}
}

// TokenForTool implements toolexec.TokenSource.
func (t *toolTokenSource) TokenForTool(ctx context.Context, toolName string) (string, error) {
	tok, err := t.cache.GetOrFetch(ctx, tokenexchange.CacheKey{
		Grant:    tokenexchange.GrantClientCredentials,
		Audience: t.audience,
		ClientID: t.clientID,
	}, t.fetch)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}
