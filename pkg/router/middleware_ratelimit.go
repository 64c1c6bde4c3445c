package router

import (
	"context"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/ratelimit"
)

// RateLimitMiddleware short-circuits on limit breach (spec §4.7 #1),
// emitting a RATE_LIMIT_EXCEEDED system.error carrying retryAfterMs instead
// of calling next.
func RateLimitMiddleware(limiter *ratelimit.Limiter, responder Responder) Middleware {
	return func(ctx context.Context, conn *connection.Connection, msg protocol.Message, next Next) error {
		decision := limiter.Allow(conn.UserID, msg.Type)
		if !decision.Allowed {
			responder.SendRateLimitError(conn.ID, msg.ConversationID, decision.RetryAfterMs)
			return nil
		}
		return next()
	}
}
