package agent

import "github.com/codeready-toolchain/agenthost/pkg/protocol"

// Sender is the subset of C13's outbound surface the ReAct runner needs to
// translate its event stream into wire frames.
type Sender interface {
	SendContentChunk(connID, conversationID, messageID, content string, final bool)
	SendContentComplete(connID, conversationID, messageID string, role protocol.ContentRole, fullContent string)
	SendToolCall(connID, conversationID, callID, name, arguments string)
	SendToolResult(connID, conversationID, callID string, success bool, result any, errMsg string)
}
