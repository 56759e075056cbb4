package moonraker

import (
	"encoding/json"
	"fmt"
)

// request is a JSON-RPC 2.0 request or, when ID is zero, a notification.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// notification is an inbound server-initiated message.
type notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is a JSON-RPC error payload from the control plane.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("moonraker: rpc error %d: %s", e.Code, e.Message)
}

// NotificationHandler receives the raw params of a named notification.
type NotificationHandler func(params json.RawMessage)

// UnwrapParams peels Moonraker's one-element array wrapper off
// notification params. Params that are not wrapped pass through as-is.
func UnwrapParams(raw json.RawMessage) json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return raw
	}
	if len(list) == 0 {
		return raw
	}
	return list[0]
}
