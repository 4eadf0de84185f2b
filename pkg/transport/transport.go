package transport

import (
	"github.com/richard-senior/podds/pkg/protocol"
)

// Transport defines the interface for communication methods
type Transport interface {
	// ReadRequest blocks for the next request. A malformed message comes
	// back as a *protocol.JsonRpcError so the server can answer it.
	ReadRequest() (*protocol.JsonRpcRequest, error)
	WriteResponse(*protocol.JsonRpcResponse) error
}
