package manager

import "github.com/hpcmsg/muscore/wire"

// This file is the JSON wire shape for spec.md §6's four manager
// requests. mmpclient encodes these same structs to talk to
// manager/rpcserver.go's fasthttp handlers.

type RegisterInstanceRequest struct {
	Name      string     `json:"name"`
	Locations []string   `json:"locations"`
	Ports     []PortMeta `json:"ports"`
}

type RegisterInstanceResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type RequestPeersRequest struct {
	Name string `json:"name"`
}

type RequestPeersResponse struct {
	Status         string         `json:"status"`
	Conduits       []ConduitPair  `json:"conduits,omitempty"`
	PeerDimensions []PeerDims     `json:"peer_dimensions,omitempty"`
	PeerLocations  []PeerLocation `json:"peer_locations,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

type DeregisterInstanceRequest struct {
	Name string `json:"name"`
}

type DeregisterInstanceResponse struct {
	Status string `json:"status"`
}

type SubmitLogMessageRequest struct {
	InstanceID       string   `json:"instance_id"`
	Operator         string   `json:"operator"`
	TimestampISO8601 string   `json:"timestamp_iso8601"`
	Level            LogLevel `json:"level"`
	Text             string   `json:"text"`
}

type SubmitLogMessageResponse struct{}

type GetConfigurationResponse struct {
	Configuration *wire.Configuration `json:"configuration"`
}
