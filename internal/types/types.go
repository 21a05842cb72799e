// Package types holds the websocket wire messages.
package types

import "github.com/DoyleJ11/scrim-review/internal/syncer"

const (
	MsgStartSync  = "StartSync"
	MsgSyncStatus = "SyncStatus"
	MsgError      = "Error"
)

type ClientMessage struct {
	Type string `json:"type"` // "StartSync"
}

type ServerMessage struct {
	Type    string         `json:"type"` // "SyncStatus" | "Error"
	Version int            `json:"version,omitempty"`
	Status  *syncer.Status `json:"status,omitempty"`
	Error   string         `json:"error,omitempty"`
}
