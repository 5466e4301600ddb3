package types

// WSConfigResponse is sent in response to config/get.
// Contains the full configuration without runtime state.
type WSConfigResponse struct {
	Type   string `json:"type"` // "config"
	Config any    `json:"config"`
}

// WSStatusResponse is sent to clients with the full monitor status.
type WSStatusResponse struct {
	Type    string        `json:"type"`    // "status"
	Monitor MonitorStatus `json:"monitor"` // Detector session status
	Driver  string        `json:"driver"`  // Peripheral driver in use
	Version VersionInfo   `json:"version"` // Version information
}

// WSLevelsResponse is sent to clients with loudness meter updates.
type WSLevelsResponse struct {
	Type   string `json:"type"`   // "levels"
	Levels Levels `json:"levels"` // Current loudness levels
}
