package types

// MonitorState is the detector state reported to the console.
type MonitorState string

const (
	// MonitorStopped indicates no detector session is running.
	MonitorStopped MonitorState = "stopped"
	// MonitorIdle indicates listening is paused.
	MonitorIdle MonitorState = "idle"
	// MonitorListening indicates audio is being classified.
	MonitorListening MonitorState = "listening"
	// MonitorAlarmActive indicates the alarm sequence is running.
	MonitorAlarmActive MonitorState = "alarm_active"
)

// Levels contains the most recent loudness measurements, each in [0,1].
type Levels struct {
	Noise float64 `json:"noise"` // Mean-square loudness of the noise window
	Clap  float64 `json:"clap"`  // Mean-square loudness of the clap window (0 when not evaluated)
	Peak  float64 `json:"peak"`  // Held peak sample ratio
}

// MonitorStatus summarizes the running detector session.
type MonitorStatus struct {
	State          MonitorState  `json:"state"`                  // Current detector state
	DisplayOn      bool          `json:"display_on"`             // LED matrix toggled on by double-clap
	AlarmActive    bool          `json:"alarm_active"`           // Alarm sequence running
	Uptime         string        `json:"uptime,omitzero"`        // Time since session start
	Claps          int           `json:"claps"`                  // Clap-band observations
	Toggles        int           `json:"toggles"`                // Confirmed double-claps
	Alarms         int           `json:"alarms"`                 // Alarm sequences run
	LastClap       string        `json:"last_clap"`              // Humanized time of last clap
	LastAlarm      string        `json:"last_alarm"`             // Humanized time of last alarm
	QueuedCommands int           `json:"queued_commands"`        // Commands waiting for the detector
	LastError      string        `json:"last_error,omitzero"`    // Most recent session error
	SessionEnded   bool          `json:"session_ended,omitzero"` // Session exited
	Update         *UpdateNotice `json:"update,omitempty"`       // Release check outcome for this build
}

// UpdateNotice reports whether a newer release of the monitor exists.
type UpdateNotice struct {
	Available bool   `json:"available"`        // A newer release is published
	Latest    string `json:"latest,omitempty"` // Newest published version
	Checked   string `json:"checked"`          // Humanized time of the last successful check
	Error     string `json:"error,omitempty"`  // Last check failure, cleared on success
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
