package adapter

// Config mirrors the launch/attach configuration the spec enumerates.
// It is unmarshaled straight from the DAP launch/attach request
// arguments, matching the teacher's pattern of a concrete config type
// fed by json.Unmarshal.
type Config struct {
	Port         int      `json:"port,omitempty"`
	Address      string   `json:"address,omitempty"`
	URL          string   `json:"url,omitempty"`
	Timeout      int      `json:"timeout,omitempty"`
	WebsocketURL string   `json:"websocketUrl,omitempty"`

	SourceMaps       *bool    `json:"sourceMaps,omitempty"`
	SmartStep        bool     `json:"smartStep,omitempty"`
	ShowAsyncStacks  bool     `json:"showAsyncStacks,omitempty"`
	SkipFiles        []string `json:"skipFiles,omitempty"`
	SkipFileRegExps  []string `json:"skipFileRegExps,omitempty"`

	Trace                    any  `json:"trace,omitempty"`
	VerboseDiagnosticLogging bool `json:"verboseDiagnosticLogging,omitempty"`
	DiagnosticLogging        bool `json:"diagnosticLogging,omitempty"`
}

const defaultPort = 9229

func (c Config) sourceMapsEnabled() bool {
	if c.SourceMaps == nil {
		return true
	}
	return *c.SourceMaps
}

func (c Config) port() int {
	if c.Port == 0 {
		return defaultPort
	}
	return c.Port
}

func (c Config) verbose() bool {
	if s, ok := c.Trace.(string); ok {
		return s == "verbose"
	}
	if b, ok := c.Trace.(bool); ok {
		return b
	}
	return c.VerboseDiagnosticLogging || c.DiagnosticLogging
}
