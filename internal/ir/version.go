package ir

// Version constants for the data model and engine.
const (
	// IRVersion is the data model version stamped on logged passes.
	IRVersion = "1"

	// EngineVersion is the formdeps engine version.
	EngineVersion = "0.1.0"
)
