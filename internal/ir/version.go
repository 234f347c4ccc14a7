package ir

// Version constants for the run artifact schema and the engine.
const (
	// SchemaVersion is the run directory schema version.
	SchemaVersion = "1"

	// EngineVersion is the paperfig engine version.
	EngineVersion = "0.3.0"
)
