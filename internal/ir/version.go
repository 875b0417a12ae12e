package ir

// Version constants for the session document and engine.
const (
	// DocumentVersion is the session document schema version. Bump it when
	// the serialized shape of holes, edges or revision steps changes.
	DocumentVersion = "1"

	// EngineVersion is the hollow engine version.
	EngineVersion = "0.1.0"
)
