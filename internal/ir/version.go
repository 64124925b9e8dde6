package ir

// Version constants for the data model and compiler.
const (
	// IRVersion is the typed SSA IR model version.
	IRVersion = "1"

	// CompilerVersion is the brutus compiler version.
	CompilerVersion = "0.1.0"
)
