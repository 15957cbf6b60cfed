package ir

// Version constants for the staged representation and the tool.
const (
	// StageVersion is bumped whenever staged TSV columns or their text
	// escaping change.
	StageVersion = "2"

	// ToolVersion is the watchgraft release.
	ToolVersion = "0.3.0"
)
