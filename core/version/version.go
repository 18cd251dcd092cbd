package version

const (
	// ResponseVersion is the canonical version for the terminal response schema.
	ResponseVersion = "v1.0.0"
	// CoreVersion tracks engine semantics; bump when outcome classification changes.
	CoreVersion = "v1.0.0"
)
