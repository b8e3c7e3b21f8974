package config

// Output defaults.
const (
	DefaultSuffix = "_gen.go"
	DefaultHeader = "Code generated by reexport. DO NOT EDIT."
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Telemetry defaults.
const (
	DefaultSampleRatio  = 0.0
	DefaultOTLPInsecure = false
)

// DefaultScanExclude skips fixture and vendored trees during generate.
func DefaultScanExclude() []string {
	return []string{"**/testdata/**", "**/vendor/**"}
}
