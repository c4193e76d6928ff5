package constants

const (
	// Client naming constants
	MinNameLength   = 3
	MaxNameLength   = 20
	OwnerSeparator  = "_"
	DefaultRemark   = "Vneseti"
	DefaultFP       = "random"
	DefaultSPX      = "/"
	DefaultStatusAt = ":9090"

	// Traffic constants
	BytesInGB = 1024 * 1024 * 1024

	// Network constants
	DefaultTimeout        = 10 // seconds
	DefaultMaxConnections = 20
	RetryMaxAttempts      = 3
	RetryBaseDelay        = 500  // milliseconds
	RetryMaxDelay         = 5000 // milliseconds

	// Session constants
	SessionLifetime = 30 // minutes
	SessionRefresh  = 25 // minutes

	// Cache constants
	DefaultInboundsTTL   = 60 // seconds
	DefaultClientsTTL    = 60 // seconds
	OnlinesTTL           = 10 // seconds
	CacheCleanupInterval = 10 // minutes

	// Capacity constants
	DefaultMaxClients  = 15
	DefaultMaxInbounds = 15

	// Formatting constants
	MaxEmailDisplayLength = 17
	MaxEmailSuffixLength  = 14
	TimestampFormat       = "2006-01-02 15:04:05"
)
