package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	APIURL                      string // base URL of the participant API
	InstanceID                  string // instance the participant belongs to
	WaitForServices             string // duration to wait for the API to be ready
	LogLevel                    string // sets the log level (zap log level values)
	LogFormat                   string // text vs json
	StateStore                  string // where the state snapshot is kept (file, memory, nats)
	StateDir                    string // directory of the snapshot file
	StateKey                    string // storage key of the snapshot
	NatsURL                     string // NATS server for the nats state store
	NatsBucket                  string // key value bucket for the nats state store
	RenewThreshold              string // renew tokens expiring within this duration
	LockTimeout                 string // max wait for a running token renewal
	RequestTimeout              string // timeout for a single API request
	RememberMe                  bool   // persist the login
	CompletionURL               string // where to go after a flow completed with an account
	CompletionURLWithoutAccount string // where to go after a flow completed anonymously
)
