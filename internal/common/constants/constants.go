package constants

const (
	Version     = "0.1.0"
	ServiceName = "sftpgate"

	// generated credential lengths
	UsernameLength = 10
	PasswordLength = 16

	// credential lifetime when the toggle request does not carry one
	DefaultExpirationDays = 30

	// seconds between supervisor reconcile passes
	ReconcileInterval = 10

	// seconds before an idle SSH connection is dropped
	SshIdleTimeout = 300
)
