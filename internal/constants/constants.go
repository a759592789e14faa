package constants

const (
	// JobName appears verbatim in notification messages and run records.
	JobName = "Filings Notebook Report Job"

	// MasterRef is the git ref whose pushes deploy to the default environment.
	MasterRef = "refs/heads/master"

	// DefaultEnvironment is the tag used for pushes to master and as the
	// default for manual dispatch.
	DefaultEnvironment = "dev"
)
