package auth

// Scopes understood by the step service.
const (
	ScopeStepsWrite = "steps:write"
	ScopeStepsRead  = "steps:read"
)
