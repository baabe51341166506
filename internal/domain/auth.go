package domain

// AuthContext identifies the verified caller of an operation. The boundary
// layer has already authenticated the caller; the core only checks roles.
// There is no global privileged owner — admin capability travels with the
// call.
type AuthContext struct {
	Caller string // verified agent/client identity
	Admin  bool   // trusted-operator capability
	System bool   // internal engine-to-engine calls (auction → registry)
}

// CanActFor reports whether this caller may act on behalf of the given agent.
func (a AuthContext) CanActFor(agentID string) bool {
	return a.Admin || a.Caller == agentID
}

// SystemAuth is the authorization context the auction engine uses when it
// drives registry transitions on a winner's behalf.
func SystemAuth(component string) AuthContext {
	return AuthContext{Caller: component, System: true}
}
