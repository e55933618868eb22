package ports

// Metrics records protocol activity.
type Metrics interface {
	PhraseIssued(kind string)
	LoginAttempt(outcome string)
	Logout(scope LogoutScope, removed int)
	WaiterStarted(channel string)
	WaiterFinished(channel string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) PhraseIssued(string)     {}
func (NopMetrics) LoginAttempt(string)     {}
func (NopMetrics) Logout(LogoutScope, int) {}
func (NopMetrics) WaiterStarted(string)    {}
func (NopMetrics) WaiterFinished(string)   {}
