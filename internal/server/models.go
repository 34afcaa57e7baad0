package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// CreateRunRequest starts a detection run. Either query or describe must be
// set; describe routes the input through LLM plan generation.
type CreateRunRequest struct {
	Query     string   `json:"query"`
	Keywords  []string `json:"keywords,omitempty"`
	Target    string   `json:"target,omitempty"`
	Describe  string   `json:"describe,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
}

// CreateWatchRequest registers a monitored subject.
type CreateWatchRequest struct {
	Query    string   `json:"query"`
	Target   string   `json:"target,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	CronSpec string   `json:"cron_spec"`
}
