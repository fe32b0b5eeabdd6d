package service

// Result is the uniform response envelope every endpoint returns.
// Expected failures set Done to false with a human-readable Message;
// payloads ride in Data and the authorization URL in URL.
type Result struct {
	Done    bool   `json:"done"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}
