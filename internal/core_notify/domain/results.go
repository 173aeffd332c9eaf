package domain

import "time"

// DispatchError is a structured failure carried as data in results, so multi and
// batch callers can keep processing siblings (failure is reported as data, not
// exclusively as errors).
type DispatchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DispatchError) Error() string {
	return e.Code + ": " + e.Message
}

// Error codes attached to DispatchError.
const (
	CodeAllProvidersFailed = "ALL_PROVIDERS_FAILED"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeDispatchPanic      = "DISPATCH_PANIC"
	CodeSuppressed         = "RECIPIENT_SUPPRESSED"
)

// ProviderAttempt records a single provider try within a fallback run. Attempts
// are strictly ordered; exactly one attempt is produced per provider tried.
type ProviderAttempt struct {
	Provider    string    `json:"provider"`
	Attempt     int       `json:"attempt"` // 1-based
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// ExecutionResult is the outcome of one fallback run over a provider chain.
type ExecutionResult struct {
	Success   bool              `json:"success"`
	Provider  string            `json:"provider,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	Attempts  []ProviderAttempt `json:"attempts"`
	Error     *DispatchError    `json:"error,omitempty"`
}

// ChannelResult is the outcome of one channel send within a fan-out.
type ChannelResult struct {
	Channel   Channel        `json:"channel"`
	Success   bool           `json:"success"`
	MessageID string         `json:"message_id,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Error     *DispatchError `json:"error,omitempty"`
}

// BroadcastResult aggregates one recipient's fan-out across channels.
type BroadcastResult struct {
	CorrelationID string          `json:"correlation_id"`
	Success       bool            `json:"success"`
	SuccessCount  int             `json:"success_count"`
	FailureCount  int             `json:"failure_count"`
	Results       []ChannelResult `json:"results"`
}

// UserChannelResult is one recipient's row in a multi-send matrix.
type UserChannelResult struct {
	Recipient    Recipient       `json:"recipient"`
	Results      []ChannelResult `json:"results"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	Timezone     string          `json:"timezone,omitempty"`
	ScheduledAt  *time.Time      `json:"scheduled_at,omitempty"`
}

// MultiResult aggregates a multi-send across recipients. Success is true iff at
// least one recipient achieved at least one channel success.
type MultiResult struct {
	Success     bool                `json:"success"`
	UserResults []UserChannelResult `json:"user_results"`
}

// Tally recomputes per-user counts from the collected channel results.
func (u *UserChannelResult) Tally() {
	u.SuccessCount = 0
	u.FailureCount = 0
	for _, r := range u.Results {
		if r.Success {
			u.SuccessCount++
		} else {
			u.FailureCount++
		}
	}
}
