package domain

// TimezoneMode selects how delivery time zones are resolved.
type TimezoneMode string

const (
	// TimezoneModeClient applies the caller-supplied zone to every recipient.
	TimezoneModeClient TimezoneMode = "client"
	// TimezoneModeUser resolves each recipient's stored zone, degrading to UTC.
	TimezoneModeUser TimezoneMode = "user"
	// TimezoneModeMixed prefers the caller-supplied zone when present and valid,
	// falling back to per-recipient resolution otherwise.
	TimezoneModeMixed TimezoneMode = "mixed"
)

// TimezoneOptions selects the resolution policy for a dispatch.
type TimezoneOptions struct {
	Mode     TimezoneMode `json:"mode"`
	Timezone string       `json:"timezone,omitempty"` // IANA zone identifier
}
