package domain

import "time"

// SecurityPolicy holds a facility's security thresholds. A facility without a
// policy record uses DefaultSecurityPolicy.
type SecurityPolicy struct {
	FacilityID string

	SessionTimeoutMinutes  int
	MaxFailedLoginAttempts int
	LockoutDurationMinutes int
	MaxConcurrentSessions  int

	MinPasswordLength   int
	RequireUppercase    bool
	RequireLowercase    bool
	RequireNumbers      bool
	RequireSpecialChars bool

	PasswordExpiryDays   int
	PasswordHistoryCount int

	RequireDeviceTrust bool

	UpdatedAt time.Time
}

// DefaultSecurityPolicy returns the platform-wide defaults applied when a
// facility has no policy record of its own.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		SessionTimeoutMinutes:  15,
		MaxFailedLoginAttempts: 5,
		LockoutDurationMinutes: 15,
		MaxConcurrentSessions:  3,
		MinPasswordLength:      12,
		RequireUppercase:       true,
		RequireLowercase:       true,
		RequireNumbers:         true,
		RequireSpecialChars:    true,
		PasswordExpiryDays:     90,
		PasswordHistoryCount:   12,
		RequireDeviceTrust:     true,
	}
}

// SessionTimeout returns the inactivity timeout as a duration.
func (p SecurityPolicy) SessionTimeout() time.Duration {
	return time.Duration(p.SessionTimeoutMinutes) * time.Minute
}

// LockoutWindow returns the sliding window within which failed attempts count.
func (p SecurityPolicy) LockoutWindow() time.Duration {
	return time.Duration(p.LockoutDurationMinutes) * time.Minute
}
