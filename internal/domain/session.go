package domain

import "time"

// Session tracks an issued refresh token by its peppered hash. Logout and
// rotation revoke sessions instead of deleting them so the audit trail stays.
type Session struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index:idx_sessions_user_id" json:"user_id"`
	RefreshTokenHash string     `gorm:"size:128;not null;uniqueIndex" json:"-"`
	UserAgent        string     `gorm:"size:512" json:"user_agent"`
	IP               string     `gorm:"size:64" json:"ip"`
	ExpiresAt        time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
