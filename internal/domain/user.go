package domain

import "time"

// User owns transactions and declares the monthly income used for budget optimization.
type User struct {
	UserID        string    `json:"user_id"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	MonthlyIncome float64   `json:"monthly_income"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the declared profile values.
func (u *User) Validate() error {
	v := NewValidator()
	if u.UserID == "" {
		v.Add("user_id", "is required")
	}
	if u.MonthlyIncome < 0 {
		v.Add("monthly_income", "must not be negative")
	}
	return v.Err()
}
