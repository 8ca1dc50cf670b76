package domain

import "strings"

// SavingsGoal is a user-declared target forwarded to the budget optimizer.
type SavingsGoal struct {
	Name           string  `json:"name"`
	TargetAmount   float64 `json:"target_amount"`
	Priority       int     `json:"priority"`
	DeadlineMonths int     `json:"deadline_months"`
}

// Validate checks a goal before it is sent upstream.
func (g SavingsGoal) Validate() error {
	v := NewValidator()
	if strings.TrimSpace(g.Name) == "" {
		v.Add("goals.name", "is required")
	}
	if g.TargetAmount <= 0 {
		v.Add("goals.target_amount", "must be positive")
	}
	if g.Priority < 1 || g.Priority > 5 {
		v.Add("goals.priority", "must be between 1 and 5")
	}
	if g.DeadlineMonths <= 0 {
		v.Add("goals.deadline_months", "must be positive")
	}
	return v.Err()
}
