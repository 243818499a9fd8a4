package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecurrenceFrequency represents the cadence unit of a recurring rule.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "daily"
	FrequencyWeekly  RecurrenceFrequency = "weekly"
	FrequencyMonthly RecurrenceFrequency = "monthly"
	FrequencyYearly  RecurrenceFrequency = "yearly"
)

// DayList is a set of small integers (weekday numbers 0-6 or month days
// 1-31) stored as a comma-separated string so it works identically on
// Postgres and the SQLite test driver.
type DayList []int

// Value implements driver.Valuer.
func (d DayList) Value() (driver.Value, error) {
	if len(d) == 0 {
		return "", nil
	}
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ","), nil
}

// Scan implements sql.Scanner.
func (d *DayList) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into DayList", value)
	}
	if s == "" {
		*d = nil
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(DayList, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("invalid DayList element %q: %w", p, err)
		}
		out = append(out, n)
	}
	*d = out
	return nil
}

// Contains reports whether n is in the list.
func (d DayList) Contains(n int) bool {
	for _, v := range d {
		if v == n {
			return true
		}
	}
	return false
}

// RecurringRule is a template for automatically generated transactions.
//
// NextRunDate is the cursor of the materialization engine: the earliest date
// not yet materialized. It is seeded at creation to the first occurrence on
// or after StartDate and advanced only by the sync engine, or reset by rule
// updates (start-date change, reactivation).
//
// A transfer is modelled as two rules referencing each other via
// PairedRuleID: an expense rule on the source account and an income rule on
// the destination account with identical amount and cadence. Paired rules
// are materialized, advanced, and deleted together.
type RecurringRule struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;not null" json:"account_id"`
	CategoryID  *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Description string          `json:"description"`

	Frequency RecurrenceFrequency `gorm:"not null" json:"frequency"`
	Interval  int                 `gorm:"not null;default:1" json:"interval"`
	Weekdays  DayList             `gorm:"type:text" json:"weekdays,omitempty"`
	MonthDays DayList             `gorm:"type:text" json:"month_days,omitempty"`

	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	NextRunDate time.Time  `gorm:"not null;index" json:"next_run_date"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`

	PairedRuleID *string `gorm:"type:uuid" json:"paired_rule_id,omitempty"`

	// Relationships
	Account    Account        `gorm:"foreignKey:AccountID" json:"account"`
	Category   *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	PairedRule *RecurringRule `gorm:"foreignKey:PairedRuleID" json:"paired_rule,omitempty"`
}
