package domain

import "time"

// ============================================================
// Cards
// ============================================================

// Card is a payment card with a monthly billing cycle.
type Card struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Alias      string    `json:"alias"`
	ClosingDay int       `json:"closing_day"`
	DueDay     int       `json:"due_day"`
	CreatedAt  time.Time `json:"created_at"`
}

// CardRequest is the payload to create or update a card.
type CardRequest struct {
	Alias      string `json:"alias"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
}

// CyclePreview tells which cycle a purchase made on Date would land in.
type CyclePreview struct {
	CardID     string `json:"card_id"`
	Date       string `json:"date"`
	CycleClose string `json:"cycle_close"`
	DueDate    string `json:"due_date"`
	Month      string `json:"month"`
}

// ValidDay reports whether d can be used as a closing or due day.
func ValidDay(d int) bool {
	return d >= 1 && d <= 31
}
