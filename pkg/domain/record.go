// Package domain defines the tender record, its triage status ladder, and the
// error values shared by the store, the cascade, and the transport layers.
package domain

// Record is a single tender row as held by the record store.
type Record struct {
	ID            string  `json:"tender_id"`
	Amount        float64 `json:"tender_value_amount"`
	TendererCount int     `json:"tender_numberOfTenderers"`
	Status        Status  `json:"status"`
	PublishedAt   string  `json:"tender_datePublished,omitempty"`
	Buyer         string  `json:"buyer_name,omitempty"`
}

// Sample is the slice of a record the cascade scores: its identifier and amount.
type Sample struct {
	ID     string
	Amount float64
}
