package domain

import "encoding/json"

// Amounts are emitted as fixed two-decimal strings ("19.90", not "19.9").

func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		TotalAmount string `json:"total_amount"`
	}{order(o), o.TotalAmount.StringFixed(2)})
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	type item OrderItem
	return json.Marshal(struct {
		item
		UnitPrice  string `json:"unit_price"`
		TotalPrice string `json:"total_price"`
	}{item(i), i.UnitPrice.StringFixed(2), i.TotalPrice.StringFixed(2)})
}
