package domain

import "time"

// Payment methods accepted at checkout.
const (
	PaymentMethodCOD  = "cod"
	PaymentMethodCard = "card"
)

// PaymentDetails carries method-specific payment fields. Card fields are
// required only when the order's payment method is "card".
type PaymentDetails struct {
	CardNumber string `json:"cardNumber,omitempty"`
	CardHolder string `json:"cardHolder,omitempty"`
	CardExpiry string `json:"cardExpiry,omitempty"`
}

// Order is an immutable record of a placed order: fulfillment details, the
// cart snapshot it was placed with, and the total. Orders are append-only;
// nothing in the system mutates or deletes them.
type Order struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"ownerId"`
	CustomerName   string         `json:"customerName"`
	Phone          string         `json:"phone"`
	Address        string         `json:"address"`
	PaymentMethod  string         `json:"paymentMethod"`
	PaymentDetails PaymentDetails `json:"paymentDetails"`
	CartItems      []CartItem     `json:"cartItems"`
	TotalPrice     float64        `json:"totalPrice"`
	CreatedAt      time.Time      `json:"createdAt"`
}
