package domain

// CheckoutForm is the buyer-submitted half of an order. Everything money
// related comes from the cart snapshot, never from the form.
type CheckoutForm struct {
	BuyerID         *string `json:"buyer_id,omitempty"`
	Email           string  `json:"email"`
	BillingAddress  Address `json:"billing_address"`
	ShippingAddress Address `json:"shipping_address"`
	CompanyName     string  `json:"company_name,omitempty"`
	TaxOffice       string  `json:"tax_office,omitempty"`
	TaxNumber       string  `json:"tax_number,omitempty"`
}
