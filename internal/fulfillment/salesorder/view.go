// Package salesorder turns a platform-independent order view into the
// CreateSalesOrder payload accepted by the fulfillment API.
package salesorder

import "github.com/shopspring/decimal"

// OrderView exposes order data independent of the platform it came from.
// Implementations resolve fallbacks (currency, state codes, phone numbers)
// before the builder reads them.
type OrderView interface {
	MessageDateTime() string
	SubmissionID() string
	OrganizationID() string
	OrderNumber() string
	CreatedAt() string
	ShippingServiceID() string
	Currency() string

	Total() decimal.Decimal
	Subtotal() decimal.Decimal
	TotalTax() decimal.Decimal
	// ShippingCharge is already aggregated across all shipping lines.
	ShippingCharge() decimal.Decimal

	BillingAddress() Address
	ShippingAddress() Address

	Items() []Item
	TaxDetails() []Tax
}

// Address is a postal address as reported by the order source.
type Address struct {
	Line1     string
	Line2     string
	City      string
	State     string
	Country   string
	FirstName string
	LastName  string
	Zip       string
	Phone     string
}

// Item is a single purchased line.
type Item struct {
	ID       string
	SKU      string
	Title    string
	Quantity int
	Price    decimal.Decimal
}

// Tax is one tax entry applied to the order.
type Tax struct {
	Amount     decimal.Decimal
	Name       string
	Percentage decimal.Decimal
}
