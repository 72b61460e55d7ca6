// Package shopify adapts Shopify order webhooks to salesorder.OrderView.
package shopify

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/fulfillment/internal/fulfillment/salesorder"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

// DefaultFirstName replaces a missing shipping first name.
const DefaultFirstName = "Customer"

//go:embed us_state_codes.json
var stateCodesJSON []byte

// stateCodes maps a lowercase US state name to its postal code.
var stateCodes = func() map[string]string {
	var byCode map[string]string
	if err := json.Unmarshal(stateCodesJSON, &byCode); err != nil {
		panic(fmt.Sprintf("shopify: invalid state code table: %v", err))
	}
	byName := make(map[string]string, len(byCode))
	for code, name := range byCode {
		byName[name] = code
	}
	return byName
}()

// StateCode resolves a state name to its postal code, or "" when unknown.
func StateCode(name string) string {
	return stateCodes[strings.ToLower(strings.TrimSpace(name))]
}

type address struct {
	Address1     *string `json:"address1"`
	Address2     *string `json:"address2"`
	City         *string `json:"city"`
	Province     *string `json:"province"`
	ProvinceCode *string `json:"province_code"`
	CountryCode  *string `json:"country_code"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Zip          *string `json:"zip"`
	Phone        *string `json:"phone"`
}

type lineItem struct {
	ID       json.Number     `json:"id"`
	Quantity int             `json:"quantity"`
	SKU      string          `json:"sku"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
}

type taxLine struct {
	Price decimal.Decimal `json:"price"`
	Title string          `json:"title"`
	Rate  decimal.Decimal `json:"rate"`
}

type shippingLine struct {
	Price decimal.Decimal `json:"price"`
}

type payload struct {
	ID              json.Number     `json:"id"`
	OrderNumber     json.Number     `json:"order_number"`
	CreatedAt       string          `json:"created_at"`
	Currency        string          `json:"currency"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	SubtotalPrice   decimal.Decimal `json:"subtotal_price"`
	TotalTax        decimal.Decimal `json:"total_tax"`
	BillingAddress  *address        `json:"billing_address"`
	ShippingAddress *address        `json:"shipping_address"`
	LineItems       []lineItem      `json:"line_items"`
	TaxLines        []taxLine       `json:"tax_lines"`
	ShippingLines   []shippingLine  `json:"shipping_lines"`
}

// Options fills values the webhook does not carry.
type Options struct {
	DefaultCurrency   string
	DefaultFirstName  string
	OrganizationID    string
	ShippingServiceID string
	Now               func() time.Time
}

// Order is a parsed orders/create webhook.
type Order struct {
	p            payload
	opts         Options
	submissionID string
	messageTime  string
}

var _ salesorder.OrderView = (*Order)(nil)

// Parse decodes a webhook body.
func Parse(body []byte, opts Options) (*Order, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errorbank.BadRequest("invalid shopify order payload", errorbank.WithCause(err))
	}
	if p.OrderNumber == "" {
		return nil, errorbank.BadRequest("shopify order payload has no order_number")
	}
	if p.ShippingAddress == nil {
		p.ShippingAddress = &address{}
	}
	if opts.DefaultFirstName == "" {
		opts.DefaultFirstName = DefaultFirstName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	submissionID := p.ID.String()
	if submissionID == "" {
		submissionID = uuid.NewString()
	}

	return &Order{
		p:            p,
		opts:         opts,
		submissionID: submissionID,
		messageTime:  opts.Now().Format(time.RFC3339),
	}, nil
}

func (o *Order) MessageDateTime() string   { return o.messageTime }
func (o *Order) SubmissionID() string      { return o.submissionID }
func (o *Order) OrganizationID() string    { return o.opts.OrganizationID }
func (o *Order) OrderNumber() string       { return o.p.OrderNumber.String() }
func (o *Order) CreatedAt() string         { return o.p.CreatedAt }
func (o *Order) ShippingServiceID() string { return o.opts.ShippingServiceID }

func (o *Order) Currency() string {
	if o.p.Currency == "" {
		return o.opts.DefaultCurrency
	}
	return o.p.Currency
}

func (o *Order) Total() decimal.Decimal    { return o.p.TotalPrice }
func (o *Order) Subtotal() decimal.Decimal { return o.p.SubtotalPrice }
func (o *Order) TotalTax() decimal.Decimal { return o.p.TotalTax }

// ShippingCharge sums every shipping line.
func (o *Order) ShippingCharge() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.p.ShippingLines {
		total = total.Add(line.Price)
	}
	return total
}

// ShippingAddress reads the shipping block. A blank first name becomes the
// configured default and a blank province code is looked up by name.
func (o *Order) ShippingAddress() salesorder.Address {
	a := o.p.ShippingAddress
	firstName := value(a.FirstName)
	if strings.TrimSpace(firstName) == "" {
		firstName = o.opts.DefaultFirstName
	}
	return salesorder.Address{
		Line1:     value(a.Address1),
		Line2:     value(a.Address2),
		City:      value(a.City),
		State:     state(a),
		Country:   value(a.CountryCode),
		FirstName: firstName,
		LastName:  value(a.LastName),
		Zip:       value(a.Zip),
		Phone:     value(a.Phone),
	}
}

// BillingAddress reads the billing block, falling back field by field to the
// shipping address when values are absent.
func (o *Order) BillingAddress() salesorder.Address {
	shipping := o.ShippingAddress()
	b := o.p.BillingAddress
	if b == nil {
		return shipping
	}

	firstName := value(b.FirstName)
	if strings.TrimSpace(firstName) == "" {
		firstName = shipping.FirstName
	}
	return salesorder.Address{
		Line1:     orElse(b.Address1, shipping.Line1),
		Line2:     orElse(b.Address2, shipping.Line2),
		City:      orElse(b.City, shipping.City),
		State:     state(b),
		Country:   orElse(b.CountryCode, shipping.Country),
		FirstName: firstName,
		LastName:  orElse(b.LastName, shipping.LastName),
		Zip:       orElse(b.Zip, shipping.Zip),
		Phone:     value(b.Phone),
	}
}

func (o *Order) Items() []salesorder.Item {
	items := make([]salesorder.Item, 0, len(o.p.LineItems))
	for _, li := range o.p.LineItems {
		items = append(items, salesorder.Item{
			ID:       li.ID.String(),
			SKU:      li.SKU,
			Title:    li.Title,
			Quantity: li.Quantity,
			Price:    li.Price,
		})
	}
	return items
}

// TaxDetails converts each tax line rate to a percentage rounded up to cents.
func (o *Order) TaxDetails() []salesorder.Tax {
	hundred := decimal.NewFromInt(100)
	taxes := make([]salesorder.Tax, 0, len(o.p.TaxLines))
	for _, tl := range o.p.TaxLines {
		taxes = append(taxes, salesorder.Tax{
			Amount:     tl.Price,
			Name:       salesorder.Truncate(tl.Title, salesorder.MaxTaxNameLength),
			Percentage: tl.Rate.Mul(hundred).RoundCeil(2),
		})
	}
	return taxes
}

func state(a *address) string {
	code := strings.TrimSpace(value(a.ProvinceCode))
	if code != "" {
		return code
	}
	return StateCode(value(a.Province))
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orElse(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
