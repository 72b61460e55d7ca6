package salesorder

// SalesOrderRequest is the body of the create-order call. Field names follow
// the provider schema; nothing is omitted because the provider requires
// every key to be present.
type SalesOrderRequest struct {
	CreateSalesOrder CreateSalesOrder `json:"CreateSalesOrder"`
}

// CreateSalesOrder is the message header wrapping the order.
type CreateSalesOrder struct {
	MessageDateTime   string `json:"MessageDateTime"`
	OrderSubmissionID string `json:"OrderSubmissionID"`
	AccountNumber     string `json:"AccountNumber"`
	OrgID             string `json:"OrgID"`
	Order             Order  `json:"Order"`
}

// Order groups header and lines.
type Order struct {
	OrderHeader  OrderHeader  `json:"OrderHeader"`
	OrderDetails OrderDetails `json:"OrderDetails"`
}

// OrderHeader carries identifiers, charges and both addresses.
type OrderHeader struct {
	OrderDateTime     string       `json:"OrderDateTime"`
	OrderNumber       string       `json:"OrderNumber"`
	ShippingServiceID string       `json:"ShippingServiceID"`
	Charges           Charges      `json:"Charges"`
	BillTo            PartyAddress `json:"BillTo"`
	ShipTo            PartyAddress `json:"Shipto"`
}

// Charges holds monetary totals as strings.
type Charges struct {
	OrderCurrency       string      `json:"OrderCurrency"`
	OrderTotal          string      `json:"OrderTotal"`
	OrderSubTotal       string      `json:"OrderSubTotal"`
	TaxTotal            string      `json:"TaxTotal"`
	TotalShippingCharge string      `json:"TotalShippingCharge"`
	TaxDetail           []TaxDetail `json:"TaxDetail"`
}

// TaxDetail is one tax entry.
type TaxDetail struct {
	TaxAmount     string `json:"TaxAmount"`
	TaxName       string `json:"TaxName"`
	TaxPercentage string `json:"TaxPercentage"`
}

// PartyAddress is used for both BillTo and Shipto.
type PartyAddress struct {
	AddressLine1 string `json:"AddressLine1"`
	AddressLine2 string `json:"AddressLine2"`
	City         string `json:"City"`
	State        string `json:"State"`
	Country      string `json:"Country"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	PhoneNumber  string `json:"PhoneNumber"`
	ZipCode      string `json:"ZipCode"`
}

// OrderDetails lists the order lines.
type OrderDetails struct {
	OrderLine []OrderLine `json:"OrderLine"`
}

// OrderLine is one numbered line of the order.
type OrderLine struct {
	OrderLineNumber string `json:"OrderLineNumber"`
	OrderedQuantity string `json:"OrderedQuantity"`
	ItemID          string `json:"ItemID"`
	ItemDescription string `json:"ItemDescription"`
	Price           string `json:"Price"`
}

// OrderNumber returns the order number of the request.
func (r SalesOrderRequest) OrderNumber() string {
	return r.CreateSalesOrder.Order.OrderHeader.OrderNumber
}

// SubmissionID returns the client-generated submission identifier.
func (r SalesOrderRequest) SubmissionID() string {
	return r.CreateSalesOrder.OrderSubmissionID
}

// Empty reports whether the request has no order lines.
func (r SalesOrderRequest) Empty() bool {
	return len(r.CreateSalesOrder.Order.OrderDetails.OrderLine) == 0
}
