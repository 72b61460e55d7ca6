package salesorder

import (
	"strconv"
	"strings"
)

// Build maps view onto the provider schema. It only reads from view and
// holds no state, so two builds of the same view differ at most in the
// timestamp the view reports.
func Build(view OrderView, accountNumber string) SalesOrderRequest {
	return SalesOrderRequest{
		CreateSalesOrder: CreateSalesOrder{
			MessageDateTime:   view.MessageDateTime(),
			OrderSubmissionID: view.SubmissionID(),
			AccountNumber:     accountNumber,
			OrgID:             view.OrganizationID(),
			Order: Order{
				OrderHeader:  orderHeader(view),
				OrderDetails: orderDetails(view.Items()),
			},
		},
	}
}

func orderHeader(view OrderView) OrderHeader {
	return OrderHeader{
		OrderDateTime:     view.CreatedAt(),
		OrderNumber:       view.OrderNumber(),
		ShippingServiceID: view.ShippingServiceID(),
		Charges:           charges(view),
		BillTo:            partyAddress(view.BillingAddress()),
		ShipTo:            partyAddress(view.ShippingAddress()),
	}
}

func charges(view OrderView) Charges {
	return Charges{
		OrderCurrency:       strings.ToUpper(view.Currency()),
		OrderTotal:          view.Total().String(),
		OrderSubTotal:       view.Subtotal().String(),
		TaxTotal:            view.TotalTax().String(),
		TotalShippingCharge: view.ShippingCharge().String(),
		TaxDetail:           taxDetail(view.TaxDetails()),
	}
}

func taxDetail(taxes []Tax) []TaxDetail {
	details := make([]TaxDetail, 0, len(taxes))
	for _, tax := range taxes {
		details = append(details, TaxDetail{
			TaxAmount:     tax.Amount.String(),
			TaxName:       Truncate(tax.Name, MaxTaxNameLength),
			TaxPercentage: tax.Percentage.String(),
		})
	}
	return details
}

func partyAddress(addr Address) PartyAddress {
	line1, line2 := SplitAddress(addr.Line1, addr.Line2)
	return PartyAddress{
		AddressLine1: line1,
		AddressLine2: line2,
		City:         Truncate(addr.City, MaxAddressLength),
		State:        addr.State,
		Country:      addr.Country,
		FirstName:    addr.FirstName,
		LastName:     addr.LastName,
		PhoneNumber:  addr.Phone,
		ZipCode:      addr.Zip,
	}
}

func orderDetails(items []Item) OrderDetails {
	lines := make([]OrderLine, 0, len(items))
	for i, item := range items {
		lines = append(lines, OrderLine{
			OrderLineNumber: strconv.Itoa(i + 1),
			OrderedQuantity: strconv.Itoa(item.Quantity),
			ItemID:          item.SKU,
			ItemDescription: item.Title,
			Price:           item.Price.String(),
		})
	}
	return OrderDetails{OrderLine: lines}
}
