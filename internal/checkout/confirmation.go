package checkout

import (
	"strings"
	"text/template"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`Hello {{.FullName}}!

This is a confirmation of your order at Boutique Ado. Your order information is below:

Order Number: {{.OrderNumber}}
Order Date: {{.OrderDate}}

Order Total: {{.OrderTotal}}
Delivery: {{.DeliveryCost}}
Grand Total: {{.GrandTotal}}

Your order will be shipped to {{.StreetAddress1}} in {{.TownOrCity}}, {{.Country}}.

We've got your phone number on file as {{.PhoneNumber}}.

If you have any questions, feel free to contact us at {{.ContactEmail}}.

Thank you for your order!

Sincerely,

Boutique Ado
`))

type confirmationData struct {
	FullName       string
	OrderNumber    string
	OrderDate      string
	OrderTotal     string
	DeliveryCost   string
	GrandTotal     string
	StreetAddress1 string
	TownOrCity     string
	Country        string
	PhoneNumber    string
	ContactEmail   string
}

func renderConfirmationBody(order *domain.Order, contactEmail string) (string, error) {
	data := confirmationData{
		FullName:       order.FullName,
		OrderNumber:    order.OrderNumber,
		OrderDate:      order.CreatedAt.Format("2 Jan 2006"),
		OrderTotal:     order.OrderTotal.StringFixed(2),
		DeliveryCost:   order.DeliveryCost.StringFixed(2),
		GrandTotal:     order.GrandTotal.StringFixed(2),
		StreetAddress1: order.StreetAddress1,
		TownOrCity:     order.TownOrCity,
		Country:        order.Country,
		PhoneNumber:    order.PhoneNumber,
		ContactEmail:   contactEmail,
	}

	var buf strings.Builder
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
