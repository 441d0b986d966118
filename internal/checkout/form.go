package checkout

import (
	"net/url"
	"strings"
)

// orderForm carries the submitted contact and delivery fields. Postcode,
// county and the second address line are optional.
type orderForm struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Country        string `json:"country"`
	Postcode       string `json:"postcode"`
	TownOrCity     string `json:"town_or_city"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2"`
	County         string `json:"county"`
}

func bindOrderForm(values url.Values) orderForm {
	field := func(name string) string {
		return strings.TrimSpace(values.Get(name))
	}

	return orderForm{
		FullName:       field("full_name"),
		Email:          field("email"),
		PhoneNumber:    field("phone_number"),
		Country:        field("country"),
		Postcode:       field("postcode"),
		TownOrCity:     field("town_or_city"),
		StreetAddress1: field("street_address1"),
		StreetAddress2: field("street_address2"),
		County:         field("county"),
	}
}

// validate returns a field -> message map, empty when the form is valid.
func (f orderForm) validate() map[string]string {
	errs := map[string]string{}

	required := []struct {
		name  string
		value string
	}{
		{"full_name", f.FullName},
		{"email", f.Email},
		{"phone_number", f.PhoneNumber},
		{"country", f.Country},
		{"town_or_city", f.TownOrCity},
		{"street_address1", f.StreetAddress1},
	}
	for _, field := range required {
		if field.value == "" {
			errs[field.name] = "this field is required"
		}
	}

	if f.Email != "" && !strings.Contains(f.Email, "@") {
		errs["email"] = "enter a valid email address"
	}

	return errs
}
