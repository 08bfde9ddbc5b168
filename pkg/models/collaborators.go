package models

// Read-only projections of the property/unit/tenant/vendor collaborators.
// This core never mutates them; they resolve display names for related-entity
// badges and drive billing generation.

type Property struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Unit struct {
	ID         string  `json:"id"`
	PropertyID string  `json:"propertyId"`
	Name       string  `json:"name"`
	TenantID   *string `json:"tenantId"`
	RentAmount string  `json:"rentAmount"`
}

type Tenant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Vendor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
}
