package events

type OrderCreated struct {
	OrderID        int64  `json:"order_id"`
	Number         string `json:"number"`
	StoreID        int64  `json:"store_id"`
	StoreName      string `json:"store_name"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
	CustomerName   string `json:"customer_name"`
	CustomerPhone  string `json:"customer_phone"`
	PickupDate     string `json:"pickup_date"`
	PickupTime     string `json:"pickup_time"`
	Items          int    `json:"items"`
	TotalCents     int64  `json:"total_cents"`
}

type OrderStatusChanged struct {
	OrderID int64  `json:"order_id"`
	Number  string `json:"number"`
	From    string `json:"from"`
	To      string `json:"to"`
	Actor   string `json:"actor"`
}

type ApplicationEvent struct {
	ApplicationID  int64  `json:"application_id"`
	CompanyName    string `json:"company_name"`
	ContactName    string `json:"contact_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Status         string `json:"status"`
	Reviewer       string `json:"reviewer,omitempty"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
}
