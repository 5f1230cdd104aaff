package application

import "time"

// ScanCardCommand represents a kanban card scan at a line-side location
type ScanCardCommand struct {
	CardID      string
	RequestedBy string
	Operator    string
}

// DispatchOrderCommand represents a materials operator picking up an order
type DispatchOrderCommand struct {
	OrderID  string
	Operator string
}

// DeliverOrderCommand represents an order arriving at its delivery point
type DeliverOrderCommand struct {
	OrderID  string
	Operator string
}

// CancelOrderCommand represents voiding an active order
type CancelOrderCommand struct {
	OrderID string
	Reason  string
}

// GetOrderQuery represents the query for a single order by ID
type GetOrderQuery struct {
	OrderID string
}

// ListActiveOrdersQuery represents the query for open orders
type ListActiveOrdersQuery struct {
	Status   string
	Location string
	Page     int64
	PageSize int64
}

// KPIReportQuery represents the query for the plant KPI report
type KPIReportQuery struct {
	Since time.Time
}
