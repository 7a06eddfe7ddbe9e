package domain

// ResourceClass names a countable resource a plan puts a quota on.
type ResourceClass string

const (
	ResourceProducts ResourceClass = "products"
	ResourceOrders   ResourceClass = "orders"
	ResourceStorage  ResourceClass = "storage"
)

// Decision is the outcome of a plan limit check. Current and Limit are
// populated on Deny so the caller can tell the user where they stand;
// for storage both are in KB.
type Decision struct {
	Allowed  bool
	Resource ResourceClass
	Current  int
	Limit    int
}
