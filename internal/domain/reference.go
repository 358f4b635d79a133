package domain

// Status is a row of the ticket status table.
type Status struct {
	ID    int
	Label string
}

// Severity is a row of the priority table.
type Severity struct {
	ID    int
	Level string
}

// Site is a physical location tickets are raised from.
type Site struct {
	ID    int
	Label string
}

// Asset is a piece of equipment, optionally bound to a site.
type Asset struct {
	ID     int
	Label  string
	SiteID *int
}

// Category classifies tickets.
type Category struct {
	ID    int
	Label string
}

// Vendor is an external party tickets can be assigned to.
type Vendor struct {
	ID   int
	Name string
}
