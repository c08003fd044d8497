package dto

// AgentStatsResponse is one row of the per-agent table.
type AgentStatsResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Open    int    `json:"open"`
	Closed  int    `json:"closed"`
	Pending int    `json:"pending"`
}

// AdminDashboardResponse payload.
type AdminDashboardResponse struct {
	TotalTickets    int                  `json:"totalTickets"`
	OpenTickets     int                  `json:"openTickets"`
	PendingTickets  int                  `json:"pendingTickets"`
	ResolvedTickets int                  `json:"resolvedTickets"`
	ClosedTickets   int                  `json:"closedTickets"`
	RecentTickets   []TicketResponse     `json:"recentTickets"`
	Agents          []AgentStatsResponse `json:"agents"`
}

// AgentDashboardResponse payload.
type AgentDashboardResponse struct {
	Total    int              `json:"total"`
	Open     int              `json:"open"`
	Pending  int              `json:"pending"`
	Resolved int              `json:"resolved"`
	Closed   int              `json:"closed"`
	Tickets  []TicketResponse `json:"tickets"`
}
