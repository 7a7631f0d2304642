package model

type DashboardStats struct {
	TotalSubmissions    int `json:"totalSubmissions"`
	ValidMedicines      int `json:"validMedicines"`
	ExpiredMedicines    int `json:"expiredMedicines"`
	TotalPoints         int `json:"totalPoints"`
	VouchersUsed        int `json:"vouchersUsed"`
	UnreadNotifications int `json:"unreadNotifications"`
}

type ActivityMetadata struct {
	Points     *int    `json:"points,omitempty"`
	MedicineID *string `json:"medicineId,omitempty"`
	VoucherID  *string `json:"voucherId,omitempty"`
}

// ActivityFeedItem types: submission, voucher, notification, feedback, points.
type ActivityFeedItem struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      *string           `json:"status,omitempty"`
	Timestamp   string            `json:"timestamp"`
	Metadata    *ActivityMetadata `json:"metadata,omitempty"`
}

type FeedbackItem struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	UserName   string  `json:"userName"`
	Rating     int     `json:"rating"`
	Comment    string  `json:"comment"`
	AdminReply *string `json:"adminReply,omitempty"`
	CreatedAt  string  `json:"createdAt"`
}

type ProcessingStep struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Count       int    `json:"count"`
}

type DatedCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type DatedPoints struct {
	Date   string `json:"date"`
	Points int    `json:"points"`
}

type VoucherUsage struct {
	Type  string `json:"type"`
	Used  int    `json:"used"`
	Total int    `json:"total"`
}

type ChartData struct {
	SubmissionsByDate []DatedCount   `json:"submissionsByDate"`
	MedicineTypes     []TypeCount    `json:"medicineTypes"`
	PointsHistory     []DatedPoints  `json:"pointsHistory"`
	VoucherUsage      []VoucherUsage `json:"voucherUsage"`
}

type MetricPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type DistributionItem struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type UserDashboardStats struct {
	Points        int           `json:"points"`
	Level         string        `json:"level"`
	Submissions   int           `json:"submissions"`
	Approved      int           `json:"approved"`
	Pending       int           `json:"pending"`
	Rejected      int           `json:"rejected"`
	Returned      int           `json:"returned"`
	Recalled      int           `json:"recalled"`
	VouchersUsed  int           `json:"vouchersUsed"`
	MonthlyPoints []MetricPoint `json:"monthlyPoints"`
}

type DashboardMetricsResponse struct {
	TotalSubmissions     int                 `json:"totalSubmissions"`
	PendingSubmissions   int                 `json:"pendingSubmissions"`
	ProcessedSubmissions int                 `json:"processedSubmissions"`
	TotalUsers           int                 `json:"totalUsers"`
	TotalVouchers        int                 `json:"totalVouchers"`
	SubmissionTrend      []MetricPoint       `json:"submissionTrend"`
	VoucherTrend         []MetricPoint       `json:"voucherTrend"`
	UserRoleDistribution []DistributionItem  `json:"userRoleDistribution"`
	MedicineDistribution []DistributionItem  `json:"medicineDistribution"`
	UserStats            *UserDashboardStats `json:"userStats"`
}
