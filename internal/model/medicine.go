package model

// MedicineInput is what a user submits when returning a medicine.
type MedicineInput struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Expiry    string  `json:"expiry"`
	Type      string  `json:"type"`
	Condition string  `json:"condition"` // NEW, OPENED or EXPIRED
	Notes     *string `json:"notes,omitempty"`
}

// Medicine status values
const (
	MedicineStatusPending  = "PENDING"
	MedicineStatusApproved = "APPROVED"
	MedicineStatusRejected = "REJECTED"
)

type Medicine struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	ExpiryDate    string  `json:"expiryDate"`
	Type          string  `json:"type"`
	PharmacyID    string  `json:"pharmacyId"`
	Image         *string `json:"image,omitempty"`
	UserID        string  `json:"userId"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
	Points        *int    `json:"points,omitempty"`
	AdminFeedback *string `json:"adminFeedback,omitempty"`
}

type OfferedMedicine struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	ExpiryDate string  `json:"expiryDate"`
	Type       string  `json:"type"`
	Image      *string `json:"image,omitempty"`
}

type WantedMedicine struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

type ExchangeMatch struct {
	UserID     string `json:"userId"`
	MedicineID string `json:"medicineId"`
}

// MedicineExchange status values: open, matched, completed, cancelled.
type MedicineExchange struct {
	ID              string          `json:"id"`
	MedicineOffered OfferedMedicine `json:"medicineOffered"`
	MedicineWanted  WantedMedicine  `json:"medicineWanted"`
	UserID          string          `json:"userId"`
	Status          string          `json:"status"`
	CreatedAt       string          `json:"createdAt"`
	MatchedWith     *ExchangeMatch  `json:"matchedWith,omitempty"`
}

type Pharmacy struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Status       string  `json:"status"` // active, full or paused
	Phone        string  `json:"phone"`
	OpeningHours string  `json:"openingHours"`
}

type ProcessingHistory struct {
	ID          string  `json:"id"`
	MedicineID  string  `json:"medicineId"`
	Status      string  `json:"status"`
	Note        *string `json:"note,omitempty"`
	ProcessedBy string  `json:"processedBy"`
	ProcessedAt string  `json:"processedAt"`
	Points      *int    `json:"points,omitempty"`
}

type UserFeedback struct {
	ID         string `json:"id"`
	MedicineID string `json:"medicineId"`
	UserID     string `json:"userId"`
	PharmacyID string `json:"pharmacyId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	CreatedAt  string `json:"createdAt"`
}
