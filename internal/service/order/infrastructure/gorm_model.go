package infrastructure

import "time"

// OrderModel maps to the orders table.
type OrderModel struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)"`
	CustomerID    string     `gorm:"type:varchar(64);index"`
	ProductIDs    []string   `gorm:"type:json;serializer:json"`
	TotalAmount   float64    `gorm:"type:decimal(12,2)"`
	Status        string     `gorm:"type:varchar(16)"`
	PlacedTime    time.Time  `gorm:"index"`
	ConfirmedTime *time.Time
	CreatedAt     time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}
