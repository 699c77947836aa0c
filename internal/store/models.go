package store

import (
	"time"
)

const (
	OrderPending   = "pending"
	OrderValidated = "validated"
)

type Product struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	Name       string   `gorm:"uniqueIndex;not null" json:"name"`
	Price      float64  `gorm:"not null" json:"price"`
	PromoPrice *float64 `json:"promo_price,omitempty"` // nil when no promotion runs
	Quantity   int      `gorm:"not null;default:0" json:"quantity"`
}

func (Product) TableName() string {
	return "products"
}

type Order struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Status    string      `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	Lines     []OrderLine `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderLine struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   uint    `gorm:"index;not null" json:"order_id"`
	ProductID uint    `gorm:"index;not null" json:"product_id"`
	Product   Product `json:"product"` // belongs to, removal of a referenced product is refused
	Quantity  int     `gorm:"not null" json:"quantity"`
}

func (OrderLine) TableName() string {
	return "order_lines"
}

// Employee and Administrator live in separate tables; a login may exist in both.
type Employee struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Login        string     `gorm:"uniqueIndex;not null" json:"login"`
	PasswordHash string     `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func (Employee) TableName() string {
	return "employees"
}

type Administrator struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Login        string     `gorm:"uniqueIndex;not null" json:"login"`
	PasswordHash string     `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func (Administrator) TableName() string {
	return "administrators"
}

// models lists every table in migration order.
func models() []any {
	return []any{&Product{}, &Order{}, &OrderLine{}, &Employee{}, &Administrator{}}
}
