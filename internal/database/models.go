package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Staff struct {
	ID                  uuid.UUID
	Name                string
	Phone               pgtype.Text
	Email               string
	PasswordHash        string
	Role                string
	IsActive            bool
	ResetToken          pgtype.Text
	ResetTokenExpiresAt pgtype.Timestamptz
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Customer struct {
	ID            uuid.UUID
	Name          string
	Phone         string
	Email         pgtype.Text
	Address       pgtype.Text
	LoyaltyPoints int32
	DeviceToken   pgtype.Text
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Product struct {
	ID        uuid.UUID
	Name      string
	Sku       pgtype.Text
	Price     pgtype.Numeric
	Quantity  int32
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductTransaction struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	OrderID         pgtype.UUID
	QuantityChange  int32
	TransactionType string
	Note            pgtype.Text
	CreatedBy       pgtype.UUID
	CreatedAt       time.Time
}

type Order struct {
	ID                  uuid.UUID
	OrderNumber         string
	Source              string
	CustomerID          uuid.UUID
	CashierID           pgtype.UUID
	Status              string
	Subtotal            pgtype.Numeric
	Fees                pgtype.Numeric
	TotalAmount         pgtype.Numeric
	Breakdown           []byte
	PickupAddress       pgtype.Text
	PickupStatus        string
	PickupStartedAt     pgtype.Timestamptz
	PickupCompletedAt   pgtype.Timestamptz
	DeliveryAddress     pgtype.Text
	DeliveryStatus      string
	DeliveryStartedAt   pgtype.Timestamptz
	DeliveryCompletedAt pgtype.Timestamptz
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         pgtype.Timestamptz
	CancelledAt         pgtype.Timestamptz
}

type Basket struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	BasketNumber int32
	Weight       pgtype.Numeric
	Price        pgtype.Numeric
	Notes        pgtype.Text
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type BasketService struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	BasketNumber int32
	ServiceType  string
	Status       string
	StartedBy    pgtype.UUID
	CompletedBy  pgtype.UUID
	StartedAt    pgtype.Timestamptz
	CompletedAt  pgtype.Timestamptz
	Notes        pgtype.Text
}

type OrderEvent struct {
	ID           int64
	OrderID      uuid.UUID
	EventType    string
	Payload      []byte
	CreatedAt    time.Time
	DispatchedAt pgtype.Timestamptz
}
