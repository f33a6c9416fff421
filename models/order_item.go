package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceType is a manufacturing capability an order item or vendor offers
type ServiceType string

const (
	ServiceTubeLaser    ServiceType = "tube_laser"
	ServiceSheetLaser   ServiceType = "sheet_laser"
	ServiceCNCMachining ServiceType = "cnc_machining"
	ServiceVMCMachining ServiceType = "vmc_machining"
	Service3DPrinting   ServiceType = "3d_printing"
)

// ServiceTypes lists every service type
var ServiceTypes = []ServiceType{
	ServiceTubeLaser,
	ServiceSheetLaser,
	ServiceCNCMachining,
	ServiceVMCMachining,
	Service3DPrinting,
}

var serviceLabels = map[ServiceType]string{
	ServiceTubeLaser:    "Tube Laser Cutting",
	ServiceSheetLaser:   "Sheet Laser Cutting",
	ServiceCNCMachining: "CNC Machining",
	ServiceVMCMachining: "VMC Machining",
	Service3DPrinting:   "3D Printing",
}

// Valid reports whether s is a known service type
func (s ServiceType) Valid() bool {
	_, ok := serviceLabels[s]
	return ok
}

// Label returns the human-readable name of the service
func (s ServiceType) Label() string {
	if label, ok := serviceLabels[s]; ok {
		return label
	}
	return string(s)
}

// OrderItem is a priced line of work under an order
type OrderItem struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	OrderID     uint                `gorm:"not null;index" json:"order_id"`
	ServiceType ServiceType         `gorm:"size:20;not null" json:"service_type"`
	Description string              `gorm:"type:text" json:"description"`
	Quantity    *int                `json:"quantity"`
	UnitPrice   decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	TotalPrice  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"total_price"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeSave derives TotalPrice when both inputs are present; otherwise the previous total is kept
func (i *OrderItem) BeforeSave(tx *gorm.DB) error {
	if i.UnitPrice.Valid && i.Quantity != nil {
		total := i.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(*i.Quantity))).Round(2)
		i.TotalPrice = decimal.NewNullDecimal(total)
	}
	return nil
}
