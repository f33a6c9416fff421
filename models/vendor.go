package models

import "time"

// VendorStatus is the standing of a supplier in the directory
type VendorStatus string

const (
	VendorActive      VendorStatus = "active"
	VendorInactive    VendorStatus = "inactive"
	VendorOnHold      VendorStatus = "on_hold"
	VendorBlacklisted VendorStatus = "blacklisted"
)

var vendorStatusLabels = map[VendorStatus]string{
	VendorActive:      "Active",
	VendorInactive:    "Inactive",
	VendorOnHold:      "On Hold",
	VendorBlacklisted: "Blacklisted",
}

// Valid reports whether s is a known vendor status
func (s VendorStatus) Valid() bool {
	_, ok := vendorStatusLabels[s]
	return ok
}

// Label returns the human-readable name of the vendor status
func (s VendorStatus) Label() string {
	if label, ok := vendorStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

const (
	MinVendorRating = 0
	MaxVendorRating = 5
)

// Vendor is a supplier directory entry tagged with manufacturing capabilities
type Vendor struct {
	ID                    uint               `gorm:"primaryKey" json:"id"`
	VendorCode            string             `gorm:"uniqueIndex;size:20;not null" json:"vendor_code"`
	CompanyName           string             `gorm:"size:200;not null" json:"company_name"`
	ContactPerson         string             `gorm:"size:100" json:"contact_person"`
	Email                 string             `gorm:"size:254" json:"email"`
	Phone                 string             `gorm:"size:20" json:"phone"`
	Address               string             `gorm:"type:text" json:"address"`
	PrimaryService        ServiceType        `gorm:"size:20;not null" json:"primary_service"`
	SecondaryServices     string             `gorm:"type:text" json:"secondary_services"`
	GSTNumber             string             `gorm:"size:20" json:"gst_number"`
	PANNumber             string             `gorm:"size:20" json:"pan_number"`
	Status                VendorStatus       `gorm:"size:20;not null;default:'active';index" json:"status"`
	Rating                float64            `gorm:"not null" json:"rating"`
	HasTubeLaser          bool               `gorm:"not null" json:"has_tube_laser"`
	TubeLaserDetails      string             `gorm:"type:text" json:"tube_laser_details"`
	HasSheetLaser         bool               `gorm:"not null" json:"has_sheet_laser"`
	SheetLaserDetails     string             `gorm:"type:text" json:"sheet_laser_details"`
	HasCNCMachining       bool               `gorm:"not null" json:"has_cnc_machining"`
	CNCMachiningDetails   string             `gorm:"type:text" json:"cnc_machining_details"`
	HasVMCMachining       bool               `gorm:"not null" json:"has_vmc_machining"`
	VMCMachiningDetails   string             `gorm:"type:text" json:"vmc_machining_details"`
	Has3DPrinting         bool               `gorm:"column:has_3d_printing;not null" json:"has_3d_printing"`
	Printing3DDetails     string             `gorm:"column:printing_3d_details;type:text" json:"printing_3d_details"`
	MaxMaterialThickness  string             `gorm:"size:50" json:"max_material_thickness"`
	MaterialTypes         string             `gorm:"type:text" json:"material_types"`
	ProductionCapacity    string             `gorm:"type:text" json:"production_capacity"`
	QualityCertifications string             `gorm:"type:text" json:"quality_certifications"`
	CreatedByID           *uint              `gorm:"index" json:"created_by_id"`
	CreatedBy             *ProjectManager    `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Assignments           []VendorAssignment `gorm:"foreignKey:VendorID" json:"assignments,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// TableName specifies the table name for the Vendor model
func (Vendor) TableName() string {
	return "vendors"
}

// Capabilities lists the service types the vendor's capability flags declare
func (v Vendor) Capabilities() []ServiceType {
	var out []ServiceType
	flags := []struct {
		on      bool
		service ServiceType
	}{
		{v.HasTubeLaser, ServiceTubeLaser},
		{v.HasSheetLaser, ServiceSheetLaser},
		{v.HasCNCMachining, ServiceCNCMachining},
		{v.HasVMCMachining, ServiceVMCMachining},
		{v.Has3DPrinting, Service3DPrinting},
	}
	for _, f := range flags {
		if f.on {
			out = append(out, f.service)
		}
	}
	return out
}

// OTIFPercentage computes the vendor's OTIF rate over its loaded assignments
func (v Vendor) OTIFPercentage() float64 {
	return CalculateOTIFPercentage(v.Assignments)
}
