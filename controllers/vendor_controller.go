package controllers

import (
	"net/http"

	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
)

// VendorRequest represents the request body for creating or updating a vendor
type VendorRequest struct {
	CompanyName           string  `json:"company_name" binding:"required,max=200"`
	ContactPerson         string  `json:"contact_person" binding:"max=100"`
	Email                 string  `json:"email" binding:"omitempty,email"`
	Phone                 string  `json:"phone" binding:"max=20"`
	Address               string  `json:"address"`
	PrimaryService        string  `json:"primary_service" binding:"required"`
	SecondaryServices     string  `json:"secondary_services"`
	GSTNumber             string  `json:"gst_number" binding:"max=20"`
	PANNumber             string  `json:"pan_number" binding:"max=20"`
	Status                string  `json:"status"`
	Rating                float64 `json:"rating"`
	HasTubeLaser          bool    `json:"has_tube_laser"`
	TubeLaserDetails      string  `json:"tube_laser_details"`
	HasSheetLaser         bool    `json:"has_sheet_laser"`
	SheetLaserDetails     string  `json:"sheet_laser_details"`
	HasCNCMachining       bool    `json:"has_cnc_machining"`
	CNCMachiningDetails   string  `json:"cnc_machining_details"`
	HasVMCMachining       bool    `json:"has_vmc_machining"`
	VMCMachiningDetails   string  `json:"vmc_machining_details"`
	Has3DPrinting         bool    `json:"has_3d_printing"`
	Printing3DDetails     string  `json:"printing_3d_details"`
	MaxMaterialThickness  string  `json:"max_material_thickness" binding:"max=50"`
	MaterialTypes         string  `json:"material_types"`
	ProductionCapacity    string  `json:"production_capacity"`
	QualityCertifications string  `json:"quality_certifications"`
}

func (r VendorRequest) input() services.VendorInput {
	return services.VendorInput{
		CompanyName:           r.CompanyName,
		ContactPerson:         r.ContactPerson,
		Email:                 r.Email,
		Phone:                 r.Phone,
		Address:               r.Address,
		PrimaryService:        models.ServiceType(r.PrimaryService),
		SecondaryServices:     r.SecondaryServices,
		GSTNumber:             r.GSTNumber,
		PANNumber:             r.PANNumber,
		Status:                models.VendorStatus(r.Status),
		Rating:                r.Rating,
		HasTubeLaser:          r.HasTubeLaser,
		TubeLaserDetails:      r.TubeLaserDetails,
		HasSheetLaser:         r.HasSheetLaser,
		SheetLaserDetails:     r.SheetLaserDetails,
		HasCNCMachining:       r.HasCNCMachining,
		CNCMachiningDetails:   r.CNCMachiningDetails,
		HasVMCMachining:       r.HasVMCMachining,
		VMCMachiningDetails:   r.VMCMachiningDetails,
		Has3DPrinting:         r.Has3DPrinting,
		Printing3DDetails:     r.Printing3DDetails,
		MaxMaterialThickness:  r.MaxMaterialThickness,
		MaterialTypes:         r.MaterialTypes,
		ProductionCapacity:    r.ProductionCapacity,
		QualityCertifications: r.QualityCertifications,
	}
}

// ListVendors handles GET /crm/vendors with status, primary_service, search and paging filters
func (a *API) ListVendors(c *gin.Context) {
	vendors, page, err := a.vendors.ListVendors(c.Request.Context(), services.VendorFilter{
		Status:         models.VendorStatus(c.Query("status")),
		PrimaryService: models.ServiceType(c.Query("primary_service")),
		Search:         c.Query("search"),
		Page:           queryInt(c, "page"),
		PageSize:       queryInt(c, "page_size"),
	})
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"vendors":    vendors,
		"pagination": page,
	})
}

// CreateVendor handles POST /crm/vendors
func (a *API) CreateVendor(c *gin.Context) {
	pm, ok := a.currentProjectManager(c)
	if !ok {
		return
	}

	var req VendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	vendor, err := a.vendors.CreateVendor(c.Request.Context(), req.input(), pm)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, vendor)
}

// GetVendor handles GET /crm/vendors/:id - the vendor, its assignments and delivery metrics
func (a *API) GetVendor(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	vendor, metrics, err := a.vendors.VendorMetrics(c.Request.Context(), id)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"vendor":       vendor,
		"capabilities": vendor.Capabilities(),
		"metrics":      metrics,
	})
}

// UpdateVendor handles PUT /crm/vendors/:id
func (a *API) UpdateVendor(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req VendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	vendor, err := a.vendors.UpdateVendor(c.Request.Context(), id, req.input())
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, vendor)
}
