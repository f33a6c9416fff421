package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VendorService manages the supplier directory
type VendorService struct {
	db       *gorm.DB
	attempts int
}

// NewVendorService creates a vendor service bound to db.
// attempts bounds how many vendor codes are tried before giving up.
func NewVendorService(db *gorm.DB, attempts int) *VendorService {
	if attempts < 1 {
		attempts = 3
	}
	return &VendorService{db: db, attempts: attempts}
}

// VendorInput carries the editable vendor fields
type VendorInput struct {
	CompanyName           string
	ContactPerson         string
	Email                 string
	Phone                 string
	Address               string
	PrimaryService        models.ServiceType
	SecondaryServices     string
	GSTNumber             string
	PANNumber             string
	Status                models.VendorStatus
	Rating                float64
	HasTubeLaser          bool
	TubeLaserDetails      string
	HasSheetLaser         bool
	SheetLaserDetails     string
	HasCNCMachining       bool
	CNCMachiningDetails   string
	HasVMCMachining       bool
	VMCMachiningDetails   string
	Has3DPrinting         bool
	Printing3DDetails     string
	MaxMaterialThickness  string
	MaterialTypes         string
	ProductionCapacity    string
	QualityCertifications string
}

func (in *VendorInput) validate() error {
	if strings.TrimSpace(in.CompanyName) == "" {
		return Validation("MISSING_COMPANY_NAME", "Vendor company name is required")
	}
	if !in.PrimaryService.Valid() {
		return Validation("INVALID_SERVICE_TYPE", "Unknown primary service %q", in.PrimaryService)
	}
	if in.Status == "" {
		in.Status = models.VendorActive
	}
	if !in.Status.Valid() {
		return Validation("INVALID_VENDOR_STATUS", "Unknown vendor status %q", in.Status)
	}
	if in.Rating < models.MinVendorRating || in.Rating > models.MaxVendorRating {
		return Validation("INVALID_RATING", "Vendor rating must be between %d and %d", models.MinVendorRating, models.MaxVendorRating)
	}
	return nil
}

func (in VendorInput) applyTo(v *models.Vendor) {
	v.CompanyName = strings.TrimSpace(in.CompanyName)
	v.ContactPerson = in.ContactPerson
	v.Email = in.Email
	v.Phone = in.Phone
	v.Address = in.Address
	v.PrimaryService = in.PrimaryService
	v.SecondaryServices = in.SecondaryServices
	v.GSTNumber = in.GSTNumber
	v.PANNumber = in.PANNumber
	v.Status = in.Status
	v.Rating = in.Rating
	v.HasTubeLaser = in.HasTubeLaser
	v.TubeLaserDetails = in.TubeLaserDetails
	v.HasSheetLaser = in.HasSheetLaser
	v.SheetLaserDetails = in.SheetLaserDetails
	v.HasCNCMachining = in.HasCNCMachining
	v.CNCMachiningDetails = in.CNCMachiningDetails
	v.HasVMCMachining = in.HasVMCMachining
	v.VMCMachiningDetails = in.VMCMachiningDetails
	v.Has3DPrinting = in.Has3DPrinting
	v.Printing3DDetails = in.Printing3DDetails
	v.MaxMaterialThickness = in.MaxMaterialThickness
	v.MaterialTypes = in.MaterialTypes
	v.ProductionCapacity = in.ProductionCapacity
	v.QualityCertifications = in.QualityCertifications
}

func vendorNotFound(id uint) *ServiceError {
	return NotFound("VENDOR_NOT_FOUND", "Vendor %d not found", id)
}

// CreateVendor adds a vendor with the next sequential vendor code
func (s *VendorService) CreateVendor(ctx context.Context, in VendorInput, actor *models.ProjectManager) (*models.Vendor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, err := s.nextVendorCode(db)
		if err != nil {
			return nil, err
		}

		vendor := models.Vendor{VendorCode: code}
		in.applyTo(&vendor)
		if actor != nil {
			vendor.CreatedByID = &actor.ID
		}

		err = db.Omit(clause.Associations).Create(&vendor).Error
		if err == nil {
			return &vendor, nil
		}
		if !IsUniqueViolation(err) {
			return nil, Internal("Failed to create vendor", err)
		}
		lastErr = err
	}

	return nil, Conflict("VENDOR_CODE_CONFLICT",
		fmt.Sprintf("Could not allocate a unique vendor code after %d attempts", s.attempts), lastErr)
}

// nextVendorCode derives the next code from the most recently created vendor
func (s *VendorService) nextVendorCode(db *gorm.DB) (string, error) {
	var last models.Vendor
	err := db.Order("id DESC").Limit(1).Find(&last).Error
	if err != nil {
		return "", Internal("Failed to read last vendor code", err)
	}

	code, err := utils.NextVendorCode(last.VendorCode)
	if err != nil {
		return "", Internal("Failed to derive vendor code", err)
	}
	return code, nil
}

// UpdateVendor replaces the editable fields of a vendor; the vendor code never changes
func (s *VendorService) UpdateVendor(ctx context.Context, id uint, in VendorInput) (*models.Vendor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var vendor models.Vendor
	if err := db.First(&vendor, id).Error; err != nil {
		return nil, wrapDBError(err, vendorNotFound(id), "", "Failed to load vendor")
	}

	in.applyTo(&vendor)
	if err := db.Omit(clause.Associations).Save(&vendor).Error; err != nil {
		return nil, Internal("Failed to update vendor", err)
	}
	return &vendor, nil
}

// GetVendor loads a vendor with its assignments, newest first
func (s *VendorService) GetVendor(ctx context.Context, id uint) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.db.WithContext(ctx).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("assigned_date DESC").Order("id DESC") }).
		Preload("Assignments.Order").
		First(&vendor, id).Error
	if err != nil {
		return nil, wrapDBError(err, vendorNotFound(id), "", "Failed to load vendor")
	}
	return &vendor, nil
}

// VendorMetrics summarises a vendor's delivery record
type VendorMetrics struct {
	TotalAssignments     int64   `json:"total_assignments"`
	CompletedAssignments int64   `json:"completed_assignments"`
	OTIFCount            int64   `json:"otif_count"`
	OTIFPercentage       float64 `json:"otif_percentage"`
}

// Metrics computes delivery metrics for a vendor's loaded assignments
func Metrics(assignments []models.VendorAssignment) VendorMetrics {
	m := VendorMetrics{TotalAssignments: int64(len(assignments))}
	for _, a := range assignments {
		if a.Order == nil || a.Order.Status != models.StatusCompleted {
			continue
		}
		m.CompletedAssignments++
		if a.IsOnTime && a.IsInFull {
			m.OTIFCount++
		}
	}
	m.OTIFPercentage = models.CalculateOTIFPercentage(assignments)
	return m
}

// VendorMetrics loads the vendor's assignments and computes its metrics
func (s *VendorService) VendorMetrics(ctx context.Context, id uint) (*models.Vendor, VendorMetrics, error) {
	vendor, err := s.GetVendor(ctx, id)
	if err != nil {
		return nil, VendorMetrics{}, err
	}
	return vendor, Metrics(vendor.Assignments), nil
}

// OTIFPercentage returns the vendor's OTIF rate over completed orders, 0 when there are none
func (s *VendorService) OTIFPercentage(ctx context.Context, id uint) (float64, error) {
	_, metrics, err := s.VendorMetrics(ctx, id)
	if err != nil {
		return 0, err
	}
	return metrics.OTIFPercentage, nil
}

// VendorFilter narrows ListVendors
type VendorFilter struct {
	Status         models.VendorStatus
	PrimaryService models.ServiceType
	Search         string
	Page           int
	PageSize       int
}

// VendorSummary is a vendor listing row with assignment counts
type VendorSummary struct {
	models.Vendor
	TotalAssignments     int64 `json:"total_assignments"`
	CompletedAssignments int64 `json:"completed_assignments"`
}

// ListVendors returns vendors newest-first with their assignment counts
func (s *VendorService) ListVendors(ctx context.Context, f VendorFilter) ([]VendorSummary, Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, Pagination{}, Validation("INVALID_VENDOR_STATUS", "Unknown vendor status %q", f.Status)
	}
	if f.PrimaryService != "" && !f.PrimaryService.Valid() {
		return nil, Pagination{}, Validation("INVALID_SERVICE_TYPE", "Unknown primary service %q", f.PrimaryService)
	}
	page, pageSize := normalizePage(f.Page, f.PageSize)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Vendor{}).Scopes(f.apply).Count(&total).Error; err != nil {
		return nil, Pagination{}, Internal("Failed to count vendors", err)
	}

	var vendors []models.Vendor
	err := db.Scopes(f.apply).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&vendors).Error
	if err != nil {
		return nil, Pagination{}, Internal("Failed to list vendors", err)
	}

	counts, err := assignmentCounts(db, vendorIDs(vendors))
	if err != nil {
		return nil, Pagination{}, err
	}

	summaries := make([]VendorSummary, len(vendors))
	for i, v := range vendors {
		c := counts[v.ID]
		summaries[i] = VendorSummary{Vendor: v, TotalAssignments: c.total, CompletedAssignments: c.completed}
	}
	return summaries, newPagination(page, pageSize, total), nil
}

func (f VendorFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.PrimaryService != "" {
		query = query.Where("primary_service = ?", f.PrimaryService)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"LOWER(company_name) LIKE ? OR LOWER(vendor_code) LIKE ? OR LOWER(contact_person) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like)
	}
	return query
}

type assignmentCount struct {
	total     int64
	completed int64
}

func vendorIDs(vendors []models.Vendor) []uint {
	ids := make([]uint, len(vendors))
	for i, v := range vendors {
		ids[i] = v.ID
	}
	return ids
}

// assignmentCounts returns total and completed-order assignment counts per vendor
func assignmentCounts(db *gorm.DB, ids []uint) (map[uint]assignmentCount, error) {
	out := make(map[uint]assignmentCount, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	type row struct {
		VendorID  uint
		Total     int64
		Completed int64
	}
	var rows []row
	err := db.Table("vendor_assignments").
		Select("vendor_assignments.vendor_id AS vendor_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN orders.status = ? THEN 1 ELSE 0 END) AS completed", models.StatusCompleted).
		Joins("JOIN orders ON orders.id = vendor_assignments.order_id").
		Where("vendor_assignments.vendor_id IN ?", ids).
		Group("vendor_assignments.vendor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, Internal("Failed to count vendor assignments", err)
	}

	for _, r := range rows {
		out[r.VendorID] = assignmentCount{total: r.Total, completed: r.Completed}
	}
	return out, nil
}

// ActiveVendors lists active vendors for assignment pickers
func (s *VendorService) ActiveVendors(ctx context.Context) ([]models.Vendor, error) {
	var vendors []models.Vendor
	err := s.db.WithContext(ctx).
		Where("status = ?", models.VendorActive).
		Order("company_name").
		Find(&vendors).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Internal("Failed to list active vendors", err)
	}
	return vendors, nil
}
