package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
	"github.com/ksbdigital/be-spend-approvals/internal/database"
	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// VendorRepository reads vendor reference data. VendorID is the only valid
// steady-state foreign key; the by-name lookup exists for requests created
// before vendor ids were stamped and should not gain new callers.
type VendorRepository struct {
	db *database.DB
}

// NewVendorRepository creates a new VendorRepository.
func NewVendorRepository(db *database.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

const vendorColumns = `
	id, name, code, tier, rating, category, status,
	contact_email, contact_phone, created_at, updated_at
`

// GetByID retrieves a vendor by primary key.
func (r *VendorRepository) GetByID(ctx context.Context, id string) (*model.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	v, err := r.scanVendor(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("vendor", id)
	}
	return v, err
}

// GetByName retrieves a vendor by exact name. Legacy fallback only; a vendor
// rename orphans every request that joined on name.
func (r *VendorRepository) GetByName(ctx context.Context, name string) (*model.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE name = $1`

	v, err := r.scanVendor(r.db.QueryRow(ctx, query, name))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("vendor", name)
	}
	return v, err
}

// ListActive returns all active vendors ordered by name.
func (r *VendorRepository) ListActive(ctx context.Context) ([]*model.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE status = 'active' ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list vendors")
	}
	defer rows.Close()

	var vendors []*model.Vendor
	for rows.Next() {
		v, err := r.scanVendor(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan vendor")
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// ── scan helper ───────────────────────────────────────────────────────────────

type vendorScanner interface {
	Scan(dest ...any) error
}

func (r *VendorRepository) scanVendor(row vendorScanner) (*model.Vendor, error) {
	v := &model.Vendor{}
	err := row.Scan(
		&v.ID,
		&v.Name,
		&v.Code,
		&v.Tier,
		&v.Rating,
		&v.Category,
		&v.Status,
		&v.ContactEmail,
		&v.ContactPhone,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
