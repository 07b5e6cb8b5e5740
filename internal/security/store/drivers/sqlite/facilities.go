package sqlite

import (
	"context"
	"database/sql"

	"github.com/okapicare/tenantguard/internal/security/domain"
)

type facilitiesRepo struct {
	db dbtx
}

func (r *facilitiesRepo) GetFacilityByID(ctx context.Context, id string) (domain.Facility, error) {
	var f domain.Facility
	var ownerID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, claim_status, created_at, updated_at
		FROM facilities WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &ownerID, &f.ClaimStatus, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return domain.Facility{}, mapNotFound(err)
	}
	f.OwnerID = mapNullStringPtr(ownerID)
	return f, nil
}

func (r *facilitiesRepo) ListFacilitiesByOwner(ctx context.Context, ownerID string) ([]domain.Facility, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, owner_id, claim_status, created_at, updated_at
		FROM facilities WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []domain.Facility
	for rows.Next() {
		var f domain.Facility
		var oid sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &oid, &f.ClaimStatus, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.OwnerID = mapNullStringPtr(oid)
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

func (r *facilitiesRepo) CreateFacility(ctx context.Context, f domain.Facility) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO facilities (id, name, owner_id, claim_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		f.ID, f.Name, mapOptionalString(f.OwnerID), f.ClaimStatus)
	return mapConstraint(err)
}

func (r *facilitiesRepo) UpdateFacilityClaim(ctx context.Context, id string, ownerID *string, status domain.ClaimStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE facilities
		SET owner_id = ?, claim_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		mapOptionalString(ownerID), status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
