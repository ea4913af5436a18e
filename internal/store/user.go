package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ridehub/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
		id, first_name, last_name, email, phone, role,
		license_number, vehicle_model, vehicle_year, license_plate,
		profile_photo_id, password_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user           types.User
		licenseNumber  sql.NullString
		vehicleModel   sql.NullString
		vehicleYear    sql.NullInt64
		licensePlate   sql.NullString
		profilePhotoID sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.Role,
		&licenseNumber,
		&vehicleModel,
		&vehicleYear,
		&licensePlate,
		&profilePhotoID,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	if licenseNumber.Valid {
		user.Driver = &types.DriverInfo{
			LicenseNumber: licenseNumber.String,
			VehicleModel:  vehicleModel.String,
			VehicleYear:   int(vehicleYear.Int64),
			LicensePlate:  licensePlate.String,
		}
	}
	if profilePhotoID.Valid {
		id := profilePhotoID.String
		user.ProfilePhotoID = &id
	}
	return user, nil
}

func driverArgs(driver *types.DriverInfo) (license, model sql.NullString, year sql.NullInt64, plate sql.NullString) {
	if driver == nil {
		return
	}
	license = sql.NullString{String: driver.LicenseNumber, Valid: true}
	model = sql.NullString{String: driver.VehicleModel, Valid: true}
	year = sql.NullInt64{Int64: int64(driver.VehicleYear), Valid: true}
	plate = sql.NullString{String: driver.LicensePlate, Valid: true}
	return
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM users WHERE deleted_at IS NULL`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + userColumns + `
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	license, model, year, plate := driverArgs(user.Driver)

	const query = `
		INSERT INTO users (
			id, first_name, last_name, email, phone, role,
			license_number, vehicle_model, vehicle_year, license_plate,
			password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.Role,
		license,
		model,
		year,
		plate,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, mapWriteError(err)
	}
	return user, nil
}

// Update writes the mutable profile fields. Email, role, password and the
// profile photo reference are not changed here.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	license, model, year, plate := driverArgs(user.Driver)

	const query = `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			phone = $3,
			license_number = $4,
			vehicle_model = $5,
			vehicle_year = $6,
			license_plate = $7,
			updated_at = $8
		WHERE id = $9 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Phone,
		license,
		model,
		year,
		plate,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// Delete soft-deletes the user; the row is kept for its photos.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
