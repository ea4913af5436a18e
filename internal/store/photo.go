package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ridehub/apiserver/types"
)

// PhotoRepository handles persistence for photo metadata.
type PhotoRepository struct {
	db *sql.DB
}

func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

const photoColumns = `
		id, user_id, filename, object_key, content_type, size, is_profile, uploaded_at`

func scanPhoto(row rowScanner) (types.Photo, error) {
	var photo types.Photo
	err := row.Scan(
		&photo.ID,
		&photo.UserID,
		&photo.Filename,
		&photo.ObjectKey,
		&photo.ContentType,
		&photo.Size,
		&photo.IsProfile,
		&photo.UploadedAt,
	)
	return photo, err
}

func (r *PhotoRepository) Create(ctx context.Context, photo types.Photo) (types.Photo, error) {
	const query = `
		INSERT INTO photos (id, user_id, filename, object_key, content_type, size, is_profile, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		photo.ID,
		photo.UserID,
		photo.Filename,
		photo.ObjectKey,
		photo.ContentType,
		photo.Size,
		photo.UploadedAt,
	); err != nil {
		return types.Photo{}, mapWriteError(err)
	}
	photo.IsProfile = false
	return photo, nil
}

func (r *PhotoRepository) Get(ctx context.Context, id string) (types.Photo, error) {
	query := `SELECT` + photoColumns + `
		FROM photos
		WHERE id = $1`
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Photo{}, ErrNotFound
		}
		return types.Photo{}, err
	}
	return photo, nil
}

func (r *PhotoRepository) GetByFilename(ctx context.Context, filename string) (types.Photo, error) {
	query := `SELECT` + photoColumns + `
		FROM photos
		WHERE filename = $1`
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, filename))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Photo{}, ErrNotFound
		}
		return types.Photo{}, err
	}
	return photo, nil
}

// ListByUser returns the user's photos, most recent first.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID string) ([]types.Photo, error) {
	query := `SELECT` + photoColumns + `
		FROM photos
		WHERE user_id = $1
		ORDER BY uploaded_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := make([]types.Photo, 0)
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return photos, nil
}

// SetProfile makes photoID the only profile photo of userID.
//
// The users row is updated first so that concurrent calls for the same user
// serialize on its row lock; the flag flip then runs against the committed
// state of the previous caller.
func (r *PhotoRepository) SetProfile(ctx context.Context, userID, photoID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const lockUser = `
		UPDATE users
		SET profile_photo_id = $2,
			updated_at = NOW()
		WHERE id = $1
			AND deleted_at IS NULL
			AND EXISTS (SELECT 1 FROM photos WHERE id = $2 AND user_id = $1)`
	result, err := tx.ExecContext(ctx, lockUser, userID, photoID)
	if err != nil {
		return fmt.Errorf("update profile reference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	const unsetOthers = `
		UPDATE photos
		SET is_profile = FALSE
		WHERE user_id = $1 AND is_profile AND id <> $2`
	if _, err := tx.ExecContext(ctx, unsetOthers, userID, photoID); err != nil {
		return fmt.Errorf("clear profile flag: %w", err)
	}

	const setTarget = `
		UPDATE photos
		SET is_profile = TRUE
		WHERE id = $2 AND user_id = $1`
	if _, err := tx.ExecContext(ctx, setTarget, userID, photoID); err != nil {
		return fmt.Errorf("set profile flag: %w", err)
	}

	return tx.Commit()
}

// Delete removes the metadata row. A users.profile_photo_id pointing at it is
// cleared by the foreign key.
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM photos WHERE id = $1`
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
