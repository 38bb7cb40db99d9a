// Package store persists user-owned configuration rows. Every query is
// filtered by the owning user id; another user's row is indistinguishable
// from a missing one.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/testforge/internal/database"
	"github.com/hugh/testforge/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already exists")
)

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

func validationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Scope narrows a tenant query.
type Scope func(*gorm.DB) *gorm.DB

func ByName(name string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where("name = ?", name) }
}

func ByField(column string, value interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where(column+" = ?", value) }
}

func excludeID(id uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where("id <> ?", id) }
}

// Repository is the tenant-scoped CRUD shared by every configuration kind.
type Repository[T any] struct {
	db *gorm.DB
}

func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

func (r *Repository[T]) scoped(ctx context.Context, userID uuid.UUID, scopes []Scope) *gorm.DB {
	q := r.db.WithContext(ctx).Model(new(T)).Where("user_id = ?", userID)
	for _, s := range scopes {
		q = s(q)
	}
	return q
}

// Create inserts row after checking its name is free within unique.
func (r *Repository[T]) Create(ctx context.Context, row *T, unique ...Scope) error {
	owned, ok := any(row).(models.Owned)
	if !ok {
		return fmt.Errorf("%T is not user-owned", row)
	}

	taken, err := r.Exists(ctx, owned.OwnerID(), append([]Scope{ByName(owned.DisplayName())}, unique...)...)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateName
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("creating %T: %w", row, err)
	}
	return nil
}

func (r *Repository[T]) Exists(ctx context.Context, userID uuid.UUID, scopes ...Scope) (bool, error) {
	var count int64
	if err := r.scoped(ctx, userID, scopes).Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting rows: %w", err)
	}
	return count > 0, nil
}

// List returns the user's rows, most recently updated first.
func (r *Repository[T]) List(ctx context.Context, userID uuid.UUID, scopes ...Scope) ([]T, error) {
	var rows []T
	if err := r.scoped(ctx, userID, scopes).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	return rows, nil
}

func (r *Repository[T]) Get(ctx context.Context, userID, id uuid.UUID) (*T, error) {
	return r.FindOne(ctx, userID, ByField("id", id))
}

func (r *Repository[T]) FindOne(ctx context.Context, userID uuid.UUID, scopes ...Scope) (*T, error) {
	row := new(T)
	if err := r.scoped(ctx, userID, scopes).Order("updated_at DESC").First(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading row: %w", err)
	}
	return row, nil
}

// Update applies only the given columns and bumps updated_at. A new name is
// checked against unique the same way Create does.
func (r *Repository[T]) Update(ctx context.Context, userID, id uuid.UUID, fields map[string]interface{}, unique ...Scope) (*T, error) {
	row, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return row, nil
	}

	if name, ok := fields["name"].(string); ok {
		taken, err := r.Exists(ctx, userID, append([]Scope{ByName(name), excludeID(id)}, unique...)...)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicateName
		}
	}

	if err := r.db.WithContext(ctx).Model(row).Updates(fields).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("updating row: %w", err)
	}

	return r.Get(ctx, userID, id)
}

// Delete removes the row for good so its name can be reused.
func (r *Repository[T]) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Unscoped().
		Where("id = ? AND user_id = ?", id, userID).
		Delete(new(T))
	if result.Error != nil {
		return fmt.Errorf("deleting row: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Resolve accepts either a UUID or a name.
func (r *Repository[T]) Resolve(ctx context.Context, userID uuid.UUID, idOrName string, scopes ...Scope) (*T, error) {
	if id, err := uuid.Parse(idOrName); err == nil {
		return r.FindOne(ctx, userID, append([]Scope{ByField("id", id)}, scopes...)...)
	}
	return r.FindOne(ctx, userID, append([]Scope{ByName(idOrName)}, scopes...)...)
}
