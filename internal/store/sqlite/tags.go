package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, type, name, created_at, updated_at, deleted_at`

func scanTag(row scanner) (*domain.Tag, error) {
	var (
		t         domain.Tag
		tagType   string
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)

	if err := row.Scan(&t.ID, &tagType, &t.Name, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	t.Type = domain.TagType(tagType)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if t.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a tag and hands it to the tag indexer.
// Returns store.ErrAlreadyExists on a duplicate (type, name).
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, type, name, name_lower, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID,
		string(t.Type),
		t.Name,
		strings.ToLower(t.Name),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert tag: %w", err)
	}

	if err := s.indexer().IndexTag(ctx, t); err != nil {
		s.logger.Warn("failed to index tag", "tag_id", t.ID, "error", err)
	}
	return nil
}

// GetTag retrieves a live tag by ID.
func (s *Store) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ? AND deleted_at IS NULL`, tagID)
	t, err := scanTag(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (s *Store) getTagByName(ctx context.Context, tagType domain.TagType, name string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE type = ? AND name_lower = ? AND deleted_at IS NULL`,
		string(tagType), strings.ToLower(name))
	t, err := scanTag(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// FindOrCreateTag finds a tag by type and case-insensitive name or creates it.
// Returns (tag, created, error).
func (s *Store) FindOrCreateTag(ctx context.Context, tagType domain.TagType, name string) (*domain.Tag, bool, error) {
	existing, err := s.getTagByName(ctx, tagType, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	tagID, err := id.Generate(id.Tag)
	if err != nil {
		return nil, false, fmt.Errorf("generate tag id: %w", err)
	}
	t := &domain.Tag{Type: tagType, Name: name}
	t.ID = tagID
	t.InitTimestamps()

	if err := s.CreateTag(ctx, t); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with a concurrent create.
			existing, err := s.getTagByName(ctx, tagType, name)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return t, true, nil
}

// ListTags returns the live tags of one type ordered by name, or every tag when tagType is empty.
func (s *Store) ListTags(ctx context.Context, tagType domain.TagType) ([]*domain.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE deleted_at IS NULL`
	var args []any
	if tagType != "" {
		query += ` AND type = ?`
		args = append(args, string(tagType))
	}
	query += ` ORDER BY name_lower ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// associationColumns selects an association joined with its tag.
// Must match the scan order in scanAssociation.
const associationColumns = `a.id, a.owner_kind, a.owner_id, a.tag_id, a.created_at, a.updated_at, a.deleted_at,
	t.id, t.type, t.name, t.created_at, t.updated_at, t.deleted_at`

func scanAssociation(row scanner) (*domain.TagAssociation, error) {
	var (
		a          domain.TagAssociation
		ownerKind  string
		createdAt  string
		updatedAt  string
		deletedAt  sql.NullString
		tagType    string
		tagCreated string
		tagUpdated string
		tagDeleted sql.NullString
	)

	err := row.Scan(
		&a.ID, &ownerKind, &a.Owner.ID, &a.TagID, &createdAt, &updatedAt, &deletedAt,
		&a.Tag.ID, &tagType, &a.Tag.Name, &tagCreated, &tagUpdated, &tagDeleted,
	)
	if err != nil {
		return nil, err
	}
	a.Owner.Kind = domain.OwnerKind(ownerKind)
	a.Tag.Type = domain.TagType(tagType)

	for _, ts := range []struct {
		raw string
		dst *time.Time
	}{
		{createdAt, &a.CreatedAt},
		{updatedAt, &a.UpdatedAt},
		{tagCreated, &a.Tag.CreatedAt},
		{tagUpdated, &a.Tag.UpdatedAt},
	} {
		if *ts.dst, err = parseTime(ts.raw); err != nil {
			return nil, err
		}
	}
	if a.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	if a.Tag.DeletedAt, err = parseNullableTime(tagDeleted); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListTagAssociations returns the owner's live associations, oldest first.
func (s *Store) ListTagAssociations(ctx context.Context, owner domain.Owner) ([]domain.TagAssociation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+associationColumns+`
		FROM tag_associations a
		JOIN tags t ON t.id = a.tag_id
		WHERE a.owner_kind = ? AND a.owner_id = ? AND a.deleted_at IS NULL
		ORDER BY a.created_at ASC, a.id ASC`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assocs := []domain.TagAssociation{}
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, *a)
	}
	return assocs, rows.Err()
}

// GetTagAssociation retrieves a live association by ID.
func (s *Store) GetTagAssociation(ctx context.Context, assocID string) (*domain.TagAssociation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+associationColumns+`
		FROM tag_associations a
		JOIN tags t ON t.id = a.tag_id
		WHERE a.id = ? AND a.deleted_at IS NULL`, assocID)
	a, err := scanAssociation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// CreateTagAssociation links tagID to owner. Returns store.ErrNotFound when the tag does not exist.
func (s *Store) CreateTagAssociation(ctx context.Context, owner domain.Owner, tagID string) (*domain.TagAssociation, error) {
	tag, err := s.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}

	assocID, err := id.Generate(id.TagAssociation)
	if err != nil {
		return nil, fmt.Errorf("generate association id: %w", err)
	}
	a := &domain.TagAssociation{Owner: owner, TagID: tagID, Tag: *tag}
	a.ID = assocID
	a.InitTimestamps()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tag_associations (id, owner_kind, owner_id, tag_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID,
		string(owner.Kind),
		owner.ID,
		tagID,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert tag association: %w", err)
	}
	return a, nil
}

// DeleteTagAssociation soft-deletes an association.
func (s *Store) DeleteTagAssociation(ctx context.Context, assocID string) error {
	now := formatTime(time.Now().UTC())
	result, err := s.db.ExecContext(ctx, `
		UPDATE tag_associations SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, assocID)
	if err != nil {
		return fmt.Errorf("delete tag association: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
