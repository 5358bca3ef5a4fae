package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fspotfs/fspotfs/util"
)

// ListTags returns every tag. A NULL or 0 category_id is reported as RootID.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category_id FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var (
			t      Tag
			name   sql.NullString
			parent sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &name, &parent); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		t.Name = name.String
		t.ParentID = parent.Int64
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// InsertTag creates a category tag under parentID and returns its id.
func (s *Store) InsertTag(ctx context.Context, name string, parentID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (name, category_id, is_category, sort_priority, icon) VALUES (?, ?, 1, 0, NULL)`,
		name, parentID)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("insert tag %q: %w", name, util.ErrAlreadyExists)
	}
	if err != nil {
		return 0, fmt.Errorf("insert tag %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert tag %q: %w", name, err)
	}
	s.logger.Debug("tag inserted", "id", id, "name", name, "parent", parentID)
	return id, nil
}

func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	return affected(res, fmt.Sprintf("delete tag %d", id))
}

func (s *Store) RenameTag(ctx context.Context, id int64, newName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tags SET name = ? WHERE id = ?`, newName, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("rename tag %d to %q: %w", id, newName, util.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("rename tag %d: %w", id, err)
	}
	return affected(res, fmt.Sprintf("rename tag %d", id))
}

// UntagAll removes every photo association of tagID.
func (s *Store) UntagAll(ctx context.Context, tagID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM photo_tags WHERE tag_id = ?`, tagID); err != nil {
		return fmt.Errorf("untag all from %d: %w", tagID, err)
	}
	return nil
}

func (s *Store) HasTag(ctx context.Context, photoID, tagID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM photo_tags WHERE photo_id = ? AND tag_id = ?`, photoID, tagID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has tag: %w", err)
	}
	return n > 0, nil
}

// LinkTag tags a photo. Tagging twice reports util.ErrAlreadyExists.
func (s *Store) LinkTag(ctx context.Context, photoID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO photo_tags (photo_id, tag_id) VALUES (?, ?)`, photoID, tagID)
	if isUniqueViolation(err) {
		return fmt.Errorf("link photo %d to tag %d: %w", photoID, tagID, util.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("link photo %d to tag %d: %w", photoID, tagID, err)
	}
	return nil
}

func (s *Store) UnlinkTag(ctx context.Context, photoID, tagID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM photo_tags WHERE photo_id = ? AND tag_id = ?`, photoID, tagID)
	if err != nil {
		return fmt.Errorf("unlink photo %d from tag %d: %w", photoID, tagID, err)
	}
	return affected(res, fmt.Sprintf("unlink photo %d from tag %d", photoID, tagID))
}
