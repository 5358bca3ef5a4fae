package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fspotfs/fspotfs/util"
)

// The effective location of a photo is its default version when one exists.
const (
	photoSource = `
FROM photos p
LEFT JOIN photo_versions v ON v.photo_id = p.id AND v.version_id = p.default_version_id`

	effectiveFilename = `COALESCE(v.filename, p.filename)`
	effectiveBaseURI  = `COALESCE(v.base_uri, p.base_uri)`

	untaggedClause = `NOT EXISTS (SELECT 1 FROM photo_tags t WHERE t.photo_id = p.id)`
)

// exclusionClause filters out photos carrying any of the excluded tags.
func exclusionClause(excluded []int64) (string, []any) {
	if len(excluded) == 0 {
		return "", nil
	}
	args := make([]any, len(excluded))
	for i, id := range excluded {
		args[i] = id
	}
	clause := ` AND p.id NOT IN (SELECT DISTINCT x.photo_id FROM photo_tags x WHERE x.tag_id IN (` +
		placeholders(len(excluded)) + `))`
	return clause, args
}

// PhotosUnderTag returns the effective filenames of photos tagged tagID that
// carry none of the excluded tags.
func (s *Store) PhotosUnderTag(ctx context.Context, tagID int64, excluded []int64) ([]string, error) {
	clause, extra := exclusionClause(excluded)
	q := `SELECT ` + effectiveFilename + photoSource + `
JOIN photo_tags pt ON pt.photo_id = p.id
WHERE pt.tag_id = ?` + clause

	rows, err := s.db.QueryContext(ctx, q, append([]any{tagID}, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("photos under tag %d: %w", tagID, err)
	}
	return scanNames(rows)
}

// AllPhotos returns the effective filename of every cataloged photo.
func (s *Store) AllPhotos(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+effectiveFilename+photoSource)
	if err != nil {
		return nil, fmt.Errorf("all photos: %w", err)
	}
	return scanNames(rows)
}

// UntaggedPhotos returns the photos that carry no tag at all.
func (s *Store) UntaggedPhotos(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+effectiveFilename+photoSource+` WHERE `+untaggedClause)
	if err != nil {
		return nil, fmt.Errorf("untagged photos: %w", err)
	}
	return scanNames(rows)
}

func (s *Store) ResolveRealLocation(ctx context.Context, tagID int64, filename string, excluded []int64) (Location, error) {
	var (
		q    string
		args []any
	)
	sel := `SELECT p.id, ` + effectiveBaseURI + `, ` + effectiveFilename + photoSource
	if tagID == RootID {
		q = sel + ` WHERE ` + untaggedClause + ` AND ` + effectiveFilename + ` = ?`
		args = []any{filename}
	} else {
		clause, extra := exclusionClause(excluded)
		q = sel + `
JOIN photo_tags pt ON pt.photo_id = p.id
WHERE pt.tag_id = ? AND ` + effectiveFilename + ` = ?` + clause
		args = append([]any{tagID, filename}, extra...)
	}
	q += ` ORDER BY p.id LIMIT 1`

	var loc Location
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&loc.PhotoID, &loc.BaseURI, &loc.Filename)
	if errors.Is(err, sql.ErrNoRows) {
		return Location{}, fmt.Errorf("photo %q under tag %d: %w", filename, tagID, util.ErrNotFound)
	}
	if err != nil {
		return Location{}, fmt.Errorf("resolve %q under tag %d: %w", filename, tagID, err)
	}
	return loc, nil
}

// InsertPhoto records a new photo taken at t, with default version 1.
func (s *Store) InsertPhoto(ctx context.Context, t time.Time, baseURI, filename string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO photos (time, base_uri, filename, description, roll_id, default_version_id, rating, md5_sum)
		 VALUES (?, ?, ?, '', 1, 1, 0, NULL)`,
		t.Unix(), baseURI, filename)
	if err != nil {
		return 0, fmt.Errorf("insert photo %s%s: %w", baseURI, filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert photo %s%s: %w", baseURI, filename, err)
	}
	s.logger.Debug("photo inserted", "id", id, "base_uri", baseURI, "filename", filename)
	return id, nil
}

// InsertVersion records the "Original" version 1 of a photo.
func (s *Store) InsertVersion(ctx context.Context, photoID int64, baseURI, filename string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO photo_versions (photo_id, version_id, name, base_uri, filename, md5_sum, protected)
		 VALUES (?, 1, 'Original', ?, ?, NULL, 1)`,
		photoID, baseURI, filename)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert version of photo %d: %w", photoID, util.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert version of photo %d: %w", photoID, err)
	}
	return nil
}

// LookupPhotoID finds the photo stored at baseURI+filename, either as the
// photo itself or as one of its versions.
func (s *Store) LookupPhotoID(ctx context.Context, baseURI, filename string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
SELECT id FROM photos WHERE base_uri = ? AND filename = ?
UNION
SELECT photo_id FROM photo_versions WHERE base_uri = ? AND filename = ?
LIMIT 1`, baseURI, filename, baseURI, filename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("photo %s%s: %w", baseURI, filename, util.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup photo %s%s: %w", baseURI, filename, err)
	}
	return id, nil
}
