package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
)

const attachmentColumns = `id, path, mime_type, title, COALESCE(parent_id, 0), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttachment(row rowScanner) (*Attachment, error) {
	var a Attachment
	var created, updated int64
	if err := row.Scan(&a.ID, &a.Path, &a.MimeType, &a.Title, &a.ParentID, &created, &updated); err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(created, 0)
	a.UpdatedAt = time.Unix(updated, 0)
	return &a, nil
}

// TitleFromPath returns the base name of path without its extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// InsertItem registers a file and returns its id. Registering a path that
// already exists refreshes its MIME type and returns the existing id.
func (d *Database) InsertItem(ctx context.Context, path, mimeType, title string, parentID int64) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_item", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if mimeType == "" {
		mimeType = mediatypes.MimeFromPath(path)
	}
	if title == "" {
		title = TitleFromPath(path)
	}
	parent := sql.NullInt64{Int64: parentID, Valid: parentID != 0}

	var id int64
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO attachments (path, mime_type, title, parent_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mime_type = excluded.mime_type,
			updated_at = strftime('%s', 'now')
		RETURNING id
	`, path, mimeType, title, parent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attachment %s: %w", path, err)
	}
	return id, nil
}

// GetItem returns one attachment.
func (d *Database) GetItem(ctx context.Context, id int64) (*Attachment, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_item", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	a, err := scanAttachment(d.db.QueryRowContext(ctx,
		"SELECT "+attachmentColumns+" FROM attachments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return a, err
}

// ListItems returns up to limit attachments starting at offset, ordered by
// ascending id so repeated pages walk the library deterministically.
func (d *Database) ListItems(ctx context.Context, offset, limit int) ([]Attachment, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_items", start, err) }()

	if offset < 0 {
		offset = 0
	}

	var items []Attachment
	items, err = d.queryAttachments(ctx,
		"SELECT "+attachmentColumns+" FROM attachments ORDER BY id ASC LIMIT ? OFFSET ?", limit, offset)
	return items, err
}

// ListAllItems returns every attachment ordered by ascending id.
func (d *Database) ListAllItems(ctx context.Context) ([]Attachment, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_all_items", start, err) }()

	var items []Attachment
	items, err = d.queryAttachments(ctx, "SELECT "+attachmentColumns+" FROM attachments ORDER BY id ASC")
	return items, err
}

func (d *Database) queryAttachments(ctx context.Context, query string, args ...interface{}) ([]Attachment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close rows: %v", closeErr)
		}
	}()

	var items []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

// SetPath points an attachment at a new file and refreshes its MIME type
// from the new extension.
func (d *Database) SetPath(ctx context.Context, id int64, newPath string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_path", start, err) }()

	err = d.updateAttachment(ctx, id,
		"UPDATE attachments SET path = ?, mime_type = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
		newPath, mediatypes.MimeFromPath(newPath), id)
	return err
}

// SetTitle changes an attachment's display title.
func (d *Database) SetTitle(ctx context.Context, id int64, title string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_title", start, err) }()

	err = d.updateAttachment(ctx, id,
		"UPDATE attachments SET title = ?, updated_at = strftime('%s', 'now') WHERE id = ?", title, id)
	return err
}

func (d *Database) updateAttachment(ctx context.Context, id int64, query string, args ...interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return nil
}

// CountItems returns the number of attachments.
func (d *Database) CountItems(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_items", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attachments").Scan(&n)
	return n, err
}

// CountByMime returns the number of attachments per MIME type.
func (d *Database) CountByMime(ctx context.Context) (map[string]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_items", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT mime_type, COUNT(*) FROM attachments GROUP BY mime_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mime string
		var n int
		if err = rows.Scan(&mime, &n); err != nil {
			return nil, err
		}
		counts[mime] = n
	}
	err = rows.Err()
	return counts, err
}

// ImportDirectory registers every image and video below dir that is not yet
// in the library. Hidden files and directories are skipped. It returns the
// number of newly registered files.
func (d *Database) ImportDirectory(ctx context.Context, dir string) (int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(entry.Name(), ".") && path != dir {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() && mediatypes.GetFileType(mediatypes.MimeFromPath(path)) != mediatypes.FileTypeOther {
			abs, absErr := filepath.Abs(path)
			if absErr != nil {
				return absErr
			}
			paths = append(paths, abs)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, txStart, err := d.beginTx(ctx)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, path := range paths {
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO attachments (path, mime_type, title) VALUES (?, ?, ?)",
			path, mediatypes.MimeFromPath(path), TitleFromPath(path))
		if err != nil {
			break
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}

	if err = endTx(tx, txStart, err); err != nil {
		return 0, fmt.Errorf("failed to import %s: %w", dir, err)
	}

	logging.Info("Imported %d new files from %s (%d scanned)", imported, dir, len(paths))
	return imported, nil
}
