package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const bookColumns = `id, title, author, description, access_level, cover_key,
	thumbnail_key, file_key, page_count, created_at, updated_at`

func scanBookRow(scan func(dest ...interface{}) error) (Book, error) {
	var b Book
	err := scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.AccessLevel,
		&b.CoverKey, &b.ThumbnailKey, &b.FileKey, &b.PageCount, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const getBook = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

// GetBook fetches one book.
func (q *Queries) GetBook(ctx context.Context, id uuid.UUID) (Book, error) {
	return scanBookRow(q.db.QueryRowContext(ctx, getBook, id).Scan)
}

const listBooks = `SELECT ` + bookColumns + ` FROM books ORDER BY created_at DESC LIMIT $1 OFFSET $2`

// ListBooks pages through the book catalog, newest first.
func (q *Queries) ListBooks(ctx context.Context, limit, offset int32) ([]Book, error) {
	rows, err := q.db.QueryContext(ctx, listBooks, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBookRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const createBook = `
INSERT INTO books (id, title, author, description, access_level, page_count)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + bookColumns

// CreateBookParams holds the fields of a new book row.
type CreateBookParams struct {
	Title       string
	Author      string
	Description sql.NullString
	AccessLevel string
	PageCount   sql.NullInt32
}

// CreateBook inserts a book.
func (q *Queries) CreateBook(ctx context.Context, arg CreateBookParams) (Book, error) {
	return scanBookRow(q.db.QueryRowContext(ctx, createBook,
		uuid.New(), arg.Title, arg.Author, arg.Description, arg.AccessLevel, arg.PageCount).Scan)
}

const updateBook = `
UPDATE books
SET title = $2, author = $3, description = $4, access_level = $5, page_count = $6, updated_at = now()
WHERE id = $1
RETURNING ` + bookColumns

// UpdateBookParams holds the replacement fields of an existing book.
type UpdateBookParams struct {
	ID          uuid.UUID
	Title       string
	Author      string
	Description sql.NullString
	AccessLevel string
	PageCount   sql.NullInt32
}

// UpdateBook replaces a book's editable fields.
func (q *Queries) UpdateBook(ctx context.Context, arg UpdateBookParams) (Book, error) {
	return scanBookRow(q.db.QueryRowContext(ctx, updateBook,
		arg.ID, arg.Title, arg.Author, arg.Description, arg.AccessLevel, arg.PageCount).Scan)
}

const updateBookMedia = `
UPDATE books
SET cover_key = $2, thumbnail_key = $3, file_key = $4, updated_at = now()
WHERE id = $1`

// UpdateBookMediaParams points a book at its stored media objects.
type UpdateBookMediaParams struct {
	ID           uuid.UUID
	CoverKey     sql.NullString
	ThumbnailKey sql.NullString
	FileKey      sql.NullString
}

// UpdateBookMedia stores the media object keys for a book.
func (q *Queries) UpdateBookMedia(ctx context.Context, arg UpdateBookMediaParams) error {
	_, err := q.db.ExecContext(ctx, updateBookMedia, arg.ID, arg.CoverKey, arg.ThumbnailKey, arg.FileKey)
	return err
}

const deleteBook = `DELETE FROM books WHERE id = $1`

// DeleteBook removes a book.
func (q *Queries) DeleteBook(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteBook, id)
	return err
}

// =============================================================================
// Nashids
// =============================================================================

const nashidColumns = `id, title, performer, access_level, cover_key,
	thumbnail_key, audio_key, duration_seconds, created_at, updated_at`

func scanNashidRow(scan func(dest ...interface{}) error) (Nashid, error) {
	var n Nashid
	err := scan(&n.ID, &n.Title, &n.Performer, &n.AccessLevel, &n.CoverKey,
		&n.ThumbnailKey, &n.AudioKey, &n.DurationSeconds, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

const getNashid = `SELECT ` + nashidColumns + ` FROM nashids WHERE id = $1`

// GetNashid fetches one nashid.
func (q *Queries) GetNashid(ctx context.Context, id uuid.UUID) (Nashid, error) {
	return scanNashidRow(q.db.QueryRowContext(ctx, getNashid, id).Scan)
}

const listNashids = `SELECT ` + nashidColumns + ` FROM nashids ORDER BY created_at DESC LIMIT $1 OFFSET $2`

// ListNashids pages through the nashid catalog, newest first.
func (q *Queries) ListNashids(ctx context.Context, limit, offset int32) ([]Nashid, error) {
	rows, err := q.db.QueryContext(ctx, listNashids, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Nashid
	for rows.Next() {
		n, err := scanNashidRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const createNashid = `
INSERT INTO nashids (id, title, performer, access_level, duration_seconds)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + nashidColumns

// CreateNashidParams holds the fields of a new nashid row.
type CreateNashidParams struct {
	Title           string
	Performer       string
	AccessLevel     string
	DurationSeconds sql.NullInt32
}

// CreateNashid inserts a nashid.
func (q *Queries) CreateNashid(ctx context.Context, arg CreateNashidParams) (Nashid, error) {
	return scanNashidRow(q.db.QueryRowContext(ctx, createNashid,
		uuid.New(), arg.Title, arg.Performer, arg.AccessLevel, arg.DurationSeconds).Scan)
}

const updateNashid = `
UPDATE nashids
SET title = $2, performer = $3, access_level = $4, duration_seconds = $5, updated_at = now()
WHERE id = $1
RETURNING ` + nashidColumns

// UpdateNashidParams holds the replacement fields of an existing nashid.
type UpdateNashidParams struct {
	ID              uuid.UUID
	Title           string
	Performer       string
	AccessLevel     string
	DurationSeconds sql.NullInt32
}

// UpdateNashid replaces a nashid's editable fields.
func (q *Queries) UpdateNashid(ctx context.Context, arg UpdateNashidParams) (Nashid, error) {
	return scanNashidRow(q.db.QueryRowContext(ctx, updateNashid,
		arg.ID, arg.Title, arg.Performer, arg.AccessLevel, arg.DurationSeconds).Scan)
}

const updateNashidMedia = `
UPDATE nashids
SET cover_key = $2, thumbnail_key = $3, audio_key = $4, updated_at = now()
WHERE id = $1`

// UpdateNashidMediaParams points a nashid at its stored media objects.
type UpdateNashidMediaParams struct {
	ID           uuid.UUID
	CoverKey     sql.NullString
	ThumbnailKey sql.NullString
	AudioKey     sql.NullString
}

// UpdateNashidMedia stores the media object keys for a nashid.
func (q *Queries) UpdateNashidMedia(ctx context.Context, arg UpdateNashidMediaParams) error {
	_, err := q.db.ExecContext(ctx, updateNashidMedia, arg.ID, arg.CoverKey, arg.ThumbnailKey, arg.AudioKey)
	return err
}

const deleteNashid = `DELETE FROM nashids WHERE id = $1`

// DeleteNashid removes a nashid.
func (q *Queries) DeleteNashid(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteNashid, id)
	return err
}

// =============================================================================
// Favorites and offline items
// =============================================================================

const addFavorite = `
INSERT INTO favorites (user_id, content_type, content_id)
VALUES ($1, $2, $3)`

// LibraryItemParams addresses one (user, content) pair.
type LibraryItemParams struct {
	UserID      uuid.UUID
	ContentType string
	ContentID   uuid.UUID
}

// AddFavorite inserts a favorites row. Fails on the primary key when the
// item is already a favorite.
func (q *Queries) AddFavorite(ctx context.Context, arg LibraryItemParams) error {
	_, err := q.db.ExecContext(ctx, addFavorite, arg.UserID, arg.ContentType, arg.ContentID)
	return err
}

const removeFavorite = `
DELETE FROM favorites WHERE user_id = $1 AND content_type = $2 AND content_id = $3`

// RemoveFavorite deletes a favorites row, reporting whether one existed.
func (q *Queries) RemoveFavorite(ctx context.Context, arg LibraryItemParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, removeFavorite, arg.UserID, arg.ContentType, arg.ContentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const listFavorites = `
SELECT user_id, content_type, content_id, created_at
FROM favorites
WHERE user_id = $1 AND content_type = $2
ORDER BY created_at DESC`

// ListFavorites returns a user's favorites of one content type.
func (q *Queries) ListFavorites(ctx context.Context, userID uuid.UUID, contentType string) ([]LibraryItem, error) {
	return q.listLibraryItems(ctx, listFavorites, userID, contentType)
}

const addOfflineItem = `
INSERT INTO offline_items (user_id, content_type, content_id)
VALUES ($1, $2, $3)`

// AddOfflineItem inserts an offline download marker.
func (q *Queries) AddOfflineItem(ctx context.Context, arg LibraryItemParams) error {
	_, err := q.db.ExecContext(ctx, addOfflineItem, arg.UserID, arg.ContentType, arg.ContentID)
	return err
}

const removeOfflineItem = `
DELETE FROM offline_items WHERE user_id = $1 AND content_type = $2 AND content_id = $3`

// RemoveOfflineItem deletes an offline marker, reporting whether one existed.
func (q *Queries) RemoveOfflineItem(ctx context.Context, arg LibraryItemParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, removeOfflineItem, arg.UserID, arg.ContentType, arg.ContentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const listOfflineItems = `
SELECT user_id, content_type, content_id, created_at
FROM offline_items
WHERE user_id = $1 AND content_type = $2
ORDER BY created_at DESC`

// ListOfflineItems returns a user's offline markers of one content type.
func (q *Queries) ListOfflineItems(ctx context.Context, userID uuid.UUID, contentType string) ([]LibraryItem, error) {
	return q.listLibraryItems(ctx, listOfflineItems, userID, contentType)
}

func (q *Queries) listLibraryItems(ctx context.Context, query string, userID uuid.UUID, contentType string) ([]LibraryItem, error) {
	rows, err := q.db.QueryContext(ctx, query, userID, contentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LibraryItem
	for rows.Next() {
		var it LibraryItem
		if err := rows.Scan(&it.UserID, &it.ContentType, &it.ContentID, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
