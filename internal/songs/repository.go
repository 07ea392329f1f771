package songs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtrack/backend/internal/models"
)

// ErrNotFound is returned when a song does not exist.
var ErrNotFound = errors.New("song not found")

const songColumns = `id, title, artist, category, audio_key, COALESCE(thumbnail_key,''),
	COALESCE(description,''), is_active, created_at, updated_at`

// Repository handles song catalog persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a songs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists reports whether an active song with the id exists.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM songs WHERE id = $1 AND is_active)`, id).Scan(&ok)
	return ok, err
}

// GetByID returns a song by id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	const q = `SELECT ` + songColumns + ` FROM songs WHERE id = $1`
	s, err := scanSong(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// List returns catalog songs, optionally filtered by category. Inactive songs
// are included only when includeHidden is set (admin views).
func (r *Repository) List(ctx context.Context, category string, includeHidden bool) ([]*models.Song, error) {
	q := `SELECT ` + songColumns + ` FROM songs WHERE ($1 = '' OR category = $1)`
	if !includeHidden {
		q += ` AND is_active`
	}
	q += ` ORDER BY title, artist`
	rows, err := r.pool.Query(ctx, q, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Categories returns the distinct categories of active songs.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT category FROM songs WHERE is_active ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CreateParams holds fields for a new song.
type CreateParams struct {
	Title        string
	Artist       string
	Category     string
	AudioKey     string
	ThumbnailKey string
	Description  string
}

// Create inserts a new song.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*models.Song, error) {
	const q = `INSERT INTO songs (title, artist, category, audio_key, thumbnail_key, description, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), TRUE)
		RETURNING ` + songColumns
	return scanSong(r.pool.QueryRow(ctx, q, p.Title, p.Artist, p.Category, p.AudioKey, p.ThumbnailKey, p.Description))
}

// UpdateParams holds updatable song metadata.
type UpdateParams struct {
	Title       string
	Artist      string
	Category    string
	Description string
}

// Update replaces a song's metadata.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.Song, error) {
	const q = `UPDATE songs SET title = $2, artist = $3, category = $4,
		description = NULLIF($5,''), updated_at = NOW()
		WHERE id = $1 RETURNING ` + songColumns
	s, err := scanSong(r.pool.QueryRow(ctx, q, id, p.Title, p.Artist, p.Category, p.Description))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// SetThumbnailKey stores the thumbnail object key for a song.
func (r *Repository) SetThumbnailKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE songs SET thumbnail_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleVisibility flips is_active and returns the new value.
func (r *Repository) ToggleVisibility(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`UPDATE songs SET is_active = NOT is_active, updated_at = NOW()
		WHERE id = $1 RETURNING is_active`, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	return active, err
}

// Delete removes a song. Sessions referencing it keep a NULL song_id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFavorite marks a song as a user's favorite; repeated adds are no-ops.
func (r *Repository) AddFavorite(ctx context.Context, userID, songID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, song_id) VALUES ($1, $2)
		ON CONFLICT (user_id, song_id) DO NOTHING`, userID, songID)
	return err
}

// RemoveFavorite removes a favorite; absent rows are no-ops.
func (r *Repository) RemoveFavorite(ctx context.Context, userID, songID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND song_id = $2`, userID, songID)
	return err
}

// ListFavorites returns the user's favorite songs, most recently added first.
func (r *Repository) ListFavorites(ctx context.Context, userID uuid.UUID) ([]*models.Song, error) {
	const q = `SELECT s.id, s.title, s.artist, s.category, s.audio_key, COALESCE(s.thumbnail_key,''),
		COALESCE(s.description,''), s.is_active, s.created_at, s.updated_at
		FROM favorites f JOIN songs s ON s.id = f.song_id
		WHERE f.user_id = $1 AND s.is_active
		ORDER BY f.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// CountActive returns the number of active catalog songs.
func (r *Repository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM songs WHERE is_active`).Scan(&n)
	return n, err
}

func scanSong(row pgx.Row) (*models.Song, error) {
	var s models.Song
	err := row.Scan(&s.ID, &s.Title, &s.Artist, &s.Category, &s.AudioKey, &s.ThumbnailKey,
		&s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
