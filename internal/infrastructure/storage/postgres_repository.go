package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/ports"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"id", "title", "slug", "url", "source", "published_at", "fetched_at",
	"thumbnail_url", "raw_excerpt", "ai_summary", "summary_status", "category",
	"ai_metadata", "is_featured", "is_archived",
}

// PostgresRepository persists articles, digests and sources into Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

var (
	_ ports.ArticleRepository = (*PostgresRepository)(nil)
	_ ports.DigestRepository  = (*PostgresRepository)(nil)
	_ ports.SourceRepository  = (*PostgresRepository)(nil)
)

// Open connects to Postgres through lib/pq.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, apperr.NewConfigMissing("DATABASE_URL")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sqlx.DB implementation.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert stores a freshly fetched article as pending.
func (r *PostgresRepository) Insert(ctx context.Context, article domain.FetchedArticle) (string, error) {
	id := uuid.NewString()
	var source any
	if article.Source != "" {
		source = article.Source
	}

	query, args, err := psql.Insert("articles").
		Columns("id", "title", "slug", "url", "source", "published_at", "thumbnail_url", "raw_excerpt", "summary_status").
		Values(id, article.Title, article.Slug, article.URL, source,
			nullableTime(article.PublishedAt), nullable(article.ThumbnailURL), nullable(article.RawExcerpt),
			string(domain.StatusPending)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert article: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return "", apperr.Wrap(apperr.CodeDBConflict, "article already stored: "+article.URL, err)
		}
		return "", apperr.Wrap(apperr.CodeDBInsertFailed, "insert article", err)
	}
	return id, nil
}

// Pending returns the oldest pending articles first.
func (r *PostgresRepository) Pending(ctx context.Context, limit int) ([]domain.Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"summary_status": string(domain.StatusPending)}).
		OrderBy("fetched_at ASC").
		Limit(uint64(max(limit, 0))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}
	return r.selectArticles(ctx, query, args)
}

// ApplySummary writes the outcome while the row is still pending.
func (r *PostgresRepository) ApplySummary(ctx context.Context, result domain.SummarisationResult) error {
	update := psql.Update("articles").Set("summary_status", string(result.Status))
	if result.Summary != nil {
		update = update.Set("ai_summary", *result.Summary)
	}
	if result.Category != nil {
		update = update.Set("category", string(*result.Category))
	}
	if result.Metadata != nil {
		raw, err := json.Marshal(result.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		update = update.Set("ai_metadata", string(raw))
	}

	query, args, err := update.
		Where(sq.Eq{"id": result.ID}).
		Where(sq.Eq{"summary_status": string(domain.StatusPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.Wrap(apperr.CodeDBInsertFailed, "update article "+result.ID, err)
	}
	return nil
}

// DigestCandidates returns completed articles in the given categories newer than since.
func (r *PostgresRepository) DigestCandidates(ctx context.Context, since time.Time, categories []domain.Category, limit int) ([]domain.Article, error) {
	cats := make([]string, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, string(c))
	}

	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"summary_status": string(domain.StatusCompleted)}).
		Where(sq.Eq{"category": cats}).
		Where("COALESCE(published_at, fetched_at) >= ?", since).
		OrderBy("is_featured DESC", "COALESCE(published_at, fetched_at) DESC").
		Limit(uint64(max(limit, 0))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build digest query: %w", err)
	}
	return r.selectArticles(ctx, query, args)
}

func (r *PostgresRepository) selectArticles(ctx context.Context, query string, args []any) ([]domain.Article, error) {
	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperr.Wrap(apperr.CodeDBFetchFailed, "select articles", err)
	}

	articles := make([]domain.Article, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// ExistsForDate reports whether a digest row exists for the date.
func (r *PostgresRepository) ExistsForDate(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM daily_digests WHERE digest_date = $1)`, date)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeDBFetchFailed, "check digest date", err)
	}
	return exists, nil
}

// Create inserts a digest; the unique date turns races into DIGEST_EXISTS.
func (r *PostgresRepository) Create(ctx context.Context, digest domain.DailyDigest) (string, error) {
	id := uuid.NewString()
	status := digest.AudioStatus
	if status == "" {
		status = domain.AudioPending
	}

	query, args, err := psql.Insert("daily_digests").
		Columns("id", "digest_date", "summary_text", "audio_status", "article_ids").
		Values(id, digest.DigestDate, nullable(digest.SummaryText), string(status), pq.StringArray(digest.ArticleIDs)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert digest: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return "", apperr.NewDigestExists(digest.DigestDate)
		}
		return "", apperr.Wrap(apperr.CodeDBInsertFailed, "insert digest", err)
	}
	return id, nil
}

// Get loads a digest by id; ok is false when no row matches or id is not a UUID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (domain.DailyDigest, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.DailyDigest{}, false, nil
	}
	var row digestRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, digest_date, summary_text, audio_url, audio_status, article_ids, created_at
		 FROM daily_digests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DailyDigest{}, false, nil
		}
		return domain.DailyDigest{}, false, apperr.Wrap(apperr.CodeDBFetchFailed, "get digest", err)
	}
	return row.toDomain(), true, nil
}

// UpdateAudio records the audio outcome. A nil url leaves the stored one untouched.
func (r *PostgresRepository) UpdateAudio(ctx context.Context, id string, status domain.AudioStatus, audioURL *string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NewDigestNotFound(id)
	}
	update := psql.Update("daily_digests").Set("audio_status", string(status))
	if audioURL != nil {
		update = update.Set("audio_url", *audioURL)
	}
	query, args, err := update.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build audio update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Wrap(apperr.CodeDBInsertFailed, "update digest audio", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NewDigestNotFound(id)
	}
	return nil
}

// ActiveSources lists enabled sources by name.
func (r *PostgresRepository) ActiveSources(ctx context.Context) ([]domain.Source, error) {
	query, args, err := psql.Select("id", "name", "type", "config", "is_active", "last_fetched_at", "last_error").
		From("sources").
		Where(sq.Eq{"is_active": true}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	var rows []sourceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperr.Wrap(apperr.CodeDBFetchFailed, "select sources", err)
	}

	sources := make([]domain.Source, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// MarkFetched stores the last fetch time and clears or sets the last error.
func (r *PostgresRepository) MarkFetched(ctx context.Context, id string, at time.Time, lastError *string) error {
	query, args, err := psql.Update("sources").
		Set("last_fetched_at", at).
		Set("last_error", nullable(lastError)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build source update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.Wrap(apperr.CodeDBInsertFailed, "update source "+id, err)
	}
	return nil
}

type articleRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Slug          sql.NullString `db:"slug"`
	URL           string         `db:"url"`
	Source        sql.NullString `db:"source"`
	PublishedAt   sql.NullTime   `db:"published_at"`
	FetchedAt     time.Time      `db:"fetched_at"`
	ThumbnailURL  sql.NullString `db:"thumbnail_url"`
	RawExcerpt    sql.NullString `db:"raw_excerpt"`
	AISummary     sql.NullString `db:"ai_summary"`
	SummaryStatus string         `db:"summary_status"`
	Category      sql.NullString `db:"category"`
	Metadata      []byte         `db:"ai_metadata"`
	IsFeatured    bool           `db:"is_featured"`
	IsArchived    bool           `db:"is_archived"`
}

func (row articleRow) toDomain() (domain.Article, error) {
	a := domain.Article{
		ID:            row.ID,
		Title:         row.Title,
		Slug:          row.Slug.String,
		URL:           row.URL,
		Source:        ptrString(row.Source),
		PublishedAt:   ptrTime(row.PublishedAt),
		FetchedAt:     row.FetchedAt,
		ThumbnailURL:  ptrString(row.ThumbnailURL),
		RawExcerpt:    ptrString(row.RawExcerpt),
		AISummary:     ptrString(row.AISummary),
		SummaryStatus: domain.SummaryStatus(row.SummaryStatus),
		IsFeatured:    row.IsFeatured,
		IsArchived:    row.IsArchived,
	}
	if row.Category.Valid {
		c := domain.ParseCategory(row.Category.String)
		a.Category = &c
	}
	if len(row.Metadata) > 0 {
		var meta domain.ArticleMetadata
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return domain.Article{}, fmt.Errorf("decode metadata for %s: %w", row.ID, err)
		}
		a.Metadata = &meta
	}
	return a, nil
}

type digestRow struct {
	ID          string         `db:"id"`
	DigestDate  time.Time      `db:"digest_date"`
	SummaryText sql.NullString `db:"summary_text"`
	AudioURL    sql.NullString `db:"audio_url"`
	AudioStatus string         `db:"audio_status"`
	ArticleIDs  pq.StringArray `db:"article_ids"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (row digestRow) toDomain() domain.DailyDigest {
	return domain.DailyDigest{
		ID:          row.ID,
		DigestDate:  row.DigestDate.Format(domain.DigestDateLayout),
		SummaryText: ptrString(row.SummaryText),
		AudioURL:    ptrString(row.AudioURL),
		AudioStatus: domain.AudioStatus(row.AudioStatus),
		ArticleIDs:  []string(row.ArticleIDs),
		CreatedAt:   row.CreatedAt,
	}
}

type sourceRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Type          string         `db:"type"`
	Config        []byte         `db:"config"`
	IsActive      bool           `db:"is_active"`
	LastFetchedAt sql.NullTime   `db:"last_fetched_at"`
	LastError     sql.NullString `db:"last_error"`
}

func (row sourceRow) toDomain() (domain.Source, error) {
	cfg, err := decodeConfig(row.Config)
	if err != nil {
		return domain.Source{}, fmt.Errorf("decode config for source %s: %w", row.Name, err)
	}
	return domain.Source{
		ID:            row.ID,
		Name:          row.Name,
		Type:          domain.SourceType(row.Type),
		Config:        cfg,
		IsActive:      row.IsActive,
		LastFetchedAt: ptrTime(row.LastFetchedAt),
		LastError:     ptrString(row.LastError),
	}, nil
}

// decodeConfig flattens a JSON object into string options.
func decodeConfig(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	for k, v := range values {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			out[k] = string(enc)
		}
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func ptrTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
