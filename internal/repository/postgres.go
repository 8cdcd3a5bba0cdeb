package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/models"
)

const (
	DefaultMigrationsPath = "file://migrations"

	hashConstraint      = "qr_codes_hash_key"
	shortCodeConstraint = "qr_codes_short_code_key"
)

var qrCodeColumns = []string{
	"q.id", "q.user_id", "q.hash", "q.short_code", "q.name", "q.url", "q.url2", "q.type",
	"q.color", "q.background_color", "q.pattern_style", "q.eye_style", "q.eye_color",
	"q.logo_url", "q.image_url", "q.image_path", "q.is_active", "q.total_scans", "q.created_at",
}

var scanColumns = []string{
	"id", "qr_code_id", "ip_address", "user_agent", "referer", "accept_language", "language",
	"country", "city", "region", "timezone", "latitude", "longitude",
	"device_type", "browser", "os", "scanned_at",
}

type PostgresRepository struct {
	pool   *pgxpool.Pool
	sb     squirrel.StatementBuilderType
	logger *zap.Logger
}

func NewPostgresRepository(dsn, migrationsPath string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if migrationsPath == "" {
		migrationsPath = DefaultMigrationsPath
	}
	if err := runMigrations(dsn, migrationsPath, logger); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL repository initialized")

	return &PostgresRepository{
		pool:   pool,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}, nil
}

func runMigrations(dsn, path string, logger *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("Migrations applied", zap.String("source", path))
	return nil
}

func (p *PostgresRepository) CreateQRCode(ctx context.Context, qr *models.QRCode) error {
	query, args, err := p.sb.
		Insert("qr_codes").
		Columns("id", "user_id", "hash", "short_code", "name", "url", "url2", "type",
			"color", "background_color", "pattern_style", "eye_style", "eye_color",
			"logo_url", "is_active", "created_at").
		Values(qr.ID, qr.UserID, qr.Hash, qr.ShortCode, qr.Name, qr.URL, qr.URL2, string(qr.Type),
			qr.Color, qr.BackgroundColor, qr.PatternStyle, qr.EyeStyle, qr.EyeColor,
			qr.LogoURL, qr.IsActive, qr.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case hashConstraint:
				return ErrDuplicateHash
			case shortCodeConstraint:
				return ErrDuplicateShortCode
			}
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return fmt.Errorf("execute query: %w", err)
	}

	return nil
}

func (p *PostgresRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	query, args, err := p.sb.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("qr_codes").
		Where(squirrel.Eq{"short_code": code}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("query row: %w", err)
	}
	return exists, nil
}

func (p *PostgresRepository) GetQRCodeByHash(ctx context.Context, hash string) (*models.QRCode, error) {
	return p.getQRCode(ctx, squirrel.Eq{"q.hash": hash})
}

func (p *PostgresRepository) GetQRCodeByShortCode(ctx context.Context, code string) (*models.QRCode, error) {
	return p.getQRCode(ctx, squirrel.Eq{"q.short_code": code})
}

func (p *PostgresRepository) GetUserQRCode(ctx context.Context, userID, id string) (*models.QRCode, error) {
	return p.getQRCode(ctx, squirrel.Eq{"q.id": id, "q.user_id": userID})
}

func (p *PostgresRepository) getQRCode(ctx context.Context, where squirrel.Eq) (*models.QRCode, error) {
	query, args, err := p.sb.
		Select(qrCodeColumns...).
		From("qr_codes q").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	qr, err := scanQRCode(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query row: %w", err)
	}
	return qr, nil
}

func (p *PostgresRepository) ListUserQRCodes(ctx context.Context, userID string) ([]models.QRCodeWithCount, error) {
	query, args, err := p.sb.
		Select(listColumns()...).
		From("qr_codes q").
		LeftJoin("scans s ON s.qr_code_id = q.id").
		Where(squirrel.Eq{"q.user_id": userID}).
		GroupBy("q.id").
		OrderBy("q.created_at DESC", "q.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user qr codes: %w", err)
	}
	defer rows.Close()

	result := make([]models.QRCodeWithCount, 0)
	for rows.Next() {
		var item models.QRCodeWithCount
		dest := append(qrCodeDest(&item.QRCode), &item.ScanCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return result, nil
}

func (p *PostgresRepository) UpdateQRCode(ctx context.Context, userID, id string, upd QRCodeUpdate) (*models.QRCode, error) {
	if upd.Empty() {
		return p.GetUserQRCode(ctx, userID, id)
	}

	builder := p.sb.Update("qr_codes q")
	if upd.Name != nil {
		builder = builder.Set("name", *upd.Name)
	}
	if upd.URL != nil {
		builder = builder.Set("url", *upd.URL)
	}
	if upd.URL2 != nil {
		builder = builder.Set("url2", *upd.URL2)
	}
	if upd.IsActive != nil {
		builder = builder.Set("is_active", *upd.IsActive)
	}

	query, args, err := builder.
		Where(squirrel.Eq{"q.id": id, "q.user_id": userID}).
		Suffix("RETURNING " + strings.Join(qrCodeColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	qr, err := scanQRCode(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update qr code: %w", err)
	}
	return qr, nil
}

func (p *PostgresRepository) DeleteUserQRCode(ctx context.Context, userID, id string) error {
	query, args, err := p.sb.
		Delete("qr_codes").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute delete: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresRepository) UpdateQRCodeImage(ctx context.Context, id, imageURL, imagePath string) error {
	query, args, err := p.sb.
		Update("qr_codes").
		Set("image_url", imageURL).
		Set("image_path", imagePath).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute update: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresRepository) InsertScan(ctx context.Context, scan *models.Scan) error {
	query, args, err := p.sb.
		Insert("scans").
		Columns(scanColumns...).
		Values(scan.ID, scan.QRCodeID, scan.IPAddress, scan.UserAgent, scan.Referer,
			scan.AcceptLanguage, scan.Language, scan.Country, scan.City, scan.Region,
			scan.Timezone, scan.Latitude, scan.Longitude, scan.DeviceType, scan.Browser,
			scan.OS, scan.ScannedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (p *PostgresRepository) IncrementScanCount(ctx context.Context, qrCodeID string) error {
	query, args, err := p.sb.
		Update("qr_codes").
		Set("total_scans", squirrel.Expr("total_scans + 1")).
		Where(squirrel.Eq{"id": qrCodeID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("increment scan count: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresRepository) ListScans(ctx context.Context, qrCodeID string) ([]models.Scan, error) {
	query, args, err := p.sb.
		Select(scanColumns...).
		From("scans").
		Where(squirrel.Eq{"qr_code_id": qrCodeID}).
		OrderBy("scanned_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	scans := make([]models.Scan, 0)
	for rows.Next() {
		var s models.Scan
		if err := rows.Scan(&s.ID, &s.QRCodeID, &s.IPAddress, &s.UserAgent, &s.Referer,
			&s.AcceptLanguage, &s.Language, &s.Country, &s.City, &s.Region, &s.Timezone,
			&s.Latitude, &s.Longitude, &s.DeviceType, &s.Browser, &s.OS, &s.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return scans, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}

func qrCodeDest(qr *models.QRCode) []any {
	return []any{
		&qr.ID, &qr.UserID, &qr.Hash, &qr.ShortCode, &qr.Name, &qr.URL, &qr.URL2, &qr.Type,
		&qr.Color, &qr.BackgroundColor, &qr.PatternStyle, &qr.EyeStyle, &qr.EyeColor,
		&qr.LogoURL, &qr.ImageURL, &qr.ImagePath, &qr.IsActive, &qr.TotalScans, &qr.CreatedAt,
	}
}

func scanQRCode(row pgx.Row) (*models.QRCode, error) {
	var qr models.QRCode
	if err := row.Scan(qrCodeDest(&qr)...); err != nil {
		return nil, err
	}
	return &qr, nil
}

func listColumns() []string {
	cols := make([]string, 0, len(qrCodeColumns)+1)
	cols = append(cols, qrCodeColumns...)
	return append(cols, "COUNT(s.id) AS scan_count")
}
