// Package store is the gorm backed data layer of the server. Every operation
// answers with a protocol message; failures are folded into ERROR replies.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stockhub/internal/protocol"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		// close the handle if ping fails to avoid resource leak
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already opened gorm handle.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "store")}
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	s.logger.Info("database_migrated")
	return nil
}

// EnsureAdmin creates the administrator login unless it already exists.
func (s *Store) EnsureAdmin(ctx context.Context, login, password string) error {
	if err := validLogin(login); err != nil {
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Administrator{}).Where("login = ?", login).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up administrator: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&Administrator{Login: login, PasswordHash: hash}).Error; err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}
	s.logger.Info("administrator_bootstrapped", "login", login)
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fail turns err into the reply sent to the client. Rejections keep their
// text, anything else is logged and hidden behind a generic message.
func (s *Store) fail(op string, err error) *protocol.Message {
	var r *rejection
	if errors.As(err, &r) {
		return protocol.NewError(r.reason)
	}
	s.logger.Error("store_operation_failed",
		"operation", op,
		"error", err.Error(),
	)
	return protocol.NewError(msgDatabaseError)
}

func parseID(field, value string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil || id == 0 {
		return 0, rejectf("%s is not a valid identifier", field)
	}
	return uint(id), nil
}

// parseQuantity accepts integers >= min.
func parseQuantity(field, value string, min int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < min {
		return 0, rejectf("%s is not a valid quantity", field)
	}
	return n, nil
}

func parsePrice(field, value string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, rejectf("%s is not a valid price", field)
	}
	return math.Round(p*100) / 100, nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func formatPromo(p *float64) string {
	if p == nil {
		return ""
	}
	return formatPrice(*p)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "<>;\r\n") {
		return rejectf("name is not valid")
	}
	return nil
}

func validLogin(login string) error {
	if strings.TrimSpace(login) == "" || strings.ContainsAny(login, "<>;\r\n") {
		return rejectf("login is not valid")
	}
	return nil
}
