package database

import (
	"database/sql"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/ricestore/internal/models"
)

var db *gorm.DB

// Connect initializes the database connection and runs migrations.
func Connect(dsn, logLevel string) *gorm.DB {
	if db != nil {
		return db
	}

	if err := ensureDatabase(dsn); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure database")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(ParseLogLevel(logLevel)),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	if err := SeedPaymentMethods(conn); err != nil {
		log.Warn().Err(err).Msg("failed to seed payment methods")
	}

	db = conn
	return db
}

// DB exposes the initialized gorm.DB instance.
func DB() *gorm.DB {
	return db
}

// ParseLogLevel maps a config string onto a GORM log level.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates or updates every table the application uses.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.User{},
		&models.Admin{},
		&models.AdminSession{},
		&models.UserAddress{},
		&models.PaymentMethod{},
		&models.Product{},
		&models.ProductVariant{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Rating{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	return nil
}

// DefaultPaymentMethods are inserted on first boot.
var DefaultPaymentMethods = []models.PaymentMethod{
	{
		Code:         "cod",
		Name:         "Cash on Delivery",
		Instructions: "Prepare the exact amount. Our rider collects payment when the sacks arrive.",
		IsActive:     true,
	},
	{
		Code:         "gcash",
		Name:         "GCash",
		Instructions: "Send the total to the store GCash number and reply with the reference number and your order number.",
		IsActive:     true,
	},
	{
		Code:         "bank_transfer",
		Name:         "Bank Transfer",
		Instructions: "Deposit the total to the store account and upload the slip. Orders are approved once the deposit clears.",
		IsActive:     true,
	},
}

// SeedPaymentMethods inserts the default payment methods that are missing.
// Existing rows are left untouched so admin edits survive restarts.
func SeedPaymentMethods(conn *gorm.DB) error {
	for _, method := range DefaultPaymentMethods {
		method := method
		if err := conn.Where(models.PaymentMethod{Code: method.Code}).
			FirstOrCreate(&method).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	log.Info().Str("database", dbName).Msg("creating database")
	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
