// Command admin manages back-office accounts and seed data.
//
//	admin create -username ana -name "Ana Reyes" -password secret
//	admin reset-password -username ana -password newsecret
//	admin seed-payments
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/config"
	"github.com/example/ricestore/internal/database"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/utils"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "create":
		err = createAdmin(db, args)
	case "reset-password":
		err = resetPassword(db, args)
	case "seed-payments":
		err = database.SeedPaymentMethods(db)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
	log.Info().Str("command", os.Args[1]).Msg("done")
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <create|reset-password|seed-payments> [flags]")
}

func createAdmin(db *gorm.DB, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	login := strings.TrimSpace(*username)
	if login == "" {
		return errors.New("-username is required")
	}
	if len(*password) < utils.MinPasswordLength {
		return fmt.Errorf("-password must be at least %d characters", utils.MinPasswordLength)
	}

	var existing int64
	if err := db.Model(&models.Admin{}).Where("username = ?", login).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("admin %q already exists", login)
	}

	hash, err := utils.HashPassword(*password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	display := strings.TrimSpace(*name)
	if display == "" {
		display = login
	}
	return db.Create(&models.Admin{Username: login, DisplayName: display, PasswordHash: hash}).Error
}

func resetPassword(db *gorm.DB, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if len(*password) < utils.MinPasswordLength {
		return fmt.Errorf("-password must be at least %d characters", utils.MinPasswordLength)
	}
	hash, err := utils.HashPassword(*password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res := db.Model(&models.Admin{}).Where("username = ?", strings.TrimSpace(*username)).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("admin %q not found", *username)
	}

	// existing sessions keep working until they expire
	return nil
}
