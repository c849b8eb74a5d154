// Command admin manages staff and bans from the command line.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"fableweaver/internal/config"
	"fableweaver/internal/database"
	"fableweaver/internal/middleware"
	"fableweaver/internal/models"

	_ "github.com/joho/godotenv/autoload"
	"gorm.io/gorm"
)

const usage = `Usage:
  admin promote <user_id>   grant admin rights
  admin demote <user_id>    revoke admin rights
  admin ban <user_id>       ban an account
  admin unban <user_id>     lift a ban
  admin list-admins         list every admin`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		slog.Error("admin command failed", slog.String("command", os.Args[1]), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if command == "list-admins" {
		return listAdmins(db)
	}

	if len(args) < 1 {
		return fmt.Errorf("%s needs a user id\n%s", command, usage)
	}
	userID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || userID == 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	switch command {
	case "promote":
		return setFlags(db, uint(userID), "promoted", map[string]any{"is_admin": true})
	case "demote":
		return setFlags(db, uint(userID), "demoted", map[string]any{"is_admin": false})
	case "ban":
		return setFlags(db, uint(userID), "banned", map[string]any{"is_banned": true, "banned_at": time.Now()})
	case "unban":
		return setFlags(db, uint(userID), "unbanned", map[string]any{"is_banned": false, "banned_at": nil})
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func setFlags(db *gorm.DB, userID uint, verb string, updates map[string]any) error {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d not found", userID)
		}
		return err
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return fmt.Errorf("update user %d: %w", userID, err)
	}
	slog.Info("user "+verb, slog.Uint64("user_id", uint64(user.ID)), slog.String("username", user.Username))
	return nil
}

func listAdmins(db *gorm.DB) error {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		return fmt.Errorf("fetch admins: %w", err)
	}
	if len(admins) == 0 {
		fmt.Println("No admins found")
		return nil
	}
	for _, admin := range admins {
		fmt.Printf("%d\t%s\t%s\n", admin.ID, admin.Username, admin.Email)
	}
	return nil
}
