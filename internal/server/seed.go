package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/internal/repository"
	"github.com/noah-isme/cte-skillshub-api/pkg/config"
)

// seedFile lists accounts for the in-memory store. Either password or password_hash is required.
type seedFile struct {
	Users []seedUser `mapstructure:"users"`
}

type seedUser struct {
	ID           string   `mapstructure:"id"`
	Email        string   `mapstructure:"email"`
	Name         string   `mapstructure:"name"`
	Role         string   `mapstructure:"role"`
	Password     string   `mapstructure:"password"`
	PasswordHash string   `mapstructure:"password_hash"`
	Inactive     bool     `mapstructure:"inactive"`
	Courses      []string `mapstructure:"courses"`
}

// loadSeed reads a YAML or JSON seed file; the format follows the extension.
func loadSeed(path string) (*seedFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &seed, nil
}

func seedUsers(users *repository.MemoryUserStore, seed *seedFile, cost int) error {
	now := time.Now().UTC()
	for i, u := range seed.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return fmt.Errorf("seed user %d: email is required", i)
		}
		role := models.UserRole(strings.ToUpper(strings.TrimSpace(u.Role)))
		if !role.Valid() {
			return fmt.Errorf("seed user %s: unknown role %q", email, u.Role)
		}
		hash := u.PasswordHash
		if hash == "" {
			if u.Password == "" {
				return fmt.Errorf("seed user %s: password is required", email)
			}
			raw, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", email, err)
			}
			hash = string(raw)
		}
		id := u.ID
		if id == "" {
			id = uuid.NewString()
		}
		users.Add(models.User{
			ID:           id,
			Email:        email,
			PasswordHash: hash,
			FullName:     u.Name,
			Role:         role,
			Active:       !u.Inactive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if len(u.Courses) > 0 {
			users.Enroll(id, u.Courses...)
		}
	}
	return nil
}

func seedAdmin(users *repository.MemoryUserStore, cfg config.BootstrapConfig, cost int) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	return seedUsers(users, &seedFile{Users: []seedUser{{
		Email:    cfg.AdminEmail,
		Name:     cfg.AdminName,
		Role:     string(models.RoleAdmin),
		Password: cfg.AdminPassword,
	}}}, cost)
}
