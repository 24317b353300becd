// Command create_manager provisions a school manager account. Managers are
// not self-service; an operator runs this once per school owner.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/internal/repository"
	"github.com/autoecole-dz/platform-api/pkg/config"
	"github.com/autoecole-dz/platform-api/pkg/database"
)

func main() {
	email := flag.String("email", "", "manager email")
	password := flag.String("password", "", "manager password")
	firstName := flag.String("first-name", "", "first name")
	lastName := flag.String("last-name", "", "last name")
	phone := flag.String("phone", "", "phone number")
	flag.Parse()

	if *email == "" || *password == "" || *firstName == "" || *lastName == "" {
		log.Fatal("email, password, first-name and last-name are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	users := repository.NewUserRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: string(hash),
		FirstName:    *firstName,
		LastName:     *lastName,
		Phone:        *phone,
		Role:         models.RoleManager,
		Active:       true,
	}
	if err := users.Create(ctx, manager); err != nil {
		log.Fatalf("failed to create manager: %v", err)
	}

	log.Printf("manager %s created with id %s", manager.Email, manager.ID)
}
