package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/service"
	"github.com/garyjia/receipt-approval/internal/container"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

const defaultPassword = "testpassword"

// seeder acts as HR, the only role allowed to create sections and accounts
var seeder = entity.Identity{Username: "seed", Role: entity.RoleHR}

type seedUser struct {
	username string
	email    string
	role     entity.Role
	section  string
}

var (
	seedSections = []string{"Cutting", "Production"}

	seedUsers = []seedUser{
		{username: "hruser", email: "hr@example.com", role: entity.RoleHR},
		{username: "dgmuser", email: "dgm@example.com", role: entity.RoleDGM},
		{username: "gmuser", email: "gm@example.com", role: entity.RoleGM},
		{username: "securityuser", email: "security@example.com", role: entity.RoleSecurity},
		{username: "managercutting", email: "managercutting@example.com", role: entity.RoleManager, section: "Cutting"},
		{username: "managerproduction", email: "managerproduction@example.com", role: entity.RoleManager, section: "Production"},
	}
)

// Seed creates the demo sections and users. Existing rows are left untouched,
// so running it twice is harmless.
func Seed(ctx context.Context, services *container.ServiceBundle, password string, logger *zap.Logger) error {
	sectionIDs, err := seedSectionIDs(ctx, services.Sections, logger)
	if err != nil {
		return err
	}

	for _, u := range seedUsers {
		in := service.RegisterUserInput{
			Username: u.username,
			Email:    u.email,
			Password: password,
			Role:     u.role,
		}
		if u.section != "" {
			id := sectionIDs[u.section]
			in.SectionID = &id
		}

		user, err := services.Users.Register(ctx, seeder, in)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			logger.Info("User already present", zap.String("username", u.username))
		case err != nil:
			return fmt.Errorf("register %s: %w", u.username, err)
		default:
			logger.Info("User created",
				zap.String("username", user.Username),
				zap.String("role", user.Role.String()),
				zap.String("section", u.section))
		}
	}
	return nil
}

func seedSectionIDs(ctx context.Context, sections service.SectionService, logger *zap.Logger) (map[string]int64, error) {
	existing, err := sections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	ids := make(map[string]int64, len(seedSections))
	for _, s := range existing {
		ids[s.Name] = s.ID
	}

	for _, name := range seedSections {
		if _, ok := ids[name]; ok {
			logger.Info("Section already present", zap.String("section", name))
			continue
		}
		section, err := sections.Create(ctx, seeder, name)
		if err != nil {
			return nil, fmt.Errorf("create section %s: %w", name, err)
		}
		ids[name] = section.ID
		logger.Info("Section created", zap.String("section", name), zap.Int64("id", section.ID))
	}
	return ids, nil
}
