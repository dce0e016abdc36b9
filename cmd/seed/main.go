package main

import (
	"fmt"
	"log"
	"time"

	"mintix/internal/concerts"
	"mintix/internal/shared/config"
	"mintix/internal/shared/database"
	"mintix/internal/users"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Seeder struct {
	db      *database.DB
	adminID uuid.UUID
}

func main() {
	fmt.Println("🌱 Starting Mintix Database Seeder...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"tickets",
		"concert_sections",
		"concerts",
		"users",
	}

	for _, table := range tables {
		if err := s.db.GetPostgreSQL().Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) SeedAll() error {
	if err := s.seedAdmin(); err != nil {
		return err
	}
	return s.seedDemoConcerts()
}

func (s *Seeder) seedAdmin() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte("admin-password-change-me"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	email := "admin@mintix.local"
	admin := &users.User{
		// Placeholder address; admin logs in with email and password.
		WalletAddress: "AdminAdminAdminAdminAdminAdminAdmin11111111",
		Email:         &email,
		Password:      string(hashed),
		Role:          users.RoleAdmin,
	}

	if err := s.db.GetPostgreSQL().Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	s.adminID = admin.ID

	fmt.Printf("   👤 Admin user created: %s\n", email)
	return nil
}

func (s *Seeder) seedDemoConcerts() error {
	demos := []concerts.Concert{
		{
			Title:       "Midnight Frequencies",
			Artist:      "The Static Waves",
			Description: "A late-night electronic set under the open sky.",
			VenueName:   "Riverside Amphitheater",
			Date:        time.Now().AddDate(0, 1, 0),
			Status:      concerts.StatusApproved,
			Sections: []concerts.Section{
				{Name: "VIP", PriceLamports: 2_000_000_000, TotalSeats: 50},
				{Name: "A", PriceLamports: 1_000_000_000, TotalSeats: 200},
				{Name: "B", PriceLamports: 500_000_000, TotalSeats: 400},
			},
		},
		{
			Title:       "Acoustic Sessions Vol. 3",
			Artist:      "Mara Jensen",
			Description: "Stripped-down renditions in an intimate hall.",
			VenueName:   "The Velvet Room",
			Date:        time.Now().AddDate(0, 2, 0),
			Status:      concerts.StatusPending,
			Sections: []concerts.Section{
				{Name: "Floor", PriceLamports: 750_000_000, TotalSeats: 120},
			},
		},
	}

	for i := range demos {
		demos[i].CreatedBy = s.adminID
		if err := s.db.GetPostgreSQL().Create(&demos[i]).Error; err != nil {
			return fmt.Errorf("failed to create concert %q: %w", demos[i].Title, err)
		}
		fmt.Printf("   🎵 Concert created: %s (%s)\n", demos[i].Title, demos[i].Status)
	}
	return nil
}
