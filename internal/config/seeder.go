package config

import (
	"log"

	"microfin-loans/internal/adapters/persistence/models"
	"microfin-loans/internal/core/domain"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedBorrowers(); err != nil {
		log.Printf("⚠️ Borrower seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedBorrowers adds a few sample borrowers for local development.
// Existing codes are left alone.
func (s *Seeder) seedBorrowers() error {
	samples := []models.Borrower{
		{Code: "BR-DEV001", FullName: "Maria Santos", Phone: "09171234567", Address: "Quezon City"},
		{Code: "BR-DEV002", FullName: "Jose Rizal Mercado", Phone: "09181234567", Address: "Calamba, Laguna"},
		{Code: "BR-DEV003", FullName: "Ana Reyes", Phone: "09191234567", Address: "Cebu City"},
	}

	created := 0
	for i := range samples {
		var count int64
		if err := s.db.Model(&models.Borrower{}).Where("code = ?", samples[i].Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		samples[i].Status = string(domain.BorrowerStatusActive)
		if err := s.db.Create(&samples[i]).Error; err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		log.Printf("✅ Sample borrowers created: %d", created)
	}
	return nil
}
