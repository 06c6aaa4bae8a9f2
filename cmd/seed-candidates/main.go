package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/database"
	"github.com/learnspire/testtrack-backend/internal/logger"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/repository"
	"github.com/learnspire/testtrack-backend/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	candidateRepo := repository.NewCandidateRepository(pool)
	candidateService := service.NewCandidateService(candidateRepo)

	fmt.Println("=== Seeding 50 Candidates ===")

	batch := "2026-spring"

	names := []string{
		"Alex Morgan", "Bailey Chen", "Cameron Reyes", "Dana Whitfield", "Eli Nakamura",
		"Farah Osman", "Gabriel Silva", "Harper Lindqvist", "Imani Okafor", "Jordan Blake",
		"Kai Tanaka", "Leila Haddad", "Marcus Webb", "Nina Petrova", "Omar Farouk",
		"Priya Sharma", "Quinn Donovan", "Rosa Delgado", "Sam Kowalski", "Tara Singh",
		"Uriel Gomez", "Vera Lindholm", "Wes Carter", "Xiomara Vega", "Yusuf Demir",
		"Zoe Papadopoulos", "Aaron Fitzgerald", "Bianca Rossi", "Caleb Johansson", "Daria Ivanova",
		"Ethan Murphy", "Fiona Gallagher", "Gustavo Mendes", "Hana Yoshida", "Ivan Horvat",
		"Jade Thompson", "Khalid Rahman", "Lena Fischer", "Mateo Alvarez", "Noor Al-Amin",
		"Owen Bennett", "Paula Navarro", "Rami Khoury", "Sofia Marino", "Theo Dubois",
		"Uma Krishnan", "Victor Olsen", "Wendy Zhao", "Yara Aziz", "Zane Holloway",
	}

	successCount := 0
	for i, name := range names {
		email := fmt.Sprintf("%s%d@example.com", strings.ToLower(strings.Split(name, " ")[0]), i+1)

		candidate := &model.Candidate{
			Email:        email,
			Name:         name,
			Batch:        batch,
			PasswordHash: "changeme123", // Service hashes it.
		}

		if err := candidateService.Create(ctx, candidate); err != nil {
			fmt.Printf("Error creating candidate %s (%s): %v\n", candidate.Name, candidate.Email, err)
		} else {
			successCount++
			if (i+1)%10 == 0 {
				fmt.Printf("Created %d candidates...\n", i+1)
			}
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d candidates.\n", successCount, len(names))
}
