package service

import (
	"context"

	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/repository"
	"github.com/learnspire/testtrack-backend/internal/response"
	"golang.org/x/crypto/bcrypt"
)

// CandidateService handles candidate business logic.
type CandidateService struct {
	candidateRepo *repository.CandidateRepository
}

// NewCandidateService creates a new CandidateService.
func NewCandidateService(candidateRepo *repository.CandidateRepository) *CandidateService {
	return &CandidateService{candidateRepo: candidateRepo}
}

// GetByEmail retrieves a candidate by their email.
func (s *CandidateService) GetByEmail(ctx context.Context, email string) (*model.Candidate, error) {
	return s.candidateRepo.GetByEmail(ctx, email)
}

// GetByID retrieves a candidate by ID.
func (s *CandidateService) GetByID(ctx context.Context, id int) (*model.Candidate, error) {
	return s.candidateRepo.GetByID(ctx, id)
}

// ListCandidates retrieves all candidates with pagination and optional batch filter.
func (s *CandidateService) ListCandidates(ctx context.Context, batch *string, page, perPage int) ([]model.Candidate, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	candidates, total, err := s.candidateRepo.ListPaginated(ctx, batch, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if candidates == nil {
		candidates = []model.Candidate{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return candidates, pagination, nil
}

// Create inserts a new candidate with a hashed password.
func (s *CandidateService) Create(ctx context.Context, candidate *model.Candidate) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(candidate.PasswordHash), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	candidate.PasswordHash = string(hashed)
	return s.candidateRepo.Create(ctx, candidate)
}

// Update modifies a candidate's details. Updates password if provided.
func (s *CandidateService) Update(ctx context.Context, candidate *model.Candidate, updatePassword bool) error {
	if err := s.candidateRepo.Update(ctx, candidate); err != nil {
		return err
	}

	if updatePassword && candidate.PasswordHash != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(candidate.PasswordHash), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		return s.candidateRepo.UpdatePassword(ctx, candidate.ID, string(hashed))
	}

	return nil
}

// Delete removes a candidate by ID.
func (s *CandidateService) Delete(ctx context.Context, id int) error {
	return s.candidateRepo.Delete(ctx, id)
}
