package model

import "time"

// Candidate represents a candidate (student) account.
type Candidate struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Batch        string    `json:"batch,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CandidateLoginRequest is the payload for candidate authentication.
type CandidateLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// CandidateLoginResponse is returned after successful candidate login.
type CandidateLoginResponse struct {
	Token     string    `json:"token"`
	Candidate Candidate `json:"candidate"`
}

// CreateCandidateRequest is the payload for creating a candidate account.
type CreateCandidateRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Batch    string `json:"batch" binding:"omitempty,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// UpdateCandidateRequest is the payload for updating a candidate account.
// An empty password leaves the current one in place.
type UpdateCandidateRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Batch    string `json:"batch" binding:"omitempty,max=50"`
	Password string `json:"password" binding:"omitempty,min=6,max=128"`
}
