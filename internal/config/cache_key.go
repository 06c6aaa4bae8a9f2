package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session
func (r *CacheKeyStruct) CandidateSessionKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// AttemptStartKey returns the cache key for a candidate's attempt start time
func (r *CacheKeyStruct) AttemptStartKey(testID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:test:%s:attempt_start", candidateID, testID)
}

// CandidateAnswersKey returns the cache key for a candidate's autosaved answers
func (r *CacheKeyStruct) CandidateAnswersKey(testID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:test:%s:answers", candidateID, testID)
}

// CandidateReviewMarksKey returns the cache key for a candidate's review marks
func (r *CacheKeyStruct) CandidateReviewMarksKey(testID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:test:%s:review_marks", candidateID, testID)
}

// CandidateActiveTestKey returns the cache key for a candidate's currently active test
func (r *CacheKeyStruct) CandidateActiveTestKey(candidateID int) string {
	return fmt.Sprintf("candidate:%d:active_test", candidateID)
}

// TestPayloadKey returns the cache key for a test's candidate-facing payload
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestDefinitionKey returns the cache key for a test's full scoring definition
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// TestDurationKey returns the cache key for a test's duration
func (r *CacheKeyStruct) TestDurationKey(testID string) string {
	return fmt.Sprintf("test:%s:duration", testID)
}

// TestMonitorChannel returns the Redis PubSub channel name for a test monitor
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

var CacheKey = NewCacheKeyStruct()
