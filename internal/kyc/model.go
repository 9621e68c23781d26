package kyc

import (
	"errors"
	"time"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/profile"
)

const (
	jobPrefix = "kyc_job"
	// IndexKey lists the user ids that have a pending verification job.
	IndexKey = "kyc_jobs"
)

var (
	// ErrInvalidTransition is returned when the profile's current status does
	// not allow the requested change.
	ErrInvalidTransition = errors.New("invalid kyc status transition")
	// ErrInvalidPayload is returned when submitted KYC data is not an object.
	ErrInvalidPayload = errors.New("kyc data must be a JSON object")
	// ErrInvalidDecision is returned for review decisions other than verified or rejected.
	ErrInvalidDecision = errors.New("decision must be verified or rejected")
)

// Job is a pending automatic verification.
type Job struct {
	UserID    string    `json:"userId"`
	DueAt     time.Time `json:"dueAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobKey returns the store key holding userID's job.
func JobKey(userID string) string {
	return kv.Key(jobPrefix, userID)
}

var transitions = map[profile.KYCStatus][]profile.KYCStatus{
	profile.KYCPending:   {profile.KYCSubmitted},
	profile.KYCSubmitted: {profile.KYCSubmitted, profile.KYCVerified, profile.KYCRejected},
	profile.KYCRejected:  {profile.KYCSubmitted},
}

// CanTransition reports whether a profile may move from one status to another.
func CanTransition(from, to profile.KYCStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func addToIndex(index []string, userID string) []string {
	for _, id := range index {
		if id == userID {
			return index
		}
	}
	return append(index, userID)
}

func removeFromIndex(index []string, userID string) []string {
	out := make([]string, 0, len(index))
	for _, id := range index {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}
