package internal

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
	"github.com/derWhity/gustavo/internal/similarity"
)

// SimilarityService answers the "who shares my taste?" question for the guests of an event
type SimilarityService interface {
	// FindSimilarUsers returns the guests whose ratings correlate best with the calling user's own.
	// The calculation works on a snapshot of the event - a result is always internally consistent,
	// even while other guests keep rating
	FindSimilarUsers(ctx context.Context, eventID string) ([]SimilarUser, error)
}

// SimilarUser describes one guest of the similarity ranking
type SimilarUser struct {
	Email           string  `json:"email"`
	DisplayName     string  `json:"displayName"`
	SimilarityScore float64 `json:"similarityScore"`
	CommonItemCount int     `json:"commonItemCount"`
	CommonItems     []int   `json:"commonItems"`
}

// -- SimilarityService implementation ---------------------------------------------------------------------------------

type similarityService struct {
	repo   repos.EventRepo
	logger *logrus.Entry
}

// NewSimilarityService creates a new similarity service instance
func NewSimilarityService(repo repos.EventRepo, logger *logrus.Entry) SimilarityService {
	return &similarityService{
		repo:   repo,
		logger: logger,
	}
}

// FindSimilarUsers returns the guests whose ratings correlate best with the calling user's own
func (s *similarityService) FindSimilarUsers(ctx context.Context, eventID string) ([]SimilarUser, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := s.repo.Get(eventID)
	if err != nil {
		return nil, mapEventRepoError(err, eventID)
	}
	if ev.State != models.StateStarted {
		return nil, errNotStarted(ev.State)
	}
	own := ev.RatingsBy(sess.Email)
	if len(own) < similarity.MinRatings {
		return nil, MakeErrorWithData(http.StatusPreconditionFailed, ErrCodeInsufficientRatings,
			fmt.Sprintf("Rate at least %d items before asking for similar guests", similarity.MinRatings),
			map[string]int{"ratedItems": len(own), "requiredItems": similarity.MinRatings},
		)
	}
	others := make(map[string]similarity.Vector, len(ev.Users))
	for email := range ev.Users {
		if email == sess.Email {
			continue
		}
		if vec := ev.RatingsBy(email); len(vec) > 0 {
			others[email] = vec
		}
	}
	candidates := similarity.Rank(own, others, similarity.MaxResults)
	ret := make([]SimilarUser, 0, len(candidates))
	for _, c := range candidates {
		su := SimilarUser{
			Email:           c.Email,
			SimilarityScore: c.Score,
			CommonItemCount: len(c.CommonItems),
			CommonItems:     c.CommonItems,
		}
		if u, ok := ev.Users[c.Email]; ok {
			su.DisplayName = u.DisplayName
		}
		ret = append(ret, su)
	}
	return ret, nil
}
