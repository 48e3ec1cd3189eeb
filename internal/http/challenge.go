package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/target/mmk-ldap-auth/internal/ports"
)

// Login form field names.
const (
	fieldSubmissionID = "submission_id"
	fieldUsername     = "username"
	fieldPassword     = "password"
	fieldRemember     = "remember"
)

// formChallenge reads the credential form posted with r. Requests that are not form
// posts carry no submission, which keeps the engine waiting on the prompt.
func formChallenge(r *http.Request) ports.Challenge {
	return ports.ChallengeFunc(func(context.Context) (*ports.Submission, error) {
		if r.Method != http.MethodPost {
			return nil, nil
		}
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse login form: %w", err)
		}
		if !r.PostForm.Has(fieldUsername) && !r.PostForm.Has(fieldPassword) {
			return nil, nil
		}
		id := strings.TrimSpace(r.PostForm.Get(fieldSubmissionID))
		if id == "" {
			id = uuid.NewString()
		}
		return &ports.Submission{
			ID:       id,
			Username: strings.TrimSpace(r.PostForm.Get(fieldUsername)),
			Password: r.PostForm.Get(fieldPassword),
			Remember: r.PostForm.Get(fieldRemember) != "",
		}, nil
	})
}
