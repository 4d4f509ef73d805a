package auth

import (
	"context"
	"fmt"

	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleIdentity is the part of a verified Google ID token the service uses.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

type googleVerifier struct {
	clientID string
}

// NewGoogleVerifier checks ID tokens against Google's public certificates
// and the given OAuth client ID.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{clientID: clientID}
}

func (g *googleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return nil, fmt.Errorf("invalid google id token: %v: %w", err, errors.ErrUnauthorized)
	}

	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decode google id token: %v: %w", err, errors.ErrUnauthorized)
	}
	if claimSet.Sub == "" || claimSet.Email == "" {
		return nil, fmt.Errorf("google id token without subject or email: %w", errors.ErrUnauthorized)
	}
	return &GoogleIdentity{Subject: claimSet.Sub, Email: claimSet.Email, Name: claimSet.Name}, nil
}
