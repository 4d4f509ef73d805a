package auth

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/db"
	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	db.Repository
	mu     sync.Mutex
	users  map[string]*model.User
	logins map[string]time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*model.User{}, logins: map[string]time.Time{}}
}

func (r *fakeRepo) CreateUser(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return errors.ErrUserExists
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *fakeRepo) UpdateProfile(ctx context.Context, id string, p model.Profile) (*model.User, error) {
	r.mu.Lock()
	u := r.users[id]
	u.FirstName, u.LastName, u.SchoolName = p.FirstName, p.LastName, p.SchoolName
	u.AcademicLevel, u.City, u.Subject = p.AcademicLevel, p.City, p.Subject
	u.IsProfileComplete = true
	r.mu.Unlock()
	return r.GetUserByID(ctx, id)
}

func (r *fakeRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[id] = at
	return nil
}

type fakeGoogle struct {
	identities map[string]*GoogleIdentity
}

func (g fakeGoogle) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	id, ok := g.identities[token]
	if !ok {
		return nil, errors.ErrUnauthorized
	}
	return id, nil
}

func newService(repo *fakeRepo) *Service {
	google := fakeGoogle{identities: map[string]*GoogleIdentity{
		"good": {Subject: "108234", Email: "Teacher@Gmail.com", Name: "Teacher"},
	}}
	return NewService(repo, NewTokenManager("secret", time.Hour), google, zerolog.Nop())
}

var profile = model.Profile{
	FirstName:     "Amina",
	LastName:      "Benali",
	SchoolName:    "Lycée Ibn Khaldoun",
	AcademicLevel: model.AcademicLevelSecondary,
	City:          "Oran",
	Subject:       "Mathematics",
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.True(t, stderrors.Is(CheckPassword(hash, "wrong"), errors.ErrInvalidCredentials))
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, err := m.Issue("u-1", "a@b.c")
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)

	_, err = NewTokenManager("other", time.Hour).Parse(token)
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("u-1", "a@b.c")
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(none)
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
}

func TestSignupAndLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, model.SignupRequest{Email: " Teacher@School.dz ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "teacher@school.dz", resp.Email)
	assert.False(t, resp.IsProfileComplete)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Signup(ctx, model.SignupRequest{Email: "teacher@school.dz", Password: "password2"})
	assert.True(t, stderrors.Is(err, errors.ErrUserExists))

	_, err = svc.Login(ctx, model.LoginRequest{Email: "teacher@school.dz", Password: "nope"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCredentials))
	_, err = svc.Login(ctx, model.LoginRequest{Email: "nobody@school.dz", Password: "password1"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCredentials))

	resp, err = svc.Login(ctx, model.LoginRequest{Email: "teacher@school.dz", Password: "password1"})
	assert.True(t, stderrors.Is(err, errors.ErrProfileIncomplete))
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Token)
	assert.Empty(t, repo.logins)

	_, err = svc.UpdateProfile(ctx, resp.UserID, profile)
	require.NoError(t, err)

	resp, err = svc.Login(ctx, model.LoginRequest{Email: "teacher@school.dz", Password: "password1"})
	require.NoError(t, err)
	assert.True(t, resp.IsProfileComplete)
	assert.Contains(t, repo.logins, resp.UserID)
}

func TestSignupValidation(t *testing.T) {
	svc := newService(newFakeRepo())
	_, err := svc.Signup(context.Background(), model.SignupRequest{Email: "not-an-email", Password: "password1"})

	var verr errors.ValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Contains(t, verr.Field, "email")

	_, err = svc.Signup(context.Background(), model.SignupRequest{Email: "a@b.dz", Password: "short"})
	require.True(t, stderrors.As(err, &verr))
	assert.Contains(t, verr.Field, "password")
}

func TestGoogleFlow(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.GoogleLogin(ctx, model.GoogleTokenRequest{Token: "good"})
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	_, err = svc.GoogleSignup(ctx, model.GoogleTokenRequest{Token: "forged"})
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))

	resp, err := svc.GoogleSignup(ctx, model.GoogleTokenRequest{Token: "good"})
	require.NoError(t, err)
	assert.Equal(t, "108234", resp.UserID)
	assert.Equal(t, "teacher@gmail.com", resp.Email)
	assert.Equal(t, model.AuthProviderGoogle, repo.users["108234"].AuthProvider)
	assert.Nil(t, repo.users["108234"].PasswordHash)

	_, err = svc.GoogleSignup(ctx, model.GoogleTokenRequest{Token: "good"})
	assert.True(t, stderrors.Is(err, errors.ErrUserExists))

	_, err = svc.GoogleLogin(ctx, model.GoogleTokenRequest{Token: "good"})
	assert.True(t, stderrors.Is(err, errors.ErrProfileIncomplete))

	// Google accounts have no password.
	_, err = svc.Login(ctx, model.LoginRequest{Email: "teacher@gmail.com", Password: "anything"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCredentials))

	_, err = svc.UpdateProfile(ctx, "108234", profile)
	require.NoError(t, err)
	resp, err = svc.GoogleLogin(ctx, model.GoogleTokenRequest{Token: "good"})
	require.NoError(t, err)
	assert.True(t, resp.IsProfileComplete)
}

func TestUpdateProfile(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, "missing", profile)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	resp, err := svc.Signup(ctx, model.SignupRequest{Email: "t@school.dz", Password: "password1"})
	require.NoError(t, err)

	bad := profile
	bad.AcademicLevel = "kindergarten"
	_, err = svc.UpdateProfile(ctx, resp.UserID, bad)
	var verr errors.ValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Contains(t, verr.Field, "academic_level")

	user, err := svc.UpdateProfile(ctx, resp.UserID, profile)
	require.NoError(t, err)
	assert.True(t, user.IsProfileComplete)
	assert.Equal(t, "Oran", user.City)

	got, err := svc.GetProfile(ctx, resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, user.SchoolName, got.SchoolName)
}
