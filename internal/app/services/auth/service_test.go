package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authsvc "chatline/internal/app/services/auth"
	domainauth "chatline/internal/domain/auth"
	domainuser "chatline/internal/domain/user"
	"chatline/internal/infra/security"
	"chatline/internal/infra/storage/memory"
)

func newService() (*authsvc.Service, *memory.SessionStore) {
	sessions := memory.NewSessionStore()
	return &authsvc.Service{
		Users:      memory.NewUserRepository(),
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}, sessions
}

func TestRegister_IssuesSessionAndNormalizesEmail(t *testing.T) {
	req := require.New(t)
	svc, _ := newService()
	ctx := context.Background()

	result, err := svc.Register(ctx, authsvc.RegisterParams{
		Email:    "  Alice@Example.COM ",
		Name:     "Alice",
		Password: "supersecret",
	})
	req.NoError(err)
	req.NotEmpty(result.Token)
	req.Equal("alice@example.com", result.User.Email)
	req.NotEqual("supersecret", result.User.PasswordHash)

	resolved, err := svc.ResolveToken(ctx, result.Token)
	req.NoError(err)
	req.Equal(result.User.ID, resolved.User.ID)
}

func TestRegister_RejectsDuplicateEmail(t *testing.T) {
	req := require.New(t)
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: "A", Password: "supersecret"})
	req.NoError(err)

	_, err = svc.Register(ctx, authsvc.RegisterParams{Email: "A@B.com", Name: "Other", Password: "supersecret"})
	req.ErrorIs(err, domainuser.ErrEmailAlreadyUsed)
}

func TestRegister_Validation(t *testing.T) {
	req := require.New(t)
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, authsvc.RegisterParams{Email: "", Name: "A", Password: "supersecret"})
	req.ErrorIs(err, domainuser.ErrEmailRequired)

	_, err = svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: " ", Password: "supersecret"})
	req.ErrorIs(err, domainuser.ErrNameRequired)

	_, err = svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: "A", Password: "short"})
	req.ErrorIs(err, authsvc.ErrPasswordTooShort)
}

func TestLogin(t *testing.T) {
	req := require.New(t)
	svc, _ := newService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: "A", Password: "supersecret"})
	req.NoError(err)

	result, err := svc.Login(ctx, authsvc.LoginParams{Email: "a@b.com", Password: "supersecret"})
	req.NoError(err)
	req.Equal(registered.User.ID, result.User.ID)
	req.NotEqual(registered.Token, result.Token)

	_, err = svc.Login(ctx, authsvc.LoginParams{Email: "a@b.com", Password: "wrongpassword"})
	req.ErrorIs(err, authsvc.ErrInvalidCredentials)

	_, err = svc.Login(ctx, authsvc.LoginParams{Email: "nobody@b.com", Password: "supersecret"})
	req.ErrorIs(err, authsvc.ErrInvalidCredentials)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	req := require.New(t)
	svc, _ := newService()
	ctx := context.Background()

	result, err := svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: "A", Password: "supersecret"})
	req.NoError(err)

	req.NoError(svc.Logout(ctx, result.Token))

	_, err = svc.ResolveToken(ctx, result.Token)
	req.ErrorIs(err, domainauth.ErrSessionNotFound)

	// logging out twice is harmless
	req.NoError(svc.Logout(ctx, result.Token))
	req.NoError(svc.Logout(ctx, ""))
}

func TestResolveToken_ExpiredSession(t *testing.T) {
	req := require.New(t)
	svc, sessions := newService()
	svc.SessionTTL = time.Nanosecond
	ctx := context.Background()

	result, err := svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: "A", Password: "supersecret"})
	req.NoError(err)

	time.Sleep(time.Millisecond)
	_, err = svc.ResolveToken(ctx, result.Token)
	req.ErrorIs(err, domainauth.ErrSessionNotFound)

	_, err = sessions.Get(ctx, domainauth.Token(result.Token))
	req.ErrorIs(err, domainauth.ErrSessionNotFound)
}

func TestSetAvatar(t *testing.T) {
	req := require.New(t)
	svc, _ := newService()
	ctx := context.Background()

	result, err := svc.Register(ctx, authsvc.RegisterParams{Email: "a@b.com", Name: "A", Password: "supersecret"})
	req.NoError(err)

	updated, err := svc.SetAvatar(ctx, result.User.ID, "https://cdn.example.com/a.png")
	req.NoError(err)
	req.Equal("https://cdn.example.com/a.png", updated.AvatarURL)

	reloaded, err := svc.ResolveToken(ctx, result.Token)
	req.NoError(err)
	req.Equal("https://cdn.example.com/a.png", reloaded.User.AvatarURL)

	_, err = svc.SetAvatar(ctx, "missing", "x")
	req.ErrorIs(err, domainuser.ErrNotFound)
}
