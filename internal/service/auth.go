package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/foodshare/internal/auth"
)

// GitHubExchanger is the part of auth.GitHubProvider the login flow needs.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthService turns a completed GitHub login into an identity token.
//
// No user row is written here. The account comes into existence on the first
// onboarding submission, which takes name and email from the token claims.
type AuthService struct {
	github GitHubExchanger
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(github GitHubExchanger, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{github: github, tokens: tokens, logger: logger}
}

// LoginURL returns where to send the browser to start a login.
func (s *AuthService) LoginURL(state string) string {
	return s.github.AuthURL(state)
}

// LoginGitHub exchanges the callback code and issues a token for the account.
func (s *AuthService) LoginGitHub(ctx context.Context, code string) (string, error) {
	ghUser, err := s.github.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}

	id := ghUser.Identity()
	token, err := s.tokens.Generate(id)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for %s: %w", id.UserID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", id.UserID),
		slog.String("login", ghUser.Login),
	)
	return token, nil
}
