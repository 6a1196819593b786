package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"chatboard/internal/chat"
	"chatboard/internal/model"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// Session is the result of a successful register or login.
type Session struct {
	User *model.User `json:"user"`
	TokenPair
}

// Service registers users and authenticates them.
type Service struct {
	database Database
	tokens   *TokenIssuer
	logger   chat.Logger
	clock    chat.Clock
	idgen    chat.IDGenerator
	cost     int
}

// Database is the subset of chat.Database the auth service needs.
type Database interface {
	CreateUser(ctx context.Context, user *model.User) error
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// NewService creates the auth service. A zero cost means bcrypt.DefaultCost.
func NewService(database Database, tokens *TokenIssuer, logger chat.Logger, clock chat.Clock, idgen chat.IDGenerator, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		database: database,
		tokens:   tokens,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		cost:     cost,
	}
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", chat.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fmt.Errorf("%w: a valid email is required", chat.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", chat.ErrValidation, MinPasswordLength)
	}

	existing, err := s.database.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email is already registered", chat.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		ID:           s.idgen.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.database.CreateUser(ctx, user); err != nil {
		if errors.Is(err, chat.ErrConflict) {
			return nil, fmt.Errorf("%w: username or email is taken", chat.ErrConflict)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.logger.Info("user registered", "user", user.ID)

	return s.session(user)
}

// Login checks the credentials. Unknown email and wrong password fail the
// same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.database.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", chat.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", chat.ErrUnauthorized)
	}
	return s.session(user)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.database.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", chat.ErrNotFound)
	}
	return s.tokens.Issue(user.ID)
}

// Authenticate resolves an access token to its user id.
func (s *Service) Authenticate(accessToken string) (string, error) {
	return s.tokens.VerifyAccess(accessToken)
}

func (s *Service) session(user *model.User) (*Session, error) {
	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, TokenPair: *pair}, nil
}
