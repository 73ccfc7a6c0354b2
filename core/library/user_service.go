package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"albumvault/core/auth"
	"albumvault/model"
	"albumvault/repository"
	"albumvault/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterInput 注册参数
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	User      *model.User `json:"user"`
}

type UserService struct {
	repos   repository.Repos
	tx      repository.Transactor
	store   storage.AudioStore
	tokens  *auth.TokenManager
	revoker auth.Revoker
	log     *zap.Logger

	// compared against when the username is unknown so both failures cost one bcrypt round
	dummyHash string
}

func NewUserService(repos repository.Repos, tx repository.Transactor, store storage.AudioStore,
	tokens *auth.TokenManager, revoker auth.Revoker, log *zap.Logger) (*UserService, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if revoker == nil {
		revoker = auth.NopRevoker{}
	}
	dummy, err := auth.HashPassword(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare login hash: %w", err)
	}
	return &UserService{
		repos:     repos,
		tx:        tx,
		store:     store,
		tokens:    tokens,
		revoker:   revoker,
		log:       log,
		dummyHash: dummy,
	}, nil
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidUser)
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidUser, auth.MaxPasswordBytes)
	}
	exists, err := s.repos.Users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
		}
		return nil, err
	}
	user := &model.User{
		Username: username,
		Password: hash,
		Name:     strings.TrimSpace(in.Name),
		Lastname: strings.TrimSpace(in.Lastname),
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		// 并发注册同名用户
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("userId", user.ID), zap.String("username", username))
	return user, nil
}

// Login checks the credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repos.Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		auth.CheckPasswordHash(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	token, claims, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Unix(), User: user}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return auth.ErrInvalidToken
	}
	return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Delete removes the account with all its albums and songs, then the stored
// audio files.
func (s *UserService) Delete(ctx context.Context, caller Principal) error {
	user, err := resolveUser(ctx, s.repos.Users, caller)
	if err != nil {
		return err
	}

	var keys []string
	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		ids, err := r.Albums.ListIDsByOwner(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			if keys, err = r.Songs.AudioKeysByAlbums(ctx, ids); err != nil {
				return err
			}
			if err := r.Songs.DeleteByAlbums(ctx, ids); err != nil {
				return err
			}
			for _, id := range ids {
				if err := r.Albums.Delete(ctx, id); err != nil {
					return err
				}
			}
		}
		return r.Users.Delete(ctx, user.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", user.Username, err)
	}
	removeObjects(ctx, s.store, s.log, keys)
	s.log.Info("user deleted", zap.Int64("userId", user.ID), zap.Int("songs", len(keys)))
	return nil
}
