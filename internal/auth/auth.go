package auth

import (
	"time"

	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/service"
	"github.com/dmarkov/approvalflow/pkg/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for unknown emails, wrong passwords and
// bad or expired tokens alike, to avoid leaking which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenTTL = 30 * time.Minute

// Service is the authentication collaborator: account registration, password
// verification and bearer-token issuance. The core services only ever see
// the resolved models.User.
type Service struct {
	store  storage.Store
	secret []byte
}

func NewService(store storage.Store, secret string) *Service {
	return &Service{store: store, secret: []byte(secret)}
}

// Register creates an account with a bcrypt-hashed password. A duplicate
// email surfaces storage.ErrConflict.
func (s *Service) Register(email, name, password string, role models.Role) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, errors.Wrap(service.ErrInvalidInput, "email and password are required")
	}
	if !role.Valid() {
		return models.User{}, errors.Wrapf(service.ErrInvalidInput, "invalid role '%s'", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, errors.Wrap(err, "failed to hash password")
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveUser(user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Token is the login response: a signed bearer credential plus the public
// view of the account.
type Token struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        models.User `json:"user"`
}

// Login verifies the password and issues a signed JWT carrying the user id.
func (s *Service) Login(email, password string) (Token, error) {
	user, err := s.store.GetUserByEmail(email)
	if errors.Is(err, storage.ErrNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Token{}, ErrInvalidCredentials
	}

	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, errors.Wrap(err, "failed to sign token")
	}
	return Token{AccessToken: signed, TokenType: "bearer", User: user}, nil
}

// Authenticate validates a bearer token and resolves the account it names.
func (s *Service) Authenticate(tokenString string) (models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return models.User{}, ErrInvalidCredentials
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUser(claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
