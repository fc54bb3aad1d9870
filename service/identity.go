package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL      = 7 * 24 * time.Hour
	DefaultVerificationTTL = 24 * time.Hour
	oauthStateTTL          = 10 * time.Minute
	minPasswordLen         = 8
)

// AccountStore is the identity provider's credential store.
type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountByID(ctx context.Context, id string) (*models.Account, error)
	InsertAccount(ctx context.Context, a *models.Account) error
	SetVerification(ctx context.Context, id, secretHash string, expiresAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	// ClaimAccount hands an unverified account to a provider that proved the email: it is marked
	// verified under provider and name, and its password, phone and pending verification are removed.
	ClaimAccount(ctx context.Context, id, name, provider string) error
}

// Revoker remembers logged-out session ids until their token would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Claims carried in a session token. RegisteredClaims.ID is the session id.
type Claims struct {
	AccountID string `json:"uid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Session is an issued bearer token and who it belongs to.
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	AccountID string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OAuthState travels through the provider round trip sealed with StateKey.
type OAuthState struct {
	Provider   string    `json:"p"`
	SuccessURL string    `json:"s"`
	FailureURL string    `json:"f"`
	Nonce      string    `json:"n"` // also set as a cookie on the browser that started sign-in
	ExpiresAt  time.Time `json:"e"`
}

type RegisterInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	VerifyURL string `json:"verifyUrl"`
}

// Identity is the in-process identity provider: credentials, sessions, email verification and OAuth.
type Identity struct {
	Accounts AccountStore
	Users    *Users
	Revoker  Revoker
	Mailer   Mailer
	Google   *GoogleOAuth
	// RedirectOrigins are the scheme://host values OAuth success and failure URLs must use.
	RedirectOrigins []string

	JWTSecret       []byte
	StateKey        []byte // 32 bytes
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	Now             func() time.Time
}

func NewIdentity(accounts AccountStore, users *Users, revoker Revoker, mailer Mailer, jwtSecret string, stateKey []byte) *Identity {
	return &Identity{
		Accounts:        accounts,
		Users:           users,
		Revoker:         revoker,
		Mailer:          mailer,
		JWTSecret:       []byte(jwtSecret),
		StateKey:        stateKey,
		SessionTTL:      DefaultSessionTTL,
		VerificationTTL: DefaultVerificationTTL,
		Now:             time.Now,
	}
}

// Register creates an unverified password account with its profile document and mails a verification link.
func (id *Identity) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return nil, invalid("name", "Full name is required.")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, invalid("email", "A valid email address is required.")
	}
	if len(in.Password) < minPasswordLen {
		return nil, invalid("password", "Password must be at least 8 characters.")
	}

	existing, err := id.Accounts.AccountByEmail(ctx, in.Email)
	if err != nil {
		return nil, classify(err, "create account")
	}
	if existing != nil {
		return nil, errEmailTaken(nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		Email:        in.Email,
		Name:         in.Name,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(hash),
		Provider:     models.AuthMethodSimple,
	}
	if err := id.Accounts.InsertAccount(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errEmailTaken(err)
		}
		return nil, classify(err, "create account")
	}
	if _, err := id.Users.Ensure(ctx, account, models.AuthMethodSimple); err != nil {
		return nil, err
	}
	if err := id.CreateVerification(ctx, account.ID.Hex(), in.VerifyURL); err != nil {
		// The account exists; the user can ask for another link.
		log.Warn().Err(err).Str("account", account.ID.Hex()).Msg("send verification after register")
	}
	return account, nil
}

func errEmailTaken(cause error) error {
	if cause == nil {
		cause = ErrConflict
	}
	return &opError{kind: ErrConflict, message: "An account with this email already exists.", cause: cause}
}

// CreateSession signs in with email and password. Unverified accounts are refused.
func (id *Identity) CreateSession(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, invalid("email", "Email and password are required.")
	}
	account, err := id.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		return nil, classify(err, "sign in")
	}
	if account == nil || account.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, &opError{kind: ErrUnauthenticated, message: "Invalid email or password.", cause: ErrUnauthenticated}
	}
	if !account.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if _, err := id.Users.Ensure(ctx, account, models.AuthMethodSimple); err != nil {
		return nil, err
	}
	return id.issue(account)
}

func (id *Identity) issue(account *models.Account) (*Session, error) {
	now := id.Now()
	s := &Session{
		ID:        uuid.NewString(),
		AccountID: account.ID.Hex(),
		Email:     account.Email,
		ExpiresAt: now.Add(id.SessionTTL),
	}
	claims := &Claims{
		AccountID: s.AccountID,
		Email:     s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(id.JWTSecret)
	if err != nil {
		return nil, err
	}
	s.Token = token
	return s, nil
}

// Authenticate validates a bearer token and checks it has not been logged out.
func (id *Identity) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return id.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(id.Now))
	if err != nil || !parsed.Valid || claims.AccountID == "" || claims.ID == "" {
		return nil, &opError{kind: ErrUnauthenticated, message: "Invalid or expired session.", cause: ErrUnauthenticated}
	}
	revoked, err := id.Revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, &opError{kind: ErrTransient, message: "Unable to verify session. Please try again.", cause: err}
	}
	if revoked {
		return nil, &opError{kind: ErrUnauthenticated, message: "Session has ended. Please sign in again.", cause: ErrUnauthenticated}
	}
	s := &Session{ID: claims.ID, Token: token, AccountID: claims.AccountID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// CurrentUser resolves the account behind token.
func (id *Identity) CurrentUser(ctx context.Context, token string) (*models.Account, error) {
	s, err := id.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	account, err := id.Accounts.AccountByID(ctx, s.AccountID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &opError{kind: ErrUnauthenticated, message: "Account no longer exists.", cause: err}
	}
	if err != nil {
		return nil, classify(err, "fetch account")
	}
	return account, nil
}

// DeleteSession logs token out for the rest of its lifetime.
func (id *Identity) DeleteSession(ctx context.Context, token string) error {
	s, err := id.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	ttl := s.ExpiresAt.Sub(id.Now())
	if ttl <= 0 {
		return nil
	}
	if err := id.Revoker.Revoke(ctx, s.ID, ttl); err != nil {
		return &opError{kind: ErrTransient, message: "Unable to sign out. Please try again.", cause: err}
	}
	return nil
}

// CreateVerification stores a fresh verification secret for accountID and mails
// verifyURL?userId=<id>&secret=<secret> to the account's address.
func (id *Identity) CreateVerification(ctx context.Context, accountID, verifyURL string) error {
	link, err := url.Parse(verifyURL)
	if err != nil || verifyURL == "" {
		return invalid("verifyUrl", "A verification URL is required.")
	}
	account, err := id.Accounts.AccountByID(ctx, accountID)
	if err != nil {
		return classify(err, "send verification email")
	}
	secret, err := utils.RandomToken(32)
	if err != nil {
		return err
	}
	expires := id.Now().Add(id.VerificationTTL)
	if err := id.Accounts.SetVerification(ctx, accountID, utils.HashToken(secret), expires); err != nil {
		return classify(err, "send verification email")
	}
	q := link.Query()
	q.Set("userId", accountID)
	q.Set("secret", secret)
	link.RawQuery = q.Encode()
	if err := id.Mailer.SendVerification(ctx, account.Email, account.Name, link.String()); err != nil {
		return &opError{kind: ErrTransient, message: "Unable to send verification email. Please try again.", cause: err}
	}
	return nil
}

// ConfirmVerification completes verification for the link mailed by CreateVerification.
func (id *Identity) ConfirmVerification(ctx context.Context, userID, secret string) error {
	failed := invalid("secret", "Email verification failed. The link may be invalid or expired.")
	if userID == "" || secret == "" {
		return failed
	}
	account, err := id.Accounts.AccountByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return failed
	}
	if err != nil {
		return classify(err, "verify email")
	}
	if account.EmailVerified {
		return nil
	}
	if account.VerificationHash == "" || id.Now().After(account.VerificationExpiresAt) ||
		!utils.TokenMatches(secret, account.VerificationHash) {
		return failed
	}
	if err := id.Accounts.MarkEmailVerified(ctx, userID); err != nil {
		return classify(err, "verify email")
	}
	return nil
}

// ResendVerification mails a new link to an unverified account. Unknown or verified addresses are a no-op.
func (id *Identity) ResendVerification(ctx context.Context, email, verifyURL string) error {
	account, err := id.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		return classify(err, "send verification email")
	}
	if account == nil || account.EmailVerified {
		return nil
	}
	return id.CreateVerification(ctx, account.ID.Hex(), verifyURL)
}

// CreateOAuthRedirect returns the provider consent URL and a nonce the caller must hand to the
// browser (a cookie) and give back to CompleteOAuth. Only "google" is supported, and both URLs must
// point at a RedirectOrigins origin.
func (id *Identity) CreateOAuthRedirect(provider, successURL, failureURL string) (string, string, error) {
	if provider != models.AuthMethodGoogle {
		return "", "", invalid("provider", "Unsupported sign-in provider.")
	}
	if id.Google == nil {
		return "", "", invalid("provider", "Google sign-in is not configured.")
	}
	if successURL == "" || failureURL == "" {
		return "", "", invalid("redirect", "Success and failure URLs are required.")
	}
	if !id.allowedRedirect(successURL) || !id.allowedRedirect(failureURL) {
		return "", "", invalid("redirect", "Redirect URL is not allowed.")
	}
	nonce, err := utils.RandomToken(16)
	if err != nil {
		return "", "", err
	}
	raw, err := json.Marshal(OAuthState{
		Provider:   provider,
		SuccessURL: successURL,
		FailureURL: failureURL,
		Nonce:      nonce,
		ExpiresAt:  id.Now().Add(oauthStateTTL),
	})
	if err != nil {
		return "", "", err
	}
	state, err := utils.Seal(raw, id.StateKey)
	if err != nil {
		return "", "", err
	}
	return id.Google.AuthCodeURL(state), nonce, nil
}

func (id *Identity) allowedRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	origin := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, o := range id.RedirectOrigins {
		if strings.ToLower(strings.TrimRight(o, "/")) == origin {
			return true
		}
	}
	return false
}

// CompleteOAuth finishes the provider callback. nonce is the value CreateOAuthRedirect returned to
// the browser that started sign-in. The returned state is non-nil whenever the state parameter
// decoded, so callers can redirect to its FailureURL on error.
func (id *Identity) CompleteOAuth(ctx context.Context, code, rawState, nonce string) (*Session, *OAuthState, error) {
	state, err := id.decodeState(rawState)
	if err != nil {
		return nil, nil, err
	}
	if nonce == "" || subtle.ConstantTimeCompare([]byte(nonce), []byte(state.Nonce)) != 1 {
		return nil, state, invalid("state", "Sign-in was started in another browser. Please try again.")
	}
	if code == "" {
		return nil, state, invalid("code", "Authorization code is missing.")
	}
	profile, err := id.Google.Exchange(ctx, code)
	if err != nil {
		return nil, state, &opError{kind: ErrUnauthenticated, message: "Google sign-in failed. Please try again.", cause: err}
	}
	if !profile.EmailVerified {
		return nil, state, ErrEmailNotVerified
	}

	account, err := id.Accounts.AccountByEmail(ctx, profile.Email)
	if err != nil {
		return nil, state, classify(err, "sign in")
	}
	switch {
	case account == nil:
		account = &models.Account{
			Email:         profile.Email,
			Name:          profile.Name,
			Provider:      models.AuthMethodGoogle,
			EmailVerified: true,
		}
		if err := id.Accounts.InsertAccount(ctx, account); err != nil {
			return nil, state, classify(err, "sign in")
		}
	case !account.EmailVerified:
		// Nobody proved this address before; whatever the unverified sign-up set is not trusted.
		if err := id.Accounts.ClaimAccount(ctx, account.ID.Hex(), profile.Name, models.AuthMethodGoogle); err != nil {
			return nil, state, classify(err, "sign in")
		}
		log.Info().Str("account", account.ID.Hex()).Msg("unverified account claimed by google sign-in")
		claimed := &models.Account{
			ID:            account.ID,
			Email:         account.Email,
			Name:          profile.Name,
			Provider:      models.AuthMethodGoogle,
			EmailVerified: true,
			CreatedAt:     account.CreatedAt,
		}
		if _, err := id.Users.Reset(ctx, claimed, models.AuthMethodGoogle); err != nil {
			return nil, state, err
		}
		s, err := id.issue(claimed)
		return s, state, err
	}
	if _, err := id.Users.Ensure(ctx, account, models.AuthMethodGoogle); err != nil {
		return nil, state, err
	}
	s, err := id.issue(account)
	return s, state, err
}

func (id *Identity) decodeState(raw string) (*OAuthState, error) {
	bad := invalid("state", "Sign-in request is invalid or has expired.")
	plain, err := utils.Open(raw, id.StateKey)
	if err != nil {
		return nil, bad
	}
	var st OAuthState
	if err := json.Unmarshal(plain, &st); err != nil {
		return nil, bad
	}
	if id.Now().After(st.ExpiresAt) {
		return nil, bad
	}
	return &st, nil
}
