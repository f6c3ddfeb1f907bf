// Package auth はメールアドレスとパスワードによる認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/passbook/internal/model"
	"github.com/hitoshi/passbook/internal/repository"
	"github.com/hitoshi/passbook/internal/security"
)

const (
	minPasswordLength = 8
	// bcryptは72バイトを超える入力を扱えない
	maxPasswordBytes = 72
	minContactDigits = 8
	maxContactDigits = 15
)

// SignupInput はユーザー登録の入力を表す。DOBはYYYY-MM-DD形式。
type SignupInput struct {
	Email         string
	Password      string
	Name          string
	ContactNumber string
	DOB           string
}

// LoginInput はログインの入力を表す。
type LoginInput struct {
	Email    string
	Password string
	Remember bool
}

// ログイン状態を保持しないセッションのサーバー側の有効期間上限
const browserSessionMaxAge = 12 * time.Hour

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizer
	config      ServiceConfig
	hashCost    int
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizer,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		config:      config,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// Signup はユーザーを登録する。
// 同じメールアドレスが登録済みの場合はEMAIL_ALREADY_EXISTSを返す。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	if name == "" {
		return nil, model.NewInvalidRequestError("name は必須です")
	}

	contact, err := normalizeContactNumber(in.ContactNumber)
	if err != nil {
		return nil, err
	}

	dob, err := time.Parse(model.DateLayoutISO, strings.TrimSpace(in.DOB))
	if err != nil {
		return nil, model.NewInvalidRequestError("dob はYYYY-MM-DD形式で指定してください")
	}
	if !dob.Before(s.now()) {
		return nil, model.NewInvalidRequestError("dob は過去の日付を指定してください")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  string(hash),
		Name:          name,
		ContactNumber: contact,
		DOB:           dob,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created", slog.String("user_id", user.ID))
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*model.Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID, in.Remember)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("remember", in.Remember),
	)
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
// rememberがfalseの場合、有効期間はbrowserSessionMaxAgeを上限とする。
func (s *Service) createSession(ctx context.Context, userID string, remember bool) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	maxAge := time.Duration(s.config.SessionMaxAge) * time.Second
	if !remember && maxAge > browserSessionMaxAge {
		maxAge = browserSessionMaxAge
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Remember:  remember,
		ExpiresAt: now.Add(maxAge),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewInvalidRequestError("email の形式が正しくありません")
	}
	return email, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.NewInvalidRequestError(fmt.Sprintf("password は%d文字以上で指定してください", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError(fmt.Sprintf("password は%dバイト以内で指定してください", maxPasswordBytes))
	}
	return nil
}

// normalizeContactNumber は空白とハイフンを除去し、先頭の+と数字のみからなる番号を返す。
func normalizeContactNumber(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	digits := strings.TrimPrefix(cleaned, "+")

	valid := len(digits) >= minContactDigits && len(digits) <= maxContactDigits
	for _, r := range digits {
		if r < '0' || r > '9' {
			valid = false
			break
		}
	}
	if !valid {
		return "", model.NewInvalidRequestError("contact_number は8〜15桁の電話番号で指定してください")
	}
	return cleaned, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
