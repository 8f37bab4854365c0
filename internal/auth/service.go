package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/models"
)

// Service orchestrates registration, password login and the TOTP flow
// state machine. Passkey ceremonies live in PasskeyService.
type Service struct {
	users     UserStore
	sessions  SessionStore
	passkeys  PasskeyStore
	regTokens RegistrationTokenStore
	hasher    PasswordHasher
	mfa       *MFAService
	audit     audit.Logger
	logger    *slog.Logger
}

func NewService(users UserStore, sessions SessionStore, passkeys PasskeyStore, regTokens RegistrationTokenStore, hasher PasswordHasher, mfa *MFAService, auditLogger audit.Logger, logger *slog.Logger) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		passkeys:  passkeys,
		regTokens: regTokens,
		hasher:    hasher,
		mfa:       mfa,
		audit:     auditLogger,
		logger:    logger,
	}
}

// RegisterParams carries a validated registration request plus the
// gating context the handler resolved.
type RegisterParams struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	RegistrationCode string

	OpenRegistration bool
	Author           *Principal
}

// Register creates a user. When registration is closed, a valid
// invite code is required unless the author is an admin. Invite
// auto-roles are applied on top of the Default role.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return nil, apperrors.Validation("User with this email already exists!")
	}

	authorIsAdmin := p.Author != nil && IsAdmin(p.Author)

	var invite *models.RegistrationToken
	if !p.OpenRegistration && !authorIsAdmin {
		if p.RegistrationCode == "" {
			return nil, apperrors.Forbidden("Registration is closed!")
		}
		invite, err = s.validateInvite(ctx, p.RegistrationCode)
		if err != nil {
			return nil, err
		}
	} else if p.RegistrationCode != "" {
		// A code supplied while registration is open still grants its
		// auto-roles.
		invite, err = s.validateInvite(ctx, p.RegistrationCode)
		if err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}
	token, err := NewUserToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token", err)
	}

	roles := []uuid.UUID{models.DefaultRoleID}
	if invite != nil {
		for _, r := range invite.AutoRoles {
			if r != models.DefaultRoleID {
				roles = append(roles, r)
			}
		}
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		PasswordHash: hash,
		Token:        token,
		Roles:        roles,
		CreatedAt:    timeNow().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, apperrors.Database(err)
	}

	if invite != nil && !invite.UsedBy(user.ID) {
		if err := s.regTokens.AddRegistrationTokenUse(ctx, invite.ID, user.ID); err != nil {
			s.logger.Error("registration_token_use_failed", "code", invite.Code, "error", err)
		}
	}

	authorID := user.ID
	if p.Author != nil {
		authorID = p.Author.UserID
	}
	s.audit.Log(ctx, models.NewAuditLog(user.ID.String(), models.AuditEntityUser, models.AuditActionCreate, "User created.", authorID, nil, nil))

	return user, nil
}

func (s *Service) validateInvite(ctx context.Context, code string) (*models.RegistrationToken, error) {
	invite, err := s.regTokens.GetRegistrationTokenByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if invite == nil {
		return nil, apperrors.Forbidden("Invalid registration code!")
	}
	if invite.Exhausted() {
		return nil, apperrors.Forbidden("Registration code has no uses left!")
	}
	if invite.Expired(timeNow()) {
		return nil, apperrors.Forbidden("Registration code has expired!")
	}
	return invite, nil
}

// LoginResult is what the login handler renders. Token is empty when
// a second factor is still outstanding.
type LoginResult struct {
	User        *models.User
	Token       string
	MfaRequired bool
	MfaFlowID   *uuid.UUID
	HasPasskeys bool
}

// Login verifies the password and either emits the bearer or opens a
// TOTP login flow.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.InvalidCredentials()
	}
	if user.Disabled {
		return nil, apperrors.UserDisabled()
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, apperrors.InvalidCredentials()
		}
		return nil, apperrors.Internal("Failed to verify password", err)
	}

	creds, err := s.passkeys.ListPasskeysByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	hasPasskeys := len(creds) > 0

	if user.TOTPSecret != "" {
		flowID := uuid.New()
		session := models.NewMfaSession(models.MfaFlowData{
			FlowID: flowID,
			UserID: user.ID,
			Kind:   models.MfaKindTotp,
			State:  models.MfaStatePending,
		})
		if err := s.sessions.InsertSession(ctx, session); err != nil {
			return nil, apperrors.Database(err)
		}
		return &LoginResult{User: user, MfaRequired: true, MfaFlowID: &flowID, HasPasskeys: hasPasskeys}, nil
	}

	s.audit.Log(ctx, models.NewAuditLog(user.ID.String(), models.AuditEntityUser, models.AuditActionLogin, "Login successful.", user.ID, nil, nil))

	return &LoginResult{User: user, Token: user.Token, HasPasskeys: hasPasskeys}, nil
}

// VerifyMfaResult distinguishes the two flow kinds so the handler can
// pick the right message.
type VerifyMfaResult struct {
	User  *models.User
	Token string
	Kind  models.MfaFlowKind
}

// VerifyMfa drives a pending flow to completion. A wrong code leaves
// the flow and the user untouched; success consumes the session. For
// enrollment flows the pending secret is only persisted here, and the
// bearer token is rotated.
func (s *Service) VerifyMfa(ctx context.Context, flowID uuid.UUID, code string) (*VerifyMfaResult, error) {
	sessionID := models.SessionPrefixMfa + flowID.String()
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Payload.MfaFlow == nil {
		return nil, apperrors.NotFound("MFA flow not found or expired!")
	}
	flow := session.Payload.MfaFlow
	if flow.State == models.MfaStateComplete {
		return nil, apperrors.Validation("MFA flow already completed!")
	}

	user, err := s.users.GetUserByID(ctx, flow.UserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found!")
	}
	if user.Disabled {
		return nil, apperrors.UserDisabled()
	}

	switch flow.Kind {
	case models.MfaKindEnableTotp:
		if !s.mfa.ValidateCode(code, flow.Secret) {
			return nil, apperrors.InvalidMfaCode()
		}
		newToken, err := NewUserToken()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate token", err)
		}
		user.TOTPSecret = flow.Secret
		user.Token = newToken
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, apperrors.Database(err)
		}

		diff := models.NewDiff()
		diff.Set("totpSecret", "", flow.Secret)
		diff.Set("token", "", newToken)
		s.audit.Log(ctx, models.NewAuditLog(user.ID.String(), models.AuditEntityUser, models.AuditActionUpdate, "TOTP enabled.", user.ID, diff.OldValues(), diff.NewValues()))

		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			s.logger.Error("mfa_session_delete_failed", "flow_id", flowID, "error", err)
		}
		return &VerifyMfaResult{User: user, Token: newToken, Kind: flow.Kind}, nil

	case models.MfaKindTotp:
		if !s.mfa.ValidateCode(code, user.TOTPSecret) {
			return nil, apperrors.InvalidMfaCode()
		}
		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			s.logger.Error("mfa_session_delete_failed", "flow_id", flowID, "error", err)
		}
		s.audit.Log(ctx, models.NewAuditLog(user.ID.String(), models.AuditEntityUser, models.AuditActionLogin, "Login successful.", user.ID, nil, nil))
		return &VerifyMfaResult{User: user, Token: user.Token, Kind: flow.Kind}, nil

	default:
		return nil, apperrors.Validation("Unknown MFA flow kind!")
	}
}

// EnableTotpResult carries the provisioning material for the client.
type EnableTotpResult struct {
	FlowID uuid.UUID
	QRCode string
}

// StartEnableTotp opens an enrollment flow for the target user. The
// target's password is required as proof of possession; the secret is
// parked on the flow until VerifyMfa confirms it.
func (s *Service) StartEnableTotp(ctx context.Context, principal *Principal, targetID uuid.UUID, password string) (*EnableTotpResult, error) {
	if !principal.IsUser() {
		return nil, apperrors.Forbidden("Missing permissions!")
	}
	if principal.UserID != targetID && !principal.User.IsAdmin() {
		return nil, apperrors.Forbidden("Missing permissions!")
	}

	user, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found!")
	}
	if user.TOTPSecret != "" {
		return nil, apperrors.Validation("MFA is already enabled!")
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, apperrors.InvalidCredentials()
		}
		return nil, apperrors.Internal("Failed to verify password", err)
	}

	key, qr, err := s.mfa.GenerateSecret(user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate TOTP secret", err)
	}

	flowID := uuid.New()
	session := models.NewMfaSession(models.MfaFlowData{
		FlowID: flowID,
		UserID: user.ID,
		Kind:   models.MfaKindEnableTotp,
		State:  models.MfaStatePending,
		Secret: key.Secret(),
	})
	if err := s.sessions.InsertSession(ctx, session); err != nil {
		return nil, apperrors.Database(err)
	}

	return &EnableTotpResult{FlowID: flowID, QRCode: qr}, nil
}

// DisableTotp clears the secret after proof of either a valid current
// code or the account password, and rotates the bearer token.
func (s *Service) DisableTotp(ctx context.Context, principal *Principal, targetID uuid.UUID, code, password string) (*models.User, error) {
	if !principal.IsUser() {
		return nil, apperrors.Forbidden("Missing permissions!")
	}
	if principal.UserID != targetID && !principal.User.IsAdmin() {
		return nil, apperrors.Forbidden("Missing permissions!")
	}

	user, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found!")
	}
	if user.TOTPSecret == "" {
		return nil, apperrors.Validation("MFA is not enabled!")
	}

	proven := false
	if code != "" && s.mfa.ValidateCode(code, user.TOTPSecret) {
		proven = true
	}
	if !proven && password != "" {
		if err := s.hasher.Compare(user.PasswordHash, password); err == nil {
			proven = true
		}
	}
	if !proven {
		return nil, apperrors.InvalidCredentials()
	}

	newToken, err := NewUserToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate token", err)
	}
	oldSecret := user.TOTPSecret
	user.TOTPSecret = ""
	user.Token = newToken
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, apperrors.Database(err)
	}

	diff := models.NewDiff()
	diff.Set("totpSecret", oldSecret, "")
	diff.Set("token", "", newToken)
	s.audit.Log(ctx, models.NewAuditLog(user.ID.String(), models.AuditEntityUser, models.AuditActionUpdate, "TOTP disabled.", principal.UserID, diff.OldValues(), diff.NewValues()))

	return user, nil
}
