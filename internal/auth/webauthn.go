package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/models"
)

// WebAuthnConfig is the static relying-party configuration, built
// once at process start.
type WebAuthnConfig struct {
	RPID     string
	RPOrigin string
	RPName   string
}

// PasskeyService runs WebAuthn ceremonies. Challenge state lives in
// the session store, never in process memory, so any replica can
// finish a ceremony another replica started.
type PasskeyService struct {
	web      *webauthn.WebAuthn
	users    UserStore
	passkeys PasskeyStore
	sessions SessionStore
	audit    audit.Logger
	logger   *slog.Logger
}

func NewPasskeyService(cfg WebAuthnConfig, users UserStore, passkeys PasskeyStore, sessions SessionStore, auditLogger audit.Logger, logger *slog.Logger) (*PasskeyService, error) {
	web, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPName,
		RPID:          cfg.RPID,
		RPOrigins:     []string{cfg.RPOrigin},
	})
	if err != nil {
		return nil, err
	}
	return &PasskeyService{
		web:      web,
		users:    users,
		passkeys: passkeys,
		sessions: sessions,
		audit:    auditLogger,
		logger:   logger,
	}, nil
}

// webauthnUser adapts a user plus their stored credentials to the
// library's User interface.
type webauthnUser struct {
	user        *models.User
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte { return u.user.ID[:] }

func (u *webauthnUser) WebAuthnName() string { return u.user.Email }

func (u *webauthnUser) WebAuthnDisplayName() string {
	return u.user.FirstName + " " + u.user.LastName
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func (s *PasskeyService) loadWebauthnUser(ctx context.Context, user *models.User) (*webauthnUser, []models.Passkey, error) {
	passkeys, err := s.passkeys.ListPasskeysByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	creds := make([]webauthn.Credential, len(passkeys))
	for i, p := range passkeys {
		creds[i] = p.Credential
	}
	return &webauthnUser{user: user, credentials: creds}, passkeys, nil
}

// RegistrationStart is the creation challenge plus the id the client
// must echo on finish.
type RegistrationStart struct {
	RegistrationID uuid.UUID                    `json:"registrationId"`
	Options        *protocol.CredentialCreation `json:"options"`
}

// BeginRegistration opens a creation ceremony for the caller,
// excluding already-registered credentials.
func (s *PasskeyService) BeginRegistration(ctx context.Context, user *models.User) (*RegistrationStart, error) {
	webUser, passkeys, err := s.loadWebauthnUser(ctx, user)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	exclusions := make([]protocol.CredentialDescriptor, len(passkeys))
	for i, p := range passkeys {
		exclusions[i] = p.Credential.Descriptor()
	}

	options, sessionData, err := s.web.BeginRegistration(webUser, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, apperrors.Internal("Failed to begin passkey registration", err)
	}

	state, err := encodeSessionData(sessionData)
	if err != nil {
		return nil, apperrors.Internal("Failed to serialize challenge state", err)
	}

	registrationID := uuid.New()
	session := models.NewPasskeyRegistrationSession(registrationID, models.PasskeyRegistrationData{
		UserID: user.ID,
		State:  state,
	})
	if err := s.sessions.InsertSession(ctx, session); err != nil {
		return nil, apperrors.Database(err)
	}

	return &RegistrationStart{RegistrationID: registrationID, Options: options}, nil
}

// FinishRegistration verifies the attestation and persists the new
// passkey. The session is single-use and must belong to the caller.
func (s *PasskeyService) FinishRegistration(ctx context.Context, user *models.User, registrationID uuid.UUID, response *protocol.ParsedCredentialCreationData) (*models.Passkey, error) {
	sessionID := models.SessionPrefixPasskeyReg + registrationID.String()
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Payload.PasskeyReg == nil {
		return nil, apperrors.NotFound("Registration session not found or expired!")
	}
	if session.Payload.PasskeyReg.UserID != user.ID {
		return nil, apperrors.Forbidden("Registration session belongs to another user!")
	}

	sessionData, err := decodeSessionData(session.Payload.PasskeyReg.State)
	if err != nil {
		return nil, apperrors.Internal("Failed to deserialize challenge state", err)
	}

	webUser, _, err := s.loadWebauthnUser(ctx, user)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	credential, err := s.web.CreateCredential(webUser, *sessionData, response)
	if err != nil {
		return nil, apperrors.Validation("Passkey verification failed!")
	}

	passkey := &models.Passkey{
		ID:         base64.RawURLEncoding.EncodeToString(credential.ID),
		UserID:     user.ID,
		Name:       "New Passkey",
		Credential: *credential,
		CreatedAt:  timeNow().UTC(),
	}
	if err := s.passkeys.CreatePasskey(ctx, passkey); err != nil {
		return nil, apperrors.Database(err)
	}

	s.audit.Log(ctx, models.NewAuditLog(passkey.ID, models.AuditEntityPasskey, models.AuditActionCreate, "Registered passkey.", user.ID, nil, nil))

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Error("passkey_session_delete_failed", "session_id", sessionID, "error", err)
	}

	return passkey, nil
}

// AuthenticationStart is the discoverable-login challenge plus the id
// the client must echo on finish.
type AuthenticationStart struct {
	AuthenticationID uuid.UUID                     `json:"authenticationId"`
	Options          *protocol.CredentialAssertion `json:"options"`
}

// BeginDiscoverableLogin opens a username-less assertion ceremony.
func (s *PasskeyService) BeginDiscoverableLogin(ctx context.Context) (*AuthenticationStart, error) {
	options, sessionData, err := s.web.BeginDiscoverableLogin()
	if err != nil {
		return nil, apperrors.Internal("Failed to begin passkey authentication", err)
	}

	state, err := encodeSessionData(sessionData)
	if err != nil {
		return nil, apperrors.Internal("Failed to serialize challenge state", err)
	}

	authenticationID := uuid.New()
	session := models.NewPasskeyAuthenticationSession(authenticationID, models.PasskeyAuthenticationData{State: state})
	if err := s.sessions.InsertSession(ctx, session); err != nil {
		return nil, apperrors.Database(err)
	}

	return &AuthenticationStart{AuthenticationID: authenticationID, Options: options}, nil
}

// FinishDiscoverableLogin verifies the assertion against the owner's
// full credential set, consumes the session and returns the user.
func (s *PasskeyService) FinishDiscoverableLogin(ctx context.Context, authenticationID uuid.UUID, response *protocol.ParsedCredentialAssertionData) (*models.User, error) {
	sessionID := models.SessionPrefixPasskeyAuth + authenticationID.String()
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Payload.PasskeyAuth == nil {
		return nil, apperrors.NotFound("Authentication session not found or expired!")
	}

	sessionData, err := decodeSessionData(session.Payload.PasskeyAuth.State)
	if err != nil {
		return nil, apperrors.Internal("Failed to deserialize challenge state", err)
	}

	var (
		matchedUser    *models.User
		matchedPasskey *models.Passkey
	)
	handler := func(rawID, _ []byte) (webauthn.User, error) {
		passkey, err := s.passkeys.GetPasskey(ctx, base64.RawURLEncoding.EncodeToString(rawID))
		if err != nil {
			return nil, err
		}
		if passkey == nil {
			return nil, apperrors.NotFound("Passkey not found!")
		}
		user, err := s.users.GetUserByID(ctx, passkey.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, apperrors.NotFound("User not found!")
		}
		webUser, _, err := s.loadWebauthnUser(ctx, user)
		if err != nil {
			return nil, err
		}
		matchedUser = user
		matchedPasskey = passkey
		return webUser, nil
	}

	credential, err := s.web.ValidateDiscoverableLogin(handler, *sessionData, response)
	if err != nil {
		return nil, apperrors.Unauthorized("Passkey authentication failed!")
	}
	if matchedUser == nil || matchedPasskey == nil {
		return nil, apperrors.Unauthorized("Passkey authentication failed!")
	}
	if matchedUser.Disabled {
		return nil, apperrors.UserDisabled()
	}

	// Persist the updated signature counter.
	matchedPasskey.Credential = *credential
	if err := s.passkeys.UpdatePasskey(ctx, matchedPasskey); err != nil {
		s.logger.Error("passkey_counter_update_failed", "passkey_id", matchedPasskey.ID, "error", err)
	}

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Error("passkey_session_delete_failed", "session_id", sessionID, "error", err)
	}

	s.audit.Log(ctx, models.NewAuditLog(matchedUser.ID.String(), models.AuditEntityUser, models.AuditActionLogin, "Passkey login successful.|"+matchedPasskey.ID, matchedUser.ID, nil, nil))

	return matchedUser, nil
}

func encodeSessionData(data *webauthn.SessionData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeSessionData(state string) (*webauthn.SessionData, error) {
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return nil, err
	}
	var data webauthn.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
