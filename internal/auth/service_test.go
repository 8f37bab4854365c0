package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtec/authgate/internal/apperrors"
	"github.com/veldtec/authgate/internal/audit"
	"github.com/veldtec/authgate/internal/models"
)

// memStore is an in-memory implementation of the store slices the
// service consumes.
type memStore struct {
	users     map[uuid.UUID]*models.User
	sessions  map[string]models.Session
	passkeys  map[uuid.UUID][]models.Passkey
	regTokens map[string]*models.RegistrationToken
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uuid.UUID]*models.User),
		sessions:  make(map[string]models.Session),
		passkeys:  make(map[uuid.UUID][]models.Passkey),
		regTokens: make(map[string]*models.RegistrationToken),
	}
}

func (s *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateUser(_ context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *memStore) UpdateUser(_ context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *memStore) InsertSession(_ context.Context, session models.Session) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *memStore) DeleteSession(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *memStore) GetPasskey(_ context.Context, id string) (*models.Passkey, error) {
	for _, list := range s.passkeys {
		for i := range list {
			if list[i].ID == id {
				return &list[i], nil
			}
		}
	}
	return nil, nil
}

func (s *memStore) ListPasskeysByUser(_ context.Context, userID uuid.UUID) ([]models.Passkey, error) {
	return s.passkeys[userID], nil
}

func (s *memStore) CreatePasskey(_ context.Context, passkey *models.Passkey) error {
	s.passkeys[passkey.UserID] = append(s.passkeys[passkey.UserID], *passkey)
	return nil
}

func (s *memStore) UpdatePasskey(_ context.Context, passkey *models.Passkey) error {
	list := s.passkeys[passkey.UserID]
	for i := range list {
		if list[i].ID == passkey.ID {
			list[i] = *passkey
		}
	}
	return nil
}

func (s *memStore) GetRegistrationTokenByCode(_ context.Context, code string) (*models.RegistrationToken, error) {
	return s.regTokens[code], nil
}

func (s *memStore) AddRegistrationTokenUse(_ context.Context, id, userID uuid.UUID) error {
	for _, token := range s.regTokens {
		if token.ID == id && !token.UsedBy(userID) {
			token.Uses = append(token.Uses, userID)
		}
	}
	return nil
}

func newTestService(store *memStore) (*Service, *audit.MockLogger) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger := &audit.MockLogger{}
	svc := NewService(store, store, store, store, NewArgon2idHasher(), NewMFAService("AuthGate"), auditLogger, logger)
	return svc, auditLogger
}

func seedUser(t *testing.T, store *memStore, email, password string) *models.User {
	t.Helper()
	hash, err := NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    "Test",
		PasswordHash: hash,
		Token:        "bearer-" + email,
		Roles:        []uuid.UUID{models.DefaultRoleID},
		CreatedAt:    time.Now().UTC(),
	}
	store.users[user.ID] = user
	return user
}

func TestRegister_OpenRegistration(t *testing.T) {
	store := newMemStore()
	svc, auditLog := newTestService(store)

	user, err := svc.Register(context.Background(), RegisterParams{
		Email:            "New@B.Co",
		Password:         "correct horse battery staple",
		FirstName:        "A",
		LastName:         "B",
		OpenRegistration: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "new@b.co", user.Email)
	assert.Equal(t, []uuid.UUID{models.DefaultRoleID}, user.Roles)
	assert.NotEmpty(t, user.Token)
	assert.NotEqual(t, "correct horse battery staple", user.PasswordHash)

	entries := auditLog.ByAction(models.AuditActionCreate)
	require.Len(t, entries, 1)
	assert.Equal(t, user.ID, entries[0].AuthorID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	seedUser(t, store, "a@b.co", "password-one")

	_, err := svc.Register(context.Background(), RegisterParams{
		Email:            "A@B.CO",
		Password:         "password-two",
		FirstName:        "A",
		OpenRegistration: true,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestRegister_ClosedWithoutCode(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	_, err := svc.Register(context.Background(), RegisterParams{
		Email:     "a@b.co",
		Password:  "correct horse battery staple",
		FirstName: "A",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestRegister_ClosedAdminAuthorBypassesInvite(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	admin := &models.User{ID: uuid.New(), Roles: []uuid.UUID{models.AdminRoleID}}

	user, err := svc.Register(context.Background(), RegisterParams{
		Email:     "a@b.co",
		Password:  "correct horse battery staple",
		FirstName: "A",
		Author:    &Principal{UserID: admin.ID, User: admin},
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", user.Email)
}

func TestRegister_InviteAppliesAutoRoles(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	extraRole := uuid.New()
	invite := &models.RegistrationToken{
		ID:        uuid.New(),
		Code:      "AB12CD",
		MaxUses:   2,
		AutoRoles: []uuid.UUID{extraRole, models.DefaultRoleID},
	}
	store.regTokens[invite.Code] = invite

	user, err := svc.Register(context.Background(), RegisterParams{
		Email:            "a@b.co",
		Password:         "correct horse battery staple",
		FirstName:        "A",
		RegistrationCode: "AB12CD",
	})
	require.NoError(t, err)

	// Default role once, auto-role on top, redemption recorded.
	assert.Equal(t, []uuid.UUID{models.DefaultRoleID, extraRole}, user.Roles)
	assert.True(t, invite.UsedBy(user.ID))
}

func TestRegister_InviteBoundaries(t *testing.T) {
	used := uuid.New()
	window := int64(60)
	past := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name   string
		invite *models.RegistrationToken
		code   string
	}{
		{name: "unknown code", code: "ZZZZZZ"},
		{
			name: "exhausted",
			invite: &models.RegistrationToken{
				ID: uuid.New(), Code: "AB12CD", MaxUses: 1, Uses: []uuid.UUID{used},
			},
			code: "AB12CD",
		},
		{
			name: "expired",
			invite: &models.RegistrationToken{
				ID: uuid.New(), Code: "AB12CD", MaxUses: 5,
				ExpiresIn: &window, ExpiresFrom: &past,
			},
			code: "AB12CD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc, _ := newTestService(store)
			if tt.invite != nil {
				store.regTokens[tt.invite.Code] = tt.invite
			}

			_, err := svc.Register(context.Background(), RegisterParams{
				Email:            "a@b.co",
				Password:         "correct horse battery staple",
				FirstName:        "A",
				RegistrationCode: tt.code,
			})
			assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
		})
	}
}

func TestLogin_Success(t *testing.T) {
	store := newMemStore()
	svc, auditLog := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")

	result, err := svc.Login(context.Background(), "A@B.Co", "correct horse battery staple")
	require.NoError(t, err)

	assert.False(t, result.MfaRequired)
	assert.Equal(t, user.Token, result.Token)
	assert.False(t, result.HasPasskeys)
	assert.Len(t, auditLog.ByAction(models.AuditActionLogin), 1)
}

func TestLogin_Failures(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")

	_, err := svc.Login(context.Background(), "nobody@b.co", "whatever")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidCredentials))

	_, err = svc.Login(context.Background(), "a@b.co", "wrong password")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidCredentials))

	user.Disabled = true
	_, err = svc.Login(context.Background(), "a@b.co", "correct horse battery staple")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUserDisabled))
}

func TestLogin_TotpEnabledOpensFlow(t *testing.T) {
	store := newMemStore()
	svc, auditLog := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	user.TOTPSecret = "JBSWY3DPEHPK3PXP"

	result, err := svc.Login(context.Background(), "a@b.co", "correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, result.MfaRequired)
	assert.Empty(t, result.Token)
	require.NotNil(t, result.MfaFlowID)

	session := store.sessions[models.SessionPrefixMfa+result.MfaFlowID.String()]
	require.NotNil(t, session.Payload.MfaFlow)
	assert.Equal(t, models.MfaKindTotp, session.Payload.MfaFlow.Kind)

	// No login audit until the second factor clears.
	assert.Empty(t, auditLog.ByAction(models.AuditActionLogin))
}

func TestVerifyMfa_LoginFlow(t *testing.T) {
	store := newMemStore()
	svc, auditLog := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	user.TOTPSecret = "JBSWY3DPEHPK3PXP"

	flowID := uuid.New()
	session := models.NewMfaSession(models.MfaFlowData{
		FlowID: flowID,
		UserID: user.ID,
		Kind:   models.MfaKindTotp,
		State:  models.MfaStatePending,
	})
	require.NoError(t, store.InsertSession(context.Background(), session))

	code, err := NewMFAService("AuthGate").GenerateCode(user.TOTPSecret)
	require.NoError(t, err)

	result, err := svc.VerifyMfa(context.Background(), flowID, code)
	require.NoError(t, err)

	assert.Equal(t, user.Token, result.Token)
	assert.Equal(t, models.MfaKindTotp, result.Kind)
	assert.NotContains(t, store.sessions, session.ID)
	assert.Len(t, auditLog.ByAction(models.AuditActionLogin), 1)
}

func TestVerifyMfa_EnableFlowPersistsSecretAndRotatesToken(t *testing.T) {
	store := newMemStore()
	svc, auditLog := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	oldToken := user.Token

	secret := "JBSWY3DPEHPK3PXP"
	flowID := uuid.New()
	session := models.NewMfaSession(models.MfaFlowData{
		FlowID: flowID,
		UserID: user.ID,
		Kind:   models.MfaKindEnableTotp,
		State:  models.MfaStatePending,
		Secret: secret,
	})
	require.NoError(t, store.InsertSession(context.Background(), session))

	code, err := NewMFAService("AuthGate").GenerateCode(secret)
	require.NoError(t, err)

	result, err := svc.VerifyMfa(context.Background(), flowID, code)
	require.NoError(t, err)

	assert.Equal(t, secret, store.users[user.ID].TOTPSecret)
	assert.NotEqual(t, oldToken, result.Token)
	assert.NotContains(t, store.sessions, session.ID)

	entries := auditLog.ByAction(models.AuditActionUpdate)
	require.Len(t, entries, 1)
	assert.Equal(t, "***********", entries[0].NewValues["totpSecret"])
	assert.Equal(t, "***********", entries[0].NewValues["token"])
}

func TestVerifyMfa_WrongCodeLeavesFlowIntact(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	oldToken := user.Token

	flowID := uuid.New()
	session := models.NewMfaSession(models.MfaFlowData{
		FlowID: flowID,
		UserID: user.ID,
		Kind:   models.MfaKindEnableTotp,
		State:  models.MfaStatePending,
		Secret: "JBSWY3DPEHPK3PXP",
	})
	require.NoError(t, store.InsertSession(context.Background(), session))

	_, err := svc.VerifyMfa(context.Background(), flowID, "000000")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidMfaCode))

	// The flow stays pending and the user is untouched.
	assert.Contains(t, store.sessions, session.ID)
	assert.Empty(t, store.users[user.ID].TOTPSecret)
	assert.Equal(t, oldToken, store.users[user.ID].Token)
}

func TestVerifyMfa_UnknownFlow(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	_, err := svc.VerifyMfa(context.Background(), uuid.New(), "123456")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestStartEnableTotp(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	principal := &Principal{UserID: user.ID, User: user}

	result, err := svc.StartEnableTotp(context.Background(), principal, user.ID, "correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, result.QRCode)

	session := store.sessions[models.SessionPrefixMfa+result.FlowID.String()]
	require.NotNil(t, session.Payload.MfaFlow)
	assert.Equal(t, models.MfaKindEnableTotp, session.Payload.MfaFlow.Kind)
	assert.NotEmpty(t, session.Payload.MfaFlow.Secret)

	// The secret is parked on the flow, not on the user.
	assert.Empty(t, store.users[user.ID].TOTPSecret)
}

func TestStartEnableTotp_Rejections(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	principal := &Principal{UserID: user.ID, User: user}

	_, err := svc.StartEnableTotp(context.Background(), principal, user.ID, "wrong password")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidCredentials))

	other := seedUser(t, store, "c@d.co", "another password here")
	otherPrincipal := &Principal{UserID: other.ID, User: other}
	_, err = svc.StartEnableTotp(context.Background(), otherPrincipal, user.ID, "correct horse battery staple")
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	user.TOTPSecret = "JBSWY3DPEHPK3PXP"
	_, err = svc.StartEnableTotp(context.Background(), principal, user.ID, "correct horse battery staple")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestDisableTotp(t *testing.T) {
	store := newMemStore()
	svc, auditLog := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	user.TOTPSecret = "JBSWY3DPEHPK3PXP"
	oldToken := user.Token
	principal := &Principal{UserID: user.ID, User: user}

	updated, err := svc.DisableTotp(context.Background(), principal, user.ID, "", "correct horse battery staple")
	require.NoError(t, err)

	assert.Empty(t, updated.TOTPSecret)
	assert.NotEqual(t, oldToken, updated.Token)
	assert.Len(t, auditLog.ByAction(models.AuditActionUpdate), 1)
}

func TestDisableTotp_RequiresProof(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	user := seedUser(t, store, "a@b.co", "correct horse battery staple")
	user.TOTPSecret = "JBSWY3DPEHPK3PXP"
	principal := &Principal{UserID: user.ID, User: user}

	_, err := svc.DisableTotp(context.Background(), principal, user.ID, "000000", "wrong password")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidCredentials))
	assert.NotEmpty(t, store.users[user.ID].TOTPSecret)
}
