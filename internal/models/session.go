package models

import (
	"time"

	"github.com/google/uuid"
)

// Session id prefixes per payload kind. The prefix makes the id
// keyspace collision-free across kinds.
const (
	SessionPrefixOAuthCode   = "oauth_"
	SessionPrefixMfa         = "mfa_"
	SessionPrefixPasskeyReg  = "passkey_reg_"
	SessionPrefixPasskeyAuth = "passkey_auth_"
)

// SessionTTL is the lifetime of every scratch record.
const SessionTTL = 300 * time.Second

// SessionKind discriminates the payload union.
type SessionKind string

const (
	SessionKindOAuthCode   SessionKind = "oauth_code"
	SessionKindMfaFlow     SessionKind = "mfa_flow"
	SessionKindPasskeyReg  SessionKind = "passkey_registration"
	SessionKindPasskeyAuth SessionKind = "passkey_authentication"
)

// OAuthCodeData snapshots everything the exchange step must compare.
type OAuthCodeData struct {
	ClientID     uuid.UUID `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
	UserID       uuid.UUID `json:"userId"`
	Code         string    `json:"code"`
	Scope        ScopeList `json:"scope"`
	GrantType    string    `json:"grantType"`
	RedirectURI  string    `json:"redirectUri"`
}

// MfaFlowKind distinguishes login verification from first enrollment.
type MfaFlowKind string

const (
	MfaKindTotp       MfaFlowKind = "totp"
	MfaKindEnableTotp MfaFlowKind = "enable_totp"
)

// MfaFlowState tracks the flow's state machine.
type MfaFlowState string

const (
	MfaStatePending  MfaFlowState = "pending"
	MfaStateComplete MfaFlowState = "complete"
)

// MfaFlowData is one in-flight MFA flow. Secret is set only for
// enrollment flows and is written to the user record on verify; login
// flows verify against the secret already on the user.
type MfaFlowData struct {
	FlowID uuid.UUID    `json:"flowId"`
	UserID uuid.UUID    `json:"userId"`
	Kind   MfaFlowKind  `json:"kind"`
	State  MfaFlowState `json:"state"`
	Secret string       `json:"secret,omitempty"`
}

// PasskeyRegistrationData carries a pending creation ceremony. State
// is the base64 of the serialized library session.
type PasskeyRegistrationData struct {
	UserID uuid.UUID `json:"userId"`
	State  string    `json:"state"`
}

// PasskeyAuthenticationData carries a pending discoverable login.
type PasskeyAuthenticationData struct {
	State string `json:"state"`
}

// SessionPayload is the tagged union stored as the session body. Only
// the variant named by Kind is set.
type SessionPayload struct {
	Kind        SessionKind                `json:"kind"`
	OAuthCode   *OAuthCodeData             `json:"oauthCode,omitempty"`
	MfaFlow     *MfaFlowData               `json:"mfaFlow,omitempty"`
	PasskeyReg  *PasskeyRegistrationData   `json:"passkeyRegistration,omitempty"`
	PasskeyAuth *PasskeyAuthenticationData `json:"passkeyAuthentication,omitempty"`
}

// Session is a TTL-bounded scratch record. Reads past ExpiresAt behave
// as absent.
type Session struct {
	ID        string
	Payload   SessionPayload
	ExpiresAt time.Time
}

// Expired reports whether the record is past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// NewOAuthCodeSession keys the record by the decimal code.
func NewOAuthCodeSession(data OAuthCodeData) Session {
	return Session{
		ID:        SessionPrefixOAuthCode + data.Code,
		Payload:   SessionPayload{Kind: SessionKindOAuthCode, OAuthCode: &data},
		ExpiresAt: time.Now().UTC().Add(SessionTTL),
	}
}

// NewMfaSession keys the record by the flow id.
func NewMfaSession(data MfaFlowData) Session {
	return Session{
		ID:        SessionPrefixMfa + data.FlowID.String(),
		Payload:   SessionPayload{Kind: SessionKindMfaFlow, MfaFlow: &data},
		ExpiresAt: time.Now().UTC().Add(SessionTTL),
	}
}

// NewPasskeyRegistrationSession keys the record by the registration id.
func NewPasskeyRegistrationSession(registrationID uuid.UUID, data PasskeyRegistrationData) Session {
	return Session{
		ID:        SessionPrefixPasskeyReg + registrationID.String(),
		Payload:   SessionPayload{Kind: SessionKindPasskeyReg, PasskeyReg: &data},
		ExpiresAt: time.Now().UTC().Add(SessionTTL),
	}
}

// NewPasskeyAuthenticationSession keys the record by the
// authentication id.
func NewPasskeyAuthenticationSession(authenticationID uuid.UUID, data PasskeyAuthenticationData) Session {
	return Session{
		ID:        SessionPrefixPasskeyAuth + authenticationID.String(),
		Payload:   SessionPayload{Kind: SessionKindPasskeyAuth, PasskeyAuth: &data},
		ExpiresAt: time.Now().UTC().Add(SessionTTL),
	}
}
