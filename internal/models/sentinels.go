package models

import "github.com/google/uuid"

// Fixed identifiers seeded at bootstrap. The system user, the settings
// singleton and the admin role deliberately share the nil UUID; the
// default role is the only other reserved id.
var (
	SystemUserID  = uuid.Nil
	SettingsID    = uuid.Nil
	AdminRoleID   = uuid.Nil
	DefaultRoleID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
)
