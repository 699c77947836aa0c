package store

import (
	"context"
	"fmt"
	"time"

	"stockhub/internal/protocol"
)

// credential is the part of Employee and Administrator the login check reads.
type credential struct {
	Login        string
	PasswordHash string
}

func accountTable(isAdmin bool) any {
	if isAdmin {
		return &Administrator{}
	}
	return &Employee{}
}

// CheckCredentials looks the login up in the employee or the administrator
// table, depending on wantsAdmin, and compares the bcrypt hash.
func (s *Store) CheckCredentials(ctx context.Context, identity, secret string, wantsAdmin bool) *protocol.Message {
	var cred credential
	res := s.db.WithContext(ctx).
		Model(accountTable(wantsAdmin)).
		Select("login", "password_hash").
		Where("login = ?", identity).
		Limit(1).
		Find(&cred)
	if res.Error != nil {
		return s.fail("check_credentials", res.Error)
	}
	if res.RowsAffected == 0 {
		VerifyPassword(dummyHash(), secret)
		return protocol.NewError(msgInvalidCredentials)
	}
	if err := VerifyPassword(cred.PasswordHash, secret); err != nil {
		return protocol.NewError(msgInvalidCredentials)
	}
	return protocol.NewSuccess()
}

func (s *Store) RecordLastLogin(ctx context.Context, identity string, isAdmin bool) error {
	err := s.db.WithContext(ctx).
		Model(accountTable(isAdmin)).
		Where("login = ?", identity).
		Update("last_login", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to record last login: %w", err)
	}
	return nil
}
