package sso

import "github.com/google/uuid"

// Fast-store key layout. Everything is keyed by its own id so unrelated
// sessions never contend.
func sessionKey(id string) string { return "sso:session:" + id }

func tokenKey(id string) string { return "sso:token:" + id }

func sessionTokensKey(sessionID string) string { return "sso:session_tokens:" + sessionID }

func userSessionsKey(userID uuid.UUID) string { return "sso:user_sessions:" + userID.String() }
