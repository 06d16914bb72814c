package meeting

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// authStateVersion is bumped when fields are added to AuthState so that
// in-flight authorization flows keep decoding across deploys.
const authStateVersion = 1

// AuthState is the opaque blob carried through the provider's consent flow
// in the OAuth state parameter. It replaces server-side session storage:
// the callback recovers the tutor and redirect target from the blob alone.
type AuthState struct {
	Version  int    `json:"v"`
	TutorID  int    `json:"tutor_id"`
	Redirect string `json:"redirect,omitempty"`
}

// EncodeAuthState packs the callback context into a base64url JSON blob.
func EncodeAuthState(tutorID int, redirect string) string {
	state := AuthState{Version: authStateVersion, TutorID: tutorID, Redirect: redirect}
	data, _ := json.Marshal(state)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeAuthState unpacks a state blob. Callers translate failures into
// AUTH_FAILED; decoding knows nothing about the taxonomy.
func DecodeAuthState(raw string) (AuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return AuthState{}, fmt.Errorf("decode oauth state: %w", err)
	}

	var state AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return AuthState{}, fmt.Errorf("parse oauth state: %w", err)
	}
	return state, nil
}
