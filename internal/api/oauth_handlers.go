package api

import (
	"log"
	"net/http"
	"net/url"

	"github.com/tutorbridge/backend/internal/meeting"
)

// HandleGetOAuthURL returns the Google consent URL for the authenticated
// tutor. The frontend opens it in a popup or full redirect.
func HandleGetOAuthURL(svc *meeting.OAuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := tutorFromContext(r)
		if tutor == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		intent, err := svc.StartAuthorization(r.Context(), tutor.ID, r.URL.Query().Get("redirect"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, intent)
	}
}

// HandleOAuthCallback completes the authorization code exchange. Google
// redirects the browser here, so the response is a redirect back to the
// frontend rather than JSON.
func HandleOAuthCallback(svc *meeting.OAuthService, frontendURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		result, err := svc.CompleteAuthorization(r.Context(), code, state)
		if err != nil {
			log.Printf("OAuth callback failed: %v", err)
			http.Redirect(w, r, callbackRedirect(frontendURL, "error"), http.StatusTemporaryRedirect)
			return
		}

		http.Redirect(w, r, callbackRedirect(result.RedirectTarget, "success"), http.StatusTemporaryRedirect)
	}
}

// callbackRedirect appends the googleOAuth outcome flag to the target URL.
func callbackRedirect(target, outcome string) string {
	if target == "" {
		target = "/"
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return "/?googleOAuth=" + outcome
	}
	query := parsed.Query()
	query.Set("googleOAuth", outcome)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// HandleGetOAuthStatus reports the tutor's credential health
func HandleGetOAuthStatus(svc *meeting.OAuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := tutorFromContext(r)
		if tutor == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		status, err := svc.Status(r.Context(), tutor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// HandleOAuthRefresh forces an access token refresh and persists the expiry
func HandleOAuthRefresh(svc *meeting.OAuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := tutorFromContext(r)
		if tutor == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		status, err := svc.ForceRefresh(r.Context(), tutor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// HandleOAuthRevoke disconnects the tutor's Google account
func HandleOAuthRevoke(svc *meeting.OAuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := tutorFromContext(r)
		if tutor == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Revoke(r.Context(), tutor.ID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Google account disconnected"})
	}
}
