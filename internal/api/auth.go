package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/config"
	"github.com/tutorbridge/backend/internal/models"
)

type contextKey string

const tutorContextKey contextKey = "tutor"

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents tutor signup fields
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token string        `json:"token"`
	Tutor *models.Tutor `json:"tutor"`
}

// HandleRegister creates a tutor account
func HandleRegister(db *gorm.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		if req.Email == "" || req.Password == "" {
			http.Error(w, "Email and password are required", http.StatusBadRequest)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("Error hashing password:", err.Error())
			http.Error(w, "Failed to hash password", http.StatusInternalServerError)
			return
		}

		tutor := models.Tutor{
			Name:      req.Name,
			Email:     req.Email,
			Password:  string(hashedPassword),
			Active:    true,
			CreatedAt: time.Now(),
		}

		if err := db.Create(&tutor).Error; err != nil {
			log.Println("Error creating tutor:", err.Error())
			http.Error(w, "Failed to create tutor", http.StatusInternalServerError)
			return
		}

		token, err := generateJWT(tutor.ID, cfg.JWTSecret)
		if err != nil {
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, LoginResponse{Token: token, Tutor: &tutor})
	}
}

// HandleLogin handles tutor login
func HandleLogin(db *gorm.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Println("Login: Failed to decode request")
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		var tutor models.Tutor
		if err := db.Where("email = ?", req.Email).First(&tutor).Error; err != nil {
			log.Println("Login: Authentication failed - tutor not found")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tutor.Password), []byte(req.Password)); err != nil {
			log.Println("Login: Authentication failed - invalid password")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		if !tutor.Active {
			http.Error(w, "Account is disabled", http.StatusForbidden)
			return
		}

		token, err := generateJWT(tutor.ID, cfg.JWTSecret)
		if err != nil {
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token, Tutor: &tutor})
	}
}

// HandleGetCurrentTutor returns the authenticated tutor
func HandleGetCurrentTutor(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutor := r.Context().Value(tutorContextKey).(*models.Tutor)
		writeJSON(w, http.StatusOK, tutor)
	}
}

// AuthMiddleware validates JWT tokens and loads the tutor into the request
// context.
func AuthMiddleware(jwtSecret string, db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			tutorID, ok := claims["tutor_id"].(float64)
			if !ok {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			var tutor models.Tutor
			if err := db.Where("id = ?", int(tutorID)).First(&tutor).Error; err != nil {
				log.Println("AuthMiddleware: Failed to load tutor:", err.Error())
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tutorContextKey, &tutor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tutorFromContext pulls the authenticated tutor out of the request context.
func tutorFromContext(r *http.Request) *models.Tutor {
	tutor, _ := r.Context().Value(tutorContextKey).(*models.Tutor)
	return tutor
}

// generateJWT generates a JWT token for a tutor
func generateJWT(tutorID int, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tutor_id": tutorID,
		"exp":      time.Now().Add(2 * time.Hour).Unix(),
	})

	return token.SignedString([]byte(secret))
}
