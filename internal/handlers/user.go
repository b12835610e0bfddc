package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kernel-games/popcorn/internal/auth"
	"github.com/kernel-games/popcorn/internal/database"
	"github.com/kernel-games/popcorn/internal/models"
)

// EnsureGuestUser resolves the connecting user from the auth cookie. If no
// valid token is present, a guest user is provisioned on the spot and a fresh
// token is set, so anyone can sit down at a game without registering.
func EnsureGuestUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractTokenFromCookie(cookieHeader)
		userIDStr, err := auth.AuthenticateJWT(token)
		if err == nil {
			userID, parseErr := uuid.Parse(userIDStr)
			if parseErr != nil {
				return uuid.Nil, fmt.Errorf("invalid user id in token: %w", parseErr)
			}
			return userID, nil
		}
		// Fall through to guest provisioning on an invalid token.
	}

	guest := models.User{
		ID:          uuid.New(),
		DisplayName: "Guest",
		IsGuest:     true,
	}
	guest.Email = fmt.Sprintf("guest-%s@popcorn.local", guest.ID.String()[:8])
	if err := database.CreateUser(r.Context(), &guest); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest user: %w", err)
	}
	token, err := auth.CreateJWT(guest.ID.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return guest.ID, nil
}

// CreateUserHandler registers a user with email, password, and display name.
func CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	user := models.User{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		IsGuest:     false,
	}

	if err := database.CreateUser(r.Context(), &user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	user.Password = ""
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler authenticates a user by email and password and returns a JWT,
// which is also set as the auth cookie.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := database.AuthenticateUser(context.Background(), req.Email, req.Password)
	if err != nil {
		log.Printf("failed to authenticate user: %v", err)
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})

	resp := loginResponse{Token: token}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
		return
	}
}
