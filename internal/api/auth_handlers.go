package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/VoiceForge-io/voiceforge/internal/auth"
	"github.com/VoiceForge-io/voiceforge/internal/database"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !auth.ValidateEmail(creds.Email) {
		respondError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	if !auth.ValidatePassword(creds.Password) {
		respondError(w, http.StatusBadRequest, "Password does not meet requirements")
		return
	}

	if _, err := database.GetUserByEmail(creds.Email); err == nil {
		respondError(w, http.StatusConflict, "Email is already registered")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user, err := database.CreateUser(creds.Email, hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	// Every user gets an account record on the free plan from day one.
	if _, err := database.GetOrCreateAccount(user.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := database.GetUserByEmail(creds.Email)
	if err != nil || !auth.CheckPassword(user.Password, creds.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	duration := time.Duration(api.Config.Auth.TokenHours) * time.Hour
	token, err := api.tokens.GenerateToken(user, duration)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}
