// This is the credential service of the CRM. It checks a username and
// password against the configured accounts and returns a signed JWT.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/gartstein/staffing/internal/crm/config"
	"go.uber.org/zap"
)

const defaultPort = "8081"

// LoginRequest is the body of POST /token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      auth.Role `json:"role"`
}

type tokenService struct {
	users  []auth.User
	secret string
	now    func() time.Time
	logger *zap.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// tokenHandler authenticates the posted credentials and returns a JWT.
func (s *tokenService) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	user, err := auth.Authenticate(s.users, req.Username, req.Password)
	if err != nil {
		s.logger.Info("Login refused", zap.String("username", req.Username), zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	now := s.now()
	token, err := auth.GenerateToken(user, s.secret, now)
	if err != nil {
		s.logger.Error("Failed to generate token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: now.Add(auth.TokenTTL), Role: user.Role})
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Fatal("failed to load .env", zap.Error(err))
	}
	cfg, err := config.Load(config.DefaultPath, os.Getenv)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	port := os.Getenv("AUTH_PORT")
	if port == "" {
		port = defaultPort
	}

	svc := &tokenService{
		users:  cfg.AuthUsers(),
		secret: cfg.JWTSecret,
		now:    time.Now,
		logger: logger.Named("auth_service"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", svc.tokenHandler)

	logger.Info("Authentication service running", zap.String("port", port))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("authentication service stopped", zap.Error(err))
	}
}
