package http

import (
	"net/http"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// signInBody flattens the user and token pair next to a message.
func signInBody(message string, in services.SignIn) map[string]any {
	return map[string]any{
		"message":          message,
		"user":             in.User,
		"accessToken":      in.AccessToken,
		"refreshToken":     in.RefreshToken,
		"accessExpiresAt":  in.AccessExpiresAt,
		"refreshExpiresAt": in.RefreshExpiresAt,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type newPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleGoogleSignIn exchanges a Google ID token for a local session.
func (s *Server) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.deps.Google == nil {
		writeError(w, r, core.NotFoundf("Google sign-in is not enabled"))
		return
	}
	token, err := auth.BearerToken(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ext, err := s.deps.Google.Verify(r.Context(), token)
	if err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Google token rejected", log.FieldError, err)
		writeError(w, r, core.Forbiddenf("Invalid token"))
		return
	}
	signIn, err := s.deps.Auth.GoogleSignIn(r.Context(), ext)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, signInBody("Authenticated", signIn))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Auth.Register(r.Context(), sanitizeInput(req.Name), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"message": "User registered successfully, check your email for the verification code",
		"user":    user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	signIn, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, signInBody("Login successful", signIn))
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "OTP sent to your email")
}

func (s *Server) handleVerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	token, expiresAt, err := s.deps.Auth.VerifyResetOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message":    "OTP verified",
		"resetToken": token,
		"expiresAt":  expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSetNewPassword(w http.ResponseWriter, r *http.Request) {
	var req newPasswordRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Auth.SetNewPassword(r.Context(), req.ResetToken, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Password updated successfully")
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.deps.Auth.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    user,
	})
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Auth.ResendOTP(r.Context(), req.Email, req.Purpose); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "OTP resent to your email")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, core.Validationf("Refresh token is required"))
		return
	}
	pair, err := s.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Auth.Logout(r.Context(), userID, req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, r, http.StatusOK, "Logged out successfully")
}
