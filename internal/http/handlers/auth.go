package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/codeandrun/server/internal/auth"
	"github.com/codeandrun/server/internal/middleware"
	"github.com/codeandrun/server/internal/model"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	authService  *auth.Service
	cookies      *CookieWriter
	loginLimiter *middleware.RateLimiter
	otpLimiter   *middleware.RateLimiter
	devMode      bool
}

// NewAuthHandler creates a new auth handler. IP rate limits: 20 logins and
// 10 OTP sends per 10 minutes (the per-identifier OTP limit is store-based).
func NewAuthHandler(authService *auth.Service, cookies *CookieWriter, devMode bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookies:      cookies,
		loginLimiter: middleware.NewRateLimiter(10*time.Minute, 20),
		otpLimiter:   middleware.NewRateLimiter(10*time.Minute, 10),
		devMode:      devMode,
	}
}

// signupRequest is the request body for POST /api/signup.
type signupRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// loginRequest is the request body for POST /api/login.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// checkUserRequest is the request body for POST /api/check-user.
type checkUserRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// sendOtpRequest is the request body for POST /api/send-otp.
type sendOtpRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// verifyOtpRequest is the request body for POST /api/verify-otp.
type verifyOtpRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	OtpEmail string `json:"otpEmail"`
	OtpPhone string `json:"otpPhone"`
}

// claimUsernameRequest is the request body for POST /api/username/claim.
type claimUsernameRequest struct {
	Username string `json:"username"`
}

// sessionResponse carries a message and the public user after a successful
// signup or login.
type sessionResponse struct {
	Message string           `json:"message"`
	User    model.PublicUser `json:"user"`
}

// sendOtpResponse is the JSON response for send-otp. The dev fields are only
// populated in dev mode; in production codes go out of band.
type sendOtpResponse struct {
	Message     string `json:"message"`
	DevOtpEmail string `json:"dev_otp_email,omitempty"`
	DevOtpPhone string `json:"dev_otp_phone,omitempty"`
}

// HandleSignup handles POST /api/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		h.respondWithServiceError(w, err, "signup failed for "+auth.MaskIdentifier(req.Email))
		return
	}

	h.cookies.Set(w, token)
	respondWithJSON(w, http.StatusCreated, sessionResponse{
		Message: "Signup successful",
		User:    user.Public(),
	})
}

// HandleLogin handles POST /api/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.loginLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.authService.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.respondWithServiceError(w, err, "login failed for "+auth.MaskIdentifier(req.Identifier))
		return
	}

	h.cookies.Set(w, token)
	respondWithJSON(w, http.StatusOK, sessionResponse{
		Message: "Login successful",
		User:    user.Public(),
	})
}

// HandleVerifySession handles GET /api/session/verify. Mounted behind the
// session middleware, which has already verified the cookie and loaded the user.
func (h *AuthHandler) HandleVerifySession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]model.PublicUser{"user": user.Public()})
}

// HandleCheckUser handles POST /api/check-user.
func (h *AuthHandler) HandleCheckUser(w http.ResponseWriter, r *http.Request) {
	var req checkUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exists, err := h.authService.CheckUser(r.Context(), req.Email, req.Phone)
	if err != nil {
		h.respondWithServiceError(w, err, "check-user failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// HandleSendOtp handles POST /api/send-otp.
func (h *AuthHandler) HandleSendOtp(w http.ResponseWriter, r *http.Request) {
	if !h.otpLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req sendOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	codes, err := h.authService.SendOtp(r.Context(), req.Email, req.Phone)
	if err != nil {
		h.respondWithServiceError(w, err, "send-otp failed for "+auth.MaskIdentifier(req.Email))
		return
	}

	resp := sendOtpResponse{Message: "otp_sent"}
	if h.devMode {
		resp.DevOtpEmail = codes.Email
		resp.DevOtpPhone = codes.Phone
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleVerifyOtp handles POST /api/verify-otp.
func (h *AuthHandler) HandleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.authService.VerifyOtpAndRegister(r.Context(), auth.OtpRegisterInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		OtpEmail: req.OtpEmail,
		OtpPhone: req.OtpPhone,
	})
	if err != nil {
		h.respondWithServiceError(w, err, "verify-otp failed for "+auth.MaskIdentifier(req.Email))
		return
	}

	h.cookies.Set(w, token)
	respondWithJSON(w, http.StatusCreated, sessionResponse{
		Message: "Signup successful",
		User:    user.Public(),
	})
}

// HandleClaimUsername handles POST /api/username/claim (session required).
func (h *AuthHandler) HandleClaimUsername(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req claimUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.authService.ClaimUsername(r.Context(), user.ID, req.Username)
	if err != nil {
		h.respondWithServiceError(w, err, "username claim failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]model.PublicUser{"user": updated.Public()})
}

// HandleLogout handles POST /api/logout. Tokens are stateless, so logout is
// just the cookie going away.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// respondWithServiceError maps service errors to HTTP statuses. Unexpected
// errors are logged with full context but reported generically.
func (h *AuthHandler) respondWithServiceError(w http.ResponseWriter, err error, logContext string) {
	var validationErr *auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
	case errors.Is(err, auth.ErrConflict):
		respondWithError(w, http.StatusConflict, "already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUnauthenticated):
		respondWithError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, auth.ErrOtpInvalid):
		respondWithError(w, http.StatusBadRequest, "invalid or expired OTP")
	case errors.Is(err, auth.ErrOtpRateLimited):
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
	default:
		log.Printf("%s: %v", logContext, err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondWithJSON sends a JSON response with the given status.
func respondWithJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondWithError sends a JSON error response.
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}
