package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/nordvik-media/blog-api/internal/config"
	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/nordvik-media/blog-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	sessions    *auth.SessionStore
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, sessions *auth.SessionStore, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		cfg:         cfg,
		logger:      logger,
	}
}

// Register godoc
// @Summary Register local account
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.RegisterRequest true "Account details"
// @Success 201 {object} domain.UserDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			respondWithError(w, http.StatusConflict, "Username already taken")
			return
		}
		h.logger.Error("failed to register user", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Login godoc
// @Summary Local login
// @Description Sign in with username and password. Sets the session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body domain.LoginRequest true "Credentials"
// @Param next query string false "Relative path to return to after login"
// @Success 200 {object} domain.LoginResponse
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	sess := h.session(r)

	user, err := h.authService.LoginLocal(r.Context(), sess, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.logger.Error("failed to log in", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	h.sessions.Put(sess)
	h.setSessionCookie(w, sess)
	respondJSON(w, http.StatusOK, domain.LoginResponse{
		User: *user,
		Next: safeNextPath(r.URL.Query().Get("next")),
	})
}

// LoginPage godoc
// @Summary Login options
// @Description Returns the Microsoft authorization URL for federated login.
// @Tags Auth
// @Produce json
// @Param next query string false "Relative path to return to after login"
// @Success 200 {object} domain.LoginPageResponse
// @Router /auth/login [get]
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	authURL := h.authService.BeginFederatedLogin(sess)
	h.sessions.Put(sess)
	h.setSessionCookie(w, sess)

	respondJSON(w, http.StatusOK, domain.LoginPageResponse{
		AuthURL: authURL,
		Next:    safeNextPath(r.URL.Query().Get("next")),
	})
}

// MicrosoftLogin godoc
// @Summary Start Microsoft login
// @Description Redirects to the Microsoft authorization endpoint.
// @Tags Auth
// @Success 302
// @Router /auth/microsoft [get]
func (h *AuthHandler) MicrosoftLogin(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	authURL := h.authService.BeginFederatedLogin(sess)
	h.sessions.Put(sess)
	h.setSessionCookie(w, sess)

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback godoc
// @Summary Microsoft login callback
// @Description Completes the authorization-code flow started by /auth/microsoft.
// @Tags Auth
// @Produce json
// @Param state query string true "State value from the authorization request"
// @Param code query string false "Authorization code"
// @Param error query string false "Provider error code"
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Router /auth/callback [get]
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	params := &service.CallbackParams{
		State:            r.URL.Query().Get("state"),
		Code:             r.URL.Query().Get("code"),
		Error:            r.URL.Query().Get("error"),
		ErrorDescription: r.URL.Query().Get("error_description"),
	}

	user, err := h.authService.CompleteFederatedLogin(r.Context(), sess, params)
	if err != nil {
		if errors.Is(err, service.ErrAuthState) {
			respondWithError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}
		h.logger.Error("failed to complete federated login", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to complete login")
		return
	}

	h.sessions.Put(sess)
	respondJSON(w, http.StatusOK, user)
}

// Logout godoc
// @Summary Logout
// @Description Ends the session and clears the cookie. For federated sessions the
// response carries the provider logout URL.
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.LogoutResponse
// @Security SessionCookie
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	resp := domain.LogoutResponse{}

	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		resp.LogoutURL = h.authService.LogoutURL(sess, h.cfg.App.BaseURL)
		h.sessions.Delete(sess.Token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, resp)
}

// Me godoc
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Security SessionCookie
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.MustFromContext(r.Context())

	respondJSON(w, http.StatusOK, domain.UserDTO{
		ID:        userCtx.UserID,
		Username:  userCtx.Username,
		Federated: userCtx.Federated,
	})
}

// safeNextPath echoes a post-login return path only when it is relative to
// this origin. Absolute URLs and protocol-relative paths are dropped so the
// login flow cannot be used as an open redirect.
func safeNextPath(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	if strings.ContainsAny(raw, "\\\r\n") {
		return ""
	}
	return raw
}

// session returns the request's session, creating one when the cookie is
// missing or stale.
func (h *AuthHandler) session(r *http.Request) *auth.Session {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		return sess
	}
	return h.sessions.Create()
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *auth.Session) {
	cookie := &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if sess.RememberMe {
		cookie.MaxAge = int(h.cfg.Session.RememberTTL().Seconds())
	}
	http.SetCookie(w, cookie)
}
