package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pharmapos/m/domain"
	"pharmapos/m/internal/audit"
	"pharmapos/m/internal/logger"
)

type ctxKey string

const ctxClaims ctxKey = "claims"

const tokenTTL = 24 * time.Hour

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	ShopID *int64 `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(user domain.User) (string, error) {
	now := h.now()
	claims := authClaims{
		UserID: user.ID,
		Role:   user.Role,
		ShopID: user.ShopID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok || claims.UserID <= 0 {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		if claims.Role != domain.RoleSuperAdmin && claims.ShopID == nil {
			respondError(w, http.StatusForbidden, "user is not linked to a shop")
			return
		}

		ctx := context.WithValue(r.Context(), ctxClaims, claims)
		ctx = audit.WithActor(ctx, claims.UserID)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx, h.log).With(zap.Int64("user_id", claims.UserID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentClaims(r *http.Request) *authClaims {
	claims, _ := r.Context().Value(ctxClaims).(*authClaims)
	return claims
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	claims := currentClaims(r)
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	for _, allowedRole := range allowed {
		if claims.Role == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

type accessError struct {
	status  int
	message string
}

func (e *accessError) Error() string { return e.message }

// resolveShop picks the shop a request acts on. Super admins must name one;
// everyone else is pinned to their own shop.
func resolveShop(claims *authClaims, requested int64) (int64, *accessError) {
	if claims.Role == domain.RoleSuperAdmin {
		if requested <= 0 {
			return 0, &accessError{http.StatusBadRequest, "shop_id is required"}
		}
		return requested, nil
	}
	if claims.ShopID == nil {
		return 0, &accessError{http.StatusForbidden, "user is not linked to a shop"}
	}
	if requested > 0 && requested != *claims.ShopID {
		return 0, &accessError{http.StatusForbidden, "access to this shop is not allowed"}
	}
	return *claims.ShopID, nil
}

// shopFromQuery resolves the shop for read endpoints taking ?shop_id=.
func (h *Handler) shopFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	requested, ok := queryInt64(r, "shop_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid shop_id")
		return 0, false
	}
	shopID, aerr := resolveShop(currentClaims(r), requested)
	if aerr != nil {
		respondError(w, aerr.status, aerr.message)
		return 0, false
	}
	return shopID, true
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "valid email and password are required")
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user, h.db.Rebind(`SELECT id, username, email, password, full_name, role, shop_id, is_active
		FROM users WHERE email = ?`), req.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.FromContext(r.Context(), h.log).Error("load user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}
	if err != nil || !user.IsActive || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	if err := h.audit.Record(r.Context(), audit.Entry{UserID: user.ID, ShopID: user.ShopID, Action: audit.ActionLogin, Module: "auth", RecordID: &user.ID}); err != nil {
		logger.FromContext(r.Context(), h.log).Warn("audit entry not recorded", zap.Error(err))
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
