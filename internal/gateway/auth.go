package gateway

import (
	"fmt"
	"net/http"

	"chatboard/internal/chat"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (g *Gateway) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}

	session, err := g.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.logger.Info("user registered", "user", session.User.ID)
	g.ok(w, http.StatusCreated, "User registered successfully", session)
}

func (g *Gateway) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}

	session, err := g.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "Login successful", session)
}

func (g *Gateway) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		g.fail(w, r, fmt.Errorf("%w: refresh token is required", chat.ErrValidation))
		return
	}

	pair, err := g.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", pair)
}

// logout is stateless: tokens expire on their own and clients drop them.
func (g *Gateway) logout(w http.ResponseWriter, r *http.Request) {
	g.ok(w, http.StatusOK, "Logged out successfully", nil)
}
