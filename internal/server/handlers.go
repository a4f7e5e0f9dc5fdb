package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/domain"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/matching"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

type userResponse struct {
	ID           string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Phone        *string   `json:"phone"`
	Address      *string   `json:"address"`
	Organization *string   `json:"organization"`
	CreatedAt    time.Time `json:"created_at"`
}

func newUserResponse(u *repository.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Phone:        u.Phone,
		Address:      u.Address,
		Organization: u.Organization,
		CreatedAt:    u.CreatedAt,
	}
}

type sessionResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func required(fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return domain.NewValidationError(f[0], "is required")
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "foodshare",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string  `json:"name"`
		Email        string  `json:"email"`
		Password     string  `json:"password"`
		Role         string  `json:"role"`
		Phone        *string `json:"phone"`
		Address      *string `json:"address"`
		Organization *string `json:"organization"`
	}
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := required(
		[2]string{"name", body.Name},
		[2]string{"email", body.Email},
		[2]string{"password", body.Password},
		[2]string{"role", body.Role},
	); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Name:         body.Name,
		Email:        body.Email,
		Password:     body.Password,
		Role:         body.Role,
		Phone:        body.Phone,
		Address:      body.Address,
		Organization: body.Organization,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{
		Message:   "User registered successfully",
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      newUserResponse(sess.User),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := required([2]string{"email", body.Email}, [2]string{"password", body.Password}); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.auth.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		Message:   "Login successful",
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      newUserResponse(sess.User),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	user, err := s.auth.Me(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	views, err := s.listings.ListVisible(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"listings": views})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title         string  `json:"title"`
		Description   string  `json:"description"`
		Quantity      string  `json:"quantity"`
		FoodType      string  `json:"food_type"`
		PickupAddress string  `json:"pickup_address"`
		ExpiryHours   *int    `json:"expiry_hours"`
		ImageURL      *string `json:"image_url"`
	}
	if err := decodeJSON(w, r, &body, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if body.ExpiryHours == nil {
		s.respondError(w, r, domain.NewValidationError("expiry_hours", "is required"))
		return
	}

	id, _ := identityFrom(r.Context())
	view, err := s.listings.CreateListing(r.Context(), id, matching.ListingInput{
		Title:         body.Title,
		Description:   body.Description,
		Quantity:      body.Quantity,
		FoodType:      body.FoodType,
		PickupAddress: body.PickupAddress,
		ExpiryHours:   *body.ExpiryHours,
		ImageURL:      body.ImageURL,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Food listing created successfully",
		"listing_id": view.ID,
		"listing":    view,
	})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	view, err := s.listings.GetListing(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleRequestPickup(w http.ResponseWriter, r *http.Request) {
	listingID := mux.Vars(r)["id"]
	var body struct {
		ListingID string  `json:"listing_id"`
		Message   *string `json:"message"`
	}
	if err := decodeJSON(w, r, &body, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	if body.ListingID != "" && body.ListingID != listingID {
		s.respondError(w, r, domain.NewValidationError("listing_id", fmt.Sprintf("does not match path listing %s", listingID)))
		return
	}

	id, _ := identityFrom(r.Context())
	req, err := s.listings.SubmitRequest(r.Context(), id, listingID, body.Message)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Pickup request accepted",
		"request_id": req.ID,
		"listing_id": req.ListingID,
		"status":     req.Status,
	})
}

func (s *Server) handleCompleteListing(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	view, err := s.listings.CompleteListing(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Pickup marked as complete",
		"listing": view,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	st, err := s.stats.Compute(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}
