// Package profile serves the per-user profile document and avatar image.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/cropcare/backend/internal/auth"
	"github.com/ayush/cropcare/backend/internal/httpx"
	"github.com/ayush/cropcare/backend/internal/models"
	"github.com/ayush/cropcare/backend/internal/store"
)

// MaxAvatarBytes caps uploaded profile images.
const MaxAvatarBytes = 5 << 20

const avatarPrefix = "avatars/"

// avatarTypes maps accepted sniffed content types to object key extensions.
var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store defines the interface for profile persistence.
type Store interface {
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error)
	SaveProfile(ctx context.Context, userID primitive.ObjectID, in *models.ProfileInput) (*models.Profile, error)
	SetProfileImage(ctx context.Context, userID primitive.ObjectID, key string) error
}

// ObjectStore holds avatar files.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, key string) (*store.Object, error)
	RemoveObject(ctx context.Context, key string) error
}

// Handler holds profile HTTP handlers.
type Handler struct {
	profiles Store
	objects  ObjectStore
	log      *slog.Logger
}

func NewHandler(profiles Store, objects ObjectStore, log *slog.Logger) *Handler {
	return &Handler{profiles: profiles, objects: objects, log: log}
}

type getResponse struct {
	Profile *models.Profile `json:"profile"`
}

type saveResponse struct {
	Success bool            `json:"success"`
	Profile *models.Profile `json:"profile"`
}

type avatarResponse struct {
	ProfileImage string `json:"profileImage"`
}

// Get returns the caller's profile, or null when none has been saved.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httpx.Internal(w, r, h.log, "failed to load profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, getResponse{Profile: p})
}

// Save creates the caller's profile or updates it in place.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in models.ProfileInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if details := validate(&in); len(details) > 0 {
		httpx.ValidationFailed(w, details)
		return
	}

	p, err := h.profiles.SaveProfile(r.Context(), userID, &in)
	if err != nil {
		httpx.Internal(w, r, h.log, "failed to save profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, saveResponse{Success: true, Profile: p})
}

// UploadAvatar stores a new profile image and points the profile at it.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	existing, err := h.profiles.GetProfile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		httpx.Internal(w, r, h.log, "failed to load profile", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+1<<20)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "An avatar image file is required (max 5 MB)")
		return
	}
	defer file.Close()

	if header.Size > MaxAvatarBytes {
		httpx.Error(w, http.StatusBadRequest, "Avatar image must be 5 MB or smaller")
		return
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		httpx.Error(w, http.StatusBadRequest, "Avatar image could not be read")
		return
	}
	contentType := http.DetectContentType(sniff[:n])
	ext, allowed := avatarTypes[contentType]
	if !allowed {
		httpx.Error(w, http.StatusBadRequest, "Avatar must be a JPEG, PNG or WebP image")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		httpx.Internal(w, r, h.log, "failed to rewind avatar", err)
		return
	}

	key := fmt.Sprintf("%s%s/%s%s", avatarPrefix, userID.Hex(), uuid.NewString(), ext)
	if err := h.objects.PutObject(r.Context(), key, file, header.Size, contentType); err != nil {
		httpx.Internal(w, r, h.log, "failed to store avatar", err)
		return
	}
	if err := h.profiles.SetProfileImage(r.Context(), userID, key); err != nil {
		httpx.Internal(w, r, h.log, "failed to update profile image", err)
		return
	}

	if old := existing.ProfileImage; strings.HasPrefix(old, avatarPrefix) {
		if err := h.objects.RemoveObject(r.Context(), old); err != nil {
			h.log.WarnContext(r.Context(), "failed to remove previous avatar", "key", old, "error", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, avatarResponse{ProfileImage: key})
}

// DownloadAvatar streams the caller's current profile image.
func (h *Handler) DownloadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.GetProfile(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !strings.HasPrefix(p.ProfileImage, avatarPrefix)) {
		httpx.Error(w, http.StatusNotFound, "Avatar not found")
		return
	}
	if err != nil {
		httpx.Internal(w, r, h.log, "failed to load profile", err)
		return
	}

	obj, err := h.objects.GetObject(r.Context(), p.ProfileImage)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "Avatar not found")
		return
	}
	if err != nil {
		httpx.Internal(w, r, h.log, "failed to open avatar", err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, obj); err != nil {
		h.log.WarnContext(r.Context(), "avatar stream interrupted", "key", p.ProfileImage, "error", err)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
		return primitive.NilObjectID, false
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
		return primitive.NilObjectID, false
	}
	return oid, true
}

func validate(in *models.ProfileInput) []httpx.FieldError {
	required := []struct {
		field, label string
		value        *string
	}{
		{"fullName", "Full name", &in.FullName},
		{"phone", "Phone", &in.Phone},
		{"countryCode", "Country code", &in.CountryCode},
		{"city", "City", &in.City},
		{"email", "Email", &in.Email},
		{"username", "Username", &in.Username},
	}

	var details []httpx.FieldError
	for _, f := range required {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			details = append(details, httpx.FieldError{Field: f.field, Message: f.label + " is required"})
		}
	}
	return details
}
