package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/cropcare/backend/internal/auth"
	"github.com/ayush/cropcare/backend/internal/models"
	"github.com/ayush/cropcare/backend/internal/store"
)

// memProfiles mirrors the Mongo upsert semantics of SaveProfile.
type memProfiles struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]*models.Profile
}

func (m *memProfiles) GetProfile(_ context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) SaveProfile(_ context.Context, userID primitive.ObjectID, in *models.ProfileInput) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p, ok := m.profiles[userID]
	if !ok {
		p = &models.Profile{
			ID: primitive.NewObjectID(), UserID: userID, CreatedAt: now,
			CropsScanned: []string{}, CropsRecommended: []string{},
		}
		m.profiles[userID] = p
	}
	p.FullName, p.Phone, p.CountryCode = in.FullName, in.Phone, in.CountryCode
	p.City, p.Email, p.Username = in.City, in.Email, in.Username
	if in.ProfileImage != nil && *in.ProfileImage != "" {
		p.ProfileImage = *in.ProfileImage
	}
	if in.CropsScanned != nil {
		p.CropsScanned = *in.CropsScanned
	}
	if in.CropsRecommended != nil {
		p.CropsRecommended = *in.CropsRecommended
	}
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

func (m *memProfiles) SetProfileImage(_ context.Context, userID primitive.ObjectID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.ProfileImage = key
	return nil
}

type memObject struct {
	data        []byte
	contentType string
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string]memObject
}

func (m *memObjects) PutObject(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (m *memObjects) GetObject(_ context.Context, key string) (*store.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(o.data)),
		ContentType: o.contentType,
		Size:        int64(len(o.data)),
	}, nil
}

func (m *memObjects) RemoveObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type env struct {
	h        *Handler
	profiles *memProfiles
	objects  *memObjects
	userID   primitive.ObjectID
}

func newEnv() *env {
	profiles := &memProfiles{profiles: map[primitive.ObjectID]*models.Profile{}}
	objects := &memObjects{objects: map[string]memObject{}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &env{
		h:        NewHandler(profiles, objects, log),
		profiles: profiles,
		objects:  objects,
		userID:   primitive.NewObjectID(),
	}
}

func (e *env) authed(r *http.Request) *http.Request {
	return r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{UserID: e.userID.Hex()}))
}

func (e *env) jsonRequest(t *testing.T, method string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return e.authed(httptest.NewRequest(method, "/api/profile", &buf))
}

func contactFields() map[string]interface{} {
	return map[string]interface{}{
		"fullName":    "Asha Rao",
		"phone":       "9876543210",
		"countryCode": "+91",
		"city":        "Pune",
		"email":       "asha@example.com",
		"username":    "asha_rao",
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUnauthenticated(t *testing.T) {
	e := newEnv()
	for name, h := range map[string]http.HandlerFunc{
		"get": e.h.Get, "save": e.h.Save, "upload": e.h.UploadAvatar, "download": e.h.DownloadAvatar,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		})
	}
}

func TestGetWithoutProfile(t *testing.T) {
	e := newEnv()
	rec := httptest.NewRecorder()
	e.h.Get(rec, e.jsonRequest(t, http.MethodGet, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profile":null}`, rec.Body.String())
}

func TestSaveRequiresContactFields(t *testing.T) {
	e := newEnv()
	body := contactFields()
	delete(body, "city")
	body["phone"] = "   "

	rec := httptest.NewRecorder()
	e.h.Save(rec, e.jsonRequest(t, http.MethodPost, body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "Validation failed", out["error"])
	details := out["details"].([]interface{})
	fields := []string{}
	for _, d := range details {
		fields = append(fields, d.(map[string]interface{})["field"].(string))
	}
	assert.ElementsMatch(t, []string{"phone", "city"}, fields)
	assert.Empty(t, e.profiles.profiles)
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	e := newEnv()

	first := contactFields()
	first["cropsScanned"] = []string{"tomato"}
	rec := httptest.NewRecorder()
	e.h.Save(rec, e.jsonRequest(t, http.MethodPost, first))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	created := out["profile"].(map[string]interface{})
	assert.Equal(t, []interface{}{"tomato"}, created["cropsScanned"])
	assert.Equal(t, []interface{}{}, created["cropsRecommended"])

	second := contactFields()
	second["city"] = "Nashik"
	rec = httptest.NewRecorder()
	e.h.Save(rec, e.jsonRequest(t, http.MethodPost, second))
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode(t, rec)["profile"].(map[string]interface{})

	assert.Equal(t, created["id"], updated["id"])
	assert.Equal(t, "Nashik", updated["city"])
	assert.Equal(t, []interface{}{"tomato"}, updated["cropsScanned"], "omitted optional fields are kept")
	assert.Len(t, e.profiles.profiles, 1)

	rec = httptest.NewRecorder()
	e.h.Get(rec, e.jsonRequest(t, http.MethodGet, nil))
	got := decode(t, rec)["profile"].(map[string]interface{})
	assert.Equal(t, "Nashik", got["city"])
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func avatarRequest(t *testing.T, e *env, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "avatar.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.authed(req)
}

func saveProfile(t *testing.T, e *env) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.Save(rec, e.jsonRequest(t, http.MethodPost, contactFields()))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadAndDownloadAvatar(t *testing.T) {
	e := newEnv()
	saveProfile(t, e)

	rec := httptest.NewRecorder()
	e.h.UploadAvatar(rec, avatarRequest(t, e, "avatar", pngHeader))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	key := decode(t, rec)["profileImage"].(string)
	assert.True(t, strings.HasPrefix(key, "avatars/"+e.userID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, key, e.profiles.profiles[e.userID].ProfileImage)

	rec = httptest.NewRecorder()
	e.h.DownloadAvatar(rec, e.authed(httptest.NewRequest(http.MethodGet, "/api/profile/avatar", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	// A second upload replaces and removes the first object.
	rec = httptest.NewRecorder()
	e.h.UploadAvatar(rec, avatarRequest(t, e, "avatar", pngHeader))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, e.objects.objects, 1)
}

func TestUploadAvatarRejections(t *testing.T) {
	t.Run("no profile yet", func(t *testing.T) {
		e := newEnv()
		rec := httptest.NewRecorder()
		e.h.UploadAvatar(rec, avatarRequest(t, e, "avatar", pngHeader))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong field name", func(t *testing.T) {
		e := newEnv()
		saveProfile(t, e)
		rec := httptest.NewRecorder()
		e.h.UploadAvatar(rec, avatarRequest(t, e, "file", pngHeader))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not an image", func(t *testing.T) {
		e := newEnv()
		saveProfile(t, e)
		rec := httptest.NewRecorder()
		e.h.UploadAvatar(rec, avatarRequest(t, e, "avatar", []byte("%PDF-1.4 not a picture")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, e.objects.objects)
	})

	t.Run("too large", func(t *testing.T) {
		e := newEnv()
		saveProfile(t, e)
		big := append(append([]byte{}, pngHeader...), make([]byte, MaxAvatarBytes)...)
		rec := httptest.NewRecorder()
		e.h.UploadAvatar(rec, avatarRequest(t, e, "avatar", big))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, e.objects.objects)
	})
}

func TestDownloadAvatarMissing(t *testing.T) {
	e := newEnv()
	rec := httptest.NewRecorder()
	e.h.DownloadAvatar(rec, e.authed(httptest.NewRequest(http.MethodGet, "/api/profile/avatar", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	saveProfile(t, e)
	rec = httptest.NewRecorder()
	e.h.DownloadAvatar(rec, e.authed(httptest.NewRequest(http.MethodGet, "/api/profile/avatar", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
