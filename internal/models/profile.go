package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is the per-user contact document; at most one exists per user.
type Profile struct {
	ID               primitive.ObjectID `json:"id"                     bson:"_id,omitempty"`
	UserID           primitive.ObjectID `json:"userId"                 bson:"user_id"`
	FullName         string             `json:"fullName"               bson:"full_name"`
	Phone            string             `json:"phone"                  bson:"phone"`
	CountryCode      string             `json:"countryCode"            bson:"country_code"`
	City             string             `json:"city"                   bson:"city"`
	Email            string             `json:"email"                  bson:"email"`
	Username         string             `json:"username"               bson:"username"`
	ProfileImage     string             `json:"profileImage,omitempty" bson:"profile_image,omitempty"`
	CropsScanned     []string           `json:"cropsScanned"           bson:"crops_scanned"`
	CropsRecommended []string           `json:"cropsRecommended"       bson:"crops_recommended"`
	CreatedAt        time.Time          `json:"createdAt"              bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt"              bson:"updated_at"`
}

// ProfileInput is the JSON body for POST /api/profile.
// Nil optional fields leave the stored value untouched.
type ProfileInput struct {
	FullName         string    `json:"fullName"`
	Phone            string    `json:"phone"`
	CountryCode      string    `json:"countryCode"`
	City             string    `json:"city"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	ProfileImage     *string   `json:"profileImage,omitempty"`
	CropsScanned     *[]string `json:"cropsScanned,omitempty"`
	CropsRecommended *[]string `json:"cropsRecommended,omitempty"`
}
