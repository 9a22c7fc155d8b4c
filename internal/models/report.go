package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportTTL is how long a shared report stays retrievable.
const ReportTTL = 30 * 24 * time.Hour

// ShareableReport is an immutable snapshot of a disease analysis.
type ShareableReport struct {
	ID         primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Disease    string             `json:"disease"    bson:"disease"`
	Confidence float64            `json:"confidence" bson:"confidence"`
	Severity   string             `json:"severity"   bson:"severity"`
	Treatment  string             `json:"treatment"  bson:"treatment"`
	Prevention string             `json:"prevention" bson:"prevention"`
	ImageURL   string             `json:"imageUrl"   bson:"image_url"`
	CreatedAt  time.Time          `json:"createdAt"  bson:"created_at"`
	ExpiresAt  time.Time          `json:"expiresAt"  bson:"expires_at"`
}

// Expired reports whether the report is past its expiry at now.
func (r *ShareableReport) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// ShareRequest is the JSON body for POST /api/share. Pointers distinguish
// a missing field from a zero value.
type ShareRequest struct {
	Disease    *string  `json:"disease"`
	Confidence *float64 `json:"confidence"`
	Severity   *string  `json:"severity"`
	Treatment  *string  `json:"treatment"`
	Prevention *string  `json:"prevention"`
	ImageURL   *string  `json:"imageUrl"`
}

// ShareResponse is returned after a report is stored.
type ShareResponse struct {
	ShareID  string `json:"shareId"`
	ShareURL string `json:"shareUrl"`
}
