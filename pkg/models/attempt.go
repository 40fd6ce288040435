package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CheckoutAttempt records one submission run. Submitted counts the lines whose
// orders were created before the run stopped.
type CheckoutAttempt struct {
	ID            bson.ObjectID   `json:"-" bson:"_id,omitempty"`
	AttemptID     string          `json:"attempt_id" bson:"attempt_id"`
	BuyerEmail    string          `json:"buyer_email" bson:"buyer_email"`
	SessionEmail  string          `json:"session_email,omitempty" bson:"session_email,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method" bson:"payment_method"`
	Reference     string          `json:"reference" bson:"reference"`
	Lines         []CartLine      `json:"lines" bson:"-"`
	LineCount     int             `json:"line_count" bson:"line_count"`
	Submitted     int             `json:"submitted" bson:"submitted"`
	TotalUSD      decimal.Decimal `json:"total_usd" bson:"-"`
	TotalText     string          `json:"-" bson:"total_usd"`
	Status        string          `json:"status" bson:"status"`
	Failure       string          `json:"failure,omitempty" bson:"failure,omitempty"`
	AuthFailure   bool            `json:"auth_failure" bson:"auth_failure"`
	StartedAt     time.Time       `json:"started_at" bson:"started_at"`
	FinishedAt    time.Time       `json:"finished_at" bson:"finished_at"`
}
