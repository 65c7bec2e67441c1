package entity

import (
	"sort"
	"time"
)

// Trigger identifies a class of store event (e.g. a completed purchase).
// Rules are bound to exactly one trigger.
type Trigger string

// Bundled triggers raised by the store integrations.
const (
	TriggerPurchaseCompleted     Trigger = "purchase_completed"
	TriggerPurchaseRefunded      Trigger = "purchase_refunded"
	TriggerLicenseActivated      Trigger = "license_activated"
	TriggerLicenseDeactivated    Trigger = "license_deactivated"
	TriggerSubscriptionCreated   Trigger = "subscription_created"
	TriggerSubscriptionCancelled Trigger = "subscription_cancelled"
	TriggerCommentPosted         Trigger = "comment_posted"
	TriggerReviewPosted          Trigger = "review_posted"
	TriggerFraudFlagged          Trigger = "fraud_flagged"
	TriggerVendorRegistered      Trigger = "vendor_registered"
)

// NoDiscount is the sentinel the store sends when no discount code was applied.
// It doubles as the "any code" value of a rule's discount filter.
const NoDiscount = "all"

// Event is a single store action announced on the bus.
// The payload is treated as read-only for the whole notification pass.
type Event struct {
	Trigger    Trigger
	Payload    Payload
	OccurredAt time.Time
}

// Payload holds the fields every trigger shares plus a trigger-specific Detail.
// The generic notification path only reads the common fields; Detail is
// inspected by the adapter that owns the trigger.
type Payload struct {
	// UserID is the acting customer's account id; 0 means guest.
	UserID int64

	// Actor is the account profile the store sent with UserID, if any.
	// It takes precedence over the user directory.
	Actor *User

	// GuestName and GuestEmail are set by the store for guest checkouts.
	GuestName  string
	GuestEmail string

	// Cart maps product ids to the price ids present in the event.
	Cart Cart

	// DiscountCode is the applied code, or "" / NoDiscount when none was used.
	DiscountCode string

	// Detail is the trigger-specific variant (PurchaseDetail, LicenseDetail, ...).
	Detail Detail
}

// HasDiscount reports whether a real discount code was applied.
func (p Payload) HasDiscount() bool {
	return p.DiscountCode != "" && p.DiscountCode != NoDiscount
}

// Detail is implemented by every trigger-specific payload variant.
type Detail interface {
	detail()
}

// PriceSet is a set of price ids. Price id 0 is the base product.
type PriceSet map[int64]struct{}

// Has reports whether id is in the set.
func (s PriceSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Cart maps a product id to the price ids of that product present in an event.
// The same product can appear with several price ids at once.
type Cart map[int64]PriceSet

// Add records productID at priceID.
func (c Cart) Add(productID, priceID int64) {
	set, ok := c[productID]
	if !ok {
		set = PriceSet{}
		c[productID] = set
	}
	set[priceID] = struct{}{}
}

// Products returns the product ids in ascending order.
func (c Cart) Products() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CartLine is one purchased item.
type CartLine struct {
	DownloadID int64   `json:"download_id"`
	PriceID    int64   `json:"price_id"`
	Name       string  `json:"name"`
	PriceName  string  `json:"price_name,omitempty"`
	Quantity   int     `json:"quantity"`
	Amount     float64 `json:"amount"`
}

// PurchaseDetail accompanies purchase_completed and purchase_refunded.
type PurchaseDetail struct {
	PaymentID int64      `json:"payment_id"`
	Lines     []CartLine `json:"lines"`
	Total     float64    `json:"total"`
	Currency  string     `json:"currency"`
	Gateway   string     `json:"gateway"`
}

// LicenseDetail accompanies license activation triggers.
type LicenseDetail struct {
	LicenseID    int64  `json:"license_id"`
	DownloadID   int64  `json:"download_id"`
	DownloadName string `json:"download_name"`
	PriceID      int64  `json:"price_id"`
	Key          string `json:"key"`
	SiteURL      string `json:"site_url"`
}

// SubscriptionDetail accompanies subscription triggers.
type SubscriptionDetail struct {
	SubscriptionID int64  `json:"subscription_id"`
	DownloadID     int64  `json:"download_id"`
	DownloadName   string `json:"download_name"`
	PriceID        int64  `json:"price_id"`
	Period         string `json:"period"`
	Status         string `json:"status"`
}

// CommentDetail accompanies comment_posted.
type CommentDetail struct {
	CommentID int64  `json:"comment_id"`
	PostID    int64  `json:"post_id"`
	ParentID  int64  `json:"parent_id"`
	PostTitle string `json:"post_title"`
	Author    string `json:"author"`
	Content   string `json:"content"`
}

// ReviewDetail accompanies review_posted.
type ReviewDetail struct {
	ReviewID     int64  `json:"review_id"`
	DownloadID   int64  `json:"download_id"`
	DownloadName string `json:"download_name"`
	Rating       int    `json:"rating"`
	Title        string `json:"title"`
	Content      string `json:"content"`
}

// FraudDetail accompanies fraud_flagged.
type FraudDetail struct {
	PaymentID int64  `json:"payment_id"`
	Reason    string `json:"reason"`
}

// VendorDetail accompanies vendor_registered.
type VendorDetail struct {
	VendorID  int64  `json:"vendor_id"`
	StoreName string `json:"store_name"`
}

func (PurchaseDetail) detail()     {}
func (LicenseDetail) detail()      {}
func (SubscriptionDetail) detail() {}
func (CommentDetail) detail()      {}
func (ReviewDetail) detail()       {}
func (FraudDetail) detail()        {}
func (VendorDetail) detail()       {}
