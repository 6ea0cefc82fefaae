package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSaleCompleted     Type = "sale_completed"
	TypePurchaseCompleted Type = "purchase_completed"
)

// Notification is appended for delivery by the messaging collaborator.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      Type
	Title     string
	Message   string
	Link      string
	CreatedAt time.Time
}

// TransactionLink is the deep link to a transaction page.
func TransactionLink(txID uuid.UUID) string {
	return "/transactions/" + txID.String()
}

// ForSale returns the seller and buyer notifications for a completed sale.
func ForSale(txID, sellerID, buyerID uuid.UUID, listingTitle, amount string, now time.Time) []*Notification {
	link := TransactionLink(txID)
	if listingTitle == "" {
		listingTitle = "your listing"
	}
	return []*Notification{
		{
			ID:        uuid.New(),
			UserID:    sellerID,
			Type:      TypeSaleCompleted,
			Title:     "Your horse has been sold!",
			Message:   fmt.Sprintf("Payment of %s for %s has been received and is held in escrow.", amount, listingTitle),
			Link:      link,
			CreatedAt: now,
		},
		{
			ID:        uuid.New(),
			UserID:    buyerID,
			Type:      TypePurchaseCompleted,
			Title:     "Purchase complete",
			Message:   fmt.Sprintf("Your payment of %s for %s was successful.", amount, listingTitle),
			Link:      link,
			CreatedAt: now,
		},
	}
}

type Repository interface {
	// Insert appends notifications (typically inside a transaction)
	Insert(ctx context.Context, n ...*Notification) error
}
