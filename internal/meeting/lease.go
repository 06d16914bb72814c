package meeting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorbridge/backend/internal/models"
)

const (
	leaseTTL           = 30 * time.Second
	leaseRetryInterval = 100 * time.Millisecond
)

// acquireMeetLease claims the per-tutor provisioning lease with a
// conditional update on the tutor row, so concurrent getOrCreate calls
// serialize even across stateless instances. The TTL bounds how long a
// crashed holder can block other instances. Blocks until the lease is
// claimed or ctx is done.
func acquireMeetLease(ctx context.Context, db *gorm.DB, tutorID int) (string, error) {
	owner := uuid.NewString()

	for {
		now := time.Now().UTC()
		result := db.WithContext(ctx).Model(&models.Tutor{}).
			Where("id = ? AND (meet_lease_owner IS NULL OR meet_lease_expires_at < ?)", tutorID, now).
			Updates(map[string]interface{}{
				"meet_lease_owner":      owner,
				"meet_lease_expires_at": now.Add(leaseTTL),
			})
		if result.Error != nil {
			return "", fmt.Errorf("acquire provisioning lease: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return owner, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("acquire provisioning lease: %w", ctx.Err())
		case <-time.After(leaseRetryInterval):
		}
	}
}

// releaseMeetLease releases the lease if still held by owner. Best-effort:
// an expired lease is reclaimable anyway, so failures are only logged.
func releaseMeetLease(db *gorm.DB, tutorID int, owner string) {
	result := db.Model(&models.Tutor{}).
		Where("id = ? AND meet_lease_owner = ?", tutorID, owner).
		Updates(map[string]interface{}{
			"meet_lease_owner":      nil,
			"meet_lease_expires_at": nil,
		})
	if result.Error != nil {
		log.Printf("Failed to release provisioning lease for tutor %d: %v", tutorID, result.Error)
	}
}
