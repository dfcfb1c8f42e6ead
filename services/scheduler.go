package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep deactivates expired promo codes once a minute. The sweep is
// housekeeping above the engines — redemption never relies on it, since expiry
// is re-checked inside Redeem.
func (s *PromoService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			n, err := s.DeactivateExpired()
			if err != nil {
				log.Printf("[Scheduler] promo expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Scheduler] deactivated %d expired promo code(s)", n)
			}
		}),
	)
}
