package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/greenops/fieldops_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const siteLockTTL = 30 * time.Second

var ErrSiteBusy = errors.New("another commit is in progress for this site")

// releaseFunc undoes a lock. It never fails the caller.
type releaseFunc func()

func noRelease() {}

func siteLockName(siteId string) string {
	return fmt.Sprintf("commit:%s", siteId)
}

// acquireSiteLock serializes commits per site across instances. Redis is
// tried first; without Redis a MySQL advisory lock is used; without either
// the commit proceeds unlocked and the store's row locks still apply.
func acquireSiteLock(ctx context.Context, siteId string) (releaseFunc, error) {
	logger := config.GetLogger()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, siteLockName(siteId), siteLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return noRelease, ErrSiteBusy
		}
		if err == nil {
			return func() {
				if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
					logger.WithFields(logrus.Fields{
						"field":   "acquireSiteLock",
						"site_id": siteId,
					}).Warn("failed to release redis lock: " + releaseErr.Error())
				}
			}, nil
		}
		logger.WithFields(logrus.Fields{
			"field":   "acquireSiteLock",
			"site_id": siteId,
		}).Warn("error obtaining redis lock; falling back to mysql lock: " + err.Error())
	}

	db := config.GetDB()
	if db == nil {
		return noRelease, nil
	}
	// GET_LOCK is connection-scoped, so the lock is held on a pinned
	// transaction connection until release.
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return noRelease, tx.Error
	}
	if err := acquireSiteAdvisoryLock(tx, siteId); err != nil {
		tx.Rollback()
		return noRelease, err
	}
	return func() {
		releaseSiteAdvisoryLock(tx, siteId)
		tx.Rollback()
	}, nil
}

func acquireSiteAdvisoryLock(tx *gorm.DB, siteId string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", siteLockName(siteId)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("site_id=%s: %w", siteId, ErrSiteBusy)
	}
	return nil
}

func releaseSiteAdvisoryLock(tx *gorm.DB, siteId string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", siteLockName(siteId)).Scan(&_ok).Error
}
