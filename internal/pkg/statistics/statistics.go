package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/internal/pkg/cache"
	"github.com/vkarlsson/vardera/internal/pkg/database"
)

const (
	CacheKeyAppraisalsTotal = "statistics:appraisals:total"
	CacheKeyAppraisalsDaily = "statistics:appraisals:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers           = "statistics:users:total"
	CacheExpiration         = 30 * time.Minute
)

// StatisticsData holds the landing page numbers
type StatisticsData struct {
	TodayAppraisals int
	TotalUsers      int
	TotalAppraisals int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cached numbers are due for a refresh
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has elapsed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalAppraisals int64
	if err := db.Model(&models.Appraisal{}).Count(&totalAppraisals).Error; err != nil {
		log.Printf("Error counting total appraisals: %v", err)
		return err
	}

	var todayAppraisals int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Appraisal{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayAppraisals).Error; err != nil {
		log.Printf("Error counting today's appraisals: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyAppraisalsTotal, strconv.FormatInt(totalAppraisals, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total appraisals: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyAppraisalsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayAppraisals, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's appraisals: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// GetTotalAppraisals returns the total number of appraisals from cache or database
func GetTotalAppraisals() int {
	val, err := cache.Get(CacheKeyAppraisalsTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Appraisal{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total appraisals: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyAppraisalsTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total appraisals: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayAppraisals returns the number of appraisals submitted today from cache or database
func GetTodayAppraisals() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyAppraisalsDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Appraisal{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's appraisals: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's appraisals: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayAppraisals: GetTodayAppraisals(),
		TotalUsers:      GetTotalUsers(),
		TotalAppraisals: GetTotalAppraisals(),
	}
}
