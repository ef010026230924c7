// cache.go — LRU-кэш списков идентификаторов файлов с TTL.
// Кэшируются только результаты списочных запросов по id (файлы
// владельца, расшаренные файлы). Записи файлов и флаг паузы
// не кэшируются: решения о доступе всегда принимаются по базе.
package service

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fr_cache_hits_total",
		Help: "Количество попаданий в кэш списков файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fr_cache_misses_total",
		Help: "Количество промахов кэша списков файлов.",
	})
)

// CacheService — LRU-кэш списков идентификаторов с ограничением
// размера и TTL. Безопасен для конкурентного использования.
// Нулевой указатель допустим: все методы при nil работают как no-op.
type CacheService struct {
	lru    *expirable.LRU[string, []int64]
	logger *slog.Logger
}

// NewCacheService создаёт кэш на size записей с временем жизни ttl.
func NewCacheService(size int, ttl time.Duration, logger *slog.Logger) *CacheService {
	return &CacheService{
		lru:    expirable.NewLRU[string, []int64](size, nil, ttl),
		logger: logger.With(slog.String("component", "cache")),
	}
}

func ownerKey(owner string) string      { return "owner:" + owner }
func sharedKey(recipient string) string { return "shared:" + recipient }

// Get возвращает закэшированный список по ключу.
func (c *CacheService) Get(key string) ([]int64, bool) {
	if c == nil {
		return nil, false
	}
	ids, ok := c.lru.Get(key)
	if ok {
		cacheHitsTotal.Inc()
	} else {
		cacheMissesTotal.Inc()
	}
	return ids, ok
}

// Set сохраняет список по ключу.
func (c *CacheService) Set(key string, ids []int64) {
	if c == nil {
		return
	}
	c.lru.Add(key, ids)
}

// InvalidateOwner сбрасывает кэш списка файлов владельца.
func (c *CacheService) InvalidateOwner(owner string) {
	if c == nil {
		return
	}
	c.lru.Remove(ownerKey(owner))
}

// InvalidateShared сбрасывает кэш списка файлов, расшаренных получателю.
func (c *CacheService) InvalidateShared(recipient string) {
	if c == nil {
		return
	}
	c.lru.Remove(sharedKey(recipient))
}

// Purge полностью очищает кэш.
func (c *CacheService) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
