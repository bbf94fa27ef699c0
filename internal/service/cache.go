// cache.go — in-memory LRU-кэши с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable с Prometheus-метриками
// hit/miss, размеченными именем кэша.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэшей.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ah_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ah_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша.",
	}, []string{"cache"})
)

// Cache — LRU-кэш с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш (per-instance).
type Cache[V any] struct {
	lru    *expirable.LRU[string, V]
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// name используется как значение лейбла cache в метриках.
func NewCache[V any](name string, maxSize int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		lru:    expirable.NewLRU[string, V](maxSize, nil, ttl),
		hits:   cacheHitsTotal.WithLabelValues(name),
		misses: cacheMissesTotal.WithLabelValues(name),
	}
}

// Get возвращает значение из кэша и обновляет метрики hit/miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	val, ok := c.lru.Get(key)
	if ok {
		c.hits.Inc()
		return val, true
	}
	c.misses.Inc()
	return val, false
}

// Set добавляет или обновляет запись в кэше.
func (c *Cache[V]) Set(key string, val V) {
	c.lru.Add(key, val)
}

// Delete удаляет запись из кэша (инвалидация при изменении данных).
func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Purge полностью очищает кэш.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}
