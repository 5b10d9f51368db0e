package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/domain/ports/repository"
	"telegram-payment-links/internal/infra/metrics"
	red "telegram-payment-links/internal/infra/redis"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ repository.ProductRepository = (*productRepoCacheDecorator)(nil)

const productListKey = "products:all"

// productRepoCacheDecorator is a read-through Redis cache in front of the catalog.
// Cache failures fall back to the inner repository.
type productRepoCacheDecorator struct {
	inner repository.ProductRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewProductRepoCacheDecorator(inner repository.ProductRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ProductRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "ProductCache").Logger()
	return &productRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func productKey(id string) string { return fmt.Sprintf("product:%s", id) }

func (d *productRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Product, error) {
	key := productKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Product
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("product", "hit")
			return &p, nil
		}
	} else if err != redis.Nil {
		metrics.IncCacheRequest("product", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
	}

	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return p, nil
}

// Save writes through and invalidates both the item and the list.
func (d *productRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, productKey(p.ID), productListKey); err != nil {
		d.log.Warn().Err(err).Str("product_id", p.ID).Msg("cache invalidation failed")
	}
	return nil
}

func (d *productRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Product, error) {
	val, err := d.cache.Get(ctx, productListKey)
	if err == nil {
		var products []*model.Product
		if json.Unmarshal([]byte(val), &products) == nil {
			metrics.IncCacheRequest("product_list", "hit")
			return products, nil
		}
	} else if err != redis.Nil {
		metrics.IncCacheRequest("product_list", "error")
	}

	metrics.IncCacheRequest("product_list", "miss")
	products, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		if b, err := json.Marshal(products); err == nil {
			_ = d.cache.Set(ctx, productListKey, b, d.ttl)
		}
	}
	return products, nil
}
