package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// 医薬品詳細のキャッシュ。REDIS_ADDR未設定なら使わない（nilで動く）。
type MedicineCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMedicineCache(addr string, password string, ttl time.Duration) (*MedicineCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &MedicineCache{client: client, ttl: ttl}, nil
}

func medicineKey(id int64) string {
	return fmt.Sprintf("medicine:%d", id)
}

// キャッシュから1件取得。miss（またはキャッシュ無効）なら ok=false。
func (c *MedicineCache) Get(ctx context.Context, id int64) (model.Medicine, bool) {
	if c == nil {
		return model.Medicine{}, false
	}

	data, err := c.client.Get(ctx, medicineKey(id)).Bytes()
	if err != nil {
		return model.Medicine{}, false
	}

	var m model.Medicine
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Medicine{}, false
	}
	return m, true
}

// 取得結果をキャッシュする。失敗しても無視（best effort）。
func (c *MedicineCache) Set(ctx context.Context, m model.Medicine) {
	if c == nil {
		return
	}

	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, medicineKey(m.ID), data, c.ttl).Err()
}

// メタデータ更新・在庫調整の後に消す。
func (c *MedicineCache) Invalidate(ctx context.Context, id int64) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, medicineKey(id)).Err()
}

func (c *MedicineCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
