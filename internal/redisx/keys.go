package redisx

import "time"

const (
	// Idempotency POST /orders: idem:order:process:{idempotency_key} -> response JSON
	KeyIdemOrderProcess = "idem:order:process:%s"

	// Nilai sementara selama request dengan key yang sama masih diproses
	IdemPending = "pending"

	// Cache status order: order_status:{order_id} -> {"order_id":..,"status":"..","updated_at":".."}
	KeyOrderStatus = "order_status:%d"

	// Cache katalog aktif (GET /products), di-invalidate tiap stok berubah
	KeyCatalog = "catalog:active"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = time.Minute // klaim in-flight, harus > timeout tx
	TTLStatusCache = 5 * time.Minute
	TTLCatalog     = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
