package redisx

import "time"

const (
	// Cart state: cart:{cart_id} -> JSON
	KeyCart = "cart:%s"

	// Idempotent checkout: idem:checkout:{idempotency_key} -> fingerprint|result
	KeyIdemCheckout = "idem:checkout:%s"
)

var (
	TTLCart        = 72 * time.Hour
	TTLIdempotency = 24 * time.Hour
)
