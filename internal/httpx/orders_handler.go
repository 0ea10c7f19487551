package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/checkout"
	"github.com/ariefcatur/go-pos-checkout/internal/money"
	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/ariefcatur/go-pos-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Store is the read side of the ledger.
type Store interface {
	orders.Catalog
	orders.OrderReader
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type OrdersHandler struct {
	Checkout *checkout.Service
	Store    Store
	Cache    Cache // nil = tanpa cache
	Log      *zap.Logger
}

type CartLineReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type ProcessOrderReq struct {
	Cart           []CartLineReq   `json:"cart"`
	PaymentMethod  string          `json:"payment_method"`
	AmountReceived decimal.Decimal `json:"amount_received"`
}

type ItemResp struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type ProcessOrderResp struct {
	OrderID         int64      `json:"order_id"`
	TransactionCode string     `json:"transaction_code"`
	Subtotal        string     `json:"subtotal"`
	Tax             string     `json:"tax"`
	Total           string     `json:"total"`
	Change          string     `json:"change"`
	Items           []ItemResp `json:"items"`
}

type VoidOrderResp struct {
	OrderID   int64            `json:"order_id"`
	Status    orders.Status    `json:"status"`
	VoidedAt  time.Time        `json:"voided_at"`
	Restocked []orders.ItemQty `json:"restocked"`
}

type OrderResp struct {
	OrderID         int64      `json:"order_id"`
	TransactionCode string     `json:"transaction_code"`
	CashierID       int64      `json:"cashier_id"`
	Status          string     `json:"status"`
	PaymentMethod   string     `json:"payment_method"`
	Subtotal        string     `json:"subtotal"`
	Tax             string     `json:"tax"`
	Total           string     `json:"total"`
	AmountReceived  string     `json:"amount_received"`
	Change          string     `json:"change"`
	CreatedAt       time.Time  `json:"created_at"`
	VoidedBy        *int64     `json:"voided_by,omitempty"`
	VoidedAt        *time.Time `json:"voided_at,omitempty"`
	Items           []ItemResp `json:"items"`
}

type ProductResp struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	Managed bool   `json:"is_inventory_managed"`
	Stock   *int   `json:"stock_quantity,omitempty"` // hanya untuk produk managed
}

type ErrorResp struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Due       string `json:"due,omitempty"`
	Received  string `json:"received,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.processOrder)
	r.Post("/orders/{id}/void", h.voidOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// statusFor maps a failure kind onto an HTTP status.
func statusFor(k orders.Kind) int {
	switch k {
	case orders.KindValidation, orders.KindProductInactive, orders.KindInsufficientStock, orders.KindInsufficientPayment:
		return http.StatusBadRequest
	case orders.KindForbidden:
		return http.StatusForbidden
	case orders.KindProductNotFound, orders.KindOrderNotFound:
		return http.StatusNotFound
	case orders.KindAlreadyCancelled, orders.KindConflict, orders.KindDuplicateCode:
		return http.StatusConflict
	case orders.KindTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *OrdersHandler) writeError(w http.ResponseWriter, err error) {
	var e *orders.Error
	if !errors.As(err, &e) {
		e = &orders.Error{Kind: orders.KindInternal, Message: "internal error", Err: err}
	}
	resp := ErrorResp{Error: string(e.Kind), Message: e.Message, Retryable: e.Retryable(), ProductID: e.ProductID}
	switch e.Kind {
	case orders.KindInsufficientStock:
		avail := e.Available
		resp.Available = &avail
	case orders.KindInsufficientPayment:
		resp.Due = money.Format(e.Due)
		resp.Received = money.Format(e.Received)
	case orders.KindInternal:
		resp.Message = "internal error" // detail storage tidak bocor ke client
	}
	writeJSON(w, statusFor(e.Kind), resp)
}

// actorFrom reads the caller identity set by the upstream auth layer.
func actorFrom(r *http.Request) (orders.Actor, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		return orders.Actor{}, false
	}
	role := orders.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
	if role == "" {
		role = orders.RoleCashier
	}
	return orders.Actor{UserID: id, Role: role}, true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, orders.Validation("invalid order id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func toItems(items []orders.OrderItem) []ItemResp {
	out := make([]ItemResp, 0, len(items))
	for _, it := range items {
		out = append(out, ItemResp{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money.Format(it.Price),
			Quantity:  it.Qty,
			Subtotal:  money.Format(it.Subtotal),
		})
	}
	return out
}

func (h *OrdersHandler) processOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Error: "unauthenticated", Message: "missing " + HeaderUserID})
		return
	}
	var req ProcessOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, orders.Validation("invalid json: %v", err))
		return
	}

	// Idempotency via Redis: klaim key dulu, baru proses. Pemenang klaim
	// menulis response; request lain replay atau dapat 409 selama in-flight.
	idemKey := ""
	if k := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)); k != "" && h.Cache != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderProcess, strconv.FormatInt(actor.UserID, 10)+":"+k)
		if h.replayOrReject(r.Context(), w, idemKey) {
			return
		}
	}

	cart := make([]checkout.CartLine, 0, len(req.Cart))
	for _, l := range req.Cart {
		cart = append(cart, checkout.CartLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	rc, err := h.Checkout.ProcessOrder(r.Context(), checkout.ProcessRequest{
		Cashier:        actor,
		Cart:           cart,
		PaymentMethod:  orders.PaymentMethod(strings.ToLower(req.PaymentMethod)),
		AmountReceived: req.AmountReceived,
	})
	if err != nil {
		if idemKey != "" {
			// lepas klaim supaya client bisa retry dengan key yang sama
			_ = h.Cache.Del(context.WithoutCancel(r.Context()), idemKey)
		}
		h.writeError(w, err)
		return
	}

	b, _ := json.Marshal(ProcessOrderResp{
		OrderID:         rc.OrderID,
		TransactionCode: rc.TransactionCode,
		Subtotal:        money.Format(rc.Subtotal),
		Tax:             money.Format(rc.Tax),
		Total:           money.Format(rc.Total),
		Change:          money.Format(rc.Change),
		Items:           toItems(rc.Items),
	})
	if h.Cache != nil {
		ctx := context.WithoutCancel(r.Context())
		if idemKey != "" {
			_ = h.Cache.Set(ctx, idemKey, b, redisx.TTLIdempotency)
		}
		h.refreshCaches(ctx, rc.OrderID, orders.StatusPaid)
	}
	writeRaw(w, http.StatusCreated, b)
}

// replayOrReject claims key for this request. It reports true when the
// response was already written: a replay of the stored result, or 409 while
// another request holding the key is in flight.
func (h *OrdersHandler) replayOrReject(ctx context.Context, w http.ResponseWriter, key string) bool {
	claimed, err := h.Cache.SetIfAbsent(ctx, key, []byte(redisx.IdemPending), redisx.TTLIdemPending)
	if err != nil {
		// redis down: proses tanpa jaminan idempotensi, DB tetap konsisten
		h.Log.Warn("idempotency claim failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if claimed {
		return false
	}
	b, hit, err := h.Cache.Get(ctx, key)
	if err != nil || !hit || string(b) == redisx.IdemPending {
		h.writeError(w, &orders.Error{
			Kind:    orders.KindConflict,
			Message: "a request with this " + HeaderIdempotencyKey + " is still in progress",
		})
		return true
	}
	w.Header().Set("Idempotent-Replay", "true")
	writeRaw(w, http.StatusCreated, b)
	return true
}

func (h *OrdersHandler) voidOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Error: "unauthenticated", Message: "missing " + HeaderUserID})
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.Checkout.VoidOrder(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.Cache != nil {
		h.refreshCaches(context.WithoutCancel(r.Context()), id, orders.StatusCancelled)
	}
	restocked := res.Restocked
	if restocked == nil {
		restocked = []orders.ItemQty{}
	}
	writeJSON(w, http.StatusOK, VoidOrderResp{
		OrderID:   res.OrderID,
		Status:    orders.StatusCancelled,
		VoidedAt:  res.VoidedAt,
		Restocked: restocked,
	})
}

// refreshCaches updates the status entry and drops the catalog after a stock change.
func (h *OrdersHandler) refreshCaches(ctx context.Context, orderID int64, st orders.Status) {
	b, _ := json.Marshal(orders.StatusView{OrderID: orderID, Status: st, UpdatedAt: time.Now().UTC()})
	if err := h.Cache.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), b, redisx.TTLStatusCache); err != nil {
		h.Log.Warn("cache order status", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if err := h.Cache.Del(ctx, redisx.KeyCatalog); err != nil {
		h.Log.Warn("invalidate catalog", zap.Error(err))
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, items, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResp{
		OrderID:         o.ID,
		TransactionCode: o.TransactionCode,
		CashierID:       o.CashierID,
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		Subtotal:        money.Format(o.Subtotal),
		Tax:             money.Format(o.Tax),
		Total:           money.Format(o.Total),
		AmountReceived:  money.Format(o.AmountReceived),
		Change:          money.Format(o.Change),
		CreatedAt:       o.CreatedAt,
		VoidedBy:        o.VoidedBy,
		VoidedAt:        o.VoidedAt,
		Items:           toItems(items),
	})
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if h.Cache != nil {
		if b, hit, err := h.Cache.Get(ctx, key); err == nil && hit {
			writeRaw(w, http.StatusOK, b)
			return
		}
	}

	// 2) fallback DB
	o, _, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	updated := o.CreatedAt
	if o.VoidedAt != nil {
		updated = *o.VoidedAt
	}
	b, _ := json.Marshal(orders.StatusView{OrderID: o.ID, Status: o.Status, UpdatedAt: updated})
	if h.Cache != nil {
		_ = h.Cache.Set(ctx, key, b, redisx.TTLStatusCache)
	}
	writeRaw(w, http.StatusOK, b)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if b, hit, err := h.Cache.Get(ctx, redisx.KeyCatalog); err == nil && hit {
			writeRaw(w, http.StatusOK, b)
			return
		}
	}

	ps, err := h.Store.ListActiveProducts(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]ProductResp, 0, len(ps))
	for _, p := range ps {
		pr := ProductResp{ID: p.ID, Name: p.Name, Price: money.Format(p.Price), Managed: p.Managed}
		if p.Managed {
			stock := p.Stock
			pr.Stock = &stock
		}
		out = append(out, pr)
	}
	b, _ := json.Marshal(out)
	if h.Cache != nil {
		_ = h.Cache.Set(ctx, redisx.KeyCatalog, b, redisx.TTLCatalog)
	}
	writeRaw(w, http.StatusOK, b)
}
