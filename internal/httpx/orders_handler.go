package httpx

import (
	"context"
	"github.com/ariefcatur/shop-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/shop-fulfillment/internal/inventory"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/redisx"
	"github.com/ariefcatur/shop-fulfillment/internal/referral"
	"github.com/ariefcatur/shop-fulfillment/internal/settings"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
	"time"
)

// StatusReader is the order status read model, *redisx.StatusCache in
// production.
type StatusReader interface {
	Status(ctx context.Context, orderID int64) (redisx.CachedStatus, bool, error)
}

type API struct {
	Engine   *fulfillment.Engine
	Stock    *inventory.Service
	Referral *referral.Service
	Settings *settings.Provider
	Cache    StatusReader // optional
	Secret   string
	Log      *zap.Logger
	Timeout  time.Duration
}

func (a *API) Register(r *chi.Mux) {
	r.Get("/products", a.listProducts)
	r.Get("/products/{name}/inventory", a.inventory)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(a.Secret))
		r.Post("/orders", a.checkout)
		r.Post("/orders/draft", a.createDraft)
		r.Get("/orders/{id}", a.getOrder)
		r.Get("/orders/{id}/status", a.orderStatus)
		r.Post("/orders/{id}/reserve", a.reserveOrder)
		r.Post("/orders/{id}/cancel", a.cancelOrder)
		r.Post("/codes", a.createCode)
		r.Post("/codes/{code}/redeem", a.redeemCode)
		r.Get("/customers/{id}", a.customer)
		r.Get("/customers/{id}/earnings", a.earnings)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/orders/{id}/confirm", a.confirmOrder)
			r.Post("/orders/{id}/deliver", a.deliverOrder)
			r.Put("/orders/{id}/delivery-time", a.setDeliveryTime)
			r.Post("/products", a.createProduct)
			r.Post("/products/{name}/stock", a.adjustStock)
			r.Get("/products/{name}/journal", a.journal)
			r.Delete("/codes/{code}", a.deactivateCode)
			r.Post("/users", a.createUser)
			r.Post("/customers/{id}/bonus", a.grantBonus)
			r.Put("/settings/{key}", a.putSetting)
		})
	})
}

func (a *API) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	t := a.Timeout
	if t <= 0 {
		t = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), t)
}

func (a *API) logFailure(r *http.Request, err error) {
	a.Log.Error("request failed", zap.Error(err),
		zap.String("method", r.Method), zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("kind", orders.Classify(err).String()))
}

type checkoutReq struct {
	fulfillment.OrderRequest
	Bonus decimal.Decimal `json:"bonus"`
}

// buyerFor resolves whose order this is: buyers always order for themselves,
// admins may name a buyer.
func buyerFor(id Identity, requested int64) (int64, bool) {
	if requested == 0 {
		return id.UserID, true
	}
	return requested, id.may(requested)
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id, _ := identityFrom(r.Context())
	buyer, allowed := buyerFor(id, req.BuyerID)
	if !allowed {
		forbidden(w)
		return
	}
	req.BuyerID = buyer

	ctx, cancel := a.ctx(r)
	defer cancel()
	o, err := a.Engine.Checkout(ctx, fulfillment.CheckoutRequest{OrderRequest: req.OrderRequest, Bonus: req.Bonus})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, viewOrder(o))
}

func (a *API) createDraft(w http.ResponseWriter, r *http.Request) {
	var req fulfillment.OrderRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id, _ := identityFrom(r.Context())
	buyer, allowed := buyerFor(id, req.BuyerID)
	if !allowed {
		forbidden(w)
		return
	}
	req.BuyerID = buyer

	ctx, cancel := a.ctx(r)
	defer cancel()
	o, err := a.Engine.CreateOrder(ctx, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, viewOrder(o))
}

// ownedOrder loads the order named in the path and checks the caller may
// act on it. It writes the error response itself.
func (a *API) ownedOrder(ctx context.Context, w http.ResponseWriter, r *http.Request) (orders.Order, bool) {
	orderID, valid := idParam(r, "id")
	if !valid {
		badRequest(w, "invalid order id")
		return orders.Order{}, false
	}
	o, err := a.Engine.GetOrder(ctx, orderID)
	if err != nil {
		a.fail(w, r, err)
		return orders.Order{}, false
	}
	if id, _ := identityFrom(r.Context()); !id.may(o.BuyerID) {
		forbidden(w)
		return orders.Order{}, false
	}
	return o, true
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	o, found := a.ownedOrder(ctx, w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, viewOrder(o))
}

// orderStatus answers from the cache when it can and falls back to the store.
func (a *API) orderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	orderID, valid := idParam(r, "id")
	if !valid {
		badRequest(w, "invalid order id")
		return
	}
	id, _ := identityFrom(r.Context())
	if a.Cache != nil {
		s, hit, err := a.Cache.Status(ctx, orderID)
		if err == nil && hit && id.may(s.BuyerID) {
			ok(w, http.StatusOK, s)
			return
		}
		if err != nil {
			a.Log.Warn("status cache read", zap.Error(err), zap.Int64("order_id", orderID))
		}
	}
	o, found := a.ownedOrder(ctx, w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, redisx.CachedStatus{
		OrderID:       o.ID,
		Code:          o.Code,
		BuyerID:       o.BuyerID,
		Status:        o.Status,
		ReservedUntil: o.ReservedUntil,
		UpdatedAt:     time.Now().UTC(),
	})
}

type reserveReq struct {
	Bonus decimal.Decimal `json:"bonus"`
}

func (a *API) reserveOrder(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	o, found := a.ownedOrder(ctx, w, r)
	if !found {
		return
	}
	o, err := a.Engine.ReserveOrder(ctx, o.ID, req.Bonus)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, viewOrder(o))
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	o, found := a.ownedOrder(ctx, w, r)
	if !found {
		return
	}
	id, _ := identityFrom(r.Context())
	o, err := a.Engine.CancelOrder(ctx, o.ID, &fulfillment.Actor{UserID: id.UserID, Admin: id.Admin()})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, viewOrder(o))
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (orders.Order, error)) {
	orderID, valid := idParam(r, "id")
	if !valid {
		badRequest(w, "invalid order id")
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	o, err := fn(ctx, orderID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, viewOrder(o))
}

func (a *API) confirmOrder(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.Engine.ConfirmOrder)
}

func (a *API) deliverOrder(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.Engine.MarkDelivered)
}

type deliveryTimeReq struct {
	DeliveryTime time.Time `json:"delivery_time"`
}

func (a *API) setDeliveryTime(w http.ResponseWriter, r *http.Request) {
	var req deliveryTimeReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	a.transition(w, r, func(ctx context.Context, id int64) (orders.Order, error) {
		return a.Engine.SetDeliveryTime(ctx, id, req.DeliveryTime)
	})
}
