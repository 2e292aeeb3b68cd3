package httpx

import (
	"github.com/ariefcatur/shop-fulfillment/internal/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"net/http"
)

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()

	ps, err := a.Stock.List(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, viewProduct(p))
	}
	ok(w, http.StatusOK, out)
}

func (a *API) inventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()

	st, err := a.Stock.Status(ctx, chi.URLParam(r, "name"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, st)
}

type createProductReq struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	InitialStock int             `json:"initial_stock"`
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id, _ := identityFrom(r.Context())
	ctx, cancel := a.ctx(r)
	defer cancel()

	p, err := a.Stock.CreateProduct(ctx, inventory.NewProduct{
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		Category:     req.Category,
		InitialStock: req.InitialStock,
		ActorID:      &id.UserID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, viewProduct(p))
}

type adjustStockReq struct {
	Op       inventory.Op `json:"op"`
	Quantity int          `json:"quantity"`
	Comment  string       `json:"comment"`
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id, _ := identityFrom(r.Context())
	ctx, cancel := a.ctx(r)
	defer cancel()

	st, err := a.Stock.AdjustStock(ctx, chi.URLParam(r, "name"), req.Op, req.Quantity, &id.UserID, req.Comment)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, st)
}

func (a *API) journal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()

	es, err := a.Stock.Journal(ctx, chi.URLParam(r, "name"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]journalView, 0, len(es))
	for _, e := range es {
		out = append(out, journalView{
			ID:        e.ID,
			Change:    e.ChangeType,
			Delta:     e.QuantityDelta,
			OrderID:   e.OrderID,
			ActorID:   e.ActorID,
			Timestamp: e.Timestamp,
			Comment:   e.Comment,
		})
	}
	ok(w, http.StatusOK, out)
}

type settingReq struct {
	Value string `json:"value"`
}

func (a *API) putSetting(w http.ResponseWriter, r *http.Request) {
	var req settingReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	key := chi.URLParam(r, "key")
	if err := a.Settings.Set(ctx, key, req.Value); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
