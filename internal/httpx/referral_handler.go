package httpx

import (
	"github.com/ariefcatur/shop-fulfillment/internal/referral"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

type createCodeReq struct {
	Code      string     `json:"code"`
	ExpiresAt *time.Time `json:"expires_at"`
	MaxUses   *int       `json:"max_uses"`
	Note      string     `json:"note"`
	Admin     bool       `json:"admin"`
}

func (a *API) createCode(w http.ResponseWriter, r *http.Request) {
	var req createCodeReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id, _ := identityFrom(r.Context())
	if req.Admin && !id.Admin() {
		forbidden(w)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	c, err := a.Referral.CreateCode(ctx, referral.NewCode{
		Code:      req.Code,
		CreatedBy: id.UserID,
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
		Note:      req.Note,
		Admin:     req.Admin,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, viewCode(c))
}

func (a *API) redeemCode(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	ctx, cancel := a.ctx(r)
	defer cancel()

	c, err := a.Referral.Redeem(ctx, chi.URLParam(r, "code"), id.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, viewCode(c))
}

func (a *API) deactivateCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()

	if err := a.Referral.DeactivateCode(ctx, chi.URLParam(r, "code")); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, nil)
}

type createUserReq struct {
	ID         int64  `json:"id"`
	ReferralID *int64 `json:"referral_id"`
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	u, err := a.Referral.CreateUser(ctx, req.ID, req.ReferralID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, map[string]any{"id": u.ID, "referral_id": u.ReferralID, "registered_at": u.RegisteredAt})
}

// userParam parses {id} and checks the caller may see that user.
func (a *API) userParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, valid := idParam(r, "id")
	if !valid {
		badRequest(w, "invalid user id")
		return 0, false
	}
	if id, _ := identityFrom(r.Context()); !id.may(userID) {
		forbidden(w)
		return 0, false
	}
	return userID, true
}

func (a *API) customer(w http.ResponseWriter, r *http.Request) {
	userID, allowed := a.userParam(w, r)
	if !allowed {
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	c, err := a.Referral.Customer(ctx, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, customerView{
		UserID:               c.UserID,
		TotalSpendings:       c.TotalSpendings,
		CompletedOrdersCount: c.CompletedOrdersCount,
		BonusBalance:         c.BonusBalance,
	})
}

func (a *API) earnings(w http.ResponseWriter, r *http.Request) {
	userID, allowed := a.userParam(w, r)
	if !allowed {
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	es, err := a.Referral.Earnings(ctx, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]earningView, 0, len(es))
	for _, e := range es {
		out = append(out, earningView{
			ID:             e.ID,
			ReferralID:     e.ReferralID,
			Amount:         e.Amount,
			OriginalAmount: e.OriginalAmount,
			CreatedAt:      e.CreatedAt,
		})
	}
	ok(w, http.StatusOK, out)
}

type grantReq struct {
	Amount decimal.Decimal `json:"amount"`
}

func (a *API) grantBonus(w http.ResponseWriter, r *http.Request) {
	userID, valid := idParam(r, "id")
	if !valid {
		badRequest(w, "invalid user id")
		return
	}
	var req grantReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	id, _ := identityFrom(r.Context())
	ctx, cancel := a.ctx(r)
	defer cancel()

	e, err := a.Referral.GrantBonus(ctx, id.UserID, userID, req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, earningView{
		ID:             e.ID,
		ReferralID:     e.ReferralID,
		Amount:         e.Amount,
		OriginalAmount: e.OriginalAmount,
		CreatedAt:      e.CreatedAt,
	})
}
