package http

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/delivery"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/auction"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/middleware"
)

type handler struct {
	vault  vault.UseCase
	events vault.EventUseCase
}

// New registers the read-only vault api under /vault. Routes in cached are
// wrapped with it.
func New(e *echo.Echo, vaultUC vault.UseCase, eventUC vault.EventUseCase, cached echo.MiddlewareFunc) {
	h := &handler{
		vault:  vaultUC,
		events: eventUC,
	}
	if cached == nil {
		cached = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	g := e.Group("/vault")
	g.GET("", h.getInfo)
	g.GET("/supply", h.getSupply)
	g.GET("/preview/mint", h.previewMint)
	g.GET("/preview/redeem", h.previewRedeem)

	g.GET("/accounts/:address/balance", h.getBalance, middleware.IsValidAddress("address"))
	g.GET("/accounts/:address/allowances/:spender", h.getAllowance, middleware.IsValidAddress("address"), middleware.IsValidAddress("spender"))

	g.GET("/assets", h.getAssets)
	g.GET("/assets/:assetId", h.getAsset)
	g.GET("/assets/:assetId/price", h.getPrice)
	g.GET("/assets/:assetId/auction", h.getAuctionOf)

	g.GET("/auctions", h.getActiveAuctions)
	g.GET("/auctions/:auctionId", h.getAuction)
	g.GET("/proposals", h.getPendingProposals)
	g.GET("/proposals/:proposalId", h.getProposal)

	g.GET("/events", h.getEvents, cached)
	g.GET("/events/:seq", h.getEvent)
}

// amounts leave the api as decimal strings

type supplyResp struct {
	Total     string `json:"total"`
	Locked    string `json:"locked"`
	Effective string `json:"effective"`
}

type proposalResp struct {
	Id          domain.ProposalId      `json:"id"`
	AssetId     domain.AssetId         `json:"assetId"`
	Proposer    domain.Address         `json:"proposer"`
	StartPrice  string                 `json:"startPrice"`
	EndPrice    string                 `json:"endPrice"`
	SubmittedAt time.Time              `json:"submittedAt"`
	Status      auction.ProposalStatus `json:"status"`
	AuctionId   domain.AuctionId       `json:"auctionId,omitempty"`
}

type auctionResp struct {
	Id         domain.AuctionId      `json:"id"`
	AssetId    domain.AssetId        `json:"assetId"`
	ProposalId domain.ProposalId     `json:"proposalId,omitempty"`
	StartPrice string                `json:"startPrice"`
	EndPrice   string                `json:"endPrice"`
	StartTime  time.Time             `json:"startTime"`
	Duration   string                `json:"duration"`
	Status     auction.AuctionStatus `json:"status"`
	Buyer      domain.Address        `json:"buyer,omitempty"`
	SoldPrice  string                `json:"soldPrice,omitempty"`
}

func toProposalResp(p *auction.Proposal) proposalResp {
	return proposalResp{
		Id:          p.Id,
		AssetId:     p.AssetId,
		Proposer:    p.Proposer,
		StartPrice:  domain.FormatAmount(p.StartPrice),
		EndPrice:    domain.FormatAmount(p.EndPrice),
		SubmittedAt: p.SubmittedAt,
		Status:      p.Status,
		AuctionId:   p.AuctionId,
	}
}

func toAuctionResp(a *auction.Auction) auctionResp {
	res := auctionResp{
		Id:         a.Id,
		AssetId:    a.AssetId,
		ProposalId: a.ProposalId,
		StartPrice: domain.FormatAmount(a.StartPrice),
		EndPrice:   domain.FormatAmount(a.EndPrice),
		StartTime:  a.StartTime,
		Duration:   a.Duration.String(),
		Status:     a.Status,
		Buyer:      a.Buyer,
	}
	if a.SoldPrice != nil {
		res.SoldPrice = domain.FormatAmount(a.SoldPrice)
	}
	return res
}

func (h *handler) getInfo(c echo.Context) error {
	return delivery.MakeJsonResp(c, http.StatusOK, h.vault.Info())
}

func (h *handler) getSupply(c echo.Context) error {
	s := h.vault.Supply()
	return delivery.MakeJsonResp(c, http.StatusOK, supplyResp{
		Total:     domain.FormatAmount(s.Total),
		Locked:    domain.FormatAmount(s.Locked),
		Effective: domain.FormatAmount(s.Effective()),
	})
}

type amountParams struct {
	Amount string `query:"amount" validate:"required,amount"`
}

func (h *handler) bindAmount(c echo.Context) (*big.Int, error) {
	p := amountParams{}
	if err := c.Bind(&p); err != nil {
		return nil, err
	}
	if err := c.Validate(&p); err != nil {
		return nil, err
	}
	return domain.ParseAmount(p.Amount)
}

func (h *handler) previewMint(c echo.Context) error {
	asset, err := h.bindAmount(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	tokens, err := h.vault.PreviewMint(asset)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusUnprocessableEntity, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, map[string]string{
		"asset":  domain.FormatAmount(asset),
		"tokens": domain.FormatAmount(tokens),
	})
}

func (h *handler) previewRedeem(c echo.Context) error {
	tokens, err := h.bindAmount(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	asset, err := h.vault.PreviewRedeem(tokens)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusUnprocessableEntity, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, map[string]string{
		"tokens": domain.FormatAmount(tokens),
		"asset":  domain.FormatAmount(asset),
	})
}

func (h *handler) getBalance(c echo.Context) error {
	account := domain.Address(c.Param("address")).ToLower()
	return delivery.MakeJsonResp(c, http.StatusOK, map[string]string{
		"account": account.ToLowerStr(),
		"balance": domain.FormatAmount(h.vault.BalanceOf(account)),
	})
}

func (h *handler) getAllowance(c echo.Context) error {
	owner := domain.Address(c.Param("address")).ToLower()
	spender := domain.Address(c.Param("spender")).ToLower()
	return delivery.MakeJsonResp(c, http.StatusOK, map[string]string{
		"owner":     owner.ToLowerStr(),
		"spender":   spender.ToLowerStr(),
		"allowance": domain.FormatAmount(h.vault.Allowance(owner, spender)),
	})
}

type assetParams struct {
	AssetId uint64 `param:"assetId"`
}

func bindAssetId(c echo.Context) (domain.AssetId, error) {
	p := assetParams{}
	if err := c.Bind(&p); err != nil {
		return 0, err
	}
	return domain.AssetId(p.AssetId), nil
}

func (h *handler) getAssets(c echo.Context) error {
	return delivery.MakeJsonResp(c, http.StatusOK, h.vault.Assets())
}

func (h *handler) getAsset(c echo.Context) error {
	assetId, err := bindAssetId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	rec, err := h.vault.Asset(assetId)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, rec)
}

func (h *handler) getPrice(c echo.Context) error {
	assetId, err := bindAssetId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	price, err := h.vault.CurrentPrice(assetId)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, map[string]interface{}{
		"assetId": assetId,
		"price":   domain.FormatAmount(price),
	})
}

func (h *handler) getAuctionOf(c echo.Context) error {
	assetId, err := bindAssetId(c)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	a, err := h.vault.AuctionOf(assetId)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, toAuctionResp(a))
}

func (h *handler) getActiveAuctions(c echo.Context) error {
	return delivery.MakeJsonResp(c, http.StatusOK, h.vault.ActiveAuctions())
}

func (h *handler) getAuction(c echo.Context) error {
	p := struct {
		AuctionId uint64 `param:"auctionId"`
	}{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	a, err := h.vault.Auction(domain.AuctionId(p.AuctionId))
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, toAuctionResp(a))
}

func (h *handler) getPendingProposals(c echo.Context) error {
	return delivery.MakeJsonResp(c, http.StatusOK, h.vault.PendingProposals())
}

func (h *handler) getProposal(c echo.Context) error {
	p := struct {
		ProposalId uint64 `param:"proposalId"`
	}{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	prop, err := h.vault.Proposal(domain.ProposalId(p.ProposalId))
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, toProposalResp(prop))
}

type eventParams struct {
	Type    string `query:"type"`
	AssetId string `query:"assetId" validate:"omitempty,numeric"`
	Account string `query:"account" validate:"omitempty,address"`
	Offset  int    `query:"offset" validate:"gte=0"`
	Limit   int    `query:"limit" validate:"gte=0,lte=500"`
}

func (h *handler) getEvents(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := eventParams{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if err := c.Validate(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []vault.EventListOptionFunc{}
	if p.Type != "" {
		opts = append(opts, vault.WithEventType(vault.EventType(p.Type)))
	}
	if p.AssetId != "" {
		id, err := strconv.ParseUint(p.AssetId, 10, 64)
		if err != nil {
			return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
		}
		opts = append(opts, vault.WithEventAsset(domain.AssetId(id)))
	}
	if p.Account != "" {
		opts = append(opts, vault.WithEventAccount(domain.Address(p.Account)))
	}
	if p.Limit > 0 {
		opts = append(opts, vault.WithPagination(p.Offset, p.Limit))
	}

	events, err := h.events.List(ctx, h.vault.Info().Address, opts...)
	if err != nil {
		ctx.WithField("err", err).Error("events.List failed")
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, events)
}

func (h *handler) getEvent(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	e, err := h.events.Get(ctx, h.vault.Info().Address, seq)
	if err != nil {
		if !domain.IsNotFound(err) {
			ctx.WithField("err", err).Error("events.Get failed")
		}
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, e)
}
